package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/partsdesk/importer/internal/domain"
)

type dealerRepository struct {
	db Querier
}

// NewDealerRepository wires a repository backed by pgx.
func NewDealerRepository(db Querier) DealerRepository {
	return &dealerRepository{db: db}
}

func (r *dealerRepository) WithTx(tx pgx.Tx) DealerRepository {
	return &dealerRepository{db: tx}
}

func (r *dealerRepository) Upsert(ctx context.Context, dealers []domain.Dealer) error {
	if len(dealers) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, d := range dealers {
		batch.Queue(
			`INSERT INTO dealers (id, dealer_code, name, region, contact_email, discount_tier)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT (dealer_code) DO UPDATE
			 SET name = EXCLUDED.name,
			     region = EXCLUDED.region,
			     contact_email = EXCLUDED.contact_email,
			     discount_tier = EXCLUDED.discount_tier,
			     updated_at = now()`,
			d.ID, d.DealerCode, d.Name, d.Region, d.ContactEmail, d.DiscountTier,
		)
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()

	for range dealers {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to upsert dealer: %w", err)
		}
	}
	return nil
}
