package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/partsdesk/importer/internal/domain"
)

type backorderRepository struct {
	db Querier
}

// NewBackorderRepository wires a repository backed by pgx.
func NewBackorderRepository(db Querier) BackorderRepository {
	return &backorderRepository{db: db}
}

func (r *backorderRepository) WithTx(tx pgx.Tx) BackorderRepository {
	return &backorderRepository{db: tx}
}

func (r *backorderRepository) ArchiveActive(ctx context.Context, productIDs []uuid.UUID) error {
	if len(productIDs) == 0 {
		return nil
	}
	_, err := r.db.Exec(
		ctx,
		`UPDATE backorder_snapshots SET active = false WHERE product_id = ANY($1) AND active`,
		productIDs,
	)
	if err != nil {
		return fmt.Errorf("failed to archive active backorders: %w", err)
	}
	return nil
}

func (r *backorderRepository) InsertSnapshots(ctx context.Context, snapshots []domain.BackorderSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, s := range snapshots {
		batch.Queue(
			`INSERT INTO backorder_snapshots (id, product_id, quantity, eta, active)
			 VALUES ($1, $2, $3, $4, true)`,
			s.ID, s.ProductID, s.Quantity, s.ETA,
		)
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()

	for range snapshots {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to insert backorder snapshot: %w", err)
		}
	}
	return nil
}
