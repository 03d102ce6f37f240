package importer

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/partsdesk/importer/internal/domain"
	"github.com/partsdesk/importer/internal/repository"
	"github.com/partsdesk/importer/internal/tabular"
)

// dealerStrategy imports dealer account rows. Dealers carry no versioned
// attributes; every field is updated in place.
type dealerStrategy struct {
	dealers repository.DealerRepository
}

// NewDealerStrategy builds the DEALERS import strategy.
func NewDealerStrategy(dealers repository.DealerRepository) Strategy {
	return &dealerStrategy{dealers: dealers}
}

func (s *dealerStrategy) EntityType() domain.EntityType { return domain.EntityTypeDealers }

func (s *dealerStrategy) Contract() tabular.Contract {
	return tabular.Contract{
		Required: []string{"dealer_code", "name", "region"},
		Optional: []string{"contact_email", "discount_tier"},
	}
}

func (s *dealerStrategy) Prepare(ctx context.Context) error { return nil }

func (s *dealerStrategy) ParseRow(table *tabular.Table, row tabular.Row) (any, []string) {
	var messages []string

	code := strings.ToUpper(table.Value(row, "dealer_code"))
	if code == "" {
		messages = append(messages, "dealer_code is required")
	}
	name := table.Value(row, "name")
	if name == "" {
		messages = append(messages, "name is required")
	}
	region := table.Value(row, "region")
	if region == "" {
		messages = append(messages, "region is required")
	}

	email := table.Value(row, "contact_email")
	if email != "" && !strings.Contains(email, "@") {
		messages = append(messages, fmt.Sprintf("contact_email %q is not a valid address", email))
	}

	if len(messages) > 0 {
		return nil, messages
	}

	return domain.Dealer{
		ID:           uuid.New(),
		DealerCode:   code,
		Name:         name,
		Region:       region,
		ContactEmail: email,
		DiscountTier: table.Value(row, "discount_tier"),
	}, nil
}

func (s *dealerStrategy) NaturalKey(record any) string {
	return record.(domain.Dealer).DealerCode
}

func (s *dealerStrategy) UpsertBatch(ctx context.Context, tx pgx.Tx, batch []Parsed) ([]RowFailure, error) {
	dealers := make([]domain.Dealer, len(batch))
	for i, item := range batch {
		dealers[i] = item.Record.(domain.Dealer)
	}
	return nil, s.dealers.WithTx(tx).Upsert(ctx, dealers)
}

func (s *dealerStrategy) Finalize(ctx context.Context) error { return nil }
