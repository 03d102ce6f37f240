package importer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/partsdesk/importer/internal/domain"
	"github.com/partsdesk/importer/internal/repository"
	"github.com/partsdesk/importer/internal/tabular"
)

var etaLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	time.RFC3339,
}

type backorderRecord struct {
	partNumber string
	quantity   int
	eta        *time.Time
}

// backorderStrategy imports per-part backorder feeds as versioned
// snapshots. Rows naming unknown parts degrade to row errors.
type backorderStrategy struct {
	products   repository.ProductRepository
	backorders repository.BackorderRepository

	affected []string
}

// NewBackorderStrategy builds the BACKORDER import strategy.
func NewBackorderStrategy(products repository.ProductRepository, backorders repository.BackorderRepository) Strategy {
	return &backorderStrategy{products: products, backorders: backorders}
}

func (s *backorderStrategy) EntityType() domain.EntityType { return domain.EntityTypeBackorder }

func (s *backorderStrategy) Contract() tabular.Contract {
	return tabular.Contract{
		Required: []string{"part_number", "backorder_qty"},
		Optional: []string{"eta"},
	}
}

func (s *backorderStrategy) Prepare(ctx context.Context) error { return nil }

func (s *backorderStrategy) ParseRow(table *tabular.Table, row tabular.Row) (any, []string) {
	var messages []string

	partNumber := strings.ToUpper(table.Value(row, "part_number"))
	if partNumber == "" {
		messages = append(messages, "part_number is required")
	}

	quantity, err := parseNonNegativeInt(table.Value(row, "backorder_qty"), "backorder_qty")
	if err != nil {
		messages = append(messages, err.Error())
	}

	var eta *time.Time
	if raw := table.Value(row, "eta"); raw != "" {
		parsed, err := parseETA(raw)
		if err != nil {
			messages = append(messages, err.Error())
		} else {
			eta = &parsed
		}
	}

	if len(messages) > 0 {
		return nil, messages
	}
	return backorderRecord{partNumber: partNumber, quantity: quantity, eta: eta}, nil
}

func (s *backorderStrategy) NaturalKey(record any) string {
	return record.(backorderRecord).partNumber
}

func (s *backorderStrategy) UpsertBatch(ctx context.Context, tx pgx.Tx, batch []Parsed) ([]RowFailure, error) {
	partNumbers := make([]string, len(batch))
	for i, item := range batch {
		partNumbers[i] = item.Record.(backorderRecord).partNumber
	}

	ids, err := s.products.WithTx(tx).IDsByPartNumbers(ctx, partNumbers)
	if err != nil {
		return nil, err
	}

	var failures []RowFailure
	productIDs := make([]uuid.UUID, 0, len(batch))
	snapshots := make([]domain.BackorderSnapshot, 0, len(batch))
	for _, item := range batch {
		rec := item.Record.(backorderRecord)
		id, ok := ids[rec.partNumber]
		if !ok {
			failures = append(failures, RowFailure{
				RowNumber: item.RowNumber,
				Raw:       item.Raw,
				Messages:  []string{fmt.Sprintf("unknown part number %q", rec.partNumber)},
			})
			continue
		}
		productIDs = append(productIDs, id)
		snapshots = append(snapshots, domain.BackorderSnapshot{
			ID:        uuid.New(),
			ProductID: id,
			Quantity:  rec.quantity,
			ETA:       rec.eta,
		})
		s.affected = append(s.affected, rec.partNumber)
	}

	repo := s.backorders.WithTx(tx)
	if err := repo.ArchiveActive(ctx, productIDs); err != nil {
		return nil, err
	}
	if err := repo.InsertSnapshots(ctx, snapshots); err != nil {
		return nil, err
	}

	return failures, nil
}

func (s *backorderStrategy) Finalize(ctx context.Context) error { return nil }

// AffectedParts lists parts whose backorder state changed.
func (s *backorderStrategy) AffectedParts() []string {
	return s.affected
}

// parseETA accepts common date layouts plus full timestamps, but the
// snapshot column stores a calendar date, so the result is normalized
// to midnight UTC.
func parseETA(raw string) (time.Time, error) {
	for _, layout := range etaLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("eta: unrecognized date %q", raw)
}
