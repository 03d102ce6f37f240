package importer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/partsdesk/importer/internal/domain"
	"github.com/partsdesk/importer/internal/repository"
	"github.com/partsdesk/importer/internal/tabular"
)

// orderStatusStrategy applies fulfillment status feeds to existing
// orders. Duplicate order numbers are allowed within a file: fulfillment
// exports legitimately carry several updates for the same order in
// chronological order.
type orderStatusStrategy struct {
	orders repository.OrderRepository
}

// NewOrderStatusStrategy builds the ORDER_STATUS import strategy.
func NewOrderStatusStrategy(orders repository.OrderRepository) Strategy {
	return &orderStatusStrategy{orders: orders}
}

func (s *orderStatusStrategy) EntityType() domain.EntityType { return domain.EntityTypeOrderStatus }

func (s *orderStatusStrategy) Contract() tabular.Contract {
	return tabular.Contract{
		Required: []string{"order_number", "status"},
		Optional: []string{"updated_at"},
	}
}

func (s *orderStatusStrategy) Prepare(ctx context.Context) error { return nil }

func (s *orderStatusStrategy) ParseRow(table *tabular.Table, row tabular.Row) (any, []string) {
	var messages []string

	orderNumber := strings.ToUpper(table.Value(row, "order_number"))
	if orderNumber == "" {
		messages = append(messages, "order_number is required")
	}

	status, err := domain.ParseOrderStatus(table.Value(row, "status"))
	if err != nil {
		messages = append(messages, err.Error())
	}

	updatedAt := time.Now().UTC()
	if raw := table.Value(row, "updated_at"); raw != "" {
		parsed, err := parseETA(raw)
		if err != nil {
			messages = append(messages, fmt.Sprintf("updated_at: unrecognized date %q", raw))
		} else {
			updatedAt = parsed
		}
	}

	if len(messages) > 0 {
		return nil, messages
	}
	return repository.OrderStatusUpdate{
		OrderNumber: orderNumber,
		Status:      status,
		UpdatedAt:   updatedAt,
	}, nil
}

func (s *orderStatusStrategy) NaturalKey(record any) string { return "" }

func (s *orderStatusStrategy) UpsertBatch(ctx context.Context, tx pgx.Tx, batch []Parsed) ([]RowFailure, error) {
	updates := make([]repository.OrderStatusUpdate, len(batch))
	for i, item := range batch {
		updates[i] = item.Record.(repository.OrderStatusUpdate)
	}

	missing, err := s.orders.WithTx(tx).UpdateStatuses(ctx, updates)
	if err != nil {
		return nil, err
	}

	missingSet := make(map[string]bool, len(missing))
	for _, orderNumber := range missing {
		missingSet[orderNumber] = true
	}

	var failures []RowFailure
	for _, item := range batch {
		update := item.Record.(repository.OrderStatusUpdate)
		if missingSet[update.OrderNumber] {
			failures = append(failures, RowFailure{
				RowNumber: item.RowNumber,
				Raw:       item.Raw,
				Messages:  []string{fmt.Sprintf("no order found with number %q", update.OrderNumber)},
			})
		}
	}
	return failures, nil
}

func (s *orderStatusStrategy) Finalize(ctx context.Context) error { return nil }
