package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

type orderRepository struct {
	db Querier
}

// NewOrderRepository wires a repository backed by pgx.
func NewOrderRepository(db Querier) OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) WithTx(tx pgx.Tx) OrderRepository {
	return &orderRepository{db: tx}
}

// UpdateStatuses applies status updates to existing orders. Order numbers
// with no matching row are returned so the caller can record them as
// row-level errors without failing the batch.
func (r *orderRepository) UpdateStatuses(ctx context.Context, updates []OrderStatusUpdate) ([]string, error) {
	if len(updates) == 0 {
		return nil, nil
	}

	batch := &pgx.Batch{}
	for _, u := range updates {
		batch.Queue(
			`UPDATE orders SET status = $2, status_updated_at = $3
			 WHERE order_number = $1`,
			u.OrderNumber, u.Status, u.UpdatedAt,
		)
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()

	var missing []string
	for _, u := range updates {
		tag, err := results.Exec()
		if err != nil {
			return missing, fmt.Errorf("failed to update order status: %w", err)
		}
		if tag.RowsAffected() == 0 {
			missing = append(missing, u.OrderNumber)
		}
	}
	return missing, nil
}
