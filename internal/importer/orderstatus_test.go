package importer

import (
	"context"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"

	"github.com/partsdesk/importer/internal/repository"
)

type stubOrderRepository struct {
	known   map[string]bool
	updates []repository.OrderStatusUpdate
}

func (r *stubOrderRepository) WithTx(tx pgx.Tx) repository.OrderRepository { return r }

func (r *stubOrderRepository) UpdateStatuses(ctx context.Context, updates []repository.OrderStatusUpdate) ([]string, error) {
	var missing []string
	for _, u := range updates {
		if !r.known[u.OrderNumber] {
			missing = append(missing, u.OrderNumber)
			continue
		}
		r.updates = append(r.updates, u)
	}
	return missing, nil
}

func TestOrderStatusAllowsDuplicateOrderNumbers(t *testing.T) {
	repo := &stubOrderRepository{known: map[string]bool{"ORD-1": true}}
	strategy := NewOrderStatusStrategy(repo)
	engine := NewEngine(&stubTxRunner{}, 0, nil)

	// Fulfillment exports carry several updates for the same order; every
	// row applies in file order.
	csv := strings.Join([]string{
		"order_number,status,updated_at",
		"ord-1,Processing,2026-08-01",
		"ORD-1,shipped,2026-08-02",
	}, "\n")
	table := mustParse(t, csv)

	result, err := engine.Run(context.Background(), strategy, table, nil)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if result.SuccessCount != 2 {
		t.Fatalf("expected 2 successes, got %d (failures %v)", result.SuccessCount, result.Failures)
	}
	if len(repo.updates) != 2 {
		t.Fatalf("expected 2 applied updates, got %d", len(repo.updates))
	}
	if repo.updates[0].Status != "PROCESSING" || repo.updates[1].Status != "SHIPPED" {
		t.Errorf("updates applied out of order: %v", repo.updates)
	}
}

func TestOrderStatusMissingOrderDegradesToRowError(t *testing.T) {
	repo := &stubOrderRepository{known: map[string]bool{"ORD-1": true}}
	strategy := NewOrderStatusStrategy(repo)
	engine := NewEngine(&stubTxRunner{}, 0, nil)

	csv := strings.Join([]string{
		"order_number,status",
		"ORD-1,SHIPPED",
		"ORD-404,DELIVERED",
	}, "\n")
	table := mustParse(t, csv)

	result, err := engine.Run(context.Background(), strategy, table, nil)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if result.SuccessCount != 1 {
		t.Fatalf("expected 1 success, got %d", result.SuccessCount)
	}
	if len(result.Failures) != 1 || !strings.Contains(result.Failures[0].Messages[0], `no order found with number "ORD-404"`) {
		t.Fatalf("unexpected failures: %v", result.Failures)
	}
}

func TestOrderStatusRejectsUnknownStatus(t *testing.T) {
	repo := &stubOrderRepository{known: map[string]bool{"ORD-1": true}}
	strategy := NewOrderStatusStrategy(repo)
	engine := NewEngine(&stubTxRunner{}, 0, nil)

	table := mustParse(t, "order_number,status\nORD-1,TELEPORTED")

	result, err := engine.Run(context.Background(), strategy, table, nil)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(result.Failures) != 1 {
		t.Fatalf("expected 1 failure, got %v", result.Failures)
	}
}
