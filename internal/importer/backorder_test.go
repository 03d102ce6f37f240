package importer

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/partsdesk/importer/internal/domain"
	"github.com/partsdesk/importer/internal/repository"
)

type stubBackorderRepository struct {
	archivedIDs []uuid.UUID
	snapshots   []domain.BackorderSnapshot
}

func (r *stubBackorderRepository) WithTx(tx pgx.Tx) repository.BackorderRepository { return r }

func (r *stubBackorderRepository) ArchiveActive(ctx context.Context, productIDs []uuid.UUID) error {
	r.archivedIDs = append(r.archivedIDs, productIDs...)
	return nil
}

func (r *stubBackorderRepository) InsertSnapshots(ctx context.Context, snapshots []domain.BackorderSnapshot) error {
	r.snapshots = append(r.snapshots, snapshots...)
	return nil
}

func TestBackorderUnknownPartDegradesToRowError(t *testing.T) {
	products := newStubProductRepository("KNOWN1", "KNOWN2")
	backorders := &stubBackorderRepository{}
	strategy := NewBackorderStrategy(products, backorders)
	engine := NewEngine(&stubTxRunner{}, 0, nil)

	csv := strings.Join([]string{
		"part_number,backorder_qty,eta",
		"known1,5,2026-09-15",
		"ghost,2,",
		"KNOWN2,0,",
	}, "\n")
	table := mustParse(t, csv)

	result, err := engine.Run(context.Background(), strategy, table, nil)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if result.SuccessCount != 2 {
		t.Fatalf("expected 2 successes, got %d", result.SuccessCount)
	}
	if len(result.Failures) != 1 || result.Failures[0].RowNumber != 3 {
		t.Fatalf("expected failure at row 3, got %v", result.Failures)
	}
	if !strings.Contains(result.Failures[0].Messages[0], `unknown part number "GHOST"`) {
		t.Errorf("unexpected message: %q", result.Failures[0].Messages[0])
	}

	if len(backorders.snapshots) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(backorders.snapshots))
	}
	if len(backorders.archivedIDs) != 2 {
		t.Fatalf("expected 2 archived products, got %d", len(backorders.archivedIDs))
	}
	if backorders.snapshots[0].ETA == nil {
		t.Error("expected parsed eta on first snapshot")
	}
	if backorders.snapshots[1].ETA != nil {
		t.Error("expected nil eta on second snapshot")
	}
}

func TestBackorderETANormalizedToDate(t *testing.T) {
	products := newStubProductRepository("P1", "P2")
	backorders := &stubBackorderRepository{}
	strategy := NewBackorderStrategy(products, backorders)
	engine := NewEngine(&stubTxRunner{}, 0, nil)

	csv := strings.Join([]string{
		"part_number,backorder_qty,eta",
		"P1,5,2026-09-15T10:30:00Z",
		"P2,3,09/15/2026",
	}, "\n")
	table := mustParse(t, csv)

	result, err := engine.Run(context.Background(), strategy, table, nil)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(result.Failures) != 0 {
		t.Fatalf("unexpected failures: %v", result.Failures)
	}

	// The column stores a calendar date; a timestamped eta must land on
	// the same value as its plain-date equivalent.
	want := time.Date(2026, time.September, 15, 0, 0, 0, 0, time.UTC)
	for i, snapshot := range backorders.snapshots {
		if snapshot.ETA == nil || !snapshot.ETA.Equal(want) {
			t.Errorf("snapshot %d: expected eta %v, got %v", i, want, snapshot.ETA)
		}
	}
}

func TestBackorderRejectsBadDates(t *testing.T) {
	products := newStubProductRepository("P1")
	strategy := NewBackorderStrategy(products, &stubBackorderRepository{})
	engine := NewEngine(&stubTxRunner{}, 0, nil)

	table := mustParse(t, "part_number,backorder_qty,eta\nP1,5,not-a-date")

	result, err := engine.Run(context.Background(), strategy, table, nil)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(result.Failures) != 1 || !strings.Contains(result.Failures[0].Messages[0], "unrecognized date") {
		t.Fatalf("expected date failure, got %v", result.Failures)
	}
}
