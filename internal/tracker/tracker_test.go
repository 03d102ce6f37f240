package tracker

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/partsdesk/importer/internal/domain"
)

func TestTrackerLifecycle(t *testing.T) {
	tr := New(time.Hour)
	runID := uuid.New()

	tr.Register(runID)
	snapshot, ok := tr.Get(runID)
	if !ok || snapshot.Status != domain.RunStatusPending {
		t.Fatalf("expected pending snapshot, got %+v", snapshot)
	}
	if snapshot.Total != nil {
		t.Error("total must be unknown before the file is parsed")
	}

	tr.SetTotal(runID, 100)
	tr.Update(runID, 40)
	snapshot, _ = tr.Get(runID)
	if snapshot.Status != domain.RunStatusProcessing || snapshot.Current != 40 {
		t.Fatalf("unexpected snapshot: %+v", snapshot)
	}
	if snapshot.Percentage() != 40 {
		t.Errorf("expected 40%%, got %.1f", snapshot.Percentage())
	}

	tr.Complete(runID)
	snapshot, _ = tr.Get(runID)
	if snapshot.Status != domain.RunStatusCompleted || snapshot.Current != 100 {
		t.Fatalf("completion must snap current to total: %+v", snapshot)
	}
	if snapshot.FinishedAt == nil {
		t.Error("expected a finish timestamp")
	}
}

func TestTrackerProgressIsMonotonic(t *testing.T) {
	tr := New(time.Hour)
	runID := uuid.New()
	tr.Register(runID)
	tr.SetTotal(runID, 10)

	tr.Update(runID, 7)
	tr.Update(runID, 3) // stale update from a slow goroutine
	snapshot, _ := tr.Get(runID)
	if snapshot.Current != 7 {
		t.Errorf("progress must never move backwards, got %d", snapshot.Current)
	}

	tr.Update(runID, 25)
	snapshot, _ = tr.Get(runID)
	if snapshot.Current != 10 {
		t.Errorf("progress must clamp to the total, got %d", snapshot.Current)
	}
}

func TestTrackerTerminalStateIsFinal(t *testing.T) {
	tr := New(time.Hour)
	runID := uuid.New()
	tr.Register(runID)
	tr.SetTotal(runID, 5)
	tr.Fail(runID, "boom")

	tr.Update(runID, 5)
	tr.Complete(runID)

	snapshot, _ := tr.Get(runID)
	if snapshot.Status != domain.RunStatusFailed || snapshot.Error != "boom" {
		t.Fatalf("terminal state must not change: %+v", snapshot)
	}
}

func TestTrackerEvictsTerminalEntries(t *testing.T) {
	now := time.Now()
	tr := New(10 * time.Minute)
	tr.now = func() time.Time { return now }

	oldRun := uuid.New()
	tr.Register(oldRun)
	tr.Complete(oldRun)

	// Past the retention window, the next registration sweeps it out.
	now = now.Add(11 * time.Minute)
	newRun := uuid.New()
	tr.Register(newRun)

	if _, ok := tr.Get(oldRun); ok {
		t.Error("terminal entry past retention should be evicted")
	}
	if _, ok := tr.Get(newRun); !ok {
		t.Error("fresh entry must survive the sweep")
	}
}

func TestTrackerUnknownRun(t *testing.T) {
	tr := New(time.Hour)
	if _, ok := tr.Get(uuid.New()); ok {
		t.Error("unknown run must not return a snapshot")
	}
}
