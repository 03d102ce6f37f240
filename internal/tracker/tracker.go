package tracker

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/partsdesk/importer/internal/domain"
)

// DefaultRetention is how long terminal entries stay pollable before
// eviction. The durable ImportRun record remains the source of truth.
const DefaultRetention = 30 * time.Minute

// Snapshot is the live progress view of one run.
type Snapshot struct {
	RunID      uuid.UUID
	Status     domain.RunStatus
	Current    int
	Total      *int
	Error      string
	StartedAt  time.Time
	FinishedAt *time.Time
}

// Percentage returns progress in [0,100], or 0 while the total is
// unknown.
func (s Snapshot) Percentage() float64 {
	if s.Total == nil || *s.Total <= 0 {
		if s.Status == domain.RunStatusCompleted {
			return 100
		}
		return 0
	}
	pct := float64(s.Current) / float64(*s.Total) * 100
	if pct > 100 {
		return 100
	}
	return pct
}

type entry struct {
	snapshot   Snapshot
	terminalAt time.Time
}

// Tracker is the ephemeral live-progress table: an in-process map polled
// by status queries so they never contend with the transactional store.
// Constructed once at process start and injected.
type Tracker struct {
	mu        sync.RWMutex
	entries   map[uuid.UUID]*entry
	retention time.Duration
	now       func() time.Time
}

// New creates a tracker. A retention of zero selects the default.
func New(retention time.Duration) *Tracker {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Tracker{
		entries:   make(map[uuid.UUID]*entry),
		retention: retention,
		now:       time.Now,
	}
}

// Register adds a pending run. The total row count may still be unknown;
// it arrives via SetTotal once the file has been parsed.
func (t *Tracker) Register(runID uuid.UUID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sweepLocked()
	t.entries[runID] = &entry{snapshot: Snapshot{
		RunID:     runID,
		Status:    domain.RunStatusPending,
		StartedAt: t.now(),
	}}
}

// SetTotal records the parsed row count and moves the run to processing.
func (t *Tracker) SetTotal(runID uuid.UUID, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[runID]
	if !ok || e.snapshot.Status.Terminal() {
		return
	}
	e.snapshot.Total = &total
	e.snapshot.Status = domain.RunStatusProcessing
}

// Update advances progress. Current is monotonically non-decreasing and
// clamped to the total once known.
func (t *Tracker) Update(runID uuid.UUID, current int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[runID]
	if !ok || e.snapshot.Status.Terminal() {
		return
	}
	if current < e.snapshot.Current {
		return
	}
	if e.snapshot.Total != nil && current > *e.snapshot.Total {
		current = *e.snapshot.Total
	}
	e.snapshot.Current = current
	e.snapshot.Status = domain.RunStatusProcessing
}

// Complete marks the run finished.
func (t *Tracker) Complete(runID uuid.UUID) {
	t.finish(runID, domain.RunStatusCompleted, "")
}

// Fail marks the run failed with a message.
func (t *Tracker) Fail(runID uuid.UUID, message string) {
	t.finish(runID, domain.RunStatusFailed, message)
}

func (t *Tracker) finish(runID uuid.UUID, status domain.RunStatus, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[runID]
	if !ok || e.snapshot.Status.Terminal() {
		return
	}
	now := t.now()
	e.snapshot.Status = status
	e.snapshot.Error = message
	e.snapshot.FinishedAt = &now
	e.terminalAt = now
	if status == domain.RunStatusCompleted && e.snapshot.Total != nil {
		e.snapshot.Current = *e.snapshot.Total
	}
}

// Get returns the live snapshot for a run, if still tracked.
func (t *Tracker) Get(runID uuid.UUID) (Snapshot, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.entries[runID]
	if !ok {
		return Snapshot{}, false
	}
	return e.snapshot, true
}

// sweepLocked evicts terminal entries past the retention window.
func (t *Tracker) sweepLocked() {
	cutoff := t.now().Add(-t.retention)
	for id, e := range t.entries {
		if !e.terminalAt.IsZero() && e.terminalAt.Before(cutoff) {
			delete(t.entries, id)
		}
	}
}
