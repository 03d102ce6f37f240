package importer

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/partsdesk/importer/internal/domain"
	"github.com/partsdesk/importer/internal/tabular"
)

// Parsed is one row that passed field validation, ready for persistence.
type Parsed struct {
	RowNumber int
	Raw       []string
	Record    any
}

// RowFailure captures a row-level error with the raw payload preserved
// verbatim so an operator can correct and resubmit it.
type RowFailure struct {
	RowNumber int
	Raw       []string
	Messages  []string
}

// Strategy implements entity-type-specific validation and persistence.
// One implementation per entity type is registered in a Registry; adding
// an entity type is additive. A fresh instance is created per run so a
// strategy may carry per-run reconciliation state.
type Strategy interface {
	EntityType() domain.EntityType

	// Contract is the header contract the file must satisfy exactly.
	Contract() tabular.Contract

	// Prepare loads any state needed before chunk processing starts.
	Prepare(ctx context.Context) error

	// ParseRow validates a single row. A non-empty message list marks the
	// row as failed; it is then excluded from persistence.
	ParseRow(table *tabular.Table, row tabular.Row) (any, []string)

	// NaturalKey returns the normalized duplicate-detection key for a
	// parsed record, or "" when duplicates are allowed for this type.
	NaturalKey(record any) string

	// UpsertBatch persists one chunk inside the given transaction.
	// Returned failures are soft: they degrade single rows to errors
	// without aborting the chunk. A non-nil error aborts the chunk and
	// triggers the engine's row-by-row fallback.
	UpsertBatch(ctx context.Context, tx pgx.Tx, batch []Parsed) ([]RowFailure, error)

	// Finalize runs after all chunks committed. Reconciliation strategies
	// archive stored state absent from the file here.
	Finalize(ctx context.Context) error
}

// AffectedPartsReporter is implemented by strategies whose imports touch a
// small, known set of parts, enabling incremental index updates instead of
// a full rebuild.
type AffectedPartsReporter interface {
	AffectedParts() []string
}

// Registry maps entity types to strategy factories.
type Registry struct {
	factories map[domain.EntityType]func() Strategy
}

// NewRegistry creates an empty strategy registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[domain.EntityType]func() Strategy)}
}

// Register installs a factory for the entity type.
func (r *Registry) Register(entityType domain.EntityType, factory func() Strategy) {
	r.factories[entityType] = factory
}

// New creates a fresh per-run strategy for the entity type.
func (r *Registry) New(entityType domain.EntityType) (Strategy, error) {
	factory, ok := r.factories[entityType]
	if !ok {
		return nil, fmt.Errorf("no import strategy registered for entity type %s", entityType)
	}
	return factory(), nil
}
