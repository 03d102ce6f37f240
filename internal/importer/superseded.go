package importer

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/partsdesk/importer/internal/domain"
	"github.com/partsdesk/importer/internal/repository"
	"github.com/partsdesk/importer/internal/tabular"
)

// supersededStrategy imports supersession mappings with
// reconcile-to-full-state semantics: the file is the complete current
// truth. Pairs present in the file but not active are created or
// reactivated; active pairs absent from the file are archived. Re-running
// an unchanged file is a no-op.
type supersededStrategy struct {
	mappings repository.MappingRepository

	activeSet map[domain.MappingKey]bool
	seen      map[domain.MappingKey]bool
	affected  []string
}

// NewSupersededStrategy builds the SUPERSEDED_MAPPING import strategy.
func NewSupersededStrategy(mappings repository.MappingRepository) Strategy {
	return &supersededStrategy{mappings: mappings}
}

func (s *supersededStrategy) EntityType() domain.EntityType {
	return domain.EntityTypeSupersededMapping
}

func (s *supersededStrategy) Contract() tabular.Contract {
	return tabular.Contract{
		Required: []string{"old_part_number", "new_part_number"},
	}
}

func (s *supersededStrategy) Prepare(ctx context.Context) error {
	active, err := s.mappings.ListActive(ctx)
	if err != nil {
		return err
	}
	s.activeSet = make(map[domain.MappingKey]bool, len(active))
	for _, m := range active {
		s.activeSet[domain.MappingKey{Old: m.OldPartNumber, New: m.NewPartNumber}] = true
	}
	s.seen = make(map[domain.MappingKey]bool)
	return nil
}

func (s *supersededStrategy) ParseRow(table *tabular.Table, row tabular.Row) (any, []string) {
	var messages []string

	oldPart := strings.ToUpper(table.Value(row, "old_part_number"))
	newPart := strings.ToUpper(table.Value(row, "new_part_number"))

	if oldPart == "" {
		messages = append(messages, "old_part_number is required")
	}
	if newPart == "" {
		messages = append(messages, "new_part_number is required")
	}
	if oldPart != "" && oldPart == newPart {
		messages = append(messages, fmt.Sprintf("old and new part numbers must differ, both are %q", oldPart))
	}

	if len(messages) > 0 {
		return nil, messages
	}
	return domain.MappingKey{Old: oldPart, New: newPart}, nil
}

func (s *supersededStrategy) NaturalKey(record any) string {
	key := record.(domain.MappingKey)
	return key.Old + "->" + key.New
}

// UpsertBatch marks every pair in the chunk as seen and persists only the
// pairs that are not already active, so unchanged files create nothing.
func (s *supersededStrategy) UpsertBatch(ctx context.Context, tx pgx.Tx, batch []Parsed) ([]RowFailure, error) {
	var toCreate []domain.MappingKey
	for _, item := range batch {
		key := item.Record.(domain.MappingKey)
		s.seen[key] = true
		if !s.activeSet[key] {
			toCreate = append(toCreate, key)
			s.affected = append(s.affected, key.Old)
		}
	}

	if _, err := s.mappings.WithTx(tx).CreateOrReactivate(ctx, toCreate); err != nil {
		return nil, err
	}
	return nil, nil
}

// Finalize archives active pairs that the file no longer carries: absence
// from the file implies retirement.
func (s *supersededStrategy) Finalize(ctx context.Context) error {
	var toArchive []domain.MappingKey
	for key := range s.activeSet {
		if !s.seen[key] {
			toArchive = append(toArchive, key)
			s.affected = append(s.affected, key.Old)
		}
	}
	if _, err := s.mappings.Archive(ctx, toArchive); err != nil {
		return err
	}
	return nil
}

// AffectedParts lists the old part numbers whose supersession state
// changed, enabling a bounded incremental index update.
func (s *supersededStrategy) AffectedParts() []string {
	return s.affected
}
