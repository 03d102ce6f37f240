package importer

import (
	"context"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"

	"github.com/partsdesk/importer/internal/domain"
	"github.com/partsdesk/importer/internal/repository"
)

// stubMappingRepository keeps the active mapping set in memory.
type stubMappingRepository struct {
	active map[domain.MappingKey]bool

	created  []domain.MappingKey
	archived []domain.MappingKey
}

func newStubMappingRepository(active ...domain.MappingKey) *stubMappingRepository {
	repo := &stubMappingRepository{active: map[domain.MappingKey]bool{}}
	for _, key := range active {
		repo.active[key] = true
	}
	return repo
}

func (r *stubMappingRepository) WithTx(tx pgx.Tx) repository.MappingRepository { return r }

func (r *stubMappingRepository) ListActive(ctx context.Context) ([]domain.SupersessionMapping, error) {
	mappings := make([]domain.SupersessionMapping, 0, len(r.active))
	for key := range r.active {
		mappings = append(mappings, domain.SupersessionMapping{
			OldPartNumber: key.Old,
			NewPartNumber: key.New,
			Active:        true,
		})
	}
	return mappings, nil
}

func (r *stubMappingRepository) CreateOrReactivate(ctx context.Context, keys []domain.MappingKey) (int, error) {
	for _, key := range keys {
		r.active[key] = true
		r.created = append(r.created, key)
	}
	return len(keys), nil
}

func (r *stubMappingRepository) Archive(ctx context.Context, keys []domain.MappingKey) (int, error) {
	archived := 0
	for _, key := range keys {
		if r.active[key] {
			delete(r.active, key)
			r.archived = append(r.archived, key)
			archived++
		}
	}
	return archived, nil
}

func runSupersededImport(t *testing.T, repo *stubMappingRepository, csv string) Result {
	t.Helper()
	table := mustParse(t, csv)
	strategy := NewSupersededStrategy(repo)
	engine := NewEngine(&stubTxRunner{}, 0, nil)

	result, err := engine.Run(context.Background(), strategy, table, nil)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	return result
}

func TestSupersededReconcilesToFileState(t *testing.T) {
	repo := newStubMappingRepository(
		domain.MappingKey{Old: "A", New: "B"},
		domain.MappingKey{Old: "C", New: "D"},
	)

	csv := "old_part_number,new_part_number\nA,B\nE,F"
	result := runSupersededImport(t, repo, csv)

	if result.SuccessCount != 2 {
		t.Fatalf("expected 2 successes, got %d", result.SuccessCount)
	}

	// (A,B) already active: untouched. (E,F) new: created. (C,D) gone
	// from the file: archived.
	if len(repo.created) != 1 || repo.created[0] != (domain.MappingKey{Old: "E", New: "F"}) {
		t.Errorf("unexpected creates: %v", repo.created)
	}
	if len(repo.archived) != 1 || repo.archived[0] != (domain.MappingKey{Old: "C", New: "D"}) {
		t.Errorf("unexpected archives: %v", repo.archived)
	}
}

func TestSupersededUnchangedFileIsNoOp(t *testing.T) {
	repo := newStubMappingRepository(
		domain.MappingKey{Old: "A", New: "B"},
		domain.MappingKey{Old: "C", New: "D"},
	)

	csv := "old_part_number,new_part_number\nA,B\nC,D"
	runSupersededImport(t, repo, csv)

	if len(repo.created) != 0 {
		t.Errorf("unchanged file must create nothing, got %v", repo.created)
	}
	if len(repo.archived) != 0 {
		t.Errorf("unchanged file must archive nothing, got %v", repo.archived)
	}
}

func TestSupersededRerunIsIdempotent(t *testing.T) {
	repo := newStubMappingRepository(domain.MappingKey{Old: "C", New: "D"})
	csv := "old_part_number,new_part_number\nA,B\nE,F"

	runSupersededImport(t, repo, csv)
	repo.created = nil
	repo.archived = nil

	runSupersededImport(t, repo, csv)
	if len(repo.created) != 0 || len(repo.archived) != 0 {
		t.Errorf("second run must be a no-op, created=%v archived=%v", repo.created, repo.archived)
	}
}

func TestSupersededRejectsSelfMapping(t *testing.T) {
	repo := newStubMappingRepository()
	csv := "old_part_number,new_part_number\nX,X\nA,B"

	result := runSupersededImport(t, repo, csv)

	if result.SuccessCount != 1 {
		t.Fatalf("expected 1 success, got %d", result.SuccessCount)
	}
	if len(result.Failures) != 1 || result.Failures[0].RowNumber != 2 {
		t.Fatalf("expected failure at row 2, got %v", result.Failures)
	}
	if !strings.Contains(result.Failures[0].Messages[0], "must differ") {
		t.Errorf("unexpected message: %q", result.Failures[0].Messages[0])
	}
}

func TestSupersededReportsAffectedParts(t *testing.T) {
	repo := newStubMappingRepository(domain.MappingKey{Old: "C", New: "D"})
	csv := "old_part_number,new_part_number\nE,F"

	table := mustParse(t, csv)
	strategy := NewSupersededStrategy(repo)
	engine := NewEngine(&stubTxRunner{}, 0, nil)
	if _, err := engine.Run(context.Background(), strategy, table, nil); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	reporter, ok := strategy.(AffectedPartsReporter)
	if !ok {
		t.Fatal("superseded strategy must report affected parts")
	}
	parts := reporter.AffectedParts()
	if len(parts) != 2 {
		t.Fatalf("expected 2 affected parts, got %v", parts)
	}
	seen := map[string]bool{}
	for _, p := range parts {
		seen[p] = true
	}
	if !seen["E"] || !seen["C"] {
		t.Errorf("expected affected parts E and C, got %v", parts)
	}
}
