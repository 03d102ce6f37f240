package importer

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/partsdesk/importer/internal/domain"
	"github.com/partsdesk/importer/internal/repository"
)

// stubProductRepository records the persistence call sequence so tests
// can assert the archive-then-create snapshot ordering.
type stubProductRepository struct {
	ids map[string]uuid.UUID

	calls          []string
	priceSnapshots []domain.PriceSnapshot
	stockSnapshots []domain.StockSnapshot
}

func newStubProductRepository(partNumbers ...string) *stubProductRepository {
	repo := &stubProductRepository{ids: map[string]uuid.UUID{}}
	for _, pn := range partNumbers {
		repo.ids[pn] = uuid.New()
	}
	return repo
}

func (r *stubProductRepository) WithTx(tx pgx.Tx) repository.ProductRepository { return r }

func (r *stubProductRepository) Upsert(ctx context.Context, products []domain.Product) (map[string]uuid.UUID, error) {
	r.calls = append(r.calls, "upsert")
	ids := make(map[string]uuid.UUID, len(products))
	for _, p := range products {
		id, ok := r.ids[p.PartNumber]
		if !ok {
			id = uuid.New()
			r.ids[p.PartNumber] = id
		}
		ids[p.PartNumber] = id
	}
	return ids, nil
}

func (r *stubProductRepository) IDsByPartNumbers(ctx context.Context, partNumbers []string) (map[string]uuid.UUID, error) {
	ids := make(map[string]uuid.UUID, len(partNumbers))
	for _, pn := range partNumbers {
		if id, ok := r.ids[pn]; ok {
			ids[pn] = id
		}
	}
	return ids, nil
}

func (r *stubProductRepository) ArchiveActivePrices(ctx context.Context, productIDs []uuid.UUID) error {
	r.calls = append(r.calls, "archive_prices")
	return nil
}

func (r *stubProductRepository) InsertPriceSnapshots(ctx context.Context, snapshots []domain.PriceSnapshot) error {
	r.calls = append(r.calls, "insert_prices")
	r.priceSnapshots = append(r.priceSnapshots, snapshots...)
	return nil
}

func (r *stubProductRepository) ArchiveActiveStock(ctx context.Context, productIDs []uuid.UUID) error {
	r.calls = append(r.calls, "archive_stock")
	return nil
}

func (r *stubProductRepository) InsertStockSnapshots(ctx context.Context, snapshots []domain.StockSnapshot) error {
	r.calls = append(r.calls, "insert_stock")
	r.stockSnapshots = append(r.stockSnapshots, snapshots...)
	return nil
}

func (r *stubProductRepository) Count(ctx context.Context) (int64, error) {
	return int64(len(r.ids)), nil
}

func (r *stubProductRepository) ListSearchViews(ctx context.Context, limit, offset int) ([]domain.ProductSearchView, error) {
	return nil, nil
}

func (r *stubProductRepository) SearchViewsByPartNumbers(ctx context.Context, partNumbers []string) ([]domain.ProductSearchView, error) {
	return nil, nil
}

func TestProductImportSnapshotOrdering(t *testing.T) {
	repo := newStubProductRepository()
	strategy := NewProductStrategy(repo)
	engine := NewEngine(&stubTxRunner{}, 0, nil)

	csv := strings.Join([]string{
		"part_number,description,dealer_price,retail_price,stock_qty,brand",
		"abc123,Brake pad,10.50,15.99,42,Bosch",
		"XY-9,Oil filter,4.20,6.00,0,",
	}, "\n")
	table := mustParse(t, csv)

	result, err := engine.Run(context.Background(), strategy, table, nil)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if result.SuccessCount != 2 {
		t.Fatalf("expected 2 successes, got %d (failures: %v)", result.SuccessCount, result.Failures)
	}

	want := []string{"upsert", "archive_prices", "insert_prices", "archive_stock", "insert_stock"}
	if len(repo.calls) != len(want) {
		t.Fatalf("unexpected call sequence: %v", repo.calls)
	}
	for i, call := range want {
		if repo.calls[i] != call {
			t.Fatalf("call %d: expected %s, got %s (sequence %v)", i, call, repo.calls[i], repo.calls)
		}
	}

	// Part numbers are normalized to upper case.
	if _, ok := repo.ids["ABC123"]; !ok {
		t.Errorf("expected normalized part number ABC123, have %v", repo.ids)
	}

	if len(repo.priceSnapshots) != 2 || len(repo.stockSnapshots) != 2 {
		t.Fatalf("expected one snapshot pair per row, got %d prices, %d stock",
			len(repo.priceSnapshots), len(repo.stockSnapshots))
	}
	for _, s := range repo.priceSnapshots {
		if s.ProductID != repo.ids["ABC123"] && s.ProductID != repo.ids["XY-9"] {
			t.Errorf("price snapshot references unknown product %s", s.ProductID)
		}
	}
}

func TestProductRowValidation(t *testing.T) {
	repo := newStubProductRepository()
	strategy := NewProductStrategy(repo)
	engine := NewEngine(&stubTxRunner{}, 0, nil)

	csv := strings.Join([]string{
		"part_number,description,dealer_price,retail_price,stock_qty",
		"A1,Good part,1.00,2.00,3",
		",Missing part number,1.00,2.00,3",
		"B2,Bad price,-5,2.00,3",
		"C3,Bad stock,1.00,2.00,many",
	}, "\n")
	table := mustParse(t, csv)

	result, err := engine.Run(context.Background(), strategy, table, nil)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if result.SuccessCount != 1 {
		t.Fatalf("expected 1 success, got %d", result.SuccessCount)
	}
	if len(result.Failures) != 3 {
		t.Fatalf("expected 3 failures, got %v", result.Failures)
	}

	byRow := map[int][]string{}
	for _, f := range result.Failures {
		byRow[f.RowNumber] = f.Messages
	}
	if msgs := byRow[3]; len(msgs) != 1 || msgs[0] != "part_number is required" {
		t.Errorf("row 3: unexpected messages %v", msgs)
	}
	if msgs := byRow[4]; len(msgs) != 1 || !strings.Contains(msgs[0], "must not be negative") {
		t.Errorf("row 4: unexpected messages %v", msgs)
	}
	if msgs := byRow[5]; len(msgs) != 1 || !strings.Contains(msgs[0], "not an integer") {
		t.Errorf("row 5: unexpected messages %v", msgs)
	}
}

func TestProductMissingHeadersFailClosed(t *testing.T) {
	repo := newStubProductRepository()
	strategy := NewProductStrategy(repo)
	engine := NewEngine(&stubTxRunner{}, 0, nil)

	table := mustParse(t, "part_number,description\nA1,Just a part")

	_, err := engine.Run(context.Background(), strategy, table, nil)
	if err == nil {
		t.Fatal("expected a schema error")
	}
	if !IsSchemaError(err) {
		t.Fatalf("expected schema error, got %v", err)
	}
	for _, header := range []string{"dealer_price", "retail_price", "stock_qty"} {
		if !strings.Contains(err.Error(), header) {
			t.Errorf("schema error should name missing header %s: %v", header, err)
		}
	}
	if len(repo.calls) != 0 {
		t.Errorf("no persistence calls expected, got %v", repo.calls)
	}
}
