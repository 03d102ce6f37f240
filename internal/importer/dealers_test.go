package importer

import (
	"context"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"

	"github.com/partsdesk/importer/internal/domain"
	"github.com/partsdesk/importer/internal/repository"
)

type stubDealerRepository struct {
	upserted []domain.Dealer
}

func (r *stubDealerRepository) WithTx(tx pgx.Tx) repository.DealerRepository { return r }

func (r *stubDealerRepository) Upsert(ctx context.Context, dealers []domain.Dealer) error {
	r.upserted = append(r.upserted, dealers...)
	return nil
}

func TestDealerImportValidation(t *testing.T) {
	repo := &stubDealerRepository{}
	strategy := NewDealerStrategy(repo)
	engine := NewEngine(&stubTxRunner{}, 0, nil)

	csv := strings.Join([]string{
		"dealer_code,name,region,contact_email,discount_tier",
		"d1,North Spares,EMEA,sales@north.example,GOLD",
		"D2,,EMEA,,",
		"D3,West Spares,APAC,bad-address,",
	}, "\n")
	table := mustParse(t, csv)

	result, err := engine.Run(context.Background(), strategy, table, nil)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if result.SuccessCount != 1 {
		t.Fatalf("expected 1 success, got %d", result.SuccessCount)
	}
	if len(result.Failures) != 2 {
		t.Fatalf("expected 2 failures, got %v", result.Failures)
	}

	if len(repo.upserted) != 1 {
		t.Fatalf("expected 1 upserted dealer, got %d", len(repo.upserted))
	}
	dealer := repo.upserted[0]
	if dealer.DealerCode != "D1" {
		t.Errorf("dealer codes are normalized to upper case, got %q", dealer.DealerCode)
	}
	if dealer.DiscountTier != "GOLD" {
		t.Errorf("unexpected discount tier %q", dealer.DiscountTier)
	}
}

func TestDealerDuplicateCodesRejected(t *testing.T) {
	repo := &stubDealerRepository{}
	strategy := NewDealerStrategy(repo)
	engine := NewEngine(&stubTxRunner{}, 0, nil)

	csv := strings.Join([]string{
		"dealer_code,name,region",
		"D1,North Spares,EMEA",
		"d1,North Spares Again,EMEA",
	}, "\n")
	table := mustParse(t, csv)

	result, err := engine.Run(context.Background(), strategy, table, nil)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if result.SuccessCount != 1 || len(result.Failures) != 1 {
		t.Fatalf("expected the second D1 row to fail, got %+v", result)
	}
	if !strings.Contains(result.Failures[0].Messages[0], "duplicate key") {
		t.Errorf("unexpected message: %q", result.Failures[0].Messages[0])
	}
}
