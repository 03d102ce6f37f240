package importer

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/partsdesk/importer/internal/domain"
	"github.com/partsdesk/importer/internal/repository"
	"github.com/partsdesk/importer/internal/tabular"
)

type productRecord struct {
	product     domain.Product
	dealerPrice float64
	retailPrice float64
	stockQty    int
}

// productStrategy imports the main catalog feed. Descriptive fields are
// updated in place; price and stock snapshots follow the
// archive-then-create history pattern.
type productStrategy struct {
	products repository.ProductRepository
}

// NewProductStrategy builds the PRODUCTS import strategy.
func NewProductStrategy(products repository.ProductRepository) Strategy {
	return &productStrategy{products: products}
}

func (s *productStrategy) EntityType() domain.EntityType { return domain.EntityTypeProducts }

func (s *productStrategy) Contract() tabular.Contract {
	return tabular.Contract{
		Required: []string{"part_number", "description", "dealer_price", "retail_price", "stock_qty"},
		Optional: []string{"brand", "weight_kg", "length_cm", "width_cm", "height_cm", "image_file"},
	}
}

func (s *productStrategy) Prepare(ctx context.Context) error { return nil }

func (s *productStrategy) ParseRow(table *tabular.Table, row tabular.Row) (any, []string) {
	var messages []string

	partNumber := strings.ToUpper(table.Value(row, "part_number"))
	if partNumber == "" {
		messages = append(messages, "part_number is required")
	}
	description := table.Value(row, "description")
	if description == "" {
		messages = append(messages, "description is required")
	}

	dealerPrice, err := parseNonNegativeFloat(table.Value(row, "dealer_price"), "dealer_price")
	if err != nil {
		messages = append(messages, err.Error())
	}
	retailPrice, err := parseNonNegativeFloat(table.Value(row, "retail_price"), "retail_price")
	if err != nil {
		messages = append(messages, err.Error())
	}
	stockQty, err := parseNonNegativeInt(table.Value(row, "stock_qty"), "stock_qty")
	if err != nil {
		messages = append(messages, err.Error())
	}

	record := productRecord{
		product: domain.Product{
			ID:          uuid.New(),
			PartNumber:  partNumber,
			Description: description,
			Brand:       table.Value(row, "brand"),
			ImageFile:   table.Value(row, "image_file"),
		},
		dealerPrice: dealerPrice,
		retailPrice: retailPrice,
		stockQty:    stockQty,
	}

	for _, dim := range []struct {
		header string
		target **float64
	}{
		{"weight_kg", &record.product.WeightKg},
		{"length_cm", &record.product.LengthCm},
		{"width_cm", &record.product.WidthCm},
		{"height_cm", &record.product.HeightCm},
	} {
		raw := table.Value(row, dim.header)
		if raw == "" {
			continue
		}
		value, err := parseNonNegativeFloat(raw, dim.header)
		if err != nil {
			messages = append(messages, err.Error())
			continue
		}
		*dim.target = &value
	}

	if len(messages) > 0 {
		return nil, messages
	}
	return record, nil
}

func (s *productStrategy) NaturalKey(record any) string {
	return record.(productRecord).product.PartNumber
}

func (s *productStrategy) UpsertBatch(ctx context.Context, tx pgx.Tx, batch []Parsed) ([]RowFailure, error) {
	repo := s.products.WithTx(tx)

	products := make([]domain.Product, len(batch))
	for i, item := range batch {
		products[i] = item.Record.(productRecord).product
	}

	ids, err := repo.Upsert(ctx, products)
	if err != nil {
		return nil, err
	}

	productIDs := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		productIDs = append(productIDs, id)
	}

	prices := make([]domain.PriceSnapshot, 0, len(batch))
	stock := make([]domain.StockSnapshot, 0, len(batch))
	for _, item := range batch {
		rec := item.Record.(productRecord)
		id, ok := ids[rec.product.PartNumber]
		if !ok {
			return nil, fmt.Errorf("upsert returned no id for part %s", rec.product.PartNumber)
		}
		prices = append(prices, domain.PriceSnapshot{
			ID:          uuid.New(),
			ProductID:   id,
			DealerPrice: rec.dealerPrice,
			RetailPrice: rec.retailPrice,
		})
		stock = append(stock, domain.StockSnapshot{
			ID:        uuid.New(),
			ProductID: id,
			Quantity:  rec.stockQty,
		})
	}

	// Archive and insert inside the same transaction so at most one
	// snapshot per product is ever active.
	if err := repo.ArchiveActivePrices(ctx, productIDs); err != nil {
		return nil, err
	}
	if err := repo.InsertPriceSnapshots(ctx, prices); err != nil {
		return nil, err
	}
	if err := repo.ArchiveActiveStock(ctx, productIDs); err != nil {
		return nil, err
	}
	if err := repo.InsertStockSnapshots(ctx, stock); err != nil {
		return nil, err
	}

	return nil, nil
}

func (s *productStrategy) Finalize(ctx context.Context) error { return nil }

func parseNonNegativeFloat(raw, field string) (float64, error) {
	if raw == "" {
		return 0, fmt.Errorf("%s is required", field)
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not a number", field, raw)
	}
	if value < 0 {
		return 0, fmt.Errorf("%s must not be negative, got %s", field, raw)
	}
	return value, nil
}

func parseNonNegativeInt(raw, field string) (int, error) {
	if raw == "" {
		return 0, fmt.Errorf("%s is required", field)
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not an integer", field, raw)
	}
	if value < 0 {
		return 0, fmt.Errorf("%s must not be negative, got %s", field, raw)
	}
	return value, nil
}
