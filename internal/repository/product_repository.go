package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/partsdesk/importer/internal/domain"
)

type productRepository struct {
	db Querier
}

// NewProductRepository wires a repository backed by pgx.
func NewProductRepository(db Querier) ProductRepository {
	return &productRepository{db: db}
}

func (r *productRepository) WithTx(tx pgx.Tx) ProductRepository {
	return &productRepository{db: tx}
}

// Upsert inserts new parts or updates descriptive fields in place for
// existing ones. Descriptive fields are not versioned; only derived
// attributes (prices, stock) carry snapshot history.
func (r *productRepository) Upsert(ctx context.Context, products []domain.Product) (map[string]uuid.UUID, error) {
	ids := make(map[string]uuid.UUID, len(products))
	if len(products) == 0 {
		return ids, nil
	}

	batch := &pgx.Batch{}
	for _, p := range products {
		batch.Queue(
			`INSERT INTO products (id, part_number, description, brand, weight_kg, length_cm, width_cm, height_cm, image_file)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			 ON CONFLICT (part_number) DO UPDATE
			 SET description = EXCLUDED.description,
			     brand = EXCLUDED.brand,
			     weight_kg = EXCLUDED.weight_kg,
			     length_cm = EXCLUDED.length_cm,
			     width_cm = EXCLUDED.width_cm,
			     height_cm = EXCLUDED.height_cm,
			     image_file = EXCLUDED.image_file,
			     updated_at = now()
			 RETURNING id, part_number`,
			p.ID, p.PartNumber, p.Description, p.Brand,
			p.WeightKg, p.LengthCm, p.WidthCm, p.HeightCm, p.ImageFile,
		)
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()

	for range products {
		var id uuid.UUID
		var partNumber string
		if err := results.QueryRow().Scan(&id, &partNumber); err != nil {
			return nil, fmt.Errorf("failed to upsert product: %w", err)
		}
		ids[partNumber] = id
	}

	return ids, nil
}

func (r *productRepository) IDsByPartNumbers(ctx context.Context, partNumbers []string) (map[string]uuid.UUID, error) {
	ids := make(map[string]uuid.UUID, len(partNumbers))
	if len(partNumbers) == 0 {
		return ids, nil
	}

	rows, err := r.db.Query(
		ctx,
		`SELECT id, part_number FROM products WHERE part_number = ANY($1)`,
		partNumbers,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve part numbers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID
		var partNumber string
		if err := rows.Scan(&id, &partNumber); err != nil {
			return nil, fmt.Errorf("failed to scan part number row: %w", err)
		}
		ids[partNumber] = id
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate part number rows: %w", err)
	}

	return ids, nil
}

func (r *productRepository) ArchiveActivePrices(ctx context.Context, productIDs []uuid.UUID) error {
	if len(productIDs) == 0 {
		return nil
	}
	_, err := r.db.Exec(
		ctx,
		`UPDATE price_snapshots SET active = false WHERE product_id = ANY($1) AND active`,
		productIDs,
	)
	if err != nil {
		return fmt.Errorf("failed to archive active prices: %w", err)
	}
	return nil
}

func (r *productRepository) InsertPriceSnapshots(ctx context.Context, snapshots []domain.PriceSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, s := range snapshots {
		batch.Queue(
			`INSERT INTO price_snapshots (id, product_id, dealer_price, retail_price, active)
			 VALUES ($1, $2, $3, $4, true)`,
			s.ID, s.ProductID, s.DealerPrice, s.RetailPrice,
		)
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()

	for range snapshots {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to insert price snapshot: %w", err)
		}
	}
	return nil
}

func (r *productRepository) ArchiveActiveStock(ctx context.Context, productIDs []uuid.UUID) error {
	if len(productIDs) == 0 {
		return nil
	}
	_, err := r.db.Exec(
		ctx,
		`UPDATE stock_snapshots SET active = false WHERE product_id = ANY($1) AND active`,
		productIDs,
	)
	if err != nil {
		return fmt.Errorf("failed to archive active stock: %w", err)
	}
	return nil
}

func (r *productRepository) InsertStockSnapshots(ctx context.Context, snapshots []domain.StockSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, s := range snapshots {
		batch.Queue(
			`INSERT INTO stock_snapshots (id, product_id, quantity, active)
			 VALUES ($1, $2, $3, true)`,
			s.ID, s.ProductID, s.Quantity,
		)
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()

	for range snapshots {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to insert stock snapshot: %w", err)
		}
	}
	return nil
}

func (r *productRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM products`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count products: %w", err)
	}
	return count, nil
}

const searchViewSelect = `
SELECT p.id, p.part_number, p.description, p.brand,
       p.weight_kg, p.length_cm, p.width_cm, p.height_cm, p.image_file,
       p.created_at, p.updated_at,
       pr.dealer_price, pr.retail_price,
       st.quantity AS stock_quantity,
       sm.new_part_number AS superseded_by,
       bo.quantity AS backordered_units
FROM products p
LEFT JOIN LATERAL (
    SELECT dealer_price, retail_price FROM price_snapshots
    WHERE product_id = p.id AND active LIMIT 1
) pr ON true
LEFT JOIN LATERAL (
    SELECT quantity FROM stock_snapshots
    WHERE product_id = p.id AND active LIMIT 1
) st ON true
LEFT JOIN LATERAL (
    SELECT new_part_number FROM supersession_mappings
    WHERE old_part_number = p.part_number AND active LIMIT 1
) sm ON true
LEFT JOIN LATERAL (
    SELECT quantity FROM backorder_snapshots
    WHERE product_id = p.id AND active LIMIT 1
) bo ON true`

// ListSearchViews streams the denormalized read model for index rebuilds,
// ordered by part number for stable pagination.
func (r *productRepository) ListSearchViews(ctx context.Context, limit, offset int) ([]domain.ProductSearchView, error) {
	rows, err := r.db.Query(
		ctx,
		searchViewSelect+` ORDER BY p.part_number LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list product search views: %w", err)
	}
	defer rows.Close()

	return scanSearchViews(rows)
}

func (r *productRepository) SearchViewsByPartNumbers(ctx context.Context, partNumbers []string) ([]domain.ProductSearchView, error) {
	if len(partNumbers) == 0 {
		return []domain.ProductSearchView{}, nil
	}

	rows, err := r.db.Query(
		ctx,
		searchViewSelect+` WHERE p.part_number = ANY($1)`,
		partNumbers,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load product search views: %w", err)
	}
	defer rows.Close()

	return scanSearchViews(rows)
}

func scanSearchViews(rows pgx.Rows) ([]domain.ProductSearchView, error) {
	views := []domain.ProductSearchView{}
	for rows.Next() {
		var v domain.ProductSearchView
		if err := rows.Scan(
			&v.ID, &v.PartNumber, &v.Description, &v.Brand,
			&v.WeightKg, &v.LengthCm, &v.WidthCm, &v.HeightCm, &v.ImageFile,
			&v.CreatedAt, &v.UpdatedAt,
			&v.DealerPrice, &v.RetailPrice,
			&v.StockQuantity,
			&v.SupersededBy,
			&v.BackorderedUnits,
		); err != nil {
			return nil, fmt.Errorf("failed to scan product search view: %w", err)
		}
		views = append(views, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate product search views: %w", err)
	}
	return views, nil
}
