package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/partsdesk/importer/internal/domain"
)

// Querier is the subset of pgx shared by *pgxpool.Pool and pgx.Tx.
// Repositories are constructed on the pool and rebound onto a transaction
// with WithTx for chunked atomic writes.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// ProductRepository persists catalog parts and their versioned price and
// stock snapshots.
type ProductRepository interface {
	WithTx(tx pgx.Tx) ProductRepository
	Upsert(ctx context.Context, products []domain.Product) (map[string]uuid.UUID, error)
	IDsByPartNumbers(ctx context.Context, partNumbers []string) (map[string]uuid.UUID, error)
	ArchiveActivePrices(ctx context.Context, productIDs []uuid.UUID) error
	InsertPriceSnapshots(ctx context.Context, snapshots []domain.PriceSnapshot) error
	ArchiveActiveStock(ctx context.Context, productIDs []uuid.UUID) error
	InsertStockSnapshots(ctx context.Context, snapshots []domain.StockSnapshot) error
	Count(ctx context.Context) (int64, error)
	ListSearchViews(ctx context.Context, limit, offset int) ([]domain.ProductSearchView, error)
	SearchViewsByPartNumbers(ctx context.Context, partNumbers []string) ([]domain.ProductSearchView, error)
}

// BackorderRepository persists versioned backorder snapshots per part.
type BackorderRepository interface {
	WithTx(tx pgx.Tx) BackorderRepository
	ArchiveActive(ctx context.Context, productIDs []uuid.UUID) error
	InsertSnapshots(ctx context.Context, snapshots []domain.BackorderSnapshot) error
}

// MappingRepository persists supersession mappings with full-state
// reconciliation semantics: archive, never delete.
type MappingRepository interface {
	WithTx(tx pgx.Tx) MappingRepository
	ListActive(ctx context.Context) ([]domain.SupersessionMapping, error)
	CreateOrReactivate(ctx context.Context, keys []domain.MappingKey) (int, error)
	Archive(ctx context.Context, keys []domain.MappingKey) (int, error)
}

// DealerRepository persists dealer account rows keyed by dealer code.
type DealerRepository interface {
	WithTx(tx pgx.Tx) DealerRepository
	Upsert(ctx context.Context, dealers []domain.Dealer) error
}

// OrderStatusUpdate is one parsed ORDER_STATUS row destined for the
// orders table.
type OrderStatusUpdate struct {
	OrderNumber string
	Status      domain.OrderStatus
	UpdatedAt   time.Time
}

// OrderRepository applies fulfillment status updates to existing orders.
type OrderRepository interface {
	WithTx(tx pgx.Tx) OrderRepository
	UpdateStatuses(ctx context.Context, updates []OrderStatusUpdate) (missing []string, err error)
}

// ImportRunRepository is the durable audit trail of file imports.
type ImportRunRepository interface {
	Create(ctx context.Context, run domain.ImportRun) error
	GetByID(ctx context.Context, id uuid.UUID) (domain.ImportRun, error)
	List(ctx context.Context, limit, offset int) ([]domain.ImportRun, int, error)
	MarkProcessing(ctx context.Context, id uuid.UUID, totalRows int) error
	Complete(ctx context.Context, id uuid.UUID, successCount, errorCount int) error
	Fail(ctx context.Context, id uuid.UUID, message string) error
	BulkInsertRowErrors(ctx context.Context, rowErrors []domain.ImportRowError) error
	ListRowErrors(ctx context.Context, runID uuid.UUID, limit, offset int) ([]domain.ImportRowError, int, error)
}

// ScanRunRepository records orchestrator executions.
type ScanRunRepository interface {
	Create(ctx context.Context, run domain.RemoteScanRun) error
	Finalize(ctx context.Context, run domain.RemoteScanRun) error
	GetByID(ctx context.Context, id uuid.UUID) (domain.RemoteScanRun, error)
	List(ctx context.Context, limit, offset int) ([]domain.RemoteScanRun, error)
}

// RemoteFileStateRepository tracks the last successfully imported
// modification timestamp per remote file, for change detection.
type RemoteFileStateRepository interface {
	ListByFolder(ctx context.Context, folderID string) (map[string]time.Time, error)
	Record(ctx context.Context, state domain.RemoteFileState) error
}
