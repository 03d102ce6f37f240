package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/partsdesk/importer/internal/domain"
)

type scanRunRepository struct {
	db Querier
}

// NewScanRunRepository wires a repository backed by pgx.
func NewScanRunRepository(db Querier) ScanRunRepository {
	return &scanRunRepository{db: db}
}

func (r *scanRunRepository) Create(ctx context.Context, run domain.RemoteScanRun) error {
	_, err := r.db.Exec(
		ctx,
		`INSERT INTO remote_scan_runs (id, triggered_by, status, started_at)
		 VALUES ($1, $2, $3, $4)`,
		run.ID, run.TriggeredBy, run.Status, run.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create scan run: %w", err)
	}
	return nil
}

func (r *scanRunRepository) Finalize(ctx context.Context, run domain.RemoteScanRun) error {
	folderJSON, err := json.Marshal(run.FolderResults)
	if err != nil {
		return fmt.Errorf("failed to marshal folder results: %w", err)
	}
	errorsJSON, err := json.Marshal(run.Errors)
	if err != nil {
		return fmt.Errorf("failed to marshal scan errors: %w", err)
	}

	_, err = r.db.Exec(
		ctx,
		`UPDATE remote_scan_runs
		 SET status = $2,
		     total_found = $3, total_processed = $4, total_skipped = $5, total_failed = $6,
		     folder_results = $7, errors = $8,
		     completed_at = now(),
		     duration_ms = (extract(epoch from now() - started_at) * 1000)::bigint
		 WHERE id = $1`,
		run.ID, run.Status,
		run.TotalFound, run.TotalProcessed, run.TotalSkipped, run.TotalFailed,
		folderJSON, errorsJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to finalize scan run: %w", err)
	}
	return nil
}

func (r *scanRunRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.RemoteScanRun, error) {
	return scanScanRun(r.db.QueryRow(
		ctx,
		`SELECT id, triggered_by, status, total_found, total_processed, total_skipped, total_failed,
		        folder_results, errors, started_at, completed_at, duration_ms
		 FROM remote_scan_runs WHERE id = $1`,
		id,
	))
}

func (r *scanRunRepository) List(ctx context.Context, limit, offset int) ([]domain.RemoteScanRun, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := r.db.Query(
		ctx,
		`SELECT id, triggered_by, status, total_found, total_processed, total_skipped, total_failed,
		        folder_results, errors, started_at, completed_at, duration_ms
		 FROM remote_scan_runs
		 ORDER BY started_at DESC
		 LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list scan runs: %w", err)
	}
	defer rows.Close()

	runs := []domain.RemoteScanRun{}
	for rows.Next() {
		run, err := scanScanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate scan runs: %w", err)
	}

	return runs, nil
}

func scanScanRun(row pgx.Row) (domain.RemoteScanRun, error) {
	var (
		run        domain.RemoteScanRun
		folderJSON []byte
		errorsJSON []byte
	)
	if err := row.Scan(
		&run.ID, &run.TriggeredBy, &run.Status,
		&run.TotalFound, &run.TotalProcessed, &run.TotalSkipped, &run.TotalFailed,
		&folderJSON, &errorsJSON,
		&run.StartedAt, &run.CompletedAt, &run.DurationMs,
	); err != nil {
		return domain.RemoteScanRun{}, fmt.Errorf("failed to scan remote scan run: %w", err)
	}
	if len(folderJSON) > 0 {
		if err := json.Unmarshal(folderJSON, &run.FolderResults); err != nil {
			return domain.RemoteScanRun{}, fmt.Errorf("failed to decode folder results: %w", err)
		}
	}
	if len(errorsJSON) > 0 {
		if err := json.Unmarshal(errorsJSON, &run.Errors); err != nil {
			return domain.RemoteScanRun{}, fmt.Errorf("failed to decode scan errors: %w", err)
		}
	}
	return run, nil
}
