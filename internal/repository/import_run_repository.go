package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/partsdesk/importer/internal/domain"
)

type importRunRepository struct {
	db Querier
}

// NewImportRunRepository wires a repository backed by pgx.
func NewImportRunRepository(db Querier) ImportRunRepository {
	return &importRunRepository{db: db}
}

func (r *importRunRepository) Create(ctx context.Context, run domain.ImportRun) error {
	_, err := r.db.Exec(
		ctx,
		`INSERT INTO import_runs
		     (id, entity_type, source_type, status, file_name, source_file_id, source_file_modified_at, started_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		run.ID, run.EntityType, run.SourceType, run.Status, run.FileName,
		run.SourceFileID, run.SourceFileModifiedAt, run.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create import run: %w", err)
	}
	return nil
}

func (r *importRunRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.ImportRun, error) {
	row := r.db.QueryRow(
		ctx,
		`SELECT id, entity_type, source_type, status, file_name, total_rows,
		        success_count, error_count, error_message,
		        source_file_id, source_file_modified_at,
		        started_at, completed_at, duration_ms
		 FROM import_runs WHERE id = $1`,
		id,
	)
	return scanImportRun(row)
}

func (r *importRunRepository) List(ctx context.Context, limit, offset int) ([]domain.ImportRun, int, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM import_runs`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count import runs: %w", err)
	}

	rows, err := r.db.Query(
		ctx,
		`SELECT id, entity_type, source_type, status, file_name, total_rows,
		        success_count, error_count, error_message,
		        source_file_id, source_file_modified_at,
		        started_at, completed_at, duration_ms
		 FROM import_runs
		 ORDER BY started_at DESC
		 LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list import runs: %w", err)
	}
	defer rows.Close()

	runs := []domain.ImportRun{}
	for rows.Next() {
		run, err := scanImportRun(rows)
		if err != nil {
			return nil, 0, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate import runs: %w", err)
	}

	return runs, total, nil
}

func scanImportRun(row pgx.Row) (domain.ImportRun, error) {
	var run domain.ImportRun
	if err := row.Scan(
		&run.ID, &run.EntityType, &run.SourceType, &run.Status, &run.FileName, &run.TotalRows,
		&run.SuccessCount, &run.ErrorCount, &run.ErrorMessage,
		&run.SourceFileID, &run.SourceFileModifiedAt,
		&run.StartedAt, &run.CompletedAt, &run.DurationMs,
	); err != nil {
		return domain.ImportRun{}, fmt.Errorf("failed to scan import run: %w", err)
	}
	return run, nil
}

func (r *importRunRepository) MarkProcessing(ctx context.Context, id uuid.UUID, totalRows int) error {
	_, err := r.db.Exec(
		ctx,
		`UPDATE import_runs SET status = $2, total_rows = $3 WHERE id = $1`,
		id, domain.RunStatusProcessing, totalRows,
	)
	if err != nil {
		return fmt.Errorf("failed to mark import run processing: %w", err)
	}
	return nil
}

func (r *importRunRepository) Complete(ctx context.Context, id uuid.UUID, successCount, errorCount int) error {
	_, err := r.db.Exec(
		ctx,
		`UPDATE import_runs
		 SET status = $2, success_count = $3, error_count = $4,
		     completed_at = now(),
		     duration_ms = (extract(epoch from now() - started_at) * 1000)::bigint
		 WHERE id = $1`,
		id, domain.RunStatusCompleted, successCount, errorCount,
	)
	if err != nil {
		return fmt.Errorf("failed to complete import run: %w", err)
	}
	return nil
}

func (r *importRunRepository) Fail(ctx context.Context, id uuid.UUID, message string) error {
	_, err := r.db.Exec(
		ctx,
		`UPDATE import_runs
		 SET status = $2, error_message = $3,
		     completed_at = now(),
		     duration_ms = (extract(epoch from now() - started_at) * 1000)::bigint
		 WHERE id = $1`,
		id, domain.RunStatusFailed, message,
	)
	if err != nil {
		return fmt.Errorf("failed to fail import run: %w", err)
	}
	return nil
}

// BulkInsertRowErrors writes all row errors for a run in one batch at the
// end of processing. Entries are immutable after insertion.
func (r *importRunRepository) BulkInsertRowErrors(ctx context.Context, rowErrors []domain.ImportRowError) error {
	if len(rowErrors) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, re := range rowErrors {
		rawJSON, err := json.Marshal(re.RawRowData)
		if err != nil {
			return fmt.Errorf("failed to marshal raw row data: %w", err)
		}
		messagesJSON, err := json.Marshal(re.ErrorMessages)
		if err != nil {
			return fmt.Errorf("failed to marshal error messages: %w", err)
		}
		batch.Queue(
			`INSERT INTO import_row_errors (import_run_id, row_number, raw_row_data, error_messages)
			 VALUES ($1, $2, $3, $4)`,
			re.ImportRunID, re.RowNumber, rawJSON, messagesJSON,
		)
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()

	for range rowErrors {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to insert row error: %w", err)
		}
	}
	return nil
}

func (r *importRunRepository) ListRowErrors(ctx context.Context, runID uuid.UUID, limit, offset int) ([]domain.ImportRowError, int, error) {
	if limit <= 0 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}

	var total int
	if err := r.db.QueryRow(
		ctx,
		`SELECT count(*) FROM import_row_errors WHERE import_run_id = $1`,
		runID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count row errors: %w", err)
	}

	rows, err := r.db.Query(
		ctx,
		`SELECT id, import_run_id, row_number, raw_row_data, error_messages, created_at
		 FROM import_row_errors
		 WHERE import_run_id = $1
		 ORDER BY row_number
		 LIMIT $2 OFFSET $3`,
		runID, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list row errors: %w", err)
	}
	defer rows.Close()

	rowErrors := []domain.ImportRowError{}
	for rows.Next() {
		var (
			re           domain.ImportRowError
			rawJSON      []byte
			messagesJSON []byte
			createdAt    time.Time
		)
		if err := rows.Scan(&re.ID, &re.ImportRunID, &re.RowNumber, &rawJSON, &messagesJSON, &createdAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan row error: %w", err)
		}
		if err := json.Unmarshal(rawJSON, &re.RawRowData); err != nil {
			return nil, 0, fmt.Errorf("failed to decode raw row data: %w", err)
		}
		if err := json.Unmarshal(messagesJSON, &re.ErrorMessages); err != nil {
			return nil, 0, fmt.Errorf("failed to decode error messages: %w", err)
		}
		re.CreatedAt = createdAt
		rowErrors = append(rowErrors, re)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate row errors: %w", err)
	}

	return rowErrors, total, nil
}
