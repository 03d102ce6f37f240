package importer

import (
	"context"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"

	"github.com/partsdesk/importer/internal/tabular"
)

// DefaultChunkSize bounds transaction size and memory for large files.
const DefaultChunkSize = 10_000

// TxRunner executes a function inside a database transaction. Satisfied
// by db.Connection.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(pgx.Tx) error) error
}

// Progress is invoked after each chunk commits with the number of rows
// handled so far and the total row count.
type Progress func(done, total int)

// Result summarizes one engine run over a parsed table.
type Result struct {
	TotalRows    int
	SuccessCount int
	Failures     []RowFailure
}

// Engine is the versioned upsert core: it validates rows through a
// strategy, detects in-file duplicate keys, and persists survivors in
// fixed-size transactional chunks with row-by-row fallback on chunk
// failure.
type Engine struct {
	tx        TxRunner
	chunkSize int
	log       *logrus.Logger
}

// NewEngine creates an engine. A chunkSize of zero or less selects the
// default.
func NewEngine(tx TxRunner, chunkSize int, log *logrus.Logger) *Engine {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Engine{tx: tx, chunkSize: chunkSize, log: log}
}

// Run processes a parsed table with the given strategy. Header contract
// violations abort before any row is touched; everything after that is
// row-isolated. The returned error reflects run-level failures only.
func (e *Engine) Run(ctx context.Context, strategy Strategy, table *tabular.Table, progress Progress) (Result, error) {
	result := Result{TotalRows: len(table.Rows)}

	if err := strategy.Contract().Validate(table.Headers); err != nil {
		return result, err
	}

	if err := strategy.Prepare(ctx); err != nil {
		return result, fmt.Errorf("failed to prepare %s import: %w", strategy.EntityType(), err)
	}

	parsed, failures := e.validateRows(strategy, table)
	result.Failures = failures

	done := len(failures)
	for start := 0; start < len(parsed); start += e.chunkSize {
		end := start + e.chunkSize
		if end > len(parsed) {
			end = len(parsed)
		}
		chunk := parsed[start:end]

		chunkFailures, err := e.processChunk(ctx, strategy, chunk)
		if err != nil {
			return result, err
		}
		result.Failures = append(result.Failures, chunkFailures...)
		result.SuccessCount += len(chunk) - len(chunkFailures)

		done += len(chunk)
		if progress != nil {
			progress(done, result.TotalRows)
		}
	}

	if err := strategy.Finalize(ctx); err != nil {
		return result, fmt.Errorf("failed to finalize %s import: %w", strategy.EntityType(), err)
	}

	sort.Slice(result.Failures, func(i, j int) bool {
		return result.Failures[i].RowNumber < result.Failures[j].RowNumber
	})

	return result, nil
}

// validateRows runs field validation and in-file duplicate-key detection.
// The first occurrence of a key proceeds normally; later occurrences fail
// with a reference to the first occurrence's row number.
func (e *Engine) validateRows(strategy Strategy, table *tabular.Table) ([]Parsed, []RowFailure) {
	var parsed []Parsed
	var failures []RowFailure
	firstSeen := make(map[string]int)

	for _, row := range table.Rows {
		record, messages := strategy.ParseRow(table, row)
		if len(messages) > 0 {
			failures = append(failures, RowFailure{RowNumber: row.Number, Raw: row.Cells, Messages: messages})
			continue
		}

		if key := strategy.NaturalKey(record); key != "" {
			if first, dup := firstSeen[key]; dup {
				failures = append(failures, RowFailure{
					RowNumber: row.Number,
					Raw:       row.Cells,
					Messages:  []string{fmt.Sprintf("duplicate key %q: first occurrence at row %d", key, first)},
				})
				continue
			}
			firstSeen[key] = row.Number
		}

		parsed = append(parsed, Parsed{RowNumber: row.Number, Raw: row.Cells, Record: record})
	}

	return parsed, failures
}

// processChunk attempts the chunk in one transaction, then degrades to
// sequential per-row transactions if that fails, so a single conflicting
// row costs one error instead of the whole chunk.
func (e *Engine) processChunk(ctx context.Context, strategy Strategy, chunk []Parsed) ([]RowFailure, error) {
	var failures []RowFailure
	err := e.tx.WithTx(ctx, func(tx pgx.Tx) error {
		var upsertErr error
		failures, upsertErr = strategy.UpsertBatch(ctx, tx, chunk)
		return upsertErr
	})
	if err == nil {
		return failures, nil
	}

	e.log.WithFields(logrus.Fields{
		"entity_type": strategy.EntityType(),
		"chunk_size":  len(chunk),
	}).WithError(err).Warn("chunk transaction failed, retrying row by row")

	failures = failures[:0]
	for _, row := range chunk {
		var rowFailures []RowFailure
		rowErr := e.tx.WithTx(ctx, func(tx pgx.Tx) error {
			var upsertErr error
			rowFailures, upsertErr = strategy.UpsertBatch(ctx, tx, []Parsed{row})
			return upsertErr
		})
		if rowErr != nil {
			failures = append(failures, RowFailure{
				RowNumber: row.RowNumber,
				Raw:       row.Raw,
				Messages:  []string{fmt.Sprintf("failed to persist row: %v", rowErr)},
			})
			continue
		}
		failures = append(failures, rowFailures...)
	}
	return failures, nil
}
