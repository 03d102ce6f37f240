package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/partsdesk/importer/internal/domain"
)

type mappingRepository struct {
	db Querier
}

// NewMappingRepository wires a repository backed by pgx.
func NewMappingRepository(db Querier) MappingRepository {
	return &mappingRepository{db: db}
}

func (r *mappingRepository) WithTx(tx pgx.Tx) MappingRepository {
	return &mappingRepository{db: tx}
}

func (r *mappingRepository) ListActive(ctx context.Context) ([]domain.SupersessionMapping, error) {
	rows, err := r.db.Query(
		ctx,
		`SELECT id, old_part_number, new_part_number, active, created_at
		 FROM supersession_mappings
		 WHERE active
		 ORDER BY created_at`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list active mappings: %w", err)
	}
	defer rows.Close()

	mappings := []domain.SupersessionMapping{}
	for rows.Next() {
		var m domain.SupersessionMapping
		if err := rows.Scan(&m.ID, &m.OldPartNumber, &m.NewPartNumber, &m.Active, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan mapping: %w", err)
		}
		mappings = append(mappings, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate mappings: %w", err)
	}

	return mappings, nil
}

// CreateOrReactivate flips the most recent archived row for a pair back to
// active when one exists, otherwise inserts a fresh active mapping.
// Returns the number of pairs touched.
func (r *mappingRepository) CreateOrReactivate(ctx context.Context, keys []domain.MappingKey) (int, error) {
	if len(keys) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, key := range keys {
		batch.Queue(
			`WITH reactivated AS (
			     UPDATE supersession_mappings SET active = true
			     WHERE id = (
			         SELECT id FROM supersession_mappings
			         WHERE old_part_number = $1 AND new_part_number = $2 AND NOT active
			         ORDER BY created_at DESC LIMIT 1
			     )
			     RETURNING id
			 )
			 INSERT INTO supersession_mappings (old_part_number, new_part_number, active)
			 SELECT $1, $2, true
			 WHERE NOT EXISTS (SELECT 1 FROM reactivated)`,
			key.Old, key.New,
		)
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()

	touched := 0
	for range keys {
		if _, err := results.Exec(); err != nil {
			return touched, fmt.Errorf("failed to create or reactivate mapping: %w", err)
		}
		touched++
	}
	return touched, nil
}

// Archive marks the listed active pairs inactive. Archived mappings are
// retained forever for audit history.
func (r *mappingRepository) Archive(ctx context.Context, keys []domain.MappingKey) (int, error) {
	if len(keys) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, key := range keys {
		batch.Queue(
			`UPDATE supersession_mappings SET active = false
			 WHERE old_part_number = $1 AND new_part_number = $2 AND active`,
			key.Old, key.New,
		)
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()

	archived := 0
	for range keys {
		tag, err := results.Exec()
		if err != nil {
			return archived, fmt.Errorf("failed to archive mapping: %w", err)
		}
		archived += int(tag.RowsAffected())
	}
	return archived, nil
}
