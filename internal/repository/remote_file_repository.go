package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/partsdesk/importer/internal/domain"
)

type remoteFileStateRepository struct {
	db Querier
}

// NewRemoteFileStateRepository wires a repository backed by pgx.
func NewRemoteFileStateRepository(db Querier) RemoteFileStateRepository {
	return &remoteFileStateRepository{db: db}
}

// ListByFolder returns the last successfully imported modification
// timestamp for every known file in the folder.
func (r *remoteFileStateRepository) ListByFolder(ctx context.Context, folderID string) (map[string]time.Time, error) {
	rows, err := r.db.Query(
		ctx,
		`SELECT file_id, modified_at FROM remote_file_state WHERE folder_id = $1`,
		folderID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list remote file state: %w", err)
	}
	defer rows.Close()

	state := map[string]time.Time{}
	for rows.Next() {
		var fileID string
		var modifiedAt time.Time
		if err := rows.Scan(&fileID, &modifiedAt); err != nil {
			return nil, fmt.Errorf("failed to scan remote file state: %w", err)
		}
		state[fileID] = modifiedAt
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate remote file state: %w", err)
	}

	return state, nil
}

func (r *remoteFileStateRepository) Record(ctx context.Context, state domain.RemoteFileState) error {
	_, err := r.db.Exec(
		ctx,
		`INSERT INTO remote_file_state (file_id, folder_id, entity_type, file_name, modified_at, recorded_at)
		 VALUES ($1, $2, $3, $4, $5, now())
		 ON CONFLICT (file_id) DO UPDATE
		 SET folder_id = EXCLUDED.folder_id,
		     entity_type = EXCLUDED.entity_type,
		     file_name = EXCLUDED.file_name,
		     modified_at = EXCLUDED.modified_at,
		     recorded_at = now()`,
		state.FileID, state.FolderID, state.EntityType, state.FileName, state.ModifiedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record remote file state: %w", err)
	}
	return nil
}
