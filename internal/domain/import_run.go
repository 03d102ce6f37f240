package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// EntityType identifies which kind of tabular feed a file carries.
type EntityType string

const (
	EntityTypeProducts          EntityType = "PRODUCTS"
	EntityTypeDealers           EntityType = "DEALERS"
	EntityTypeSupersededMapping EntityType = "SUPERSEDED_MAPPING"
	EntityTypeBackorder         EntityType = "BACKORDER"
	EntityTypeOrderStatus       EntityType = "ORDER_STATUS"
)

// ParseEntityType resolves a case-insensitive entity type label.
func ParseEntityType(raw string) (EntityType, error) {
	switch EntityType(strings.ToUpper(strings.TrimSpace(raw))) {
	case EntityTypeProducts:
		return EntityTypeProducts, nil
	case EntityTypeDealers:
		return EntityTypeDealers, nil
	case EntityTypeSupersededMapping:
		return EntityTypeSupersededMapping, nil
	case EntityTypeBackorder:
		return EntityTypeBackorder, nil
	case EntityTypeOrderStatus:
		return EntityTypeOrderStatus, nil
	}
	return "", fmt.Errorf("unknown entity type %q", raw)
}

// SourceType records how a file reached the importer.
type SourceType string

const (
	SourceTypeManual SourceType = "MANUAL"
	SourceTypeRemote SourceType = "REMOTE"
)

// RunStatus is the lifecycle state of a single file import.
type RunStatus string

const (
	RunStatusPending    RunStatus = "PENDING"
	RunStatusProcessing RunStatus = "PROCESSING"
	RunStatusCompleted  RunStatus = "COMPLETED"
	RunStatusFailed     RunStatus = "FAILED"
)

// Terminal reports whether the status can no longer change.
func (s RunStatus) Terminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed
}

// ImportRun is the durable audit record for one processed file.
// Rows are append-only; a run is never deleted.
type ImportRun struct {
	ID                   uuid.UUID  `json:"id"`
	EntityType           EntityType `json:"entityType"`
	SourceType           SourceType `json:"sourceType"`
	Status               RunStatus  `json:"status"`
	FileName             string     `json:"fileName"`
	TotalRows            *int       `json:"totalRows,omitempty"`
	SuccessCount         int        `json:"successCount"`
	ErrorCount           int        `json:"errorCount"`
	ErrorMessage         *string    `json:"errorMessage,omitempty"`
	SourceFileID         *string    `json:"sourceFileId,omitempty"`
	SourceFileModifiedAt *time.Time `json:"sourceFileModifiedAt,omitempty"`
	StartedAt            time.Time  `json:"startedAt"`
	CompletedAt          *time.Time `json:"completedAt,omitempty"`
	DurationMs           *int64     `json:"durationMs,omitempty"`
}

// ImportRowError preserves a failed row verbatim so an operator can
// correct and resubmit just the failing rows.
type ImportRowError struct {
	ID            uuid.UUID `json:"id"`
	ImportRunID   uuid.UUID `json:"importRunId"`
	RowNumber     int       `json:"rowNumber"`
	RawRowData    []string  `json:"rawRowData"`
	ErrorMessages []string  `json:"errorMessages"`
	CreatedAt     time.Time `json:"createdAt"`
}

// NewImportRun initializes a pending run for the given file.
func NewImportRun(entityType EntityType, sourceType SourceType, fileName string) ImportRun {
	return ImportRun{
		ID:         uuid.New(),
		EntityType: entityType,
		SourceType: sourceType,
		Status:     RunStatusPending,
		FileName:   fileName,
		StartedAt:  time.Now().UTC(),
	}
}
