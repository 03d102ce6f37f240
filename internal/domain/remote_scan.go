package domain

import (
	"time"

	"github.com/google/uuid"
)

// ScanTrigger records what started an orchestrator run.
type ScanTrigger string

const (
	ScanTriggerCron   ScanTrigger = "CRON"
	ScanTriggerManual ScanTrigger = "MANUAL"
)

// ScanStatus is the aggregate outcome of one orchestrator run.
type ScanStatus string

const (
	ScanStatusRunning ScanStatus = "RUNNING"
	ScanStatusSuccess ScanStatus = "SUCCESS"
	ScanStatusPartial ScanStatus = "PARTIAL"
	ScanStatusFailed  ScanStatus = "FAILED"
)

// FolderResult aggregates the outcome of scanning one remote folder.
type FolderResult struct {
	EntityType EntityType `json:"entityType"`
	FolderID   string     `json:"folderId"`
	Found      int        `json:"found"`
	Processed  int        `json:"processed"`
	Skipped    int        `json:"skipped"`
	Failed     int        `json:"failed"`
	Errors     []string   `json:"errors,omitempty"`
}

// RemoteScanRun is the durable record of one orchestrator execution.
type RemoteScanRun struct {
	ID             uuid.UUID      `json:"id"`
	TriggeredBy    ScanTrigger    `json:"triggeredBy"`
	Status         ScanStatus     `json:"status"`
	TotalFound     int            `json:"totalFilesFound"`
	TotalProcessed int            `json:"totalFilesProcessed"`
	TotalSkipped   int            `json:"totalFilesSkipped"`
	TotalFailed    int            `json:"totalFilesFailed"`
	FolderResults  []FolderResult `json:"perEntityType"`
	Errors         []string       `json:"errors,omitempty"`
	StartedAt      time.Time      `json:"startedAt"`
	CompletedAt    *time.Time     `json:"completedAt,omitempty"`
	DurationMs     *int64         `json:"durationMs,omitempty"`
}

// DeriveScanStatus applies the run status rules: SUCCESS only when the
// run recorded no failures and no errors, FAILED when it also processed
// nothing, PARTIAL otherwise. Folder-level errors (listing failures,
// missing configuration) count against the run the same way failed
// files do.
func DeriveScanStatus(processed, failed, errs int) ScanStatus {
	switch {
	case failed == 0 && errs == 0:
		return ScanStatusSuccess
	case processed == 0:
		return ScanStatusFailed
	default:
		return ScanStatusPartial
	}
}

// RemoteFileState is the recorded high-water mark for one remote file,
// used for change detection between orchestrator runs.
type RemoteFileState struct {
	FileID     string     `json:"fileId"`
	FolderID   string     `json:"folderId"`
	EntityType EntityType `json:"entityType"`
	FileName   string     `json:"fileName"`
	ModifiedAt time.Time  `json:"modifiedAt"`
	RecordedAt time.Time  `json:"recordedAt"`
}
