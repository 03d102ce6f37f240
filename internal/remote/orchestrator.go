package remote

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/partsdesk/importer/internal/domain"
	"github.com/partsdesk/importer/internal/importer"
	"github.com/partsdesk/importer/internal/repository"
)

// ErrScanInProgress is returned when a trigger arrives while a scan is
// already running. Triggers are rejected, not queued.
var ErrScanInProgress = errors.New("a remote scan is already running")

// FolderConfig binds an entity type to a remote folder. Lower priority
// values run first: catalog entities before the mappings that reference
// them, fulfillment updates after, account data last.
type FolderConfig struct {
	EntityType domain.EntityType
	FolderID   string
	Priority   int
}

// Importer is the slice of the import service the orchestrator needs.
type Importer interface {
	ImportFile(ctx context.Context, req importer.Request) (domain.ImportRun, error)
}

// Orchestrator periodically scans prioritized remote folders, applies
// change detection, and pushes new or modified files through the import
// pipeline, isolating failures at file and folder granularity.
type Orchestrator struct {
	store   FileStore
	imports Importer
	scans   repository.ScanRunRepository
	state   repository.RemoteFileStateRepository
	folders []FolderConfig
	log     *logrus.Logger

	running atomic.Bool
}

// NewOrchestrator creates the single orchestrator instance. It is
// constructed once at process start; the run guard lives on it.
func NewOrchestrator(
	store FileStore,
	imports Importer,
	scans repository.ScanRunRepository,
	state repository.RemoteFileStateRepository,
	folders []FolderConfig,
	log *logrus.Logger,
) *Orchestrator {
	if log == nil {
		log = logrus.StandardLogger()
	}
	sorted := append([]FolderConfig(nil), folders...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Priority < sorted[j].Priority })
	return &Orchestrator{
		store:   store,
		imports: imports,
		scans:   scans,
		state:   state,
		folders: sorted,
		log:     log,
	}
}

// Start begins a scan in the background and returns its run id
// immediately. A concurrent trigger gets ErrScanInProgress.
func (o *Orchestrator) Start(ctx context.Context, trigger domain.ScanTrigger) (domain.RemoteScanRun, error) {
	if !o.running.CompareAndSwap(false, true) {
		return domain.RemoteScanRun{}, ErrScanInProgress
	}

	run := domain.RemoteScanRun{
		ID:          uuid.New(),
		TriggeredBy: trigger,
		Status:      domain.ScanStatusRunning,
		StartedAt:   nowUTC(),
	}
	if err := o.scans.Create(ctx, run); err != nil {
		o.running.Store(false)
		return domain.RemoteScanRun{}, err
	}

	go func() {
		defer o.running.Store(false)
		// Detached from the trigger; outcomes land in the scan record.
		o.runScan(context.Background(), run)
	}()

	return run, nil
}

// RunOnce executes a scan synchronously. Used by tests and by callers
// that want to wait for the aggregate outcome.
func (o *Orchestrator) RunOnce(ctx context.Context, trigger domain.ScanTrigger) (domain.RemoteScanRun, error) {
	if !o.running.CompareAndSwap(false, true) {
		return domain.RemoteScanRun{}, ErrScanInProgress
	}
	defer o.running.Store(false)

	run := domain.RemoteScanRun{
		ID:          uuid.New(),
		TriggeredBy: trigger,
		Status:      domain.ScanStatusRunning,
		StartedAt:   nowUTC(),
	}
	if err := o.scans.Create(ctx, run); err != nil {
		return domain.RemoteScanRun{}, err
	}
	return o.runScan(ctx, run), nil
}

func (o *Orchestrator) runScan(ctx context.Context, run domain.RemoteScanRun) domain.RemoteScanRun {
	logger := o.log.WithFields(logrus.Fields{"scan_id": run.ID, "trigger": run.TriggeredBy})
	logger.Info("remote scan started")

	for _, folder := range o.folders {
		result := o.scanFolder(ctx, folder, logger)
		run.FolderResults = append(run.FolderResults, result)
		run.TotalFound += result.Found
		run.TotalProcessed += result.Processed
		run.TotalSkipped += result.Skipped
		run.TotalFailed += result.Failed
		run.Errors = append(run.Errors, result.Errors...)
	}

	run.Status = domain.DeriveScanStatus(run.TotalProcessed, run.TotalFailed, len(run.Errors))
	completed := nowUTC()
	run.CompletedAt = &completed
	duration := completed.Sub(run.StartedAt).Milliseconds()
	run.DurationMs = &duration

	if err := o.scans.Finalize(ctx, run); err != nil {
		logger.WithError(err).Error("failed to finalize scan run")
	}

	logger.WithFields(logrus.Fields{
		"status":    run.Status,
		"found":     run.TotalFound,
		"processed": run.TotalProcessed,
		"skipped":   run.TotalSkipped,
		"failed":    run.TotalFailed,
	}).Info("remote scan finished")

	return run
}

// scanFolder lists one folder, filters by change detection, and imports
// candidates oldest-modified-first. Every failure inside the folder is
// recorded without aborting the scan.
func (o *Orchestrator) scanFolder(ctx context.Context, folder FolderConfig, logger *logrus.Entry) domain.FolderResult {
	result := domain.FolderResult{EntityType: folder.EntityType, FolderID: folder.FolderID}

	if folder.FolderID == "" {
		result.Errors = append(result.Errors, fmt.Sprintf("%s: folder identifier not configured", folder.EntityType))
		return result
	}

	files, err := o.store.ListFolder(ctx, folder.FolderID)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("%s: failed to list folder: %v", folder.EntityType, err))
		return result
	}
	result.Found = len(files)

	lastSuccess, err := o.state.ListByFolder(ctx, folder.FolderID)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("%s: failed to load change detection state: %v", folder.EntityType, err))
		return result
	}

	var candidates []RemoteFile
	for _, file := range files {
		recorded, known := lastSuccess[file.ID]
		if known && !file.ModifiedAt.After(recorded) {
			result.Skipped++
			continue
		}
		candidates = append(candidates, file)
	}

	// Oldest first, preserving business chronology when several updates
	// exist for the same period.
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].ModifiedAt.Before(candidates[j].ModifiedAt)
	})

	for _, file := range candidates {
		if err := o.processFile(ctx, folder, file); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s/%s: %v", folder.EntityType, file.Name, err))
			logger.WithFields(logrus.Fields{
				"entity_type": folder.EntityType,
				"file":        file.Name,
			}).WithError(err).Warn("remote file failed")
			continue
		}
		result.Processed++
	}

	return result
}

func (o *Orchestrator) processFile(ctx context.Context, folder FolderConfig, file RemoteFile) error {
	payload, err := o.store.Download(ctx, file.ID)
	if err != nil {
		return fmt.Errorf("download failed: %w", err)
	}

	fileID := file.ID
	modifiedAt := file.ModifiedAt
	run, err := o.imports.ImportFile(ctx, importer.Request{
		EntityType:           folder.EntityType,
		SourceType:           domain.SourceTypeRemote,
		FileName:             file.Name,
		Payload:              payload,
		SourceFileID:         &fileID,
		SourceFileModifiedAt: &modifiedAt,
	})
	if err != nil {
		return err
	}
	if run.Status != domain.RunStatusCompleted {
		return fmt.Errorf("import ended with status %s", run.Status)
	}

	// Only a fully completed import advances the change-detection mark,
	// so a failed file is retried on the next scan.
	return o.state.Record(ctx, domain.RemoteFileState{
		FileID:     file.ID,
		FolderID:   folder.FolderID,
		EntityType: folder.EntityType,
		FileName:   file.Name,
		ModifiedAt: file.ModifiedAt,
	})
}

func nowUTC() time.Time {
	return time.Now().UTC()
}
