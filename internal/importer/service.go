package importer

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/partsdesk/importer/internal/domain"
	"github.com/partsdesk/importer/internal/repository"
	"github.com/partsdesk/importer/internal/tabular"
	"github.com/partsdesk/importer/internal/tracker"
)

// SearchSyncer keeps the search index consistent with the store. The
// import's own outcome is independent of whether a later sync succeeds.
type SearchSyncer interface {
	Rebuild(ctx context.Context) error
	UpdateParts(ctx context.Context, partNumbers []string) error
}

// Request describes one file to import.
type Request struct {
	EntityType           domain.EntityType
	SourceType           domain.SourceType
	FileName             string
	Payload              []byte
	SourceFileID         *string
	SourceFileModifiedAt *time.Time
}

// Service drives the full single-file pipeline: parse, validate, upsert,
// track, and chain the index sync continuation.
type Service struct {
	engine   *Engine
	registry *Registry
	runs     repository.ImportRunRepository
	progress *tracker.Tracker
	syncer   SearchSyncer
	log      *logrus.Logger

	syncTimeout time.Duration
}

// NewService creates the import service. syncer may be nil when index
// synchronization is disabled.
func NewService(
	engine *Engine,
	registry *Registry,
	runs repository.ImportRunRepository,
	progress *tracker.Tracker,
	syncer SearchSyncer,
	log *logrus.Logger,
) *Service {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{
		engine:      engine,
		registry:    registry,
		runs:        runs,
		progress:    progress,
		syncer:      syncer,
		log:         log,
		syncTimeout: 30 * time.Minute,
	}
}

// Submit starts an import. The large catalog feed runs as a detached
// background task: the call returns the pending run immediately and the
// caller observes progress by polling. All other entity types run to
// completion before returning.
func (s *Service) Submit(ctx context.Context, req Request) (domain.ImportRun, error) {
	run := domain.NewImportRun(req.EntityType, req.SourceType, req.FileName)
	run.SourceFileID = req.SourceFileID
	run.SourceFileModifiedAt = req.SourceFileModifiedAt

	if err := s.runs.Create(ctx, run); err != nil {
		return domain.ImportRun{}, err
	}
	s.progress.Register(run.ID)

	if req.EntityType == domain.EntityTypeProducts {
		go func() {
			// Detached from the triggering request on purpose; the run
			// record and tracker carry the outcome.
			if _, err := s.execute(context.Background(), run, req); err != nil {
				s.log.WithField("run_id", run.ID).WithError(err).Error("background import failed")
			}
		}()
		return run, nil
	}

	return s.execute(ctx, run, req)
}

// ImportFile runs the whole pipeline synchronously. Used by the remote
// source orchestrator, which aggregates outcomes itself.
func (s *Service) ImportFile(ctx context.Context, req Request) (domain.ImportRun, error) {
	run := domain.NewImportRun(req.EntityType, req.SourceType, req.FileName)
	run.SourceFileID = req.SourceFileID
	run.SourceFileModifiedAt = req.SourceFileModifiedAt

	if err := s.runs.Create(ctx, run); err != nil {
		return domain.ImportRun{}, err
	}
	s.progress.Register(run.ID)

	return s.execute(ctx, run, req)
}

func (s *Service) execute(ctx context.Context, run domain.ImportRun, req Request) (domain.ImportRun, error) {
	logger := s.log.WithFields(logrus.Fields{
		"run_id":      run.ID,
		"entity_type": req.EntityType,
		"file":        req.FileName,
	})

	table, err := tabular.Parse(req.FileName, req.Payload)
	if err != nil {
		return s.failRun(ctx, run, logger, err)
	}

	strategy, err := s.registry.New(req.EntityType)
	if err != nil {
		return s.failRun(ctx, run, logger, err)
	}

	// Schema errors are fatal and reported before any row is processed.
	if err := strategy.Contract().Validate(table.Headers); err != nil {
		return s.failRun(ctx, run, logger, err)
	}

	totalRows := len(table.Rows)
	if err := s.runs.MarkProcessing(ctx, run.ID, totalRows); err != nil {
		return s.failRun(ctx, run, logger, err)
	}
	run.Status = domain.RunStatusProcessing
	run.TotalRows = &totalRows
	s.progress.SetTotal(run.ID, totalRows)

	result, err := s.engine.Run(ctx, strategy, table, func(done, total int) {
		s.progress.Update(run.ID, done)
	})
	if err != nil {
		return s.failRun(ctx, run, logger, err)
	}

	if len(result.Failures) > 0 {
		rowErrors := make([]domain.ImportRowError, len(result.Failures))
		for i, failure := range result.Failures {
			rowErrors[i] = domain.ImportRowError{
				ImportRunID:   run.ID,
				RowNumber:     failure.RowNumber,
				RawRowData:    failure.Raw,
				ErrorMessages: failure.Messages,
			}
		}
		if err := s.runs.BulkInsertRowErrors(ctx, rowErrors); err != nil {
			logger.WithError(err).Error("failed to persist row errors")
		}
	}

	if err := s.runs.Complete(ctx, run.ID, result.SuccessCount, len(result.Failures)); err != nil {
		return s.failRun(ctx, run, logger, err)
	}
	s.progress.Complete(run.ID)

	run.Status = domain.RunStatusCompleted
	run.SuccessCount = result.SuccessCount
	run.ErrorCount = len(result.Failures)

	logger.WithFields(logrus.Fields{
		"total_rows": result.TotalRows,
		"succeeded":  result.SuccessCount,
		"failed":     len(result.Failures),
	}).Info("import completed")

	s.chainSearchSync(req.EntityType, strategy)

	return run, nil
}

func (s *Service) failRun(ctx context.Context, run domain.ImportRun, logger *logrus.Entry, cause error) (domain.ImportRun, error) {
	logger.WithError(cause).Error("import failed")
	if err := s.runs.Fail(ctx, run.ID, cause.Error()); err != nil {
		logger.WithError(err).Error("failed to record import failure")
	}
	s.progress.Fail(run.ID, cause.Error())
	run.Status = domain.RunStatusFailed
	message := cause.Error()
	run.ErrorMessage = &message
	return run, cause
}

// chainSearchSync launches the index continuation as a second detached
// task. Nothing awaits it; this supervisor goroutine logs the terminal
// outcome so a failed sync is never silently dropped, and the previously
// aliased collection stays authoritative.
func (s *Service) chainSearchSync(entityType domain.EntityType, strategy Strategy) {
	if s.syncer == nil {
		return
	}

	switch entityType {
	case domain.EntityTypeProducts:
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), s.syncTimeout)
			defer cancel()
			if err := s.syncer.Rebuild(ctx); err != nil {
				s.log.WithError(err).Error("search index rebuild failed")
				return
			}
			s.log.Info("search index rebuild completed")
		}()
	default:
		reporter, ok := strategy.(AffectedPartsReporter)
		if !ok {
			return
		}
		parts := dedupe(reporter.AffectedParts())
		if len(parts) == 0 {
			return
		}
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), s.syncTimeout)
			defer cancel()
			if err := s.syncer.UpdateParts(ctx, parts); err != nil {
				s.log.WithField("parts", len(parts)).WithError(err).Error("incremental search update failed")
				return
			}
			s.log.WithField("parts", len(parts)).Info("incremental search update completed")
		}()
	}
}

// IsSchemaError reports whether an import failed on the header contract,
// so callers can map it to a client error rather than a server fault.
func IsSchemaError(err error) bool {
	var schemaErr *tabular.SchemaError
	return errors.As(err, &schemaErr)
}

func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := values[:0]
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
