package remote

import (
	"context"
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/partsdesk/importer/internal/domain"
)

// Scheduler fires the orchestrator on a cron expression. A tick that
// lands while a scan is still running is logged and dropped.
type Scheduler struct {
	orchestrator *Orchestrator
	spec         string
	log          *logrus.Logger
	cron         *cron.Cron
}

// NewScheduler creates a scheduler for the given cron spec, e.g.
// "0 */4 * * *" for every four hours.
func NewScheduler(orchestrator *Orchestrator, spec string, log *logrus.Logger) *Scheduler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Scheduler{orchestrator: orchestrator, spec: spec, log: log}
}

// Start registers the job and begins ticking.
func (s *Scheduler) Start() error {
	c := cron.New()
	if _, err := c.AddFunc(s.spec, s.tick); err != nil {
		return fmt.Errorf("invalid scan schedule %q: %w", s.spec, err)
	}
	c.Start()
	s.cron = c
	s.log.WithField("schedule", s.spec).Info("remote scan scheduler started")
	return nil
}

// Stop halts the ticker and waits for any in-flight tick callback.
func (s *Scheduler) Stop() {
	if s.cron == nil {
		return
	}
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *Scheduler) tick() {
	run, err := s.orchestrator.Start(context.Background(), domain.ScanTriggerCron)
	if errors.Is(err, ErrScanInProgress) {
		s.log.Warn("scheduled scan skipped: previous scan still running")
		return
	}
	if err != nil {
		s.log.WithError(err).Error("scheduled scan failed to start")
		return
	}
	s.log.WithField("scan_id", run.ID).Info("scheduled scan triggered")
}
