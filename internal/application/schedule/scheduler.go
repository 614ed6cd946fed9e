// Package schedule runs the nightly auto-match sweep on a cron spec.
package schedule

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/receiptwise/receiptmatch-backend/internal/application/service"
)

// Scheduler owns the cron runner for periodic auto-match sweeps.
type Scheduler struct {
	cron    *cron.Cron
	service *service.MatchService
	spec    string
	logger  *slog.Logger
}

// NewScheduler creates a scheduler that starts an all-owner auto-match
// job on the given cron spec (standard 5-field format).
func NewScheduler(svc *service.MatchService, spec string, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		service: svc,
		spec:    spec,
		logger:  logger,
	}
}

// Start registers the sweep and begins the cron loop.
func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc(s.spec, s.sweep)
	if err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("auto-match schedule started", "cron", s.spec)
	return nil
}

// Stop halts the cron loop and waits for a running sweep trigger to
// return. The auto-match job itself keeps running under the service.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("auto-match schedule stopped")
}

// sweep kicks off an all-owner job. A sweep that finds one already
// running simply skips this tick.
func (s *Scheduler) sweep() {
	jobID, err := s.service.StartAutoMatch(context.Background(), service.AutoMatchRequest{AllOwners: true})
	if err != nil {
		s.logger.Warn("scheduled auto-match skipped", "error", err)
		return
	}
	s.logger.Info("scheduled auto-match started", "job_id", jobID)
}
