/**
 * @description
 * Cron scheduler setup for the background sweeps.
 */
package app

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"
	"github.com/stagedoor/onboarding-service/internal/config"
)

// Scheduler manages the cron jobs.
type Scheduler struct {
	cron   *cron.Cron
	jobs   *Jobs
	logger *slog.Logger
	config config.Config
}

// NewScheduler creates a new scheduler instance.
func NewScheduler(jobs *Jobs, logger *slog.Logger, cfg config.Config) *Scheduler {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	c := cron.New(cron.WithChain(cron.Recover(cronLogger)))

	return &Scheduler{
		cron:   c,
		jobs:   jobs,
		logger: logger,
		config: cfg,
	}
}

// Start registers the jobs and starts the cron scheduler.
func (s *Scheduler) Start() {
	if _, err := s.cron.AddFunc(s.config.SessionSweepSchedule, s.jobs.SweepExpiredSessions); err != nil {
		s.logger.Error("failed to schedule session sweep job", "error", err)
	} else {
		s.logger.Info("scheduled session sweep job", "schedule", s.config.SessionSweepSchedule)
	}

	if _, err := s.cron.AddFunc(s.config.StaleOrderSweepSchedule, s.jobs.RecoverStalePayments); err != nil {
		s.logger.Error("failed to schedule stale payment recovery job", "error", err)
	} else {
		s.logger.Info("scheduled stale payment recovery job", "schedule", s.config.StaleOrderSweepSchedule)
	}

	s.cron.Start()
}

// Stop gracefully stops the cron scheduler.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
