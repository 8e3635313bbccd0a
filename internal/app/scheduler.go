/**
 * @description
 * Cron scheduler setup for scheduled jobs.
 */
package app

import (
	"context"

	"github.com/robfig/cron/v3"
	"github.com/vibetrailmedia/stepupnaija-sub004/internal/config"
	"go.uber.org/zap"
)

// Scheduler manages the cron jobs.
type Scheduler struct {
	cron   *cron.Cron
	jobs   *Jobs
	logger *zap.Logger
	config config.Config
}

// NewScheduler creates a new scheduler instance.
func NewScheduler(jobs *Jobs, logger *zap.Logger, cfg config.Config) *Scheduler {
	cronLogger := cron.PrintfLogger(zap.NewStdLog(logger.With(zap.String("component", "cron"))))
	c := cron.New(cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)))

	return &Scheduler{
		cron:   c,
		jobs:   jobs,
		logger: logger.With(zap.String("component", "scheduler")),
		config: cfg,
	}
}

// Start registers the jobs and starts the cron scheduler. It returns the
// number of jobs that were scheduled.
func (s *Scheduler) Start() int {
	entries := []struct {
		name     string
		schedule string
		run      func()
	}{
		{"draw due rounds", s.config.DrawJobSchedule, s.jobs.DrawDueRounds},
		{"payout expiry", s.config.PayoutExpirySchedule, s.jobs.ExpireStalePayouts},
		{"treasury health", s.config.TreasuryHealthSchedule, s.jobs.CheckTreasuryHealth},
		{"ledger audit", s.config.LedgerAuditSchedule, s.jobs.AuditLedger},
	}

	scheduled := 0
	for _, entry := range entries {
		if _, err := s.cron.AddFunc(entry.schedule, entry.run); err != nil {
			s.logger.Error("failed to schedule job", zap.String("job", entry.name), zap.String("schedule", entry.schedule), zap.Error(err))
			continue
		}
		scheduled++
		s.logger.Info("scheduled job", zap.String("job", entry.name), zap.String("schedule", entry.schedule))
	}

	s.cron.Start()
	return scheduled
}

// Stop gracefully stops the cron scheduler.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
