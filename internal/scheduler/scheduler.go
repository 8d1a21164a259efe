package scheduler

import (
	"context"

	"github.com/robfig/cron/v3"
	"github.com/segyhp/pawn-engine/internal/jobs"
	"github.com/segyhp/pawn-engine/internal/logger"
)

// Scheduler manages cron job scheduling
type Scheduler struct {
	cron *cron.Cron
	jobs *jobs.JobRunner
}

// NewScheduler creates a scheduler in the shop's timezone with seconds precision
func NewScheduler(jobRunner *jobs.JobRunner) *Scheduler {
	c := cron.New(
		cron.WithLocation(jobRunner.Config().GetLocation()),
		cron.WithSeconds(),
	)

	s := &Scheduler{
		cron: c,
		jobs: jobRunner,
	}

	s.registerJobs()
	return s
}

func (s *Scheduler) registerJobs() {
	cfg := s.jobs.Config().Scheduler

	if _, err := s.cron.AddFunc(cfg.DueSweep, s.jobs.SweepDueLoans); err != nil {
		logger.Error("Failed to register due sweep job", "spec", cfg.DueSweep, "error", err)
	}

	if _, err := s.cron.AddFunc(cfg.Collections, s.jobs.SummarizeCollections); err != nil {
		logger.Error("Failed to register collections summary job", "spec", cfg.Collections, "error", err)
	}

	logger.Info("Cron jobs registered", "count", len(s.cron.Entries()))
}

func (s *Scheduler) Start() {
	s.cron.Start()
	logger.Info("Scheduler started")
}

// Stop stops scheduling and returns a context done once running jobs finish
func (s *Scheduler) Stop() context.Context {
	logger.Info("Stopping scheduler")
	return s.cron.Stop()
}

// Entries reports how many jobs are registered
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}
