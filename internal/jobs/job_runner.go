package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/segyhp/pawn-engine/internal/config"
	"github.com/segyhp/pawn-engine/internal/domain"
	"github.com/segyhp/pawn-engine/internal/logger"
	"github.com/segyhp/pawn-engine/internal/service"
)

const (
	JobDueSweep           = "due-sweep"
	JobCollectionsSummary = "collections-summary"
	JobAll                = "all"

	jobTimeout = 10 * time.Minute
)

// LoanJobs is the part of the pawn service driven by the scheduler
type LoanJobs interface {
	SweepDueLoans(ctx context.Context) (*service.SweepReport, error)
	GetDailyCollections(ctx context.Context, day time.Time) (*domain.CollectionsResponse, error)
}

// JobRunner coordinates all scheduled jobs
type JobRunner struct {
	loans  LoanJobs
	config *config.Config
	now    func() time.Time
	log    *slog.Logger
}

func NewJobRunner(loans LoanJobs, cfg *config.Config) *JobRunner {
	return &JobRunner{
		loans:  loans,
		config: cfg,
		now:    time.Now,
		log:    logger.WithService("pawn-scheduler"),
	}
}

func (jr *JobRunner) Config() *config.Config {
	return jr.config
}

// runWithRecovery wraps job execution with panic recovery
func (jr *JobRunner) runWithRecovery(jobName string, jobFunc func(ctx context.Context) error) {
	defer func() {
		if r := recover(); r != nil {
			jr.log.Error("Job panicked", "job", jobName, "panic", r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	start := time.Now()
	jr.log.Info("Starting job", "job", jobName)
	if err := jobFunc(ctx); err != nil {
		jr.log.Error("Job failed", "job", jobName, "error", err, "duration", time.Since(start))
		return
	}
	jr.log.Info("Job completed", "job", jobName, "duration", time.Since(start))
}

// SweepDueLoans extends or reports loans past their due date
func (jr *JobRunner) SweepDueLoans() {
	jr.runWithRecovery(JobDueSweep, func(ctx context.Context) error {
		report, err := jr.loans.SweepDueLoans(ctx)
		if err != nil {
			return err
		}
		for _, id := range report.ForfeitureEligible {
			jr.log.Warn("Loan eligible for forfeiture", "loan_id", id)
		}
		if report.Failed > 0 {
			return fmt.Errorf("%d loans could not be extended", report.Failed)
		}
		return nil
	})
}

// SummarizeCollections logs the day's takings per payment method for the
// cash-drawer reconciliation
func (jr *JobRunner) SummarizeCollections() {
	jr.runWithRecovery(JobCollectionsSummary, func(ctx context.Context) error {
		summary, err := jr.loans.GetDailyCollections(ctx, jr.now())
		if err != nil {
			return err
		}
		for _, t := range summary.ByMethod {
			jr.log.Info("Collections by method",
				"method", t.Method,
				"total", t.Total.StringFixed(2),
				"overpayment", t.Overpayment.StringFixed(2),
				"count", t.Count,
			)
		}
		jr.log.Info("Collections for the day",
			"from", summary.From,
			"to", summary.To,
			"total", summary.Total.StringFixed(2),
			"overpayment", summary.Overpayment.StringFixed(2),
		)
		return nil
	})
}

// RunAll runs every job once, in order
func (jr *JobRunner) RunAll() {
	jr.SweepDueLoans()
	jr.SummarizeCollections()
}

// RunOnce runs the named job; used by the scheduler's -run-once flag
func (jr *JobRunner) RunOnce(name string) error {
	switch name {
	case JobDueSweep:
		jr.SweepDueLoans()
	case JobCollectionsSummary:
		jr.SummarizeCollections()
	case JobAll:
		jr.RunAll()
	default:
		return fmt.Errorf("unknown job %q", name)
	}
	return nil
}
