package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/segyhp/pawn-engine/internal/domain"
	"github.com/segyhp/pawn-engine/internal/ledger"
	"github.com/segyhp/pawn-engine/internal/logger"
	"github.com/segyhp/pawn-engine/internal/metrics"
	customError "github.com/segyhp/pawn-engine/pkg/errors"
	"github.com/segyhp/pawn-engine/pkg/utils"
)

// SweepReport summarises one pass over overdue loans. Forfeiture is never
// automatic; eligible loans are only reported.
type SweepReport struct {
	AsOf               time.Time   `json:"as_of"`
	Checked            int         `json:"checked"`
	Extended           []uuid.UUID `json:"extended"`
	ForfeitureEligible []uuid.UUID `json:"forfeiture_eligible"`
	Overdue            []uuid.UUID `json:"overdue"`
	Failed             int         `json:"failed"`
}

// SweepDueLoans walks active loans past their due date. Loans eligible for
// forfeiture are reported first; of the rest, those whose interest is paid
// are rolled forward when auto-extension is on.
func (s *PawnService) SweepDueLoans(ctx context.Context) (*SweepReport, error) {
	today := s.today()
	report := &SweepReport{
		AsOf:               today,
		Extended:           []uuid.UUID{},
		ForfeitureEligible: []uuid.UUID{},
		Overdue:            []uuid.UUID{},
	}

	loans, err := s.LoanRepo.ListOverdue(ctx, utils.DateOnly(today))
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	for _, loan := range loans {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if !ledger.IsOverdue(*loan, today) {
			continue
		}
		report.Checked++

		switch {
		case ledger.IsEligibleForForfeiture(*loan, today):
			report.ForfeitureEligible = append(report.ForfeitureEligible, loan.ID)
			metrics.SweepLoansTotal.WithLabelValues("forfeiture_eligible").Inc()
		case s.config.Business.AutoExtendEnabled && ledger.IsInterestPaid(*loan):
			if _, err := s.Extend(ctx, loan.ID, domain.ExtendRequest{}, domain.SystemOperator); err != nil {
				report.Failed++
				metrics.SweepLoansTotal.WithLabelValues("failed").Inc()
				logger.ErrorContext(ctx, "Auto-extension failed",
					"loan_id", loan.ID, "transaction_number", loan.TransactionNumber, "error", err)
				continue
			}
			report.Extended = append(report.Extended, loan.ID)
			metrics.SweepLoansTotal.WithLabelValues("extended").Inc()
		default:
			report.Overdue = append(report.Overdue, loan.ID)
			metrics.SweepLoansTotal.WithLabelValues("overdue").Inc()
		}
	}

	logger.InfoContext(ctx, "Due sweep finished",
		"checked", report.Checked,
		"extended", len(report.Extended),
		"forfeiture_eligible", len(report.ForfeitureEligible),
		"overdue", len(report.Overdue),
		"failed", report.Failed,
	)
	return report, nil
}
