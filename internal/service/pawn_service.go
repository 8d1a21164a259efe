package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/segyhp/pawn-engine/internal/config"
	"github.com/segyhp/pawn-engine/internal/domain"
	"github.com/segyhp/pawn-engine/internal/ledger"
	"github.com/segyhp/pawn-engine/internal/lifecycle"
	"github.com/segyhp/pawn-engine/internal/logger"
	"github.com/segyhp/pawn-engine/internal/metrics"
	"github.com/segyhp/pawn-engine/internal/repository"
	customError "github.com/segyhp/pawn-engine/pkg/errors"
	"github.com/segyhp/pawn-engine/pkg/utils"

	"github.com/shopspring/decimal"
)

// LoanLocker serializes writers of one loan
type LoanLocker interface {
	Acquire(ctx context.Context, loanID uuid.UUID) (release func(), err error)
}

// LoanCache holds read snapshots of loans
type LoanCache interface {
	Get(ctx context.Context, loanID uuid.UUID) (*domain.Loan, bool)
	// Set must not replace a newer version of the same loan
	Set(ctx context.Context, loan *domain.Loan)
	Invalidate(ctx context.Context, loanID uuid.UUID)
	MarkDeleted(ctx context.Context, loanID uuid.UUID, version int)
}

// Clock returns the current instant
type Clock func() time.Time

type Repositories struct {
	Loans     repository.LoanRepository
	Payments  repository.PaymentRepository
	Audit     repository.AuditRepository
	Customers repository.CustomerRepository
}

type PawnService struct {
	LoanRepo     repository.LoanRepository
	PaymentRepo  repository.PaymentRepository
	AuditRepo    repository.AuditRepository
	CustomerRepo repository.CustomerRepository
	tx           repository.Transactor
	locker       LoanLocker
	cache        LoanCache
	machine      *lifecycle.Machine
	config       *config.Config
	now          Clock
}

// NewPawnService wires the service. locker and cache may be nil, in which
// case writes rely on the version column alone and reads always hit the
// database.
func NewPawnService(
	repos Repositories,
	tx repository.Transactor,
	locker LoanLocker,
	cache LoanCache,
	config *config.Config,
) *PawnService {
	if locker == nil {
		locker = noopLocker{}
	}
	if cache == nil {
		cache = noopCache{}
	}
	machine := lifecycle.New(config.Business.DefaultLoanTermDays, config.Business.DefaultExtensionDays).
		WithDefaultInterestRate(config.GetDefaultInterestRate())

	return &PawnService{
		LoanRepo:     repos.Loans,
		PaymentRepo:  repos.Payments,
		AuditRepo:    repos.Audit,
		CustomerRepo: repos.Customers,
		tx:           tx,
		locker:       locker,
		cache:        cache,
		machine:      machine,
		config:       config,
		now:          time.Now,
	}
}

// WithClock replaces the time source
func (s *PawnService) WithClock(now Clock) *PawnService {
	s.now = now
	return s
}

func (s *PawnService) stamp(operator domain.Operator) lifecycle.Stamp {
	return lifecycle.Stamp{Operator: operator, At: s.today()}
}

// today is the current instant in the shop's timezone
func (s *PawnService) today() time.Time {
	return s.now().In(s.config.GetLocation())
}

// CreateLoan issues a new loan for an existing customer
func (s *PawnService) CreateLoan(ctx context.Context, request *domain.CreateLoanRequest, operator domain.Operator) (*domain.Loan, error) {
	if _, err := s.CustomerRepo.GetByID(ctx, request.CustomerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, customError.WrapCustomerNotFound(request.CustomerID.String())
		}
		return nil, customError.WrapDatabaseError(err)
	}

	if request.TransactionNumber != "" {
		existing, err := s.LoanRepo.GetByTransactionNumber(ctx, request.TransactionNumber)
		if err == nil && existing != nil {
			return nil, customError.WrapLoanAlreadyExists(request.TransactionNumber)
		}
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, customError.WrapDatabaseError(err)
		}
	}

	result, err := s.machine.Create(*request, s.stamp(operator))
	if err != nil {
		metrics.RecordOperation(string(domain.OperationCreate), err)
		return nil, err
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.LoanRepo.Create(ctx, &result.Loan); err != nil {
			return wrapRepoError(err)
		}
		if err := s.AuditRepo.Create(ctx, &result.Audit); err != nil {
			return customError.WrapDatabaseError(err)
		}
		return nil
	})
	metrics.RecordOperation(string(domain.OperationCreate), err)
	if err != nil {
		return nil, err
	}

	logger.WithLoan(result.Loan.ID.String(), result.Loan.TransactionNumber).InfoContext(ctx, "Loan issued",
		"customer_id", result.Loan.CustomerID,
		"loan_amount", result.Loan.LoanAmount.StringFixed(2),
		"total_payable", result.Loan.TotalPayableAmount.StringFixed(2),
		"due_date", result.Loan.DueDate.Format(time.DateOnly),
		"operator", operator.Username,
	)

	s.cache.Set(ctx, &result.Loan)
	return &result.Loan, nil
}

// GetLoan returns the current loan snapshot
func (s *PawnService) GetLoan(ctx context.Context, loanID uuid.UUID) (*domain.Loan, error) {
	if loan, ok := s.cache.Get(ctx, loanID); ok {
		return loan, nil
	}

	loan, err := s.loadLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}

	s.cache.Set(ctx, loan)
	return loan, nil
}

// loadLoan reads the committed loan, bypassing the cache
func (s *PawnService) loadLoan(ctx context.Context, loanID uuid.UUID) (*domain.Loan, error) {
	loan, err := s.LoanRepo.GetByID(ctx, loanID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, customError.WrapLoanNotFound(loanID.String())
		}
		return nil, customError.WrapDatabaseError(err)
	}
	return loan, nil
}

func (s *PawnService) ListLoans(ctx context.Context, filter domain.LoanFilter) ([]*domain.Loan, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, customError.WrapValidation("unknown loan status " + string(filter.Status))
	}
	loans, err := s.LoanRepo.List(ctx, filter)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	if loans == nil {
		loans = []*domain.Loan{}
	}
	return loans, nil
}

func (s *PawnService) MakePayment(ctx context.Context, loanID uuid.UUID, request domain.PaymentRequest, operator domain.Operator) (*lifecycle.Result, error) {
	return s.mutate(ctx, domain.OperationPayment, loanID, operator, func(loan domain.Loan, stamp lifecycle.Stamp) (lifecycle.Result, error) {
		return s.machine.Pay(loan, request.Amount, request.Method, stamp)
	})
}

func (s *PawnService) AddMoney(ctx context.Context, loanID uuid.UUID, request domain.AddMoneyRequest, operator domain.Operator) (*lifecycle.Result, error) {
	return s.mutate(ctx, domain.OperationAddMoney, loanID, operator, func(loan domain.Loan, stamp lifecycle.Stamp) (lifecycle.Result, error) {
		return s.machine.AddMoney(loan, request.Amount, stamp)
	})
}

func (s *PawnService) ApplyDiscount(ctx context.Context, loanID uuid.UUID, request domain.DiscountRequest, operator domain.Operator) (*lifecycle.Result, error) {
	return s.mutate(ctx, domain.OperationDiscount, loanID, operator, func(loan domain.Loan, stamp lifecycle.Stamp) (lifecycle.Result, error) {
		return s.machine.Discount(loan, request.Amount, request.Reason, stamp)
	})
}

func (s *PawnService) Extend(ctx context.Context, loanID uuid.UUID, request domain.ExtendRequest, operator domain.Operator) (*lifecycle.Result, error) {
	return s.mutate(ctx, domain.OperationExtend, loanID, operator, func(loan domain.Loan, stamp lifecycle.Stamp) (lifecycle.Result, error) {
		return s.machine.Extend(loan, request.Days, stamp)
	})
}

func (s *PawnService) EditLoan(ctx context.Context, loanID uuid.UUID, request domain.EditLoanRequest, operator domain.Operator) (*lifecycle.Result, error) {
	return s.mutate(ctx, domain.OperationEdit, loanID, operator, func(loan domain.Loan, stamp lifecycle.Stamp) (lifecycle.Result, error) {
		return s.machine.Edit(loan, request, stamp)
	})
}

func (s *PawnService) Redeem(ctx context.Context, loanID uuid.UUID, request domain.RedeemRequest, operator domain.Operator) (*lifecycle.Result, error) {
	return s.mutate(ctx, domain.OperationRedeem, loanID, operator, func(loan domain.Loan, stamp lifecycle.Stamp) (lifecycle.Result, error) {
		return s.machine.Redeem(loan, request.RedemptionFee, request.Method, stamp)
	})
}

func (s *PawnService) Forfeit(ctx context.Context, loanID uuid.UUID, operator domain.Operator) (*lifecycle.Result, error) {
	return s.mutate(ctx, domain.OperationForfeit, loanID, operator, s.machine.Forfeit)
}

func (s *PawnService) Reactivate(ctx context.Context, loanID uuid.UUID, operator domain.Operator) (*lifecycle.Result, error) {
	return s.mutate(ctx, domain.OperationReactivate, loanID, operator, s.machine.Reactivate)
}

// Void hard-deletes the loan and its payments. The audit trail is kept.
func (s *PawnService) Void(ctx context.Context, loanID uuid.UUID, request domain.VoidRequest, operator domain.Operator) (*lifecycle.Result, error) {
	return s.mutate(ctx, domain.OperationVoid, loanID, operator, func(loan domain.Loan, stamp lifecycle.Stamp) (lifecycle.Result, error) {
		return s.machine.Void(loan, request.Confirm, request.Reason, stamp)
	})
}

func (s *PawnService) GetPaymentHistory(ctx context.Context, loanID uuid.UUID) ([]*domain.PaymentRecord, error) {
	if _, err := s.GetLoan(ctx, loanID); err != nil {
		return nil, err
	}
	payments, err := s.PaymentRepo.GetByLoanID(ctx, loanID)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	if payments == nil {
		payments = []*domain.PaymentRecord{}
	}
	return payments, nil
}

// GetAuditTrail also works for voided loans
func (s *PawnService) GetAuditTrail(ctx context.Context, loanID uuid.UUID) ([]*domain.AuditEntry, error) {
	entries, err := s.AuditRepo.GetByLoanID(ctx, loanID)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	if entries == nil {
		entries = []*domain.AuditEntry{}
	}
	return entries, nil
}

// GetForfeitureEligibility evaluates the loan against today's date and its
// current balance. It always reads the database.
func (s *PawnService) GetForfeitureEligibility(ctx context.Context, loanID uuid.UUID) (*domain.EligibilityResponse, error) {
	loan, err := s.loadLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}

	today := s.today()
	return &domain.EligibilityResponse{
		LoanID:      loan.ID,
		Eligible:    loan.IsActive() && ledger.IsEligibleForForfeiture(*loan, today),
		Overdue:     loan.IsActive() && ledger.IsOverdue(*loan, today),
		DaysOverdue: utils.DaysOverdue(loan.DueDate, today),
	}, nil
}

// GetCollections totals money received in [from, to) by payment method
func (s *PawnService) GetCollections(ctx context.Context, from, to time.Time) (*domain.CollectionsResponse, error) {
	if !to.After(from) {
		return nil, customError.WrapValidation("collections window must end after it starts")
	}

	totals, err := s.PaymentRepo.SumByMethod(ctx, from, to)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	if totals == nil {
		totals = []*domain.MethodTotal{}
	}

	response := &domain.CollectionsResponse{
		From:        from,
		To:          to,
		ByMethod:    totals,
		Total:       decimal.Zero,
		Overpayment: decimal.Zero,
	}
	for _, t := range totals {
		response.Total = response.Total.Add(t.Total)
		response.Overpayment = response.Overpayment.Add(t.Overpayment)
	}
	return response, nil
}

// GetDailyCollections totals the shop's calendar day containing day
func (s *PawnService) GetDailyCollections(ctx context.Context, day time.Time) (*domain.CollectionsResponse, error) {
	from := utils.DateOnly(day.In(s.config.GetLocation()))
	return s.GetCollections(ctx, from, from.AddDate(0, 0, 1))
}

type transition func(loan domain.Loan, stamp lifecycle.Stamp) (lifecycle.Result, error)

// mutate runs one transition under the per-loan lock, inside a transaction,
// retrying when another writer bumped the version first.
func (s *PawnService) mutate(ctx context.Context, op domain.Operation, loanID uuid.UUID, operator domain.Operator, apply transition) (*lifecycle.Result, error) {
	release, err := s.locker.Acquire(ctx, loanID)
	if err != nil {
		metrics.RecordOperation(string(op), err)
		return nil, err
	}
	defer release()

	var result lifecycle.Result
	attempts := s.config.Business.MaxRetries + 1
	for attempt := 1; ; attempt++ {
		err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
			loan, err := s.LoanRepo.GetByIDForUpdate(ctx, loanID)
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return customError.WrapLoanNotFound(loanID.String())
				}
				return wrapRepoError(err)
			}

			result, err = apply(*loan, s.stamp(operator))
			if err != nil {
				return err
			}
			return s.persist(ctx, &result)
		})
		if err == nil || !customError.IsRetryable(err) || attempt >= attempts {
			break
		}
		metrics.RetriesTotal.WithLabelValues(string(op)).Inc()
		logger.WarnContext(ctx, "Retrying loan operation after concurrent modification",
			"operation", op, "loan_id", loanID, "attempt", attempt)
	}

	metrics.RecordOperation(string(op), err)
	if err != nil {
		s.cache.Invalidate(ctx, loanID)
		return nil, err
	}

	log := logger.WithLoan(loanID.String(), result.Loan.TransactionNumber)
	log.InfoContext(ctx, "Loan operation applied",
		"operation", op,
		"status", result.Loan.Status,
		"remaining_balance", result.Loan.RemainingBalance.StringFixed(2),
		"operator", operator.Username,
	)
	if result.Overpayment.IsPositive() {
		metrics.RecordOverpayment(result.Overpayment)
		log.WarnContext(ctx, "Overpayment needs reconciliation", "overpayment", result.Overpayment.StringFixed(2))
	}

	if op == domain.OperationVoid {
		s.cache.MarkDeleted(ctx, loanID, result.Loan.Version)
	} else {
		s.cache.Set(ctx, &result.Loan)
	}
	return &result, nil
}

func (s *PawnService) persist(ctx context.Context, result *lifecycle.Result) error {
	if result.Audit.Operation == domain.OperationVoid {
		if err := s.LoanRepo.Delete(ctx, result.Loan.ID); err != nil {
			return wrapRepoError(err)
		}
	} else if err := s.LoanRepo.Update(ctx, &result.Loan); err != nil {
		return wrapRepoError(err)
	}

	if result.Payment != nil {
		if err := s.PaymentRepo.Create(ctx, result.Payment); err != nil {
			return customError.WrapDatabaseError(err)
		}
	}
	if err := s.AuditRepo.Create(ctx, &result.Audit); err != nil {
		return customError.WrapDatabaseError(err)
	}
	return nil
}

// wrapRepoError keeps business errors raised by repositories and wraps the rest
func wrapRepoError(err error) error {
	var be *customError.BusinessError
	if errors.As(err, &be) {
		return err
	}
	if errors.Is(err, sql.ErrNoRows) {
		return customError.WrapLoanNotFound("")
	}
	return customError.WrapDatabaseError(err)
}

type noopLocker struct{}

func (noopLocker) Acquire(context.Context, uuid.UUID) (func(), error) { return func() {}, nil }

type noopCache struct{}

func (noopCache) Get(context.Context, uuid.UUID) (*domain.Loan, bool) { return nil, false }
func (noopCache) Set(context.Context, *domain.Loan)                   {}
func (noopCache) Invalidate(context.Context, uuid.UUID)               {}
func (noopCache) MarkDeleted(context.Context, uuid.UUID, int)         {}
