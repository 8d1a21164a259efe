package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/segyhp/pawn-engine/internal/domain"
)

// LoanRepository defines the interface for loan data operations
type LoanRepository interface {
	// Create creates a new loan
	Create(ctx context.Context, loan *domain.Loan) error

	// GetByID retrieves a loan by its ID
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Loan, error)

	// GetByIDForUpdate retrieves a loan and row-locks it inside the current transaction
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Loan, error)

	// GetByTransactionNumber retrieves a loan by its human-facing number
	GetByTransactionNumber(ctx context.Context, number string) (*domain.Loan, error)

	// Update writes the loan if its version is unchanged and bumps the version
	Update(ctx context.Context, loan *domain.Loan) error

	// Delete hard-deletes a loan and its payment records
	Delete(ctx context.Context, id uuid.UUID) error

	// List returns loans matching the filter, newest first
	List(ctx context.Context, filter domain.LoanFilter) ([]*domain.Loan, error)

	// ListOverdue returns active loans whose due date is before asOf
	ListOverdue(ctx context.Context, asOf time.Time) ([]*domain.Loan, error)
}

// PaymentRepository defines the interface for payment data operations
type PaymentRepository interface {
	// Create appends a payment record
	Create(ctx context.Context, payment *domain.PaymentRecord) error

	// GetByLoanID retrieves all payments for a loan, oldest first
	GetByLoanID(ctx context.Context, loanID uuid.UUID) ([]*domain.PaymentRecord, error)

	// SumByMethod totals payments received in [from, to) per method
	SumByMethod(ctx context.Context, from, to time.Time) ([]*domain.MethodTotal, error)
}

// AuditRepository stores the operation trail of every loan
type AuditRepository interface {
	// Create appends an audit entry
	Create(ctx context.Context, entry *domain.AuditEntry) error

	// GetByLoanID retrieves the trail for a loan, oldest first
	GetByLoanID(ctx context.Context, loanID uuid.UUID) ([]*domain.AuditEntry, error)
}

// CustomerRepository reads customer profiles owned by the intake system
type CustomerRepository interface {
	// GetByID retrieves a customer profile
	GetByID(ctx context.Context, id uuid.UUID) (*domain.CustomerProfile, error)
}

// Transactor runs fn inside one database transaction. Repositories called
// with the ctx passed to fn take part in that transaction.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
