package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/segyhp/pawn-engine/internal/domain"

	"github.com/jmoiron/sqlx"
)

type paymentRepository struct {
	db *sqlx.DB
}

func NewPaymentRepository(db *sqlx.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

func (r *paymentRepository) Create(ctx context.Context, payment *domain.PaymentRecord) error {
	query := `
		INSERT INTO payment_records (id, loan_id, amount, overpayment, method, kind, timestamp, processed_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := executor(ctx, r.db).ExecContext(ctx, query,
		payment.ID,
		payment.LoanID,
		payment.Amount,
		payment.Overpayment,
		payment.Method,
		payment.Kind,
		payment.Timestamp,
		payment.ProcessedBy,
	)
	return err
}

func (r *paymentRepository) GetByLoanID(ctx context.Context, loanID uuid.UUID) ([]*domain.PaymentRecord, error) {
	query := `
		SELECT id, loan_id, amount, overpayment, method, kind, timestamp, processed_by
		FROM payment_records
		WHERE loan_id = $1
		ORDER BY timestamp
	`

	var payments []*domain.PaymentRecord
	if err := sqlx.SelectContext(ctx, executor(ctx, r.db), &payments, query, loanID); err != nil {
		return nil, err
	}
	return payments, nil
}

func (r *paymentRepository) SumByMethod(ctx context.Context, from, to time.Time) ([]*domain.MethodTotal, error) {
	query := `
		SELECT method, COALESCE(SUM(amount), 0) AS total, COALESCE(SUM(overpayment), 0) AS overpayment, COUNT(*) AS count
		FROM payment_records
		WHERE timestamp >= $1 AND timestamp < $2
		GROUP BY method
		ORDER BY method
	`

	var totals []*domain.MethodTotal
	if err := sqlx.SelectContext(ctx, executor(ctx, r.db), &totals, query, from, to); err != nil {
		return nil, err
	}
	return totals, nil
}
