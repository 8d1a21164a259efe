package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/segyhp/pawn-engine/internal/domain"
	customError "github.com/segyhp/pawn-engine/pkg/errors"

	"github.com/jmoiron/sqlx"
)

const loanColumns = `id, transaction_number, customer_id, loan_amount, interest_rate, interest_amount,
		interest_discount, recurring_fee, redemption_fee, total_payable_amount, remaining_balance,
		loan_issued_date, due_date, loan_term, status, collateral_description, collateral_image,
		customer_note, created_by, updated_by, created_at, updated_at, redeemed_at, forfeited_at, version`

type loanRepository struct {
	db *sqlx.DB
}

func NewLoanRepository(db *sqlx.DB) LoanRepository {
	return &loanRepository{db: db}
}

func (r *loanRepository) Create(ctx context.Context, loan *domain.Loan) error {
	query := `
		INSERT INTO loans (` + loanColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25)
	`

	_, err := executor(ctx, r.db).ExecContext(ctx, query,
		loan.ID,
		loan.TransactionNumber,
		loan.CustomerID,
		loan.LoanAmount,
		loan.InterestRate,
		loan.InterestAmount,
		loan.InterestDiscount,
		loan.RecurringFee,
		loan.RedemptionFee,
		loan.TotalPayableAmount,
		loan.RemainingBalance,
		loan.LoanIssuedDate,
		loan.DueDate,
		loan.LoanTerm,
		loan.Status,
		loan.CollateralDescription,
		loan.CollateralImage,
		loan.CustomerNote,
		loan.CreatedBy,
		loan.UpdatedBy,
		loan.CreatedAt,
		loan.UpdatedAt,
		loan.RedeemedAt,
		loan.ForfeitedAt,
		loan.Version,
	)
	if isUniqueViolation(err) {
		return customError.WrapLoanAlreadyExists(loan.TransactionNumber)
	}
	return err
}

func (r *loanRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Loan, error) {
	query := `SELECT ` + loanColumns + ` FROM loans WHERE id = $1`

	var loan domain.Loan
	if err := sqlx.GetContext(ctx, executor(ctx, r.db), &loan, query, id); err != nil {
		return nil, err
	}
	return &loan, nil
}

func (r *loanRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Loan, error) {
	if !inTx(ctx) {
		return r.GetByID(ctx, id)
	}
	query := `SELECT ` + loanColumns + ` FROM loans WHERE id = $1 FOR UPDATE`

	var loan domain.Loan
	if err := sqlx.GetContext(ctx, executor(ctx, r.db), &loan, query, id); err != nil {
		return nil, err
	}
	return &loan, nil
}

func (r *loanRepository) GetByTransactionNumber(ctx context.Context, number string) (*domain.Loan, error) {
	query := `SELECT ` + loanColumns + ` FROM loans WHERE transaction_number = $1`

	var loan domain.Loan
	if err := sqlx.GetContext(ctx, executor(ctx, r.db), &loan, query, number); err != nil {
		return nil, err
	}
	return &loan, nil
}

func (r *loanRepository) Update(ctx context.Context, loan *domain.Loan) error {
	query := `
		UPDATE loans
		SET loan_amount = $3, interest_rate = $4, interest_amount = $5, interest_discount = $6,
			recurring_fee = $7, redemption_fee = $8, total_payable_amount = $9, remaining_balance = $10,
			due_date = $11, loan_term = $12, status = $13, collateral_description = $14,
			collateral_image = $15, customer_note = $16, updated_by = $17, updated_at = $18,
			redeemed_at = $19, forfeited_at = $20, version = version + 1
		WHERE id = $1 AND version = $2
	`

	result, err := executor(ctx, r.db).ExecContext(ctx, query,
		loan.ID,
		loan.Version,
		loan.LoanAmount,
		loan.InterestRate,
		loan.InterestAmount,
		loan.InterestDiscount,
		loan.RecurringFee,
		loan.RedemptionFee,
		loan.TotalPayableAmount,
		loan.RemainingBalance,
		loan.DueDate,
		loan.LoanTerm,
		loan.Status,
		loan.CollateralDescription,
		loan.CollateralImage,
		loan.CustomerNote,
		loan.UpdatedBy,
		loan.UpdatedAt,
		loan.RedeemedAt,
		loan.ForfeitedAt,
	)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return customError.WrapConcurrentModification(loan.ID.String())
	}

	loan.Version++
	return nil
}

func (r *loanRepository) Delete(ctx context.Context, id uuid.UUID) error {
	exec := executor(ctx, r.db)

	if _, err := exec.ExecContext(ctx, `DELETE FROM payment_records WHERE loan_id = $1`, id); err != nil {
		return fmt.Errorf("delete payment records: %w", err)
	}

	result, err := exec.ExecContext(ctx, `DELETE FROM loans WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete loan: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return customError.WrapLoanNotFound(id.String())
	}
	return nil
}

func (r *loanRepository) List(ctx context.Context, filter domain.LoanFilter) ([]*domain.Loan, error) {
	var (
		conditions []string
		args       []any
	)
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.CustomerID != uuid.Nil {
		args = append(args, filter.CustomerID)
		conditions = append(conditions, fmt.Sprintf("customer_id = $%d", len(args)))
	}
	if !filter.DueBefore.IsZero() {
		args = append(args, filter.DueBefore)
		conditions = append(conditions, fmt.Sprintf("due_date < $%d", len(args)))
	}

	query := `SELECT ` + loanColumns + ` FROM loans`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC"

	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	args = append(args, limit)
	query += fmt.Sprintf(" LIMIT $%d", len(args))
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	var loans []*domain.Loan
	if err := sqlx.SelectContext(ctx, executor(ctx, r.db), &loans, query, args...); err != nil {
		return nil, err
	}
	return loans, nil
}

func (r *loanRepository) ListOverdue(ctx context.Context, asOf time.Time) ([]*domain.Loan, error) {
	query := `
		SELECT ` + loanColumns + `
		FROM loans
		WHERE status = 'active' AND due_date < $1
		ORDER BY due_date
	`

	var loans []*domain.Loan
	if err := sqlx.SelectContext(ctx, executor(ctx, r.db), &loans, query, asOf); err != nil {
		return nil, err
	}
	return loans, nil
}
