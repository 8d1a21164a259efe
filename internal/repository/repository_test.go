package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/segyhp/pawn-engine/internal/domain"
	customError "github.com/segyhp/pawn-engine/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var loanColumnNames = []string{
	"id", "transaction_number", "customer_id", "loan_amount", "interest_rate", "interest_amount",
	"interest_discount", "recurring_fee", "redemption_fee", "total_payable_amount", "remaining_balance",
	"loan_issued_date", "due_date", "loan_term", "status", "collateral_description", "collateral_image",
	"customer_note", "created_by", "updated_by", "created_at", "updated_at", "redeemed_at", "forfeited_at", "version",
}

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

func anyArgs(n int) []driver.Value {
	args := make([]driver.Value, n)
	for i := range args {
		args[i] = sqlmock.AnyArg()
	}
	return args
}

func sampleLoan() *domain.Loan {
	issued := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	return &domain.Loan{
		ID:                    uuid.New(),
		TransactionNumber:     "PWN-20260301-ABCDEF12",
		CustomerID:            uuid.New(),
		LoanAmount:            decimal.NewFromInt(1000),
		InterestRate:          decimal.NewFromInt(10),
		InterestAmount:        decimal.NewFromInt(100),
		InterestDiscount:      decimal.Zero,
		RecurringFee:          decimal.Zero,
		RedemptionFee:         decimal.Zero,
		TotalPayableAmount:    decimal.NewFromInt(1100),
		RemainingBalance:      decimal.NewFromInt(1100),
		LoanIssuedDate:        issued,
		DueDate:               issued.AddDate(0, 0, 30),
		LoanTerm:              30,
		Status:                domain.LoanStatusActive,
		CollateralDescription: "gold ring",
		CreatedBy:             "clerk",
		UpdatedBy:             "clerk",
		CreatedAt:             issued,
		UpdatedAt:             issued,
	}
}

func loanRow(loan *domain.Loan) *sqlmock.Rows {
	return sqlmock.NewRows(loanColumnNames).AddRow(
		loan.ID.String(), loan.TransactionNumber, loan.CustomerID.String(),
		loan.LoanAmount.String(), loan.InterestRate.String(), loan.InterestAmount.String(),
		loan.InterestDiscount.String(), loan.RecurringFee.String(), loan.RedemptionFee.String(),
		loan.TotalPayableAmount.String(), loan.RemainingBalance.String(),
		loan.LoanIssuedDate, loan.DueDate, int64(loan.LoanTerm), string(loan.Status),
		loan.CollateralDescription, loan.CollateralImage, loan.CustomerNote,
		loan.CreatedBy, loan.UpdatedBy, loan.CreatedAt, loan.UpdatedAt, nil, nil, int64(loan.Version),
	)
}

func TestLoanRepository_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewLoanRepository(db)

		mock.ExpectExec("INSERT INTO loans").
			WithArgs(anyArgs(25)...).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.Create(ctx, sampleLoan()))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("DuplicateTransactionNumber", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewLoanRepository(db)

		mock.ExpectExec("INSERT INTO loans").
			WillReturnError(&pq.Error{Code: "23505"})

		err := repo.Create(ctx, sampleLoan())
		assert.True(t, errors.Is(err, customError.ErrLoanAlreadyExists))
	})
}

func TestLoanRepository_GetByID(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewLoanRepository(db)
		loan := sampleLoan()

		mock.ExpectQuery("SELECT (.+) FROM loans WHERE id = \\$1").
			WithArgs(loan.ID).
			WillReturnRows(loanRow(loan))

		got, err := repo.GetByID(ctx, loan.ID)
		require.NoError(t, err)
		assert.Equal(t, loan.ID, got.ID)
		assert.Equal(t, loan.TransactionNumber, got.TransactionNumber)
		assert.True(t, got.RemainingBalance.Equal(decimal.NewFromInt(1100)))
		assert.Equal(t, domain.LoanStatusActive, got.Status)
		assert.Nil(t, got.RedeemedAt)
	})

	t.Run("NotFound", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewLoanRepository(db)

		mock.ExpectQuery("SELECT (.+) FROM loans WHERE id").
			WillReturnRows(sqlmock.NewRows(loanColumnNames))

		_, err := repo.GetByID(ctx, uuid.New())
		assert.True(t, errors.Is(err, sql.ErrNoRows))
	})
}

func TestLoanRepository_GetByIDForUpdate_InsideTransaction(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewLoanRepository(db)
	loan := sampleLoan()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM loans WHERE id = \\$1 FOR UPDATE").
		WithArgs(loan.ID).
		WillReturnRows(loanRow(loan))
	mock.ExpectCommit()

	err := NewTransactor(db).WithinTx(context.Background(), func(ctx context.Context) error {
		_, err := repo.GetByIDForUpdate(ctx, loan.ID)
		return err
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoanRepository_Update(t *testing.T) {
	ctx := context.Background()

	t.Run("BumpsVersion", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewLoanRepository(db)
		loan := sampleLoan()
		loan.Version = 4

		args := anyArgs(20)
		args[0] = loan.ID
		args[1] = 4
		mock.ExpectExec("UPDATE loans").
			WithArgs(args...).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.Update(ctx, loan))
		assert.Equal(t, 5, loan.Version)
	})

	t.Run("StaleVersion", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewLoanRepository(db)
		loan := sampleLoan()

		mock.ExpectExec("UPDATE loans").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.Update(ctx, loan)
		assert.True(t, errors.Is(err, customError.ErrConcurrentModification))
		assert.Equal(t, 0, loan.Version)
	})
}

func TestLoanRepository_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("RemovesPaymentsThenLoan", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewLoanRepository(db)
		id := uuid.New()

		mock.ExpectExec("DELETE FROM payment_records WHERE loan_id").
			WithArgs(id).
			WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectExec("DELETE FROM loans WHERE id").
			WithArgs(id).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.Delete(ctx, id))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("NotFound", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewLoanRepository(db)

		mock.ExpectExec("DELETE FROM payment_records").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec("DELETE FROM loans").WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.Delete(ctx, uuid.New())
		assert.True(t, errors.Is(err, customError.ErrLoanNotFound))
	})
}

func TestLoanRepository_List(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewLoanRepository(db)
	loan := sampleLoan()

	mock.ExpectQuery("SELECT (.+) FROM loans WHERE status = \\$1 AND customer_id = \\$2 ORDER BY created_at DESC LIMIT \\$3 OFFSET \\$4").
		WithArgs("active", loan.CustomerID, 10, 20).
		WillReturnRows(loanRow(loan))

	loans, err := repo.List(context.Background(), domain.LoanFilter{
		Status:     domain.LoanStatusActive,
		CustomerID: loan.CustomerID,
		Limit:      10,
		Offset:     20,
	})
	require.NoError(t, err)
	require.Len(t, loans, 1)
	assert.Equal(t, loan.ID, loans[0].ID)
}

func TestLoanRepository_ListOverdue(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewLoanRepository(db)
	asOf := time.Date(2026, 4, 15, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT (.+) FROM loans WHERE status = 'active' AND due_date < \\$1").
		WithArgs(asOf).
		WillReturnRows(loanRow(sampleLoan()))

	loans, err := repo.ListOverdue(context.Background(), asOf)
	require.NoError(t, err)
	assert.Len(t, loans, 1)
}

func TestPaymentRepository_CreateAndList(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPaymentRepository(db)
	ctx := context.Background()
	loanID := uuid.New()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	payment := &domain.PaymentRecord{
		ID:          uuid.New(),
		LoanID:      loanID,
		Amount:      decimal.NewFromInt(200),
		Overpayment: decimal.Zero,
		Method:      domain.PaymentMethodCash,
		Kind:        domain.PaymentKindPayment,
		Timestamp:   now,
		ProcessedBy: "clerk",
	}

	mock.ExpectExec("INSERT INTO payment_records").
		WithArgs(payment.ID, loanID, sqlmock.AnyArg(), sqlmock.AnyArg(), "cash", "payment", now, "clerk").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Create(ctx, payment))

	mock.ExpectQuery("SELECT (.+) FROM payment_records WHERE loan_id = \\$1 ORDER BY timestamp").
		WithArgs(loanID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "loan_id", "amount", "overpayment", "method", "kind", "timestamp", "processed_by"}).
			AddRow(payment.ID.String(), loanID.String(), "200.00", "0.00", "cash", "payment", now, "clerk"))

	payments, err := repo.GetByLoanID(ctx, loanID)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.True(t, payments[0].Amount.Equal(decimal.NewFromInt(200)))
	assert.Equal(t, domain.PaymentMethodCash, payments[0].Method)
}

func TestPaymentRepository_SumByMethod(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPaymentRepository(db)
	from := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 1)

	mock.ExpectQuery("SELECT method, COALESCE\\(SUM\\(amount\\), 0\\) AS total").
		WithArgs(from, to).
		WillReturnRows(sqlmock.NewRows([]string{"method", "total", "overpayment", "count"}).
			AddRow("cash", "350.00", "0.00", int64(2)).
			AddRow("etranfer", "1200.00", "100.00", int64(1)))

	totals, err := repo.SumByMethod(context.Background(), from, to)
	require.NoError(t, err)
	require.Len(t, totals, 2)
	assert.Equal(t, domain.PaymentMethodETransfer, totals[1].Method)
	assert.True(t, totals[1].Overpayment.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, 2, totals[0].Count)
}

func TestAuditRepository_CreateAndList(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAuditRepository(db)
	ctx := context.Background()
	loanID := uuid.New()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	entry := &domain.AuditEntry{
		ID:                uuid.New(),
		LoanID:            loanID,
		TransactionNumber: "PWN-20260301-ABCDEF12",
		Operation:         domain.OperationVoid,
		Note:              "entered twice",
		OperatorID:        "u-1",
		OperatorName:      "clerk",
		Timestamp:         now,
	}

	mock.ExpectExec("INSERT INTO loan_audit").
		WithArgs(anyArgs(9)...).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Create(ctx, entry))

	mock.ExpectQuery("SELECT (.+) FROM loan_audit WHERE loan_id = \\$1").
		WithArgs(loanID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "loan_id", "transaction_number", "operation", "note", "amount", "operator_id", "operator_name", "timestamp"}).
			AddRow(entry.ID.String(), loanID.String(), entry.TransactionNumber, "void", entry.Note, nil, "u-1", "clerk", now))

	entries, err := repo.GetByLoanID(ctx, loanID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.OperationVoid, entries[0].Operation)
	assert.Nil(t, entries[0].Amount)
}

func TestCustomerRepository_GetByID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCustomerRepository(db)
	id := uuid.New()

	mock.ExpectQuery("SELECT (.+) FROM customers WHERE id = \\$1").
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"id", "first_name", "last_name", "phone", "email", "address"}).
			AddRow(id.String(), "Ada", "Lovelace", "555-0100", "ada@example.com", "1 Main St"))

	customer, err := repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "Lovelace", customer.LastName)
}

func TestTransactor_WithinTx(t *testing.T) {
	t.Run("CommitsOnSuccess", func(t *testing.T) {
		db, mock := newMockDB(t)
		payments := NewPaymentRepository(db)

		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO payment_records").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := NewTransactor(db).WithinTx(context.Background(), func(ctx context.Context) error {
			return payments.Create(ctx, &domain.PaymentRecord{ID: uuid.New(), Method: domain.PaymentMethodCash})
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("RollsBackOnError", func(t *testing.T) {
		db, mock := newMockDB(t)
		boom := errors.New("boom")

		mock.ExpectBegin()
		mock.ExpectRollback()

		err := NewTransactor(db).WithinTx(context.Background(), func(ctx context.Context) error {
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("NestedCallsJoinOuterTransaction", func(t *testing.T) {
		db, mock := newMockDB(t)
		tr := NewTransactor(db)

		mock.ExpectBegin()
		mock.ExpectCommit()

		err := tr.WithinTx(context.Background(), func(ctx context.Context) error {
			return tr.WithinTx(ctx, func(ctx context.Context) error { return nil })
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
