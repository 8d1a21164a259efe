package ledger

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/segyhp/pawn-engine/internal/domain"
	customError "github.com/segyhp/pawn-engine/pkg/errors"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// newLoan builds the reference loan: 1000 at 10% => 100 interest, 1100 total.
func newLoan(t *testing.T) domain.Loan {
	t.Helper()
	loan := domain.Loan{
		ID:             uuid.New(),
		LoanAmount:     dec("1000"),
		InterestRate:   dec("10"),
		RecurringFee:   decimal.Zero,
		LoanIssuedDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		DueDate:        time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
		LoanTerm:       30,
		Status:         domain.LoanStatusActive,
	}
	loan, err := Recompute(loan)
	require.NoError(t, err)
	loan.RemainingBalance = loan.TotalPayableAmount
	return loan
}

func TestComputeInterest(t *testing.T) {
	tests := []struct {
		name      string
		amount    decimal.Decimal
		rate      decimal.Decimal
		expected  decimal.Decimal
		expectErr bool
	}{
		{name: "ten percent", amount: dec("1000"), rate: dec("10"), expected: dec("100.00")},
		{name: "fractional rate rounds half up", amount: dec("250.50"), rate: dec("12.5"), expected: dec("31.31")},
		{name: "zero rate", amount: dec("1000"), rate: decimal.Zero, expected: decimal.Zero},
		{name: "zero principal", amount: decimal.Zero, rate: dec("10"), expected: decimal.Zero},
		{name: "negative principal", amount: dec("-1"), rate: dec("10"), expectErr: true},
		{name: "negative rate", amount: dec("100"), rate: dec("-0.5"), expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ComputeInterest(tt.amount, tt.rate)
			if tt.expectErr {
				assert.True(t, errors.Is(err, customError.ErrInvalidAmount))
				return
			}
			require.NoError(t, err)
			assert.True(t, result.Equal(tt.expected), "expected %s, got %s", tt.expected, result)
		})
	}
}

func TestComputeInterest_IsPure(t *testing.T) {
	first, err := ComputeInterest(dec("1234.56"), dec("7.25"))
	require.NoError(t, err)
	second, err := ComputeInterest(dec("1234.56"), dec("7.25"))
	require.NoError(t, err)
	assert.True(t, first.Equal(second))
}

func TestComputeTotalPayable(t *testing.T) {
	total := ComputeTotalPayable(dec("1000"), dec("100"), dec("15.50"))
	assert.True(t, total.Equal(dec("1115.50")))
}

func TestCreationScenario(t *testing.T) {
	loan := newLoan(t)

	assert.True(t, loan.InterestAmount.Equal(dec("100.00")))
	assert.True(t, loan.TotalPayableAmount.Equal(dec("1100.00")))
	assert.True(t, loan.RemainingBalance.Equal(dec("1100.00")))
}

func TestApplyPayment(t *testing.T) {
	tests := []struct {
		name              string
		amount            decimal.Decimal
		method            domain.PaymentMethod
		expectedRemaining decimal.Decimal
		expectedOver      decimal.Decimal
		fullyPaid         bool
		expectErr         error
	}{
		{
			name:              "partial payment",
			amount:            dec("300"),
			method:            domain.PaymentMethodCash,
			expectedRemaining: dec("800.00"),
			expectedOver:      decimal.Zero,
		},
		{
			name:              "exact payoff marks fully paid",
			amount:            dec("1100.00"),
			method:            domain.PaymentMethodVisa,
			expectedRemaining: decimal.Zero,
			expectedOver:      decimal.Zero,
			fullyPaid:         true,
		},
		{
			name:              "overpayment accepted and reported",
			amount:            dec("1200.00"),
			method:            domain.PaymentMethodDebit,
			expectedRemaining: decimal.Zero,
			expectedOver:      dec("100.00"),
			fullyPaid:         true,
		},
		{
			name:      "zero amount rejected",
			amount:    decimal.Zero,
			method:    domain.PaymentMethodCash,
			expectErr: customError.ErrInvalidAmount,
		},
		{
			name:      "negative amount rejected",
			amount:    dec("-5"),
			method:    domain.PaymentMethodCash,
			expectErr: customError.ErrInvalidAmount,
		},
		{
			name:      "sub-cent amount rejected",
			amount:    dec("10.005"),
			method:    domain.PaymentMethodCash,
			expectErr: customError.ErrInvalidAmount,
		},
		{
			name:      "unknown method rejected",
			amount:    dec("10"),
			method:    domain.PaymentMethod("bitcoin"),
			expectErr: customError.ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loan := newLoan(t)

			outcome, err := ApplyPayment(loan, tt.amount, tt.method)

			if tt.expectErr != nil {
				assert.True(t, errors.Is(err, tt.expectErr))
				assert.Equal(t, loan, outcome.Loan)
				return
			}
			require.NoError(t, err)
			assert.True(t, outcome.Loan.RemainingBalance.Equal(tt.expectedRemaining), "remaining %s", outcome.Loan.RemainingBalance)
			assert.True(t, outcome.Overpayment.Equal(tt.expectedOver), "overpayment %s", outcome.Overpayment)
			assert.Equal(t, tt.fullyPaid, outcome.FullyPaid)
			assert.Equal(t, domain.LoanStatusActive, outcome.Loan.Status)
			assert.True(t, outcome.Record.Amount.Equal(tt.amount))
			assert.Equal(t, loan.ID, outcome.Record.LoanID)
			assert.Equal(t, tt.method, outcome.Record.Method)
			// input snapshot is untouched
			assert.True(t, loan.RemainingBalance.Equal(dec("1100")))
		})
	}
}

func TestApplyDiscount(t *testing.T) {
	t.Run("discount before any payment", func(t *testing.T) {
		adjusted, err := ApplyDiscount(newLoan(t), dec("50.00"))
		require.NoError(t, err)

		loan := adjusted.Loan
		assert.True(t, loan.InterestAmount.Equal(dec("50.00")))
		assert.True(t, loan.TotalPayableAmount.Equal(dec("1050.00")))
		assert.True(t, loan.RemainingBalance.Equal(dec("1050.00")))
		assert.True(t, loan.InterestDiscount.Equal(dec("50.00")))
		assert.True(t, adjusted.Overpayment.IsZero())
	})

	t.Run("discount equal to interest", func(t *testing.T) {
		adjusted, err := ApplyDiscount(newLoan(t), dec("100"))
		require.NoError(t, err)
		assert.True(t, adjusted.Loan.InterestAmount.IsZero())
		assert.True(t, adjusted.Loan.TotalPayableAmount.Equal(dec("1000")))
	})

	t.Run("discount exceeding interest", func(t *testing.T) {
		original := newLoan(t)
		adjusted, err := ApplyDiscount(original, dec("100.01"))
		assert.True(t, errors.Is(err, customError.ErrDiscountExceedsInterest))
		assert.Equal(t, original, adjusted.Loan)
	})

	t.Run("non-positive discount", func(t *testing.T) {
		_, err := ApplyDiscount(newLoan(t), decimal.Zero)
		assert.True(t, errors.Is(err, customError.ErrInvalidAmount))
	})

	t.Run("discount after partial payment keeps the balance", func(t *testing.T) {
		outcome, err := ApplyPayment(newLoan(t), dec("400"), domain.PaymentMethodCash)
		require.NoError(t, err)

		adjusted, err := ApplyDiscount(outcome.Loan, dec("50"))
		require.NoError(t, err)
		assert.True(t, adjusted.Loan.RemainingBalance.Equal(dec("650")))
		assert.True(t, AmountPaid(adjusted.Loan).Equal(dec("400")))
		assert.True(t, adjusted.Overpayment.IsZero())
	})

	t.Run("discount beyond what is left is reported as overpayment", func(t *testing.T) {
		outcome, err := ApplyPayment(newLoan(t), dec("1080"), domain.PaymentMethodCash)
		require.NoError(t, err)

		adjusted, err := ApplyDiscount(outcome.Loan, dec("50"))
		require.NoError(t, err)

		// paid 1080 against a new total of 1050
		assert.True(t, adjusted.Loan.TotalPayableAmount.Equal(dec("1050")))
		assert.True(t, adjusted.Loan.RemainingBalance.IsZero())
		assert.True(t, adjusted.Overpayment.Equal(dec("30")))
		assert.True(t, AmountPaid(adjusted.Loan).Add(adjusted.Overpayment).Equal(dec("1080")))
	})
}

func TestApplyAddMoney(t *testing.T) {
	discounted, err := ApplyDiscount(newLoan(t), dec("40"))
	require.NoError(t, err)
	paid, err := ApplyPayment(discounted.Loan, dec("200"), domain.PaymentMethodCash)
	require.NoError(t, err)

	loan, err := ApplyAddMoney(paid.Loan, dec("500"))
	require.NoError(t, err)

	assert.True(t, loan.LoanAmount.Equal(dec("1500")))
	assert.True(t, loan.InterestAmount.Equal(dec("150.00")))
	assert.True(t, loan.InterestDiscount.IsZero())
	assert.True(t, loan.TotalPayableAmount.Equal(dec("1650.00")))
	assert.True(t, loan.RemainingBalance.Equal(dec("1650.00")))

	_, err = ApplyAddMoney(paid.Loan, dec("-1"))
	assert.True(t, errors.Is(err, customError.ErrInvalidAmount))
}

func TestExtend(t *testing.T) {
	t.Run("default thirty days", func(t *testing.T) {
		original := newLoan(t)
		loan, err := Extend(original, 0)
		require.NoError(t, err)
		assert.Equal(t, original.DueDate.AddDate(0, 0, 30), loan.DueDate)
		assert.True(t, loan.RemainingBalance.Equal(original.RemainingBalance))
	})

	t.Run("explicit days", func(t *testing.T) {
		original := newLoan(t)
		loan, err := Extend(original, 14)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2024, 2, 14, 0, 0, 0, 0, time.UTC), loan.DueDate)
	})

	t.Run("not active", func(t *testing.T) {
		loan := newLoan(t)
		loan.Status = domain.LoanStatusForfeited
		_, err := Extend(loan, 10)
		assert.True(t, errors.Is(err, customError.ErrInvalidTransition))
	})
}

func TestIsEligibleForForfeiture(t *testing.T) {
	dueDate := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		today     time.Time
		remaining decimal.Decimal
		expected  bool
	}{
		{"due yesterday and balance below interest", dueDate.AddDate(0, 0, 1), dec("20.00"), true},
		{"due yesterday and balance zero", dueDate.AddDate(0, 0, 1), decimal.Zero, true},
		{"due yesterday and balance above interest", dueDate.AddDate(0, 0, 1), dec("500"), false},
		{"due yesterday and balance equal interest", dueDate.AddDate(0, 0, 1), dec("100"), false},
		{"due today", dueDate.Add(20 * time.Hour), dec("20.00"), false},
		{"due in the future with zero balance", dueDate.AddDate(0, 0, -10), decimal.Zero, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loan := newLoan(t)
			loan.RemainingBalance = tt.remaining
			assert.Equal(t, tt.expected, IsEligibleForForfeiture(loan, tt.today))
		})
	}
}

func TestReprice_KeepsAmountPaid(t *testing.T) {
	paid, err := ApplyPayment(newLoan(t), dec("300"), domain.PaymentMethodCash)
	require.NoError(t, err)

	adjusted, err := Reprice(paid.Loan, dec("20"), dec("25"))
	require.NoError(t, err)

	// 1000 + 200 + 25 = 1225, 300 already paid
	loan := adjusted.Loan
	assert.True(t, loan.TotalPayableAmount.Equal(dec("1225.00")))
	assert.True(t, loan.RemainingBalance.Equal(dec("925.00")))
	assert.True(t, AmountPaid(loan).Equal(dec("300")))
	assert.True(t, adjusted.Overpayment.IsZero())
}

func TestReprice_LowerRateBelowAmountPaid(t *testing.T) {
	paid, err := ApplyPayment(newLoan(t), dec("1090"), domain.PaymentMethodCash)
	require.NoError(t, err)

	adjusted, err := Reprice(paid.Loan, dec("5"), decimal.Zero)
	require.NoError(t, err)

	assert.True(t, adjusted.Loan.TotalPayableAmount.Equal(dec("1050")))
	assert.True(t, adjusted.Loan.RemainingBalance.IsZero())
	assert.True(t, adjusted.Overpayment.Equal(dec("40")))
}

func TestReprice_RejectsBadRate(t *testing.T) {
	loan := newLoan(t)

	for _, rate := range []string{"-1", "12.34567"} {
		adjusted, err := Reprice(loan, dec(rate), decimal.Zero)
		assert.True(t, errors.Is(err, customError.ErrInvalidAmount), rate)
		assert.Equal(t, loan, adjusted.Loan)
	}
}

func TestValidateInterestRate(t *testing.T) {
	assert.NoError(t, ValidateInterestRate(dec("0")))
	assert.NoError(t, ValidateInterestRate(dec("12.3456")))
	assert.NoError(t, ValidateInterestRate(dec("999.9999")))
	assert.True(t, errors.Is(ValidateInterestRate(dec("1000")), customError.ErrInvalidAmount))
	assert.True(t, errors.Is(ValidateInterestRate(dec("12.34561")), customError.ErrInvalidAmount))
	assert.True(t, errors.Is(ValidateInterestRate(dec("-0.5")), customError.ErrInvalidAmount))
}

func TestApplyRedemption(t *testing.T) {
	paid, err := ApplyPayment(newLoan(t), dec("1000"), domain.PaymentMethodCash)
	require.NoError(t, err)

	loan, collected, err := ApplyRedemption(paid.Loan, dec("25"))
	require.NoError(t, err)

	assert.True(t, collected.Equal(dec("125")))
	assert.True(t, loan.RemainingBalance.IsZero())
	assert.True(t, loan.RedemptionFee.Equal(dec("25")))
	assert.True(t, loan.TotalPayableAmount.Equal(dec("1125")))

	_, _, err = ApplyRedemption(paid.Loan, dec("-1"))
	assert.True(t, errors.Is(err, customError.ErrInvalidAmount))
}

func TestInterestPaid(t *testing.T) {
	loan := newLoan(t)
	assert.False(t, IsInterestPaid(loan))

	outcome, err := ApplyPayment(loan, dec("100"), domain.PaymentMethodCash)
	require.NoError(t, err)
	assert.True(t, IsInterestPaid(outcome.Loan))
}

func TestBalanceInvariantsAcrossOperations(t *testing.T) {
	loan := newLoan(t)
	loan.RecurringFee = dec("12.50")
	loan, err := Recompute(loan)
	require.NoError(t, err)
	loan.RemainingBalance = loan.TotalPayableAmount

	steps := []func(domain.Loan) (domain.Loan, error){
		func(l domain.Loan) (domain.Loan, error) {
			a, err := ApplyDiscount(l, dec("33.33"))
			return a.Loan, err
		},
		func(l domain.Loan) (domain.Loan, error) {
			o, err := ApplyPayment(l, dec("499.99"), domain.PaymentMethodCash)
			return o.Loan, err
		},
		func(l domain.Loan) (domain.Loan, error) { return ApplyAddMoney(l, dec("250.25")) },
		func(l domain.Loan) (domain.Loan, error) {
			a, err := ApplyDiscount(l, dec("0.01"))
			return a.Loan, err
		},
		func(l domain.Loan) (domain.Loan, error) { return Extend(l, 7) },
		func(l domain.Loan) (domain.Loan, error) {
			o, err := ApplyPayment(l, dec("5000"), domain.PaymentMethodAmex)
			return o.Loan, err
		},
	}

	for i, step := range steps {
		loan, err = step(loan)
		require.NoError(t, err, "step %d", i)

		assert.False(t, loan.RemainingBalance.IsNegative(), "step %d", i)
		expected := loan.LoanAmount.Add(loan.InterestAmount).Add(loan.RecurringFee)
		assert.True(t, loan.TotalPayableAmount.Equal(expected), "step %d: total %s != %s", i, loan.TotalPayableAmount, expected)
	}
	assert.True(t, IsFullyPaid(loan))
}
