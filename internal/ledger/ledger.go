// Package ledger holds the balance and interest rules of a pawn loan. Every
// function is pure: it takes a loan snapshot by value and returns a new one,
// leaving the input untouched when validation fails.
package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/segyhp/pawn-engine/internal/domain"
	customError "github.com/segyhp/pawn-engine/pkg/errors"
	"github.com/segyhp/pawn-engine/pkg/utils"

	"github.com/shopspring/decimal"
)

// DefaultExtensionDays is used when an extension does not name a length
const DefaultExtensionDays = 30

// RatePlaces is the precision an interest rate is stored with
const RatePlaces int32 = 4

// rateCeiling is the first rate the interest_rate column cannot hold
var rateCeiling = decimal.NewFromInt(1000)

// PaymentOutcome is the result of applying a payment to a loan
type PaymentOutcome struct {
	Loan        domain.Loan
	Record      domain.PaymentRecord
	FullyPaid   bool
	Overpayment decimal.Decimal
}

// Adjustment is the result of lowering what a loan costs. When the customer
// has already paid more than the new total, the difference is reported as
// Overpayment and the balance stops at zero.
type Adjustment struct {
	Loan        domain.Loan
	Overpayment decimal.Decimal
}

// ValidateInterestRate rejects negative rates, rates of 1000% or more and
// rates finer than RatePlaces
func ValidateInterestRate(rate decimal.Decimal) error {
	if rate.IsNegative() || !rate.LessThan(rateCeiling) || !rate.Equal(rate.Round(RatePlaces)) {
		return customError.WrapInvalidAmount("interest rate", rate.String())
	}
	return nil
}

// ComputeInterest returns loanAmount * interestRate / 100 rounded to cents
func ComputeInterest(loanAmount, interestRate decimal.Decimal) (decimal.Decimal, error) {
	if loanAmount.IsNegative() {
		return decimal.Zero, customError.WrapInvalidAmount("loan amount", loanAmount.String())
	}
	if interestRate.IsNegative() {
		return decimal.Zero, customError.WrapInvalidAmount("interest rate", interestRate.String())
	}
	return utils.PercentOf(loanAmount, interestRate), nil
}

// ComputeTotalPayable sums principal, interest and the recurring fee. The
// redemption fee is added only by ApplyRedemption.
func ComputeTotalPayable(loanAmount, interestAmount, recurringFee decimal.Decimal) decimal.Decimal {
	return utils.RoundCurrency(loanAmount.Add(interestAmount).Add(recurringFee))
}

// Recompute re-derives interest and total from the loan's inputs, dropping any
// discount. The remaining balance is left for the caller to decide.
func Recompute(loan domain.Loan) (domain.Loan, error) {
	if loan.RecurringFee.IsNegative() {
		return loan, customError.WrapInvalidAmount("recurring fee", loan.RecurringFee.String())
	}
	interest, err := ComputeInterest(loan.LoanAmount, loan.InterestRate)
	if err != nil {
		return loan, err
	}

	loan.InterestAmount = interest
	loan.InterestDiscount = decimal.Zero
	loan.TotalPayableAmount = ComputeTotalPayable(loan.LoanAmount, interest, loan.RecurringFee)
	return loan, nil
}

// ApplyPayment decrements the remaining balance. It never changes status:
// FullyPaid tells the caller that redemption may now be finalized. Money
// above the balance is reported as Overpayment and the balance stops at zero.
func ApplyPayment(loan domain.Loan, amount decimal.Decimal, method domain.PaymentMethod) (PaymentOutcome, error) {
	if err := validateAmount("payment amount", amount); err != nil {
		return PaymentOutcome{Loan: loan}, err
	}
	if !method.Valid() {
		return PaymentOutcome{Loan: loan}, customError.WrapValidation("unknown payment method " + string(method))
	}

	overpayment := decimal.Zero
	remaining := loan.RemainingBalance.Sub(amount)
	if remaining.IsNegative() {
		overpayment = remaining.Neg()
		remaining = decimal.Zero
	}
	loan.RemainingBalance = utils.RoundCurrency(remaining)

	record := domain.PaymentRecord{
		ID:          uuid.New(),
		LoanID:      loan.ID,
		Amount:      amount,
		Overpayment: overpayment,
		Method:      method,
		Kind:        domain.PaymentKindPayment,
	}

	return PaymentOutcome{
		Loan:        loan,
		Record:      record,
		FullyPaid:   IsFullyPaid(loan),
		Overpayment: overpayment,
	}, nil
}

// ApplyDiscount reduces interest by discount. The discount was part of the
// original total, so total and remaining balance drop by the same amount.
func ApplyDiscount(loan domain.Loan, discount decimal.Decimal) (Adjustment, error) {
	if err := validateAmount("discount amount", discount); err != nil {
		return Adjustment{Loan: loan}, err
	}
	if discount.GreaterThan(loan.InterestAmount) {
		return Adjustment{Loan: loan}, customError.WrapDiscountExceedsInterest(discount.StringFixed(2), loan.InterestAmount.StringFixed(2))
	}

	loan.InterestAmount = loan.InterestAmount.Sub(discount)
	loan.InterestDiscount = loan.InterestDiscount.Add(discount)
	loan.TotalPayableAmount = ComputeTotalPayable(loan.LoanAmount, loan.InterestAmount, loan.RecurringFee)
	return settle(loan, loan.RemainingBalance.Sub(discount)), nil
}

// settle stores balance, moving any negative part into Overpayment
func settle(loan domain.Loan, balance decimal.Decimal) Adjustment {
	if balance.IsNegative() {
		loan.RemainingBalance = decimal.Zero
		return Adjustment{Loan: loan, Overpayment: balance.Neg()}
	}
	loan.RemainingBalance = balance
	return Adjustment{Loan: loan, Overpayment: decimal.Zero}
}

// ApplyAddMoney lends more against the same collateral. The loan's economics
// restart: interest is re-derived without any discount and the whole new
// total becomes payable.
func ApplyAddMoney(loan domain.Loan, amount decimal.Decimal) (domain.Loan, error) {
	if err := validateAmount("add money amount", amount); err != nil {
		return loan, err
	}

	loan.LoanAmount = loan.LoanAmount.Add(amount)
	updated, err := Recompute(loan)
	if err != nil {
		return loan, err
	}
	updated.RemainingBalance = updated.TotalPayableAmount
	return updated, nil
}

// Extend pushes the due date forward. days == 0 means DefaultExtensionDays.
func Extend(loan domain.Loan, days int) (domain.Loan, error) {
	if !loan.IsActive() {
		return loan, customError.WrapInvalidTransition(string(domain.OperationExtend), string(loan.Status))
	}
	if days < 0 {
		return loan, customError.WrapValidation("extension days must be positive")
	}
	if days == 0 {
		days = DefaultExtensionDays
	}

	loan.DueDate = utils.CalculateDueDate(loan.DueDate, days)
	return loan, nil
}

// Reprice applies new rate and fee inputs to an active loan. Interest is
// re-derived and whatever the customer already paid still counts.
func Reprice(loan domain.Loan, interestRate, recurringFee decimal.Decimal) (Adjustment, error) {
	if err := ValidateInterestRate(interestRate); err != nil {
		return Adjustment{Loan: loan}, err
	}
	if err := validateNonNegative("recurring fee", recurringFee); err != nil {
		return Adjustment{Loan: loan}, err
	}

	paid := AmountPaid(loan)
	loan.InterestRate = interestRate
	loan.RecurringFee = recurringFee
	updated, err := Recompute(loan)
	if err != nil {
		return Adjustment{Loan: loan}, err
	}
	return settle(updated, updated.TotalPayableAmount.Sub(paid)), nil
}

// ApplyRedemption charges the optional redemption fee and settles the loan.
// It returns the amount that must be collected from the customer.
func ApplyRedemption(loan domain.Loan, redemptionFee decimal.Decimal) (domain.Loan, decimal.Decimal, error) {
	if err := validateNonNegative("redemption fee", redemptionFee); err != nil {
		return loan, decimal.Zero, err
	}

	collected := loan.RemainingBalance.Add(redemptionFee)
	loan.RedemptionFee = redemptionFee
	loan.TotalPayableAmount = loan.TotalPayableAmount.Add(redemptionFee)
	loan.RemainingBalance = decimal.Zero
	return loan, collected, nil
}

// IsEligibleForForfeiture is true once the due date has passed and the
// customer has not even kept up with interest. It must be evaluated against
// the current balance on every check.
func IsEligibleForForfeiture(loan domain.Loan, today time.Time) bool {
	if !utils.IsDateOverdue(loan.DueDate, today) {
		return false
	}
	return loan.RemainingBalance.IsZero() || loan.RemainingBalance.LessThan(loan.InterestAmount)
}

// IsFullyPaid reports whether nothing is left to pay
func IsFullyPaid(loan domain.Loan) bool {
	return loan.RemainingBalance.LessThanOrEqual(decimal.Zero)
}

// IsOverdue reports whether the due date is a day before today
func IsOverdue(loan domain.Loan, today time.Time) bool {
	return utils.IsDateOverdue(loan.DueDate, today)
}

// AmountPaid is how much of the current total has been paid down
func AmountPaid(loan domain.Loan) decimal.Decimal {
	return decimal.Max(decimal.Zero, loan.TotalPayableAmount.Sub(loan.RemainingBalance))
}

// IsInterestPaid reports whether payments so far cover the interest
func IsInterestPaid(loan domain.Loan) bool {
	return AmountPaid(loan).GreaterThanOrEqual(loan.InterestAmount)
}

func validateAmount(field string, amount decimal.Decimal) error {
	if !amount.IsPositive() || !isCents(amount) {
		return customError.WrapInvalidAmount(field, amount.String())
	}
	return nil
}

func validateNonNegative(field string, amount decimal.Decimal) error {
	if amount.IsNegative() || !isCents(amount) {
		return customError.WrapInvalidAmount(field, amount.String())
	}
	return nil
}

// isCents rejects sub-cent precision as malformed input
func isCents(amount decimal.Decimal) bool {
	return amount.Equal(utils.RoundCurrency(amount))
}
