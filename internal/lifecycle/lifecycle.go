// Package lifecycle gates ledger operations by loan status and performs the
// status transitions. It produces the payment records and audit entries that
// the orchestrating service persists alongside the loan.
package lifecycle

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/segyhp/pawn-engine/internal/domain"
	"github.com/segyhp/pawn-engine/internal/ledger"
	customError "github.com/segyhp/pawn-engine/pkg/errors"
	"github.com/segyhp/pawn-engine/pkg/utils"

	"github.com/shopspring/decimal"
)

// DefaultLoanTermDays applies when a create request omits the term
const DefaultLoanTermDays = 30

// allowedFrom lists, per operation, the statuses it may start from.
// Create has no source status and is handled separately.
var allowedFrom = map[domain.Operation][]domain.LoanStatus{
	domain.OperationPayment:    {domain.LoanStatusActive},
	domain.OperationAddMoney:   {domain.LoanStatusActive},
	domain.OperationDiscount:   {domain.LoanStatusActive},
	domain.OperationExtend:     {domain.LoanStatusActive},
	domain.OperationEdit:       {domain.LoanStatusActive},
	domain.OperationRedeem:     {domain.LoanStatusActive},
	domain.OperationForfeit:    {domain.LoanStatusActive},
	domain.OperationReactivate: {domain.LoanStatusForfeited},
	domain.OperationVoid:       {domain.LoanStatusActive, domain.LoanStatusRedeemed, domain.LoanStatusForfeited},
}

// CanApply returns an InvalidTransition error when op is not legal from status
func CanApply(status domain.LoanStatus, op domain.Operation) error {
	for _, s := range allowedFrom[op] {
		if s == status {
			return nil
		}
	}
	return customError.WrapInvalidTransition(string(op), string(status))
}

// Stamp attributes a transition to an operator at a point in time
type Stamp struct {
	Operator domain.Operator
	At       time.Time
}

// Result is a successful transition. Payment is set for payment and
// redemption events that moved money.
type Result struct {
	Loan        domain.Loan
	Payment     *domain.PaymentRecord
	Audit       domain.AuditEntry
	FullyPaid   bool
	Overpayment decimal.Decimal
}

// Machine applies transitions. The zero value uses package defaults.
type Machine struct {
	DefaultTermDays      int
	DefaultExtensionDays int
	DefaultInterestRate  decimal.Decimal
}

// New creates a Machine with the given defaults; non-positive values fall
// back to the package constants.
func New(defaultTermDays, defaultExtensionDays int) *Machine {
	return &Machine{
		DefaultTermDays:      defaultTermDays,
		DefaultExtensionDays: defaultExtensionDays,
	}
}

// WithDefaultInterestRate sets the rate used when a create request omits one
func (m *Machine) WithDefaultInterestRate(rate decimal.Decimal) *Machine {
	m.DefaultInterestRate = rate
	return m
}

func (m *Machine) termDays() int {
	if m.DefaultTermDays > 0 {
		return m.DefaultTermDays
	}
	return DefaultLoanTermDays
}

func (m *Machine) extensionDays() int {
	if m.DefaultExtensionDays > 0 {
		return m.DefaultExtensionDays
	}
	return ledger.DefaultExtensionDays
}

// Create issues a new active loan
func (m *Machine) Create(req domain.CreateLoanRequest, stamp Stamp) (Result, error) {
	if req.CustomerID == uuid.Nil {
		return Result{}, customError.WrapValidation("customer_id is required")
	}
	if !req.LoanAmount.IsPositive() || !req.LoanAmount.Equal(utils.RoundCurrency(req.LoanAmount)) {
		return Result{}, customError.WrapInvalidAmount("loan amount", req.LoanAmount.String())
	}
	rate := m.DefaultInterestRate
	if req.InterestRate != nil {
		rate = *req.InterestRate
	}
	if err := ledger.ValidateInterestRate(rate); err != nil {
		return Result{}, err
	}
	if req.RecurringFee.IsNegative() || !req.RecurringFee.Equal(utils.RoundCurrency(req.RecurringFee)) {
		return Result{}, customError.WrapInvalidAmount("recurring fee", req.RecurringFee.String())
	}
	term := req.LoanTerm
	if term == 0 {
		term = m.termDays()
	}
	if term < 0 {
		return Result{}, customError.WrapValidation("loan_term must be greater than 0")
	}
	description := strings.TrimSpace(req.CollateralDescription)
	if description == "" {
		return Result{}, customError.WrapValidation("collateral_description is required")
	}

	issued := stamp.At
	if req.LoanIssuedDate != nil {
		issued = *req.LoanIssuedDate
	}
	issued = utils.DateOnly(issued)

	number := strings.TrimSpace(req.TransactionNumber)
	if number == "" {
		number = utils.NewTransactionNumber(issued)
	}

	loan := domain.Loan{
		ID:                    uuid.New(),
		TransactionNumber:     number,
		CustomerID:            req.CustomerID,
		LoanAmount:            req.LoanAmount,
		InterestRate:          rate,
		RecurringFee:          req.RecurringFee,
		RedemptionFee:         decimal.Zero,
		LoanIssuedDate:        issued,
		DueDate:               utils.CalculateDueDate(issued, term),
		LoanTerm:              term,
		Status:                domain.LoanStatusActive,
		CollateralDescription: description,
		CollateralImage:       req.CollateralImage,
		CustomerNote:          req.CustomerNote,
		CreatedBy:             stamp.Operator.ID,
		UpdatedBy:             stamp.Operator.ID,
		CreatedAt:             stamp.At,
		UpdatedAt:             stamp.At,
		Version:               1,
	}

	loan, err := ledger.Recompute(loan)
	if err != nil {
		return Result{}, err
	}
	loan.RemainingBalance = loan.TotalPayableAmount

	note := fmt.Sprintf("issued %s at %s%% for %d days", loan.LoanAmount.StringFixed(2), loan.InterestRate.String(), term)
	return Result{
		Loan:  loan,
		Audit: newAudit(loan, domain.OperationCreate, note, &loan.LoanAmount, stamp),
	}, nil
}

// Pay applies a payment. A fully paid loan stays active until Redeem is
// called explicitly.
func (m *Machine) Pay(loan domain.Loan, amount decimal.Decimal, method domain.PaymentMethod, stamp Stamp) (Result, error) {
	if err := CanApply(loan.Status, domain.OperationPayment); err != nil {
		return Result{}, err
	}

	outcome, err := ledger.ApplyPayment(loan, amount, method)
	if err != nil {
		return Result{}, err
	}

	updated := touch(outcome.Loan, stamp)
	record := outcome.Record
	record.Timestamp = stamp.At
	record.ProcessedBy = stamp.Operator.ID

	note := fmt.Sprintf("payment %s by %s", amount.StringFixed(2), method) + overpaidNote(outcome.Overpayment)

	return Result{
		Loan:        updated,
		Payment:     &record,
		Audit:       newAudit(updated, domain.OperationPayment, note, &amount, stamp),
		FullyPaid:   outcome.FullyPaid,
		Overpayment: outcome.Overpayment,
	}, nil
}

// AddMoney lends more against the same collateral
func (m *Machine) AddMoney(loan domain.Loan, amount decimal.Decimal, stamp Stamp) (Result, error) {
	if err := CanApply(loan.Status, domain.OperationAddMoney); err != nil {
		return Result{}, err
	}

	updated, err := ledger.ApplyAddMoney(loan, amount)
	if err != nil {
		return Result{}, err
	}
	updated = touch(updated, stamp)

	note := fmt.Sprintf("added %s, principal now %s", amount.StringFixed(2), updated.LoanAmount.StringFixed(2))
	return Result{
		Loan:  updated,
		Audit: newAudit(updated, domain.OperationAddMoney, note, &amount, stamp),
	}, nil
}

// Discount reduces the interest owed
func (m *Machine) Discount(loan domain.Loan, amount decimal.Decimal, reason string, stamp Stamp) (Result, error) {
	if err := CanApply(loan.Status, domain.OperationDiscount); err != nil {
		return Result{}, err
	}

	adjusted, err := ledger.ApplyDiscount(loan, amount)
	if err != nil {
		return Result{}, err
	}
	updated := touch(adjusted.Loan, stamp)

	note := fmt.Sprintf("interest discounted by %s", amount.StringFixed(2))
	if reason != "" {
		note += ": " + reason
	}
	note += overpaidNote(adjusted.Overpayment)
	return Result{
		Loan:        updated,
		Audit:       newAudit(updated, domain.OperationDiscount, note, &amount, stamp),
		FullyPaid:   ledger.IsFullyPaid(updated),
		Overpayment: adjusted.Overpayment,
	}, nil
}

// Extend pushes the due date. Whether interest was paid is not checked here;
// that policy belongs to the daily sweep.
func (m *Machine) Extend(loan domain.Loan, days int, stamp Stamp) (Result, error) {
	if err := CanApply(loan.Status, domain.OperationExtend); err != nil {
		return Result{}, err
	}
	if days == 0 {
		days = m.extensionDays()
	}

	updated, err := ledger.Extend(loan, days)
	if err != nil {
		return Result{}, err
	}
	updated = touch(updated, stamp)

	note := fmt.Sprintf("extended %d days, due %s", days, updated.DueDate.Format("2006-01-02"))
	return Result{
		Loan:  updated,
		Audit: newAudit(updated, domain.OperationExtend, note, nil, stamp),
	}, nil
}

// Edit changes descriptive fields and, optionally, rate, fee and term
func (m *Machine) Edit(loan domain.Loan, req domain.EditLoanRequest, stamp Stamp) (Result, error) {
	if err := CanApply(loan.Status, domain.OperationEdit); err != nil {
		return Result{}, err
	}

	updated := loan
	overpayment := decimal.Zero
	var changes []string

	if req.CollateralDescription != nil {
		description := strings.TrimSpace(*req.CollateralDescription)
		if description == "" {
			return Result{}, customError.WrapValidation("collateral_description must not be empty")
		}
		updated.CollateralDescription = description
		changes = append(changes, "collateral_description")
	}
	if req.CollateralImage != nil {
		updated.CollateralImage = *req.CollateralImage
		changes = append(changes, "collateral_image")
	}
	if req.CustomerNote != nil {
		updated.CustomerNote = *req.CustomerNote
		changes = append(changes, "customer_note")
	}
	if req.LoanTerm != nil {
		if *req.LoanTerm <= 0 {
			return Result{}, customError.WrapValidation("loan_term must be greater than 0")
		}
		updated.LoanTerm = *req.LoanTerm
		updated.DueDate = utils.CalculateDueDate(updated.LoanIssuedDate, updated.LoanTerm)
		changes = append(changes, "loan_term")
	}
	if req.ChangesMoney() {
		rate := updated.InterestRate
		if req.InterestRate != nil {
			rate = *req.InterestRate
			changes = append(changes, "interest_rate")
		}
		fee := updated.RecurringFee
		if req.RecurringFee != nil {
			fee = *req.RecurringFee
			changes = append(changes, "recurring_fee")
		}
		adjusted, err := ledger.Reprice(updated, rate, fee)
		if err != nil {
			return Result{}, err
		}
		updated = adjusted.Loan
		overpayment = adjusted.Overpayment
	}
	if len(changes) == 0 {
		return Result{}, customError.WrapValidation("edit request changes nothing")
	}

	updated = touch(updated, stamp)
	note := "edited " + strings.Join(changes, ", ") + overpaidNote(overpayment)
	return Result{
		Loan:        updated,
		Audit:       newAudit(updated, domain.OperationEdit, note, nil, stamp),
		Overpayment: overpayment,
	}, nil
}

// Redeem closes the loan, collecting the remaining balance plus an optional
// redemption fee. It is always allowed on an active loan.
func (m *Machine) Redeem(loan domain.Loan, redemptionFee decimal.Decimal, method domain.PaymentMethod, stamp Stamp) (Result, error) {
	if err := CanApply(loan.Status, domain.OperationRedeem); err != nil {
		return Result{}, err
	}
	if method == "" {
		method = domain.PaymentMethodCash
	}
	if !method.Valid() {
		return Result{}, customError.WrapValidation("unknown payment method " + string(method))
	}

	updated, collected, err := ledger.ApplyRedemption(loan, redemptionFee)
	if err != nil {
		return Result{}, err
	}
	updated.Status = domain.LoanStatusRedeemed
	at := stamp.At
	updated.RedeemedAt = &at
	updated = touch(updated, stamp)

	result := Result{
		Loan:      updated,
		FullyPaid: true,
	}
	if collected.IsPositive() {
		result.Payment = &domain.PaymentRecord{
			ID:          uuid.New(),
			LoanID:      updated.ID,
			Amount:      collected,
			Overpayment: decimal.Zero,
			Method:      method,
			Kind:        domain.PaymentKindRedemption,
			Timestamp:   stamp.At,
			ProcessedBy: stamp.Operator.ID,
		}
	}

	note := fmt.Sprintf("redeemed, collected %s", collected.StringFixed(2))
	if redemptionFee.IsPositive() {
		note += fmt.Sprintf(" including redemption fee %s", redemptionFee.StringFixed(2))
	}
	result.Audit = newAudit(updated, domain.OperationRedeem, note, &collected, stamp)
	return result, nil
}

// Forfeit hands the collateral to the shop. stamp.At is "today" for the
// eligibility check.
func (m *Machine) Forfeit(loan domain.Loan, stamp Stamp) (Result, error) {
	if err := CanApply(loan.Status, domain.OperationForfeit); err != nil {
		return Result{}, err
	}
	if !ledger.IsEligibleForForfeiture(loan, stamp.At) {
		return Result{}, customError.NewBusinessError(
			customError.ErrCodeInvalidTransition,
			fmt.Sprintf("Loan %s is not eligible for forfeiture (due %s, remaining %s, interest %s)",
				loan.TransactionNumber, loan.DueDate.Format("2006-01-02"),
				loan.RemainingBalance.StringFixed(2), loan.InterestAmount.StringFixed(2)),
			customError.ErrInvalidTransition,
		)
	}

	updated := loan
	updated.Status = domain.LoanStatusForfeited
	at := stamp.At
	updated.ForfeitedAt = &at
	updated = touch(updated, stamp)

	note := fmt.Sprintf("forfeited with %s remaining", loan.RemainingBalance.StringFixed(2))
	return Result{
		Loan:  updated,
		Audit: newAudit(updated, domain.OperationForfeit, note, nil, stamp),
	}, nil
}

// Reactivate undoes a forfeiture
func (m *Machine) Reactivate(loan domain.Loan, stamp Stamp) (Result, error) {
	if err := CanApply(loan.Status, domain.OperationReactivate); err != nil {
		return Result{}, err
	}

	updated := loan
	updated.Status = domain.LoanStatusActive
	updated.ForfeitedAt = nil
	updated = touch(updated, stamp)

	return Result{
		Loan:  updated,
		Audit: newAudit(updated, domain.OperationReactivate, "reactivated from forfeiture", nil, stamp),
	}, nil
}

// Void authorises the hard delete of a loan. The returned Loan is the last
// snapshot, kept only for the audit trail.
func (m *Machine) Void(loan domain.Loan, confirmed bool, reason string, stamp Stamp) (Result, error) {
	if err := CanApply(loan.Status, domain.OperationVoid); err != nil {
		return Result{}, err
	}
	if !confirmed {
		return Result{}, customError.WrapConfirmationRequired(loan.ID.String())
	}

	note := fmt.Sprintf("voided from status %s", loan.Status)
	if reason != "" {
		note += ": " + reason
	}
	return Result{
		Loan:  loan,
		Audit: newAudit(loan, domain.OperationVoid, note, nil, stamp),
	}, nil
}

func overpaidNote(overpayment decimal.Decimal) string {
	if !overpayment.IsPositive() {
		return ""
	}
	return fmt.Sprintf(", overpaid %s", overpayment.StringFixed(2))
}

func touch(loan domain.Loan, stamp Stamp) domain.Loan {
	loan.UpdatedBy = stamp.Operator.ID
	loan.UpdatedAt = stamp.At
	return loan
}

func newAudit(loan domain.Loan, op domain.Operation, note string, amount *decimal.Decimal, stamp Stamp) domain.AuditEntry {
	var copied *decimal.Decimal
	if amount != nil {
		v := *amount
		copied = &v
	}
	return domain.AuditEntry{
		ID:                uuid.New(),
		LoanID:            loan.ID,
		TransactionNumber: loan.TransactionNumber,
		Operation:         op,
		Note:              note,
		Amount:            copied,
		OperatorID:        stamp.Operator.ID,
		OperatorName:      stamp.Operator.Username,
		Timestamp:         stamp.At,
	}
}
