package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LoanStatus is the lifecycle state of a pawn loan. Voided loans are
// deleted, so there is no status for them.
type LoanStatus string

const (
	LoanStatusActive    LoanStatus = "active"
	LoanStatusRedeemed  LoanStatus = "redeemed"
	LoanStatusForfeited LoanStatus = "forfeited"
)

// Valid reports whether s is one of the known statuses
func (s LoanStatus) Valid() bool {
	switch s {
	case LoanStatusActive, LoanStatusRedeemed, LoanStatusForfeited:
		return true
	}
	return false
}

// Loan represents one pawn transaction
type Loan struct {
	ID                uuid.UUID `json:"id" db:"id"`
	TransactionNumber string    `json:"transaction_number" db:"transaction_number"`
	CustomerID        uuid.UUID `json:"customer_id" db:"customer_id"`

	LoanAmount         decimal.Decimal `json:"loan_amount" db:"loan_amount"`
	InterestRate       decimal.Decimal `json:"interest_rate" db:"interest_rate"`
	InterestAmount     decimal.Decimal `json:"interest_amount" db:"interest_amount"`
	InterestDiscount   decimal.Decimal `json:"interest_discount" db:"interest_discount"`
	RecurringFee       decimal.Decimal `json:"recurring_fee" db:"recurring_fee"`
	RedemptionFee      decimal.Decimal `json:"redemption_fee" db:"redemption_fee"`
	TotalPayableAmount decimal.Decimal `json:"total_payable_amount" db:"total_payable_amount"`
	RemainingBalance   decimal.Decimal `json:"remaining_balance" db:"remaining_balance"`

	LoanIssuedDate time.Time `json:"loan_issued_date" db:"loan_issued_date"`
	DueDate        time.Time `json:"due_date" db:"due_date"`
	LoanTerm       int       `json:"loan_term" db:"loan_term"`

	Status                LoanStatus `json:"status" db:"status"`
	CollateralDescription string     `json:"collateral_description" db:"collateral_description"`
	CollateralImage       string     `json:"collateral_image,omitempty" db:"collateral_image"`
	CustomerNote          string     `json:"customer_note,omitempty" db:"customer_note"`

	CreatedBy   string     `json:"created_by" db:"created_by"`
	UpdatedBy   string     `json:"updated_by" db:"updated_by"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
	RedeemedAt  *time.Time `json:"redeemed_at,omitempty" db:"redeemed_at"`
	ForfeitedAt *time.Time `json:"forfeited_at,omitempty" db:"forfeited_at"`
	Version     int        `json:"version" db:"version"`
}

// IsActive reports whether the loan can still be mutated by payments and the like
func (l *Loan) IsActive() bool {
	return l.Status == LoanStatusActive
}

// LoanFilter narrows loan listings. Zero values mean "any".
type LoanFilter struct {
	Status     LoanStatus
	CustomerID uuid.UUID
	DueBefore  time.Time
	Limit      int
	Offset     int
}

// DTOs for requests and responses

type CreateLoanRequest struct {
	TransactionNumber     string           `json:"transaction_number" validate:"omitempty,max=64"`
	CustomerID            uuid.UUID        `json:"customer_id" validate:"required"`
	LoanAmount            decimal.Decimal  `json:"loan_amount" validate:"decimal_gt=0"`
	InterestRate          *decimal.Decimal `json:"interest_rate,omitempty" validate:"omitempty,decimal_gte=0"`
	RecurringFee          decimal.Decimal  `json:"recurring_fee" validate:"decimal_gte=0"`
	LoanTerm              int              `json:"loan_term" validate:"omitempty,gt=0"`
	LoanIssuedDate        *time.Time       `json:"loan_issued_date,omitempty"`
	CollateralDescription string           `json:"collateral_description" validate:"required"`
	CollateralImage       string           `json:"collateral_image,omitempty"`
	CustomerNote          string           `json:"customer_note,omitempty"`
}

// EditLoanRequest carries the fields an operator may change on an active
// loan. Nil pointers are left untouched.
type EditLoanRequest struct {
	InterestRate          *decimal.Decimal `json:"interest_rate,omitempty"`
	RecurringFee          *decimal.Decimal `json:"recurring_fee,omitempty"`
	LoanTerm              *int             `json:"loan_term,omitempty" validate:"omitempty,gt=0"`
	CollateralDescription *string          `json:"collateral_description,omitempty" validate:"omitempty,min=1"`
	CollateralImage       *string          `json:"collateral_image,omitempty"`
	CustomerNote          *string          `json:"customer_note,omitempty"`
}

// ChangesMoney reports whether the edit touches fields that feed the balance
func (r *EditLoanRequest) ChangesMoney() bool {
	return r.InterestRate != nil || r.RecurringFee != nil
}

type PaymentRequest struct {
	Amount decimal.Decimal `json:"amount" validate:"decimal_gt=0"`
	Method PaymentMethod   `json:"method" validate:"required,payment_method"`
}

type AddMoneyRequest struct {
	Amount decimal.Decimal `json:"amount" validate:"decimal_gt=0"`
}

type DiscountRequest struct {
	Amount decimal.Decimal `json:"amount" validate:"decimal_gt=0"`
	Reason string          `json:"reason,omitempty"`
}

type ExtendRequest struct {
	Days int `json:"days" validate:"omitempty,gt=0"`
}

type RedeemRequest struct {
	RedemptionFee decimal.Decimal `json:"redemption_fee" validate:"decimal_gte=0"`
	Method        PaymentMethod   `json:"method" validate:"omitempty,payment_method"`
}

type VoidRequest struct {
	Confirm bool   `json:"confirm"`
	Reason  string `json:"reason,omitempty"`
}

// OperationResponse is returned for every state-changing loan operation
type OperationResponse struct {
	Loan        *Loan           `json:"loan"`
	Payment     *PaymentRecord  `json:"payment,omitempty"`
	Audit       *AuditEntry     `json:"audit,omitempty"`
	FullyPaid   bool            `json:"fully_paid"`
	Overpayment decimal.Decimal `json:"overpayment"`
}

type EligibilityResponse struct {
	LoanID      uuid.UUID `json:"loan_id"`
	Eligible    bool      `json:"eligible"`
	Overdue     bool      `json:"overdue"`
	DaysOverdue int       `json:"days_overdue"`
}
