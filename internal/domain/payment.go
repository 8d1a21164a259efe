package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentMethod is how the customer tendered money
type PaymentMethod string

const (
	PaymentMethodCash       PaymentMethod = "cash"
	PaymentMethodMastercard PaymentMethod = "mastercard"
	PaymentMethodVisa       PaymentMethod = "visa"
	PaymentMethodAmex       PaymentMethod = "amex"
	// The stored value keeps the historical spelling used by existing records.
	PaymentMethodETransfer PaymentMethod = "etranfer"
	PaymentMethodDebit     PaymentMethod = "debit"
	PaymentMethodCheck     PaymentMethod = "check"
	PaymentMethodOther     PaymentMethod = "other"
)

// PaymentMethods lists every accepted method in display order
var PaymentMethods = []PaymentMethod{
	PaymentMethodCash,
	PaymentMethodMastercard,
	PaymentMethodVisa,
	PaymentMethodAmex,
	PaymentMethodETransfer,
	PaymentMethodDebit,
	PaymentMethodCheck,
	PaymentMethodOther,
}

// Valid reports whether m is an accepted payment method
func (m PaymentMethod) Valid() bool {
	for _, known := range PaymentMethods {
		if m == known {
			return true
		}
	}
	return false
}

type PaymentKind string

const (
	PaymentKindPayment    PaymentKind = "payment"
	PaymentKindRedemption PaymentKind = "redemption"
)

// PaymentRecord is an append-only entry for money received against a loan
type PaymentRecord struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	LoanID      uuid.UUID       `json:"loan_id" db:"loan_id"`
	Amount      decimal.Decimal `json:"amount" db:"amount"`
	Overpayment decimal.Decimal `json:"overpayment" db:"overpayment"`
	Method      PaymentMethod   `json:"method" db:"method"`
	Kind        PaymentKind     `json:"kind" db:"kind"`
	Timestamp   time.Time       `json:"timestamp" db:"timestamp"`
	ProcessedBy string          `json:"processed_by" db:"processed_by"`
}

// MethodTotal is one row of the collections feed
type MethodTotal struct {
	Method      PaymentMethod   `json:"method" db:"method"`
	Total       decimal.Decimal `json:"total" db:"total"`
	Overpayment decimal.Decimal `json:"overpayment" db:"overpayment"`
	Count       int             `json:"count" db:"count"`
}

// CollectionsResponse summarises money received in a window, consumed by
// cash-drawer reconciliation.
type CollectionsResponse struct {
	From        time.Time       `json:"from"`
	To          time.Time       `json:"to"`
	ByMethod    []*MethodTotal  `json:"by_method"`
	Total       decimal.Decimal `json:"total"`
	Overpayment decimal.Decimal `json:"overpayment"`
}
