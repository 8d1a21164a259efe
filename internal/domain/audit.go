package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Operation names a loan lifecycle operation
type Operation string

const (
	OperationCreate     Operation = "create"
	OperationPayment    Operation = "payment"
	OperationAddMoney   Operation = "add_money"
	OperationDiscount   Operation = "discount"
	OperationExtend     Operation = "extend"
	OperationEdit       Operation = "edit"
	OperationRedeem     Operation = "redeem"
	OperationForfeit    Operation = "forfeit"
	OperationReactivate Operation = "reactivate"
	OperationVoid       Operation = "void"
)

// AuditEntry records who did what to a loan. Entries outlive a voided loan,
// so LoanID is not a foreign key.
type AuditEntry struct {
	ID                uuid.UUID        `json:"id" db:"id"`
	LoanID            uuid.UUID        `json:"loan_id" db:"loan_id"`
	TransactionNumber string           `json:"transaction_number" db:"transaction_number"`
	Operation         Operation        `json:"operation" db:"operation"`
	Note              string           `json:"note" db:"note"`
	Amount            *decimal.Decimal `json:"amount,omitempty" db:"amount"`
	OperatorID        string           `json:"operator_id" db:"operator_id"`
	OperatorName      string           `json:"operator_name" db:"operator_name"`
	Timestamp         time.Time        `json:"timestamp" db:"timestamp"`
}
