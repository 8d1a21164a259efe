package utils

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CurrencyPlaces is the precision every monetary value is rounded to.
const CurrencyPlaces int32 = 2

var hundred = decimal.NewFromInt(100)

// RoundCurrency rounds half-up to cents. Callers only pass non-negative
// amounts, where decimal's half-away-from-zero equals half-up.
func RoundCurrency(d decimal.Decimal) decimal.Decimal {
	return d.Round(CurrencyPlaces)
}

// PercentOf returns amount * rate / 100 rounded to cents
func PercentOf(amount, rate decimal.Decimal) decimal.Decimal {
	return RoundCurrency(amount.Mul(rate).Div(hundred))
}

// CalculateDueDate returns the issue date pushed forward by termDays
func CalculateDueDate(issuedDate time.Time, termDays int) time.Time {
	return issuedDate.AddDate(0, 0, termDays)
}

// DateOnly strips the clock part, keeping the location.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// IsDateOverdue reports whether dueDate is a calendar day strictly before today.
func IsDateOverdue(dueDate, today time.Time) bool {
	return DateOnly(dueDate.In(today.Location())).Before(DateOnly(today))
}

// DaysOverdue counts whole calendar days past dueDate, zero when not overdue.
func DaysOverdue(dueDate, today time.Time) int {
	if !IsDateOverdue(dueDate, today) {
		return 0
	}
	// calendar days, counted in UTC so a 23 or 25 hour local day still counts as one
	diff := civilDay(today).Sub(civilDay(dueDate.In(today.Location())))
	return int(diff / (24 * time.Hour))
}

func civilDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// NewTransactionNumber builds a human-facing ticket number like PWN-20240101-1A2B3C4D
func NewTransactionNumber(issued time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("PWN-%s-%s", issued.Format("20060102"), suffix)
}
