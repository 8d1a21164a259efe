package errors

import (
	"errors"
	"fmt"
)

// Domain errors
var (
	ErrInvalidAmount           = errors.New("invalid amount")
	ErrDiscountExceedsInterest = errors.New("discount exceeds interest")
	ErrInvalidTransition       = errors.New("invalid transition")
	ErrLoanNotFound            = errors.New("loan not found")
	ErrConcurrentModification  = errors.New("concurrent modification")
	ErrLoanAlreadyExists       = errors.New("loan already exists")
	ErrCustomerNotFound        = errors.New("customer not found")
	ErrValidation              = errors.New("validation failed")
	ErrConfirmationRequired    = errors.New("confirmation required")
	ErrLoanLocked              = errors.New("loan is locked by another operation")
)

// BusinessError represents a business logic error
type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

// NewBusinessError creates a new business error
func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Error codes
const (
	ErrCodeInvalidAmount           = "INVALID_AMOUNT"
	ErrCodeDiscountExceedsInterest = "DISCOUNT_EXCEEDS_INTEREST"
	ErrCodeInvalidTransition       = "INVALID_TRANSITION"
	ErrCodeLoanNotFound            = "LOAN_NOT_FOUND"
	ErrCodeConcurrentModification  = "CONCURRENT_MODIFICATION"
	ErrCodeLoanAlreadyExists       = "LOAN_ALREADY_EXISTS"
	ErrCodeCustomerNotFound        = "CUSTOMER_NOT_FOUND"
	ErrCodeValidation              = "VALIDATION_ERROR"
	ErrCodeConfirmationRequired    = "CONFIRMATION_REQUIRED"
	ErrCodeLoanLocked              = "LOAN_LOCKED"
	ErrCodeDatabaseError           = "DATABASE_ERROR"
	ErrCodeCacheError              = "CACHE_ERROR"
)

// Wrap common errors with business context
func WrapInvalidAmount(field, amount string) *BusinessError {
	return NewBusinessError(
		ErrCodeInvalidAmount,
		fmt.Sprintf("Invalid %s: %s", field, amount),
		ErrInvalidAmount,
	)
}

func WrapDiscountExceedsInterest(discount, interest string) *BusinessError {
	return NewBusinessError(
		ErrCodeDiscountExceedsInterest,
		fmt.Sprintf("Discount %s exceeds interest amount %s", discount, interest),
		ErrDiscountExceedsInterest,
	)
}

func WrapInvalidTransition(operation, status string) *BusinessError {
	return NewBusinessError(
		ErrCodeInvalidTransition,
		fmt.Sprintf("Operation %s is not allowed for a loan in status %s", operation, status),
		ErrInvalidTransition,
	)
}

func WrapLoanNotFound(loanID string) *BusinessError {
	return NewBusinessError(
		ErrCodeLoanNotFound,
		fmt.Sprintf("Loan with ID %s not found", loanID),
		ErrLoanNotFound,
	)
}

func WrapConcurrentModification(loanID string) *BusinessError {
	return NewBusinessError(
		ErrCodeConcurrentModification,
		fmt.Sprintf("Loan with ID %s was modified concurrently", loanID),
		ErrConcurrentModification,
	)
}

func WrapLoanAlreadyExists(transactionNumber string) *BusinessError {
	return NewBusinessError(
		ErrCodeLoanAlreadyExists,
		fmt.Sprintf("Loan with transaction number %s already exists", transactionNumber),
		ErrLoanAlreadyExists,
	)
}

func WrapCustomerNotFound(customerID string) *BusinessError {
	return NewBusinessError(
		ErrCodeCustomerNotFound,
		fmt.Sprintf("Customer with ID %s not found", customerID),
		ErrCustomerNotFound,
	)
}

func WrapValidation(message string) *BusinessError {
	return NewBusinessError(
		ErrCodeValidation,
		message,
		ErrValidation,
	)
}

func WrapConfirmationRequired(loanID string) *BusinessError {
	return NewBusinessError(
		ErrCodeConfirmationRequired,
		fmt.Sprintf("Voiding loan %s requires explicit confirmation", loanID),
		ErrConfirmationRequired,
	)
}

func WrapLoanLocked(loanID string) *BusinessError {
	return NewBusinessError(
		ErrCodeLoanLocked,
		fmt.Sprintf("Loan with ID %s is being modified by another operation", loanID),
		ErrLoanLocked,
	)
}

func WrapDatabaseError(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeDatabaseError,
		"database operation failed",
		err,
	)
}

func WrapCacheError(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeCacheError,
		"Cache operation failed",
		err,
	)
}

// Code extracts the business error code, or an empty string for foreign errors.
func Code(err error) string {
	var be *BusinessError
	if errors.As(err, &be) {
		return be.Code
	}
	return ""
}

// IsRetryable reports whether the operation may be retried as-is: only a
// lost optimistic version race. LOAN_LOCKED already waited for the lock and
// is surfaced to the caller; every other kind means the input is invalid.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}
