package errors

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Error kinds. Every BusinessError unwraps to exactly one of these, so callers
// can branch with errors.Is(err, ErrValidation) and friends.
var (
	ErrValidation    = errors.New("validation failed")
	ErrNotFound      = errors.New("not found")
	ErrStateConflict = errors.New("state conflict")
	ErrComputation   = errors.New("computation failed")
	ErrDatabase      = errors.New("database error")
	ErrCache         = errors.New("cache error")
)

// Error codes
const (
	ErrCodeInvalidAmount       = "INVALID_AMOUNT"
	ErrCodeAmountExceedsRemain = "AMOUNT_EXCEEDS_REMAINING"
	ErrCodeInvalidPeriod       = "INVALID_PERIOD"
	ErrCodeInvalidDate         = "INVALID_DATE"
	ErrCodeInvalidRequest      = "INVALID_REQUEST"
	ErrCodeLoanNotFound        = "LOAN_NOT_FOUND"
	ErrCodeRepaymentNotFound   = "REPAYMENT_NOT_FOUND"
	ErrCodeLoanNotActive       = "LOAN_NOT_ACTIVE"
	ErrCodeLoanAlreadyExists   = "LOAN_ALREADY_EXISTS"
	ErrCodePeriodOutOfRange    = "PERIOD_OUT_OF_RANGE"
	ErrCodeInvariantViolated   = "INVARIANT_VIOLATED"
	ErrCodeDatabaseError       = "DATABASE_ERROR"
	ErrCodeCacheError          = "CACHE_ERROR"
)

// BusinessError represents a business logic error
type BusinessError struct {
	Kind    error
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

func (e *BusinessError) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

// NewBusinessError creates a new business error
func NewBusinessError(kind error, code, message string, err error) *BusinessError {
	return &BusinessError{
		Kind:    kind,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// KindOf returns the error kind carried by err, or nil when err is not a
// BusinessError.
func KindOf(err error) error {
	var be *BusinessError
	if errors.As(err, &be) {
		return be.Kind
	}
	return nil
}

func IsValidation(err error) bool    { return errors.Is(err, ErrValidation) }
func IsNotFound(err error) bool      { return errors.Is(err, ErrNotFound) }
func IsStateConflict(err error) bool { return errors.Is(err, ErrStateConflict) }
func IsComputation(err error) bool   { return errors.Is(err, ErrComputation) }

// Validation

func WrapInvalidAmount(amount decimal.Decimal) *BusinessError {
	return NewBusinessError(
		ErrValidation,
		ErrCodeInvalidAmount,
		fmt.Sprintf("Amount %s must be greater than zero", amount.String()),
		nil,
	)
}

func WrapAmountExceedsRemaining(amount, remaining decimal.Decimal) *BusinessError {
	return NewBusinessError(
		ErrValidation,
		ErrCodeAmountExceedsRemain,
		fmt.Sprintf("Amount %s exceeds remaining balance %s", amount.String(), remaining.String()),
		nil,
	)
}

func WrapInvalidPeriod(period int) *BusinessError {
	return NewBusinessError(
		ErrValidation,
		ErrCodeInvalidPeriod,
		fmt.Sprintf("Period %d is not a schedule period", period),
		nil,
	)
}

func WrapInvalidDate(field string) *BusinessError {
	return NewBusinessError(
		ErrValidation,
		ErrCodeInvalidDate,
		fmt.Sprintf("Field %s must be a valid date", field),
		nil,
	)
}

func WrapInvalidRequest(err error) *BusinessError {
	return NewBusinessError(
		ErrValidation,
		ErrCodeInvalidRequest,
		"request validation failed",
		err,
	)
}

// Not found

func WrapLoanNotFound(loanID uuid.UUID) *BusinessError {
	return NewBusinessError(
		ErrNotFound,
		ErrCodeLoanNotFound,
		fmt.Sprintf("Loan with ID %s not found", loanID),
		nil,
	)
}

func WrapRepaymentNotFound(repaymentID uuid.UUID) *BusinessError {
	return NewBusinessError(
		ErrNotFound,
		ErrCodeRepaymentNotFound,
		fmt.Sprintf("Repayment with ID %s not found", repaymentID),
		nil,
	)
}

// State conflicts

func WrapLoanNotActive(loanID uuid.UUID, status string) *BusinessError {
	return NewBusinessError(
		ErrStateConflict,
		ErrCodeLoanNotActive,
		fmt.Sprintf("Loan with ID %s is %s", loanID, status),
		nil,
	)
}

func WrapLoanAlreadyExists(loanID uuid.UUID) *BusinessError {
	return NewBusinessError(
		ErrStateConflict,
		ErrCodeLoanAlreadyExists,
		fmt.Sprintf("Loan with ID %s already exists", loanID),
		nil,
	)
}

func WrapPeriodOutOfRange(period, duration int) *BusinessError {
	return NewBusinessError(
		ErrStateConflict,
		ErrCodePeriodOutOfRange,
		fmt.Sprintf("Period %d exceeds loan duration %d", period, duration),
		nil,
	)
}

// Computation

func WrapInvariantViolated(format string, args ...any) *BusinessError {
	return NewBusinessError(
		ErrComputation,
		ErrCodeInvariantViolated,
		fmt.Sprintf(format, args...),
		nil,
	)
}

// Infrastructure

func WrapDatabaseError(err error) *BusinessError {
	return NewBusinessError(
		ErrDatabase,
		ErrCodeDatabaseError,
		"database operation failed",
		err,
	)
}

func WrapCacheError(err error) *BusinessError {
	return NewBusinessError(
		ErrCache,
		ErrCodeCacheError,
		"Cache operation failed",
		err,
	)
}
