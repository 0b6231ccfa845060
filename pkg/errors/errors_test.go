package errors

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestBusinessError_Kinds(t *testing.T) {
	loanID := uuid.New()

	tests := []struct {
		name string
		err  error
		kind error
		code string
	}{
		{"invalid amount", WrapInvalidAmount(decimal.Zero), ErrValidation, ErrCodeInvalidAmount},
		{"exceeds remaining", WrapAmountExceedsRemaining(decimal.NewFromInt(10), decimal.NewFromInt(5)), ErrValidation, ErrCodeAmountExceedsRemain},
		{"invalid period", WrapInvalidPeriod(0), ErrValidation, ErrCodeInvalidPeriod},
		{"loan not found", WrapLoanNotFound(loanID), ErrNotFound, ErrCodeLoanNotFound},
		{"repayment not found", WrapRepaymentNotFound(loanID), ErrNotFound, ErrCodeRepaymentNotFound},
		{"not active", WrapLoanNotActive(loanID, "completed"), ErrStateConflict, ErrCodeLoanNotActive},
		{"period out of range", WrapPeriodOutOfRange(13, 12), ErrStateConflict, ErrCodePeriodOutOfRange},
		{"invariant", WrapInvariantViolated("missed payments %d", -1), ErrComputation, ErrCodeInvariantViolated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.err, tt.kind)
			assert.Equal(t, tt.kind, KindOf(tt.err))

			var be *BusinessError
			assert.True(t, errors.As(tt.err, &be))
			assert.Equal(t, tt.code, be.Code)
			assert.Contains(t, tt.err.Error(), tt.code)
		})
	}
}

func TestBusinessError_WrapsCause(t *testing.T) {
	err := WrapDatabaseError(sql.ErrConnDone)

	assert.ErrorIs(t, err, ErrDatabase)
	assert.ErrorIs(t, err, sql.ErrConnDone)
	assert.Contains(t, err.Error(), sql.ErrConnDone.Error())

	wrapped := fmt.Errorf("add repayment: %w", err)
	assert.True(t, errors.Is(wrapped, ErrDatabase))
	assert.Equal(t, ErrDatabase, KindOf(wrapped))
}

func TestKindOf_PlainError(t *testing.T) {
	assert.Nil(t, KindOf(errors.New("boom")))
	assert.False(t, IsValidation(errors.New("boom")))
	assert.True(t, IsComputation(WrapInvariantViolated("x")))
	assert.True(t, IsNotFound(WrapLoanNotFound(uuid.New())))
	assert.True(t, IsStateConflict(WrapPeriodOutOfRange(2, 1)))
}
