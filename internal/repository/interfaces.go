package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/segyhp/loan-ledger/internal/domain"
)

// LoanStore is the set of loan and ledger operations available both outside
// and inside a loan transaction. Not-found lookups return errors that satisfy
// errors.Is(err, customError.ErrNotFound).
type LoanStore interface {
	// GetLoan retrieves a loan by its ID
	GetLoan(ctx context.Context, id uuid.UUID) (*domain.Loan, error)

	// GetRepayments retrieves every repayment of a loan, oldest first
	GetRepayments(ctx context.Context, loanID uuid.UUID) ([]*domain.Repayment, error)

	// GetRepayment retrieves a single repayment
	GetRepayment(ctx context.Context, id uuid.UUID) (*domain.Repayment, error)

	// InsertRepayment appends a repayment to the ledger
	InsertRepayment(ctx context.Context, repayment *domain.Repayment) error

	// DeleteRepayment removes a repayment from the ledger
	DeleteRepayment(ctx context.Context, id uuid.UUID) error

	// UpdateLoanTerms persists the editable terms of a loan
	UpdateLoanTerms(ctx context.Context, loan *domain.Loan) error

	// SaveLoanDerivedState writes all derived fields in one statement
	SaveLoanDerivedState(ctx context.Context, loanID uuid.UUID, state domain.DerivedState) error
}

// TxFunc runs inside a loan transaction. Returning an error rolls back every
// write made through store.
type TxFunc func(ctx context.Context, store LoanStore) error

// LoanRepository defines the interface for loan data operations.
//
// Calls made directly on the repository are snapshot reads or single writes.
// Read-modify-write sequences must go through WithinLoanTx, which holds an
// exclusive lock on one loan for the duration of fn. Transactions on
// different loans do not block each other.
type LoanRepository interface {
	LoanStore

	// Create creates a new loan
	Create(ctx context.Context, loan *domain.Loan) error

	// ListActiveLoanIDs returns the IDs of loans whose status is active
	ListActiveLoanIDs(ctx context.Context) ([]uuid.UUID, error)

	// WithinLoanTx runs fn atomically with loanID locked
	WithinLoanTx(ctx context.Context, loanID uuid.UUID, fn TxFunc) error
}
