package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/segyhp/loan-ledger/internal/domain"
	customError "github.com/segyhp/loan-ledger/pkg/errors"
)

// MemoryLoanRepository keeps loans and repayments in process memory. It honours
// the same locking contract as the postgres repository: one mutex per loan,
// and writes inside WithinLoanTx become visible only when fn succeeds.
type MemoryLoanRepository struct {
	mu         sync.RWMutex
	loans      map[uuid.UUID]*domain.Loan
	repayments map[uuid.UUID]*domain.Repayment
	locks      map[uuid.UUID]*sync.Mutex
}

func NewMemoryLoanRepository() *MemoryLoanRepository {
	return &MemoryLoanRepository{
		loans:      make(map[uuid.UUID]*domain.Loan),
		repayments: make(map[uuid.UUID]*domain.Repayment),
		locks:      make(map[uuid.UUID]*sync.Mutex),
	}
}

func (r *MemoryLoanRepository) Create(_ context.Context, loan *domain.Loan) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.loans[loan.ID]; exists {
		return customError.WrapLoanAlreadyExists(loan.ID)
	}
	r.loans[loan.ID] = cloneLoan(loan)
	r.locks[loan.ID] = &sync.Mutex{}
	return nil
}

func (r *MemoryLoanRepository) GetLoan(_ context.Context, id uuid.UUID) (*domain.Loan, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	loan, ok := r.loans[id]
	if !ok {
		return nil, customError.WrapLoanNotFound(id)
	}
	return cloneLoan(loan), nil
}

func (r *MemoryLoanRepository) GetRepayments(_ context.Context, loanID uuid.UUID) ([]*domain.Repayment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return sortedRepayments(r.repayments, loanID), nil
}

func (r *MemoryLoanRepository) GetRepayment(_ context.Context, id uuid.UUID) (*domain.Repayment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	repayment, ok := r.repayments[id]
	if !ok {
		return nil, customError.WrapRepaymentNotFound(id)
	}
	copied := *repayment
	return &copied, nil
}

func (r *MemoryLoanRepository) InsertRepayment(ctx context.Context, repayment *domain.Repayment) error {
	return r.WithinLoanTx(ctx, repayment.LoanID, func(ctx context.Context, store LoanStore) error {
		return store.InsertRepayment(ctx, repayment)
	})
}

func (r *MemoryLoanRepository) DeleteRepayment(ctx context.Context, id uuid.UUID) error {
	repayment, err := r.GetRepayment(ctx, id)
	if err != nil {
		return err
	}
	return r.WithinLoanTx(ctx, repayment.LoanID, func(ctx context.Context, store LoanStore) error {
		return store.DeleteRepayment(ctx, id)
	})
}

func (r *MemoryLoanRepository) UpdateLoanTerms(ctx context.Context, loan *domain.Loan) error {
	return r.WithinLoanTx(ctx, loan.ID, func(ctx context.Context, store LoanStore) error {
		return store.UpdateLoanTerms(ctx, loan)
	})
}

func (r *MemoryLoanRepository) SaveLoanDerivedState(ctx context.Context, loanID uuid.UUID, state domain.DerivedState) error {
	return r.WithinLoanTx(ctx, loanID, func(ctx context.Context, store LoanStore) error {
		return store.SaveLoanDerivedState(ctx, loanID, state)
	})
}

func (r *MemoryLoanRepository) ListActiveLoanIDs(_ context.Context) ([]uuid.UUID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	loans := make([]*domain.Loan, 0, len(r.loans))
	for _, loan := range r.loans {
		if loan.Status == domain.LoanStatusActive {
			loans = append(loans, loan)
		}
	}
	sort.Slice(loans, func(i, j int) bool {
		return loans[i].CreatedAt.Before(loans[j].CreatedAt)
	})

	ids := make([]uuid.UUID, 0, len(loans))
	for _, loan := range loans {
		ids = append(ids, loan.ID)
	}
	return ids, nil
}

func (r *MemoryLoanRepository) WithinLoanTx(ctx context.Context, loanID uuid.UUID, fn TxFunc) error {
	r.mu.RLock()
	lock, ok := r.locks[loanID]
	r.mu.RUnlock()
	if !ok {
		return customError.WrapLoanNotFound(loanID)
	}

	lock.Lock()
	defer lock.Unlock()

	r.mu.RLock()
	tx := &memoryTx{
		loanID:     loanID,
		loan:       cloneLoan(r.loans[loanID]),
		repayments: make(map[uuid.UUID]*domain.Repayment),
	}
	for id, repayment := range r.repayments {
		if repayment.LoanID == loanID {
			copied := *repayment
			tx.repayments[id] = &copied
		}
	}
	r.mu.RUnlock()

	if err := fn(ctx, tx); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.loans[loanID] = tx.loan
	for id, repayment := range r.repayments {
		if repayment.LoanID == loanID {
			delete(r.repayments, id)
		}
	}
	for id, repayment := range tx.repayments {
		r.repayments[id] = repayment
	}
	return nil
}

// memoryTx is the staged view of one loan handed to a TxFunc.
type memoryTx struct {
	loanID     uuid.UUID
	loan       *domain.Loan
	repayments map[uuid.UUID]*domain.Repayment
}

func (t *memoryTx) GetLoan(_ context.Context, id uuid.UUID) (*domain.Loan, error) {
	if id != t.loanID {
		return nil, customError.WrapLoanNotFound(id)
	}
	return cloneLoan(t.loan), nil
}

func (t *memoryTx) GetRepayments(_ context.Context, loanID uuid.UUID) ([]*domain.Repayment, error) {
	return sortedRepayments(t.repayments, loanID), nil
}

func (t *memoryTx) GetRepayment(_ context.Context, id uuid.UUID) (*domain.Repayment, error) {
	repayment, ok := t.repayments[id]
	if !ok {
		return nil, customError.WrapRepaymentNotFound(id)
	}
	copied := *repayment
	return &copied, nil
}

func (t *memoryTx) InsertRepayment(_ context.Context, repayment *domain.Repayment) error {
	if repayment.LoanID != t.loanID {
		return customError.WrapLoanNotFound(repayment.LoanID)
	}
	copied := *repayment
	t.repayments[repayment.ID] = &copied
	return nil
}

func (t *memoryTx) DeleteRepayment(_ context.Context, id uuid.UUID) error {
	if _, ok := t.repayments[id]; !ok {
		return customError.WrapRepaymentNotFound(id)
	}
	delete(t.repayments, id)
	return nil
}

func (t *memoryTx) UpdateLoanTerms(_ context.Context, loan *domain.Loan) error {
	if loan.ID != t.loanID {
		return customError.WrapLoanNotFound(loan.ID)
	}
	t.loan.InterestRate = loan.InterestRate
	t.loan.DocumentCharge = loan.DocumentCharge
	t.loan.RepaymentType = loan.RepaymentType
	t.loan.Duration = loan.Duration
	t.loan.DisbursementDate = loan.DisbursementDate
	t.loan.InstallmentAmount = loan.InstallmentAmount
	t.loan.UpdatedAt = time.Now()
	return nil
}

func (t *memoryTx) SaveLoanDerivedState(_ context.Context, loanID uuid.UUID, state domain.DerivedState) error {
	if loanID != t.loanID {
		return customError.WrapLoanNotFound(loanID)
	}
	t.loan.ApplyDerivedState(state)
	if state.NextPaymentDate != nil {
		next := *state.NextPaymentDate
		t.loan.NextPaymentDate = &next
	}
	t.loan.UpdatedAt = time.Now()
	return nil
}

func cloneLoan(loan *domain.Loan) *domain.Loan {
	copied := *loan
	if loan.NextPaymentDate != nil {
		next := *loan.NextPaymentDate
		copied.NextPaymentDate = &next
	}
	return &copied
}

func sortedRepayments(all map[uuid.UUID]*domain.Repayment, loanID uuid.UUID) []*domain.Repayment {
	repayments := make([]*domain.Repayment, 0)
	for _, repayment := range all {
		if repayment.LoanID == loanID {
			copied := *repayment
			repayments = append(repayments, &copied)
		}
	}
	sort.Slice(repayments, func(i, j int) bool {
		a, b := repayments[i], repayments[j]
		if !a.PaidDate.Equal(b.PaidDate) {
			return a.PaidDate.Before(b.PaidDate)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID.String() < b.ID.String()
	})
	return repayments
}
