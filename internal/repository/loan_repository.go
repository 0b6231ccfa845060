package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/segyhp/loan-ledger/internal/domain"
	customError "github.com/segyhp/loan-ledger/pkg/errors"

	"github.com/jmoiron/sqlx"
)

const loanColumns = `id, owner_id, principal_amount, interest_rate, document_charge, repayment_type, duration,
		disbursement_date, installment_amount, remaining_amount, status, overdue_amount, missed_payments,
		next_payment_date, created_at, updated_at`

const repaymentColumns = `id, loan_id, amount, paid_date, payment_type, period, created_at`

// loanStore runs queries against either the pool or an open transaction.
type loanStore struct {
	q      sqlx.ExtContext
	logger *slog.Logger
}

type loanRepository struct {
	*loanStore
	db *sqlx.DB
}

func NewLoanRepository(db *sqlx.DB, logger *slog.Logger) LoanRepository {
	return &loanRepository{
		loanStore: &loanStore{q: db, logger: logger},
		db:        db,
	}
}

func (r *loanRepository) Create(ctx context.Context, loan *domain.Loan) error {
	query := `
		INSERT INTO loans (` + loanColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`

	_, err := r.q.ExecContext(ctx, query,
		loan.ID,
		loan.OwnerID,
		loan.PrincipalAmount,
		loan.InterestRate,
		loan.DocumentCharge,
		loan.RepaymentType,
		loan.Duration,
		loan.DisbursementDate,
		loan.InstallmentAmount,
		loan.RemainingAmount,
		loan.Status,
		loan.OverdueAmount,
		loan.MissedPayments,
		loan.NextPaymentDate,
		loan.CreatedAt,
		loan.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create loan", "loan_id", loan.ID.String(), "error", err)
		return customError.WrapDatabaseError(err)
	}

	return nil
}

func (r *loanRepository) ListActiveLoanIDs(ctx context.Context) ([]uuid.UUID, error) {
	query := `SELECT id FROM loans WHERE status = $1 ORDER BY created_at`

	var ids []uuid.UUID
	if err := sqlx.SelectContext(ctx, r.q, &ids, query, domain.LoanStatusActive); err != nil {
		r.logger.Error("Failed to list active loans", "error", err)
		return nil, customError.WrapDatabaseError(err)
	}

	return ids, nil
}

// WithinLoanTx locks the loan row with SELECT ... FOR UPDATE and runs fn in
// the same transaction. Concurrent callers on the same loan queue on the row
// lock; other loans are unaffected.
func (r *loanRepository) WithinLoanTx(ctx context.Context, loanID uuid.UUID, fn TxFunc) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return customError.WrapDatabaseError(err)
	}
	defer func() { _ = tx.Rollback() }()

	var locked uuid.UUID
	err = tx.GetContext(ctx, &locked, `SELECT id FROM loans WHERE id = $1 FOR UPDATE`, loanID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return customError.WrapLoanNotFound(loanID)
		}
		r.logger.Error("Failed to lock loan", "loan_id", loanID.String(), "error", err)
		return customError.WrapDatabaseError(err)
	}

	if err := fn(ctx, &loanStore{q: tx, logger: r.logger}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		r.logger.Error("Failed to commit loan transaction", "loan_id", loanID.String(), "error", err)
		return customError.WrapDatabaseError(err)
	}

	return nil
}

func (s *loanStore) GetLoan(ctx context.Context, id uuid.UUID) (*domain.Loan, error) {
	query := `SELECT ` + loanColumns + ` FROM loans WHERE id = $1`

	var loan domain.Loan
	if err := sqlx.GetContext(ctx, s.q, &loan, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, customError.WrapLoanNotFound(id)
		}
		s.logger.Error("Failed to get loan", "loan_id", id.String(), "error", err)
		return nil, customError.WrapDatabaseError(err)
	}

	return &loan, nil
}

func (s *loanStore) GetRepayments(ctx context.Context, loanID uuid.UUID) ([]*domain.Repayment, error) {
	query := `
		SELECT ` + repaymentColumns + `
		FROM repayments
		WHERE loan_id = $1
		ORDER BY paid_date, created_at, id
	`

	var repayments []*domain.Repayment
	if err := sqlx.SelectContext(ctx, s.q, &repayments, query, loanID); err != nil {
		s.logger.Error("Failed to get repayments", "loan_id", loanID.String(), "error", err)
		return nil, customError.WrapDatabaseError(err)
	}

	return repayments, nil
}

func (s *loanStore) GetRepayment(ctx context.Context, id uuid.UUID) (*domain.Repayment, error) {
	query := `SELECT ` + repaymentColumns + ` FROM repayments WHERE id = $1`

	var repayment domain.Repayment
	if err := sqlx.GetContext(ctx, s.q, &repayment, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, customError.WrapRepaymentNotFound(id)
		}
		s.logger.Error("Failed to get repayment", "repayment_id", id.String(), "error", err)
		return nil, customError.WrapDatabaseError(err)
	}

	return &repayment, nil
}

func (s *loanStore) InsertRepayment(ctx context.Context, repayment *domain.Repayment) error {
	query := `
		INSERT INTO repayments (` + repaymentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := s.q.ExecContext(ctx, query,
		repayment.ID,
		repayment.LoanID,
		repayment.Amount,
		repayment.PaidDate,
		repayment.PaymentType,
		repayment.Period,
		repayment.CreatedAt,
	)
	if err != nil {
		s.logger.Error("Failed to insert repayment", "loan_id", repayment.LoanID.String(), "error", err)
		return customError.WrapDatabaseError(err)
	}

	return nil
}

func (s *loanStore) DeleteRepayment(ctx context.Context, id uuid.UUID) error {
	result, err := s.q.ExecContext(ctx, `DELETE FROM repayments WHERE id = $1`, id)
	if err != nil {
		s.logger.Error("Failed to delete repayment", "repayment_id", id.String(), "error", err)
		return customError.WrapDatabaseError(err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return customError.WrapDatabaseError(err)
	}
	if affected == 0 {
		return customError.WrapRepaymentNotFound(id)
	}

	return nil
}

func (s *loanStore) UpdateLoanTerms(ctx context.Context, loan *domain.Loan) error {
	query := `
		UPDATE loans
		SET interest_rate = $2, document_charge = $3, repayment_type = $4, duration = $5,
			disbursement_date = $6, installment_amount = $7, updated_at = NOW()
		WHERE id = $1
	`

	_, err := s.q.ExecContext(ctx, query,
		loan.ID,
		loan.InterestRate,
		loan.DocumentCharge,
		loan.RepaymentType,
		loan.Duration,
		loan.DisbursementDate,
		loan.InstallmentAmount,
	)
	if err != nil {
		s.logger.Error("Failed to update loan terms", "loan_id", loan.ID.String(), "error", err)
		return customError.WrapDatabaseError(err)
	}

	return nil
}

func (s *loanStore) SaveLoanDerivedState(ctx context.Context, loanID uuid.UUID, state domain.DerivedState) error {
	query := `
		UPDATE loans
		SET remaining_amount = $2, status = $3, next_payment_date = $4, overdue_amount = $5,
			missed_payments = $6, updated_at = NOW()
		WHERE id = $1
	`

	result, err := s.q.ExecContext(ctx, query,
		loanID,
		state.RemainingAmount,
		state.Status,
		state.NextPaymentDate,
		state.OverdueAmount,
		state.MissedPayments,
	)
	if err != nil {
		s.logger.Error("Failed to save derived state", "loan_id", loanID.String(), "error", err)
		return customError.WrapDatabaseError(err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return customError.WrapDatabaseError(err)
	}
	if affected == 0 {
		return customError.WrapLoanNotFound(loanID)
	}

	return nil
}
