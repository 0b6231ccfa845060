package accounting

import (
	"time"

	"github.com/segyhp/loan-ledger/internal/domain"
	customError "github.com/segyhp/loan-ledger/pkg/errors"
)

// Derive recomputes every derived field of loan from its full ledger.
//
// Status rules: a zero balance completes the loan; a completed loan whose
// balance is positive again (a Full repayment was deleted) returns to active;
// defaulted is assigned elsewhere and is kept while a balance remains.
func Derive(loan *domain.Loan, repayments []*domain.Repayment, asOf time.Time) (domain.DerivedState, error) {
	if err := checkTerms(loan); err != nil {
		return domain.DerivedState{}, err
	}
	ledger := NewLedger(repayments)
	if err := ledger.Validate(loan); err != nil {
		return domain.DerivedState{}, err
	}

	remaining := loan.PrincipalAmount.Sub(ledger.TotalFull())
	if remaining.IsNegative() {
		return domain.DerivedState{}, customError.WrapInvariantViolated(
			"loan %s: full repayments %s exceed principal %s", loan.ID, ledger.TotalFull(), loan.PrincipalAmount)
	}

	status := loan.Status
	switch {
	case remaining.IsZero():
		status = domain.LoanStatusCompleted
	case status == domain.LoanStatusCompleted:
		status = domain.LoanStatusActive
	case status == "":
		status = domain.LoanStatusActive
	}

	draft := *loan
	draft.RemainingAmount = remaining
	draft.Status = status

	state := domain.DerivedState{
		RemainingAmount: remaining,
		Status:          status,
	}
	if status != domain.LoanStatusCompleted {
		state.NextPaymentDate = nextDue(&draft, ledger)
	}

	overdue, err := ComputeOverdueState(&draft, repayments, asOf)
	if err != nil {
		return domain.DerivedState{}, err
	}
	state.OverdueAmount = overdue.OverdueAmount
	state.MissedPayments = overdue.MissedPayments

	return state, nil
}
