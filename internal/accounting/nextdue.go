package accounting

import (
	"time"

	"github.com/segyhp/loan-ledger/internal/domain"
	"github.com/segyhp/loan-ledger/pkg/utils"
)

// NextDue returns the due date of the earliest period without a Full
// repayment, or nil once nothing is left to pay.
func NextDue(loan *domain.Loan, repayments []*domain.Repayment) *time.Time {
	if !loan.RemainingAmount.IsPositive() {
		return nil
	}
	return nextDue(loan, NewLedger(repayments))
}

func nextDue(loan *domain.Loan, ledger *Ledger) *time.Time {
	for period := 1; period <= loan.Duration; period++ {
		if ledger.HasFull(period) {
			continue
		}
		due := utils.CalculateDueDate(loan.DisbursementDate, loan.RepaymentType, period)
		return &due
	}
	return nil
}
