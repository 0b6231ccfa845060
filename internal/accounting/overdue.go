package accounting

import (
	"time"

	"github.com/segyhp/loan-ledger/internal/domain"
	customError "github.com/segyhp/loan-ledger/pkg/errors"
	"github.com/segyhp/loan-ledger/pkg/utils"

	"github.com/shopspring/decimal"
)

// ComputeOverdueState is the only overdue/missed calculation in the system.
//
// For every period due on or before asOf: a period with a Full repayment is
// settled; one with only InterestOnly repayments still owes its principal
// portion; one with nothing owes the whole installment. Each unsettled period
// counts as one missed payment. Loans that are not active owe nothing here.
// asOf is read as a calendar day in its own location.
func ComputeOverdueState(loan *domain.Loan, repayments []*domain.Repayment, asOf time.Time) (domain.OverdueState, error) {
	state := domain.OverdueState{OverdueAmount: decimal.Zero}

	if err := checkTerms(loan); err != nil {
		return state, err
	}
	if !loan.IsActive() {
		return state, nil
	}

	ledger := NewLedger(repayments)
	if err := ledger.Validate(loan); err != nil {
		return state, err
	}

	expectedPeriods := utils.PeriodsElapsed(loan.DisbursementDate, loan.RepaymentType, loan.Duration, asOf)

	var principalPortion *decimal.Decimal
	for period := 1; period <= expectedPeriods; period++ {
		if ledger.HasFull(period) {
			continue
		}

		owed := loan.InstallmentAmount
		if ledger.HasInterestOnly(period) {
			if principalPortion == nil {
				portion, err := PrincipalPortion(loan)
				if err != nil {
					return domain.OverdueState{OverdueAmount: decimal.Zero}, err
				}
				principalPortion = &portion
			}
			owed = *principalPortion
		}

		state.OverdueAmount = state.OverdueAmount.Add(owed)
		state.MissedPayments++
	}

	if state.MissedPayments < 0 || state.OverdueAmount.IsNegative() {
		return domain.OverdueState{OverdueAmount: decimal.Zero},
			customError.WrapInvariantViolated("loan %s: overdue %s with %d missed payments", loan.ID, state.OverdueAmount, state.MissedPayments)
	}

	return state, nil
}

// PrincipalPortion is the part of one installment that reduces principal.
// Monthly loans carry a flat per-period interest equal to InterestRate.
// Weekly loans embed interest by spreading principal over Duration-1 periods.
func PrincipalPortion(loan *domain.Loan) (decimal.Decimal, error) {
	switch loan.RepaymentType {
	case domain.RepaymentTypeWeekly:
		if loan.Duration <= 1 {
			return decimal.Zero, customError.WrapInvariantViolated("weekly loan %s needs at least 2 periods, has %d", loan.ID, loan.Duration)
		}
		return loan.PrincipalAmount.Div(decimal.NewFromInt(int64(loan.Duration - 1))).Round(2), nil
	case domain.RepaymentTypeMonthly:
		portion := loan.InstallmentAmount.Sub(loan.InterestRate)
		if portion.IsNegative() {
			return decimal.Zero, customError.WrapInvariantViolated("loan %s interest %s exceeds installment %s", loan.ID, loan.InterestRate, loan.InstallmentAmount)
		}
		return portion, nil
	default:
		return decimal.Zero, customError.WrapInvariantViolated("loan %s has unknown repayment type %q", loan.ID, loan.RepaymentType)
	}
}
