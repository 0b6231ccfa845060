package accounting

import (
	"time"

	"github.com/segyhp/loan-ledger/internal/domain"
	customError "github.com/segyhp/loan-ledger/pkg/errors"
	"github.com/segyhp/loan-ledger/pkg/utils"
)

// Project builds the full schedule, periods 1..Duration, as seen on today.
// Windowing for display is FilterWindow's job, not this function's.
func Project(loan *domain.Loan, repayments []*domain.Repayment, today time.Time) ([]*domain.ScheduleEntry, error) {
	if err := checkTerms(loan); err != nil {
		return nil, err
	}
	ledger := NewLedger(repayments)
	if err := ledger.Validate(loan); err != nil {
		return nil, err
	}

	entries := make([]*domain.ScheduleEntry, 0, loan.Duration)
	for period := 1; period <= loan.Duration; period++ {
		entry := &domain.ScheduleEntry{
			Period:         period,
			DueDate:        utils.CalculateDueDate(loan.DisbursementDate, loan.RepaymentType, period),
			ExpectedAmount: loan.InstallmentAmount,
			Repayment:      ledger.Representative(period),
		}

		switch {
		case entry.Repayment != nil && entry.Repayment.IsFull():
			entry.Status = domain.ScheduleStatusPaid
		case entry.Repayment != nil:
			entry.Status = domain.ScheduleStatusInterestOnly
		case utils.IsDateOverdue(entry.DueDate, today):
			entry.Status = domain.ScheduleStatusOverdue
		default:
			entry.Status = domain.ScheduleStatusPending
		}

		entries = append(entries, entry)
	}

	return entries, nil
}

// FilterWindow keeps what a borrower-facing view shows: settled and overdue
// periods, plus pending periods due within withinDays of today.
func FilterWindow(entries []*domain.ScheduleEntry, today time.Time, withinDays int) []*domain.ScheduleEntry {
	horizon := utils.TruncateToDate(today).AddDate(0, 0, withinDays)

	filtered := make([]*domain.ScheduleEntry, 0, len(entries))
	for _, entry := range entries {
		if entry.Status == domain.ScheduleStatusPending && entry.DueDate.After(horizon) {
			continue
		}
		filtered = append(filtered, entry)
	}
	return filtered
}

func checkTerms(loan *domain.Loan) error {
	if loan == nil {
		return customError.WrapInvariantViolated("nil loan")
	}
	if !loan.RepaymentType.Valid() {
		return customError.WrapInvariantViolated("loan %s has unknown repayment type %q", loan.ID, loan.RepaymentType)
	}
	if loan.Duration < 1 {
		return customError.WrapInvariantViolated("loan %s has duration %d", loan.ID, loan.Duration)
	}
	if loan.InstallmentAmount.IsNegative() {
		return customError.WrapInvariantViolated("loan %s has negative installment %s", loan.ID, loan.InstallmentAmount)
	}
	return nil
}
