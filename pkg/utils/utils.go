package utils

import (
	"time"

	"github.com/segyhp/loan-ledger/internal/domain"

	"github.com/shopspring/decimal"
)

const daysPerWeek = 7

// CalculateDueDate returns the due date of a schedule period.
//
// Monthly periods add calendar months to the disbursement date and clamp the
// day to the end of the target month, so a loan disbursed on Jan 31 is due on
// Feb 29 (leap year), Mar 31, Apr 30 and so on. Every period is computed from
// the disbursement date, never from the previous due date, so clamping in a
// short month does not shift later periods.
// Weekly periods are due every 7 days after disbursement.
func CalculateDueDate(disbursementDate time.Time, repaymentType domain.RepaymentType, period int) time.Time {
	start := TruncateToDate(disbursementDate)
	if repaymentType == domain.RepaymentTypeWeekly {
		return start.AddDate(0, 0, daysPerWeek*period)
	}
	return addMonthsClamped(start, period)
}

func addMonthsClamped(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	// Day 1 never overflows, so this lands in the target month.
	firstOfTarget := time.Date(year, month+time.Month(months), 1, 0, 0, 0, 0, t.Location())
	if last := daysInMonth(firstOfTarget); day > last {
		day = last
	}
	return time.Date(firstOfTarget.Year(), firstOfTarget.Month(), day, 0, 0, 0, 0, t.Location())
}

func daysInMonth(t time.Time) int {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, t.Location()).Day()
}

// PeriodsElapsed counts the periods whose due date is on or before asOf,
// capped at duration.
func PeriodsElapsed(disbursementDate time.Time, repaymentType domain.RepaymentType, duration int, asOf time.Time) int {
	day := TruncateToDate(asOf)
	elapsed := 0
	for period := 1; period <= duration; period++ {
		if CalculateDueDate(disbursementDate, repaymentType, period).After(day) {
			break
		}
		elapsed = period
	}
	return elapsed
}

// TruncateToDate returns the calendar day of t, read in t's own location, as
// midnight UTC. Due dates and evaluation days are both kept in this form so
// they compare by calendar day whatever zone the inputs carried.
func TruncateToDate(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// IsDateOverdue checks if dueDate is strictly before the day of now.
func IsDateOverdue(dueDate, now time.Time) bool {
	return TruncateToDate(dueDate).Before(TruncateToDate(now))
}

// CalculateInstallment returns the expected payment per period.
// Monthly: principal spread over the duration plus the flat per-period interest.
// Weekly: principal spread over duration-1 periods, the extra period carrying
// the interest.
func CalculateInstallment(principal, interestRate decimal.Decimal, repaymentType domain.RepaymentType, duration int) decimal.Decimal {
	if repaymentType == domain.RepaymentTypeWeekly {
		return principal.Div(decimal.NewFromInt(int64(duration - 1))).Round(2)
	}
	perPeriod := principal.Div(decimal.NewFromInt(int64(duration)))
	return perPeriod.Add(interestRate).Round(2)
}

// ParseDate parses a YYYY-MM-DD date in UTC.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(time.DateOnly, s)
}
