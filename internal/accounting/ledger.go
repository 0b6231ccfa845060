// Package accounting derives a loan's financial state from its terms and its
// repayment ledger. Everything here is pure: no storage, no clock.
package accounting

import (
	"sort"

	"github.com/segyhp/loan-ledger/internal/domain"
	customError "github.com/segyhp/loan-ledger/pkg/errors"

	"github.com/shopspring/decimal"
)

// Ledger is a loan's repayments indexed by schedule period.
type Ledger struct {
	repayments []*domain.Repayment
	byPeriod   map[int][]*domain.Repayment
}

// NewLedger indexes repayments by period. Within a period, entries are ordered
// so that the representative comes first (see Representative).
func NewLedger(repayments []*domain.Repayment) *Ledger {
	l := &Ledger{
		repayments: repayments,
		byPeriod:   make(map[int][]*domain.Repayment),
	}
	for _, r := range repayments {
		if r == nil {
			continue
		}
		l.byPeriod[r.Period] = append(l.byPeriod[r.Period], r)
	}
	for _, entries := range l.byPeriod {
		sort.SliceStable(entries, func(i, j int) bool {
			return representsBefore(entries[i], entries[j])
		})
	}
	return l
}

// representsBefore orders by latest PaidDate, then latest CreatedAt, then the
// greater ID string, so the choice never depends on storage order.
func representsBefore(a, b *domain.Repayment) bool {
	if !a.PaidDate.Equal(b.PaidDate) {
		return a.PaidDate.After(b.PaidDate)
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID.String() > b.ID.String()
}

// Len returns the number of repayments in the ledger.
func (l *Ledger) Len() int {
	return len(l.repayments)
}

// ForPeriod returns every repayment declared against period.
func (l *Ledger) ForPeriod(period int) []*domain.Repayment {
	return l.byPeriod[period]
}

// Representative returns the repayment that drives the period's displayed
// status, or nil when the period has none.
func (l *Ledger) Representative(period int) *domain.Repayment {
	entries := l.byPeriod[period]
	if len(entries) == 0 {
		return nil
	}
	return entries[0]
}

// HasFull reports whether any Full repayment exists for period.
func (l *Ledger) HasFull(period int) bool {
	for _, r := range l.byPeriod[period] {
		if r.IsFull() {
			return true
		}
	}
	return false
}

// HasInterestOnly reports whether any InterestOnly repayment exists for period.
func (l *Ledger) HasInterestOnly(period int) bool {
	for _, r := range l.byPeriod[period] {
		if r.PaymentType == domain.PaymentTypeInterestOnly {
			return true
		}
	}
	return false
}

// TotalFull sums the amounts of all Full repayments.
func (l *Ledger) TotalFull() decimal.Decimal {
	total := decimal.Zero
	for _, r := range l.repayments {
		if r != nil && r.IsFull() {
			total = total.Add(r.Amount)
		}
	}
	return total
}

// MaxPeriod returns the highest period referenced, or 0 for an empty ledger.
func (l *Ledger) MaxPeriod() int {
	highest := 0
	for period := range l.byPeriod {
		if period > highest {
			highest = period
		}
	}
	return highest
}

// Validate rejects historical entries the derivation cannot trust.
func (l *Ledger) Validate(loan *domain.Loan) error {
	for _, r := range l.repayments {
		if r == nil {
			return customError.WrapInvariantViolated("loan %s: nil repayment in ledger", loan.ID)
		}
		if r.LoanID != loan.ID {
			return customError.WrapInvariantViolated("repayment %s belongs to loan %s, not %s", r.ID, r.LoanID, loan.ID)
		}
		if !r.Amount.IsPositive() {
			return customError.WrapInvariantViolated("repayment %s has non-positive amount %s", r.ID, r.Amount)
		}
		if !r.PaymentType.Valid() {
			return customError.WrapInvariantViolated("repayment %s has unknown payment type %q", r.ID, r.PaymentType)
		}
		if r.Period < 1 || r.Period > loan.Duration {
			return customError.WrapInvariantViolated("repayment %s period %d outside 1..%d", r.ID, r.Period, loan.Duration)
		}
	}
	return nil
}
