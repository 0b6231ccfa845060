package utils

import (
	"testing"
	"time"

	"github.com/segyhp/loan-ledger/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestCalculateDueDate(t *testing.T) {
	tests := []struct {
		name          string
		startDate     time.Time
		repaymentType domain.RepaymentType
		period        int
		expected      time.Time
	}{
		{
			name:          "first month",
			startDate:     date(2024, 1, 1),
			repaymentType: domain.RepaymentTypeMonthly,
			period:        1,
			expected:      date(2024, 2, 1),
		},
		{
			name:          "third month",
			startDate:     date(2024, 1, 1),
			repaymentType: domain.RepaymentTypeMonthly,
			period:        3,
			expected:      date(2024, 4, 1),
		},
		{
			name:          "month end clamps in leap february",
			startDate:     date(2024, 1, 31),
			repaymentType: domain.RepaymentTypeMonthly,
			period:        1,
			expected:      date(2024, 2, 29),
		},
		{
			name:          "month end clamps in common february",
			startDate:     date(2023, 1, 31),
			repaymentType: domain.RepaymentTypeMonthly,
			period:        1,
			expected:      date(2023, 2, 28),
		},
		{
			name:          "clamping does not drift later periods",
			startDate:     date(2024, 1, 31),
			repaymentType: domain.RepaymentTypeMonthly,
			period:        2,
			expected:      date(2024, 3, 31),
		},
		{
			name:          "30 day month",
			startDate:     date(2024, 1, 31),
			repaymentType: domain.RepaymentTypeMonthly,
			period:        3,
			expected:      date(2024, 4, 30),
		},
		{
			name:          "crosses year",
			startDate:     date(2024, 11, 15),
			repaymentType: domain.RepaymentTypeMonthly,
			period:        3,
			expected:      date(2025, 2, 15),
		},
		{
			name:          "first week",
			startDate:     date(2024, 1, 1),
			repaymentType: domain.RepaymentTypeWeekly,
			period:        1,
			expected:      date(2024, 1, 8),
		},
		{
			name:          "tenth week",
			startDate:     date(2024, 1, 1),
			repaymentType: domain.RepaymentTypeWeekly,
			period:        10,
			expected:      date(2024, 3, 11),
		},
		{
			name:          "clock part is dropped",
			startDate:     time.Date(2024, 1, 1, 15, 30, 0, 0, time.UTC),
			repaymentType: domain.RepaymentTypeWeekly,
			period:        2,
			expected:      date(2024, 1, 15),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CalculateDueDate(tt.startDate, tt.repaymentType, tt.period)
			assert.True(t, tt.expected.Equal(result), "expected %s, got %s", tt.expected, result)
		})
	}
}

func TestCalculateDueDate_Monotonic(t *testing.T) {
	start := date(2024, 1, 31)
	prev := start
	for period := 1; period <= 36; period++ {
		due := CalculateDueDate(start, domain.RepaymentTypeMonthly, period)
		assert.True(t, due.After(prev), "period %d due %s not after %s", period, due, prev)
		prev = due
	}
}

func TestPeriodsElapsed(t *testing.T) {
	start := date(2024, 1, 1)

	tests := []struct {
		name          string
		repaymentType domain.RepaymentType
		duration      int
		asOf          time.Time
		expected      int
	}{
		{"before first due date", domain.RepaymentTypeMonthly, 12, date(2024, 1, 31), 0},
		{"on first due date", domain.RepaymentTypeMonthly, 12, date(2024, 2, 1), 1},
		{"mid april", domain.RepaymentTypeMonthly, 12, date(2024, 4, 15), 3},
		{"late in the day counts", domain.RepaymentTypeMonthly, 12, time.Date(2024, 3, 1, 23, 59, 0, 0, time.UTC), 2},
		{"capped at duration", domain.RepaymentTypeMonthly, 12, date(2030, 1, 1), 12},
		{"weekly", domain.RepaymentTypeWeekly, 10, date(2024, 1, 22), 3},
		{"before disbursement", domain.RepaymentTypeWeekly, 10, date(2023, 12, 1), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, PeriodsElapsed(start, tt.repaymentType, tt.duration, tt.asOf))
		})
	}
}

func TestPeriodsElapsed_ComparesCalendarDays(t *testing.T) {
	start := date(2024, 1, 1)
	ist := time.FixedZone("IST", 5*60*60+30*60)

	// Same instant, read in two zones that agree on the calendar day.
	assert.Equal(t, 1, PeriodsElapsed(start, domain.RepaymentTypeMonthly, 12, time.Date(2024, 2, 1, 15, 0, 0, 0, ist)))
	assert.Equal(t, 1, PeriodsElapsed(start, domain.RepaymentTypeMonthly, 12, time.Date(2024, 2, 1, 9, 30, 0, 0, time.UTC)))

	// Just after midnight IST is still the previous day in UTC.
	assert.Equal(t, 1, PeriodsElapsed(start, domain.RepaymentTypeMonthly, 12, time.Date(2024, 2, 1, 0, 5, 0, 0, ist)))
	assert.Equal(t, 0, PeriodsElapsed(start, domain.RepaymentTypeMonthly, 12, time.Date(2024, 1, 31, 23, 59, 0, 0, ist)))
}

func TestTruncateToDate(t *testing.T) {
	ist := time.FixedZone("IST", 5*60*60+30*60)

	got := TruncateToDate(time.Date(2024, 2, 1, 0, 5, 0, 0, ist))

	assert.Equal(t, date(2024, 2, 1), got)
	assert.Equal(t, time.UTC, got.Location())
}

func TestCalculateDueDate_NonUTCDisbursement(t *testing.T) {
	ist := time.FixedZone("IST", 5*60*60+30*60)
	start := time.Date(2024, 1, 31, 0, 0, 0, 0, ist)

	assert.Equal(t, date(2024, 2, 29), CalculateDueDate(start, domain.RepaymentTypeMonthly, 1))
	assert.Equal(t, date(2024, 2, 7), CalculateDueDate(start, domain.RepaymentTypeWeekly, 1))
}

func TestIsDateOverdue(t *testing.T) {
	due := date(2024, 2, 1)

	assert.False(t, IsDateOverdue(due, date(2024, 1, 31)))
	assert.False(t, IsDateOverdue(due, time.Date(2024, 2, 1, 18, 0, 0, 0, time.UTC)))
	assert.True(t, IsDateOverdue(due, date(2024, 2, 2)))

	ist := time.FixedZone("IST", 5*60*60+30*60)
	assert.True(t, IsDateOverdue(due, time.Date(2024, 2, 2, 0, 5, 0, 0, ist)))
}

func TestCalculateInstallment(t *testing.T) {
	tests := []struct {
		name          string
		principal     decimal.Decimal
		rate          decimal.Decimal
		repaymentType domain.RepaymentType
		duration      int
		expected      decimal.Decimal
	}{
		{
			name:          "monthly with flat interest",
			principal:     decimal.NewFromInt(12000),
			rate:          decimal.NewFromInt(100),
			repaymentType: domain.RepaymentTypeMonthly,
			duration:      12,
			expected:      decimal.NewFromInt(1100),
		},
		{
			name:          "monthly zero interest",
			principal:     decimal.NewFromInt(12000),
			rate:          decimal.Zero,
			repaymentType: domain.RepaymentTypeMonthly,
			duration:      12,
			expected:      decimal.NewFromInt(1000),
		},
		{
			name:          "weekly spreads over duration minus one",
			principal:     decimal.NewFromInt(5000),
			rate:          decimal.Zero,
			repaymentType: domain.RepaymentTypeWeekly,
			duration:      11,
			expected:      decimal.NewFromInt(500),
		},
		{
			name:          "weekly rounds to cents",
			principal:     decimal.NewFromInt(5000),
			rate:          decimal.Zero,
			repaymentType: domain.RepaymentTypeWeekly,
			duration:      10,
			expected:      decimal.RequireFromString("555.56"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CalculateInstallment(tt.principal, tt.rate, tt.repaymentType, tt.duration)
			assert.True(t, result.Equal(tt.expected), "Expected %v, but got %v", tt.expected, result)
		})
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-04-15")
	require.NoError(t, err)
	assert.True(t, d.Equal(date(2024, 4, 15)))

	_, err = ParseDate("15/04/2024")
	assert.Error(t, err)
}
