package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ScheduleStatus is the displayed state of one schedule period.
type ScheduleStatus string

const (
	ScheduleStatusPending      ScheduleStatus = "pending"
	ScheduleStatusPaid         ScheduleStatus = "paid"
	ScheduleStatusInterestOnly ScheduleStatus = "interest_only"
	ScheduleStatusOverdue      ScheduleStatus = "overdue"
)

// ScheduleEntry is a derived view of one period. It is never persisted.
type ScheduleEntry struct {
	Period         int             `json:"period"`
	DueDate        time.Time       `json:"due_date"`
	ExpectedAmount decimal.Decimal `json:"expected_amount"`
	Status         ScheduleStatus  `json:"status"`
	Repayment      *Repayment      `json:"repayment,omitempty"`
}

type ScheduleResponse struct {
	LoanID   uuid.UUID        `json:"loan_id"`
	Schedule []*ScheduleEntry `json:"schedule"`
}
