package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RepaymentType is the cadence of a loan's schedule.
type RepaymentType string

const (
	RepaymentTypeMonthly RepaymentType = "monthly"
	RepaymentTypeWeekly  RepaymentType = "weekly"
)

func (t RepaymentType) Valid() bool {
	return t == RepaymentTypeMonthly || t == RepaymentTypeWeekly
}

// LoanStatus is the lifecycle state of a loan.
type LoanStatus string

const (
	LoanStatusActive    LoanStatus = "active"
	LoanStatusCompleted LoanStatus = "completed"
	LoanStatusDefaulted LoanStatus = "defaulted"
)

// Loan represents a loan entity. Terms are fixed at creation; the fields below
// RemainingAmount are derived from the repayment ledger.
type Loan struct {
	ID                uuid.UUID       `json:"id" db:"id"`
	OwnerID           string          `json:"owner_id" db:"owner_id"`
	PrincipalAmount   decimal.Decimal `json:"principal_amount" db:"principal_amount"`
	InterestRate      decimal.Decimal `json:"interest_rate" db:"interest_rate"`
	DocumentCharge    decimal.Decimal `json:"document_charge" db:"document_charge"`
	RepaymentType     RepaymentType   `json:"repayment_type" db:"repayment_type"`
	Duration          int             `json:"duration" db:"duration"`
	DisbursementDate  time.Time       `json:"disbursement_date" db:"disbursement_date"`
	InstallmentAmount decimal.Decimal `json:"installment_amount" db:"installment_amount"`

	RemainingAmount decimal.Decimal `json:"remaining_amount" db:"remaining_amount"`
	Status          LoanStatus      `json:"status" db:"status"`
	OverdueAmount   decimal.Decimal `json:"overdue_amount" db:"overdue_amount"`
	MissedPayments  int             `json:"missed_payments" db:"missed_payments"`
	NextPaymentDate *time.Time      `json:"next_payment_date" db:"next_payment_date"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// IsActive reports whether the loan still accrues obligations.
func (l *Loan) IsActive() bool {
	return l.Status == LoanStatusActive
}

// ApplyDerivedState copies a freshly computed state onto the loan.
func (l *Loan) ApplyDerivedState(state DerivedState) {
	l.RemainingAmount = state.RemainingAmount
	l.Status = state.Status
	l.NextPaymentDate = state.NextPaymentDate
	l.OverdueAmount = state.OverdueAmount
	l.MissedPayments = state.MissedPayments
}

// DerivedState holds the fields recomputed after every ledger mutation.
// They are always persisted together.
type DerivedState struct {
	RemainingAmount decimal.Decimal `json:"remaining_amount"`
	Status          LoanStatus      `json:"status"`
	NextPaymentDate *time.Time      `json:"next_payment_date"`
	OverdueAmount   decimal.Decimal `json:"overdue_amount"`
	MissedPayments  int             `json:"missed_payments"`
}

// OverdueState is the result of the overdue/missed calculation.
type OverdueState struct {
	OverdueAmount  decimal.Decimal `json:"overdue_amount"`
	MissedPayments int             `json:"missed_payments"`
}

// DTOs for requests and responses

type CreateLoanRequest struct {
	OwnerID           string           `json:"owner_id" validate:"required"`
	PrincipalAmount   decimal.Decimal  `json:"principal_amount" validate:"decimal_gt0"`
	InterestRate      decimal.Decimal  `json:"interest_rate" validate:"decimal_gte0"`
	DocumentCharge    decimal.Decimal  `json:"document_charge" validate:"decimal_gte0"`
	RepaymentType     RepaymentType    `json:"repayment_type" validate:"required,oneof=monthly weekly"`
	Duration          int              `json:"duration" validate:"required,gt=0"`
	DisbursementDate  time.Time        `json:"disbursement_date" validate:"required"`
	InstallmentAmount *decimal.Decimal `json:"installment_amount,omitempty" validate:"omitempty,decimal_gt0"`
}

// UpdateLoanTermsRequest carries the editable terms. Nil fields are left as is.
type UpdateLoanTermsRequest struct {
	InterestRate      *decimal.Decimal `json:"interest_rate,omitempty" validate:"omitempty,decimal_gte0"`
	DocumentCharge    *decimal.Decimal `json:"document_charge,omitempty" validate:"omitempty,decimal_gte0"`
	RepaymentType     *RepaymentType   `json:"repayment_type,omitempty" validate:"omitempty,oneof=monthly weekly"`
	Duration          *int             `json:"duration,omitempty" validate:"omitempty,gt=0"`
	DisbursementDate  *time.Time       `json:"disbursement_date,omitempty"`
	InstallmentAmount *decimal.Decimal `json:"installment_amount,omitempty" validate:"omitempty,decimal_gt0"`
}

// Empty reports whether the request changes nothing.
func (r *UpdateLoanTermsRequest) Empty() bool {
	return r.InterestRate == nil && r.DocumentCharge == nil && r.RepaymentType == nil &&
		r.Duration == nil && r.DisbursementDate == nil && r.InstallmentAmount == nil
}

type OverdueResponse struct {
	LoanID         uuid.UUID       `json:"loan_id"`
	AsOf           time.Time       `json:"as_of"`
	OverdueAmount  decimal.Decimal `json:"overdue_amount"`
	MissedPayments int             `json:"missed_payments"`
}
