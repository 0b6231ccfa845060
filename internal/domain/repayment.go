package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentType distinguishes principal-reducing repayments from interest-only ones.
type PaymentType string

const (
	PaymentTypeFull         PaymentType = "full"
	PaymentTypeInterestOnly PaymentType = "interest_only"
)

func (t PaymentType) Valid() bool {
	return t == PaymentTypeFull || t == PaymentTypeInterestOnly
}

// Repayment is an immutable ledger entry. It can be deleted but never edited.
type Repayment struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	LoanID      uuid.UUID       `json:"loan_id" db:"loan_id"`
	Amount      decimal.Decimal `json:"amount" db:"amount"`
	PaidDate    time.Time       `json:"paid_date" db:"paid_date"`
	PaymentType PaymentType     `json:"payment_type" db:"payment_type"`
	Period      int             `json:"period" db:"period"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// IsFull reports whether the repayment reduces the remaining balance.
func (r *Repayment) IsFull() bool {
	return r.PaymentType == PaymentTypeFull
}

type AddRepaymentRequest struct {
	Amount      decimal.Decimal `json:"amount" validate:"decimal_gt0"`
	PaidDate    time.Time       `json:"paid_date" validate:"required"`
	PaymentType PaymentType     `json:"payment_type" validate:"required,oneof=full interest_only"`
	Period      int             `json:"period" validate:"required,gt=0"`
}

type AddRepaymentResponse struct {
	Repayment *Repayment `json:"repayment"`
	Loan      *Loan      `json:"loan"`
}
