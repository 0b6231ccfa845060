package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/segyhp/loan-ledger/internal/domain"
)

// Reasons carried by LoanStateChanged.
const (
	ReasonLoanCreated      = "loan_created"
	ReasonRepaymentAdded   = "repayment_added"
	ReasonRepaymentDeleted = "repayment_deleted"
	ReasonTermsUpdated     = "terms_updated"
	ReasonDefaulted        = "defaulted"
	ReasonRecomputed       = "recomputed"
)

// LoanStateChanged is published whenever a loan's derived state is rewritten.
type LoanStateChanged struct {
	EventID    uuid.UUID           `json:"event_id"`
	LoanID     uuid.UUID           `json:"loan_id"`
	Reason     string              `json:"reason"`
	State      domain.DerivedState `json:"state"`
	OccurredAt time.Time           `json:"occurred_at"`
}

func NewLoanStateChanged(loanID uuid.UUID, reason string, state domain.DerivedState, at time.Time) *LoanStateChanged {
	return &LoanStateChanged{
		EventID:    uuid.New(),
		LoanID:     loanID,
		Reason:     reason,
		State:      state,
		OccurredAt: at,
	}
}

// NopPublisher drops every event. Used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) PublishLoanStateChanged(context.Context, *LoanStateChanged) error { return nil }

func (NopPublisher) Close() error { return nil }
