package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/segyhp/loan-ledger/internal/accounting"
	"github.com/segyhp/loan-ledger/internal/cache"
	"github.com/segyhp/loan-ledger/internal/domain"
	"github.com/segyhp/loan-ledger/internal/events"
	"github.com/segyhp/loan-ledger/internal/repository"
	customError "github.com/segyhp/loan-ledger/pkg/errors"
	"github.com/segyhp/loan-ledger/pkg/utils"
	"github.com/segyhp/loan-ledger/pkg/validation"

	"github.com/go-playground/validator/v10"
	"github.com/panjf2000/ants/v2"
)

const (
	defaultDueWindowDays  = 7
	defaultWorkerPoolSize = 8
)

// LoanService runs every loan mutation as read, compute and write inside one
// loan transaction, then invalidates the cached schedule and publishes the new
// state. Reads are snapshot reads and take no lock.
type LoanService struct {
	repo          repository.LoanRepository
	cache         cache.ScheduleCache
	publisher     events.Publisher
	validator     *validator.Validate
	logger        *slog.Logger
	now           func() time.Time
	dueWindowDays int
	poolSize      int
}

type Option func(*LoanService)

// WithClock replaces time.Now as the source of "today".
func WithClock(now func() time.Time) Option {
	return func(s *LoanService) { s.now = now }
}

func WithScheduleCache(c cache.ScheduleCache) Option {
	return func(s *LoanService) { s.cache = c }
}

func WithPublisher(p events.Publisher) Option {
	return func(s *LoanService) { s.publisher = p }
}

// WithDueWindowDays sets how far ahead a windowed schedule shows pending periods.
func WithDueWindowDays(days int) Option {
	return func(s *LoanService) { s.dueWindowDays = days }
}

func WithWorkerPoolSize(size int) Option {
	return func(s *LoanService) { s.poolSize = size }
}

func NewLoanService(repo repository.LoanRepository, logger *slog.Logger, opts ...Option) *LoanService {
	s := &LoanService{
		repo:          repo,
		cache:         cache.NopScheduleCache{},
		publisher:     events.NopPublisher{},
		validator:     validation.New(),
		logger:        logger,
		now:           time.Now,
		dueWindowDays: defaultDueWindowDays,
		poolSize:      defaultWorkerPoolSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateLoan creates a loan and derives its initial state. The installment is
// computed once here unless the request supplies one.
func (s *LoanService) CreateLoan(ctx context.Context, req *domain.CreateLoanRequest) (*domain.Loan, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, customError.WrapInvalidRequest(err)
	}

	now := s.now()
	loan := &domain.Loan{
		ID:               uuid.New(),
		OwnerID:          req.OwnerID,
		PrincipalAmount:  req.PrincipalAmount,
		InterestRate:     req.InterestRate,
		DocumentCharge:   req.DocumentCharge,
		RepaymentType:    req.RepaymentType,
		Duration:         req.Duration,
		DisbursementDate: utils.TruncateToDate(req.DisbursementDate),
		RemainingAmount:  req.PrincipalAmount,
		Status:           domain.LoanStatusActive,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := checkSchedulable(loan); err != nil {
		return nil, err
	}

	if req.InstallmentAmount != nil {
		loan.InstallmentAmount = *req.InstallmentAmount
	} else {
		loan.InstallmentAmount = utils.CalculateInstallment(loan.PrincipalAmount, loan.InterestRate, loan.RepaymentType, loan.Duration)
	}
	if err := checkInstallment(loan); err != nil {
		return nil, err
	}

	state, err := accounting.Derive(loan, nil, now)
	if err != nil {
		return nil, err
	}
	loan.ApplyDerivedState(state)

	if err := s.repo.Create(ctx, loan); err != nil {
		return nil, err
	}

	s.logger.Info("Loan created",
		"loan_id", loan.ID.String(),
		"principal", loan.PrincipalAmount.String(),
		"installment", loan.InstallmentAmount.String(),
		"repayment_type", string(loan.RepaymentType),
		"duration", loan.Duration,
	)
	s.afterCommit(ctx, loan.ID, events.ReasonLoanCreated, state)

	return loan, nil
}

// GetLoan returns the stored loan with its last persisted derived state.
func (s *LoanService) GetLoan(ctx context.Context, loanID uuid.UUID) (*domain.Loan, error) {
	return s.repo.GetLoan(ctx, loanID)
}

// GetSchedule projects the schedule of a loan. The full projection is cached;
// windowed trims it to settled, overdue and soon-due periods.
func (s *LoanService) GetSchedule(ctx context.Context, loanID uuid.UUID, windowed bool) (*domain.ScheduleResponse, error) {
	today := s.now()

	lookup, err := s.cache.Get(ctx, loanID)
	cacheable := err == nil
	if err != nil {
		s.logger.Warn("Schedule cache read failed", "loan_id", loanID.String(), "error", customError.WrapCacheError(err))
	}

	entries := lookup.Entries
	if !lookup.Found {
		loan, repayments, err := s.snapshot(ctx, loanID)
		if err != nil {
			return nil, err
		}

		entries, err = accounting.Project(loan, repayments, today)
		if err != nil {
			return nil, err
		}

		if cacheable {
			s.storeSchedule(ctx, loanID, lookup.Generation, entries)
		}
	}

	if windowed {
		entries = accounting.FilterWindow(entries, today, s.dueWindowDays)
	}

	return &domain.ScheduleResponse{LoanID: loanID, Schedule: entries}, nil
}

// storeSchedule skips the write when a mutation invalidated the loan after
// the lookup; its projection may predate that mutation.
func (s *LoanService) storeSchedule(ctx context.Context, loanID uuid.UUID, generation int64, entries []*domain.ScheduleEntry) {
	err := s.cache.Set(ctx, loanID, generation, entries)
	switch {
	case errors.Is(err, cache.ErrSuperseded):
		s.logger.Debug("Schedule changed while projecting, not cached", "loan_id", loanID.String())
	case err != nil:
		s.logger.Warn("Schedule cache write failed", "loan_id", loanID.String(), "error", customError.WrapCacheError(err))
	}
}

// GetOverdueState evaluates the overdue amount as of asOf, or now when asOf is nil.
func (s *LoanService) GetOverdueState(ctx context.Context, loanID uuid.UUID, asOf *time.Time) (*domain.OverdueResponse, error) {
	evaluateAt := s.now()
	if asOf != nil {
		evaluateAt = *asOf
	}

	loan, repayments, err := s.snapshot(ctx, loanID)
	if err != nil {
		return nil, err
	}

	state, err := accounting.ComputeOverdueState(loan, repayments, evaluateAt)
	if err != nil {
		return nil, err
	}

	return &domain.OverdueResponse{
		LoanID:         loanID,
		AsOf:           evaluateAt,
		OverdueAmount:  state.OverdueAmount,
		MissedPayments: state.MissedPayments,
	}, nil
}

// AddRepayment records a repayment against one period and recomputes the loan.
func (s *LoanService) AddRepayment(ctx context.Context, loanID uuid.UUID, req *domain.AddRepaymentRequest) (*domain.AddRepaymentResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		if !req.Amount.IsPositive() {
			return nil, customError.WrapInvalidAmount(req.Amount)
		}
		if req.Period < 1 {
			return nil, customError.WrapInvalidPeriod(req.Period)
		}
		if req.PaidDate.IsZero() {
			return nil, customError.WrapInvalidDate("paid_date")
		}
		return nil, customError.WrapInvalidRequest(err)
	}

	now := s.now()
	repayment := &domain.Repayment{
		ID:          uuid.New(),
		LoanID:      loanID,
		Amount:      req.Amount,
		PaidDate:    req.PaidDate,
		PaymentType: req.PaymentType,
		Period:      req.Period,
		CreatedAt:   now,
	}

	var (
		updated *domain.Loan
		state   domain.DerivedState
	)
	err := s.repo.WithinLoanTx(ctx, loanID, func(ctx context.Context, store repository.LoanStore) error {
		loan, err := store.GetLoan(ctx, loanID)
		if err != nil {
			return err
		}

		if err := checkRepaymentAllowed(loan, repayment); err != nil {
			return err
		}

		if err := store.InsertRepayment(ctx, repayment); err != nil {
			return err
		}

		updated, state, err = recompute(ctx, store, loan, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Repayment added",
		"loan_id", loanID.String(),
		"repayment_id", repayment.ID.String(),
		"payment_type", string(repayment.PaymentType),
		"period", repayment.Period,
		"amount", repayment.Amount.String(),
		"remaining", state.RemainingAmount.String(),
		"status", string(state.Status),
	)
	s.afterCommit(ctx, loanID, events.ReasonRepaymentAdded, state)

	return &domain.AddRepaymentResponse{Repayment: repayment, Loan: updated}, nil
}

// DeleteRepayment removes a repayment and recomputes the loan from the
// remaining ledger. A completed loan whose balance becomes positive again is
// active again.
func (s *LoanService) DeleteRepayment(ctx context.Context, repaymentID uuid.UUID) (*domain.Loan, error) {
	existing, err := s.repo.GetRepayment(ctx, repaymentID)
	if err != nil {
		return nil, err
	}
	loanID := existing.LoanID

	now := s.now()
	var (
		updated *domain.Loan
		state   domain.DerivedState
	)
	err = s.repo.WithinLoanTx(ctx, loanID, func(ctx context.Context, store repository.LoanStore) error {
		loan, err := store.GetLoan(ctx, loanID)
		if err != nil {
			return err
		}

		if err := store.DeleteRepayment(ctx, repaymentID); err != nil {
			return err
		}

		updated, state, err = recompute(ctx, store, loan, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Repayment deleted",
		"loan_id", loanID.String(),
		"repayment_id", repaymentID.String(),
		"remaining", state.RemainingAmount.String(),
		"status", string(state.Status),
	)
	s.afterCommit(ctx, loanID, events.ReasonRepaymentDeleted, state)

	return updated, nil
}

// UpdateLoanTerms edits the schedule-shaping terms and re-runs the full
// derivation. The installment only changes when the request sets it.
func (s *LoanService) UpdateLoanTerms(ctx context.Context, loanID uuid.UUID, req *domain.UpdateLoanTermsRequest) (*domain.Loan, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, customError.WrapInvalidRequest(err)
	}
	if req.Empty() {
		return s.repo.GetLoan(ctx, loanID)
	}

	now := s.now()
	var (
		updated *domain.Loan
		state   domain.DerivedState
	)
	err := s.repo.WithinLoanTx(ctx, loanID, func(ctx context.Context, store repository.LoanStore) error {
		loan, err := store.GetLoan(ctx, loanID)
		if err != nil {
			return err
		}

		applyTerms(loan, req)
		if err := checkSchedulable(loan); err != nil {
			return err
		}
		if err := checkInstallment(loan); err != nil {
			return err
		}

		repayments, err := store.GetRepayments(ctx, loanID)
		if err != nil {
			return err
		}
		if highest := accounting.NewLedger(repayments).MaxPeriod(); highest > loan.Duration {
			return customError.WrapPeriodOutOfRange(highest, loan.Duration)
		}

		if err := store.UpdateLoanTerms(ctx, loan); err != nil {
			return err
		}

		updated, state, err = recompute(ctx, store, loan, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Loan terms updated",
		"loan_id", loanID.String(),
		"repayment_type", string(updated.RepaymentType),
		"duration", updated.Duration,
		"installment", updated.InstallmentAmount.String(),
	)
	s.afterCommit(ctx, loanID, events.ReasonTermsUpdated, state)

	return updated, nil
}

// MarkDefaulted moves an active loan to defaulted. Nothing derives this
// status; once set it is kept until the balance reaches zero.
func (s *LoanService) MarkDefaulted(ctx context.Context, loanID uuid.UUID) (*domain.Loan, error) {
	now := s.now()
	var (
		updated *domain.Loan
		state   domain.DerivedState
	)
	err := s.repo.WithinLoanTx(ctx, loanID, func(ctx context.Context, store repository.LoanStore) error {
		loan, err := store.GetLoan(ctx, loanID)
		if err != nil {
			return err
		}
		if !loan.IsActive() {
			return customError.WrapLoanNotActive(loanID, string(loan.Status))
		}

		loan.Status = domain.LoanStatusDefaulted
		updated, state, err = recompute(ctx, store, loan, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Warn("Loan marked as defaulted",
		"loan_id", loanID.String(),
		"remaining", state.RemainingAmount.String(),
	)
	s.afterCommit(ctx, loanID, events.ReasonDefaulted, state)

	return updated, nil
}

// Recompute re-derives a loan's state as of now. Overdue figures drift with
// the calendar, so this is needed even when the ledger has not changed.
func (s *LoanService) Recompute(ctx context.Context, loanID uuid.UUID) (*domain.Loan, error) {
	now := s.now()
	var (
		updated *domain.Loan
		state   domain.DerivedState
		changed bool
	)
	err := s.repo.WithinLoanTx(ctx, loanID, func(ctx context.Context, store repository.LoanStore) error {
		loan, err := store.GetLoan(ctx, loanID)
		if err != nil {
			return err
		}

		previous := *loan
		updated, state, err = recompute(ctx, store, loan, now)
		if err != nil {
			return err
		}
		changed = stateChanged(&previous, state)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.logger.Info("Loan state recomputed",
			"loan_id", loanID.String(),
			"overdue", state.OverdueAmount.String(),
			"missed_payments", state.MissedPayments,
			"status", string(state.Status),
		)
		s.afterCommit(ctx, loanID, events.ReasonRecomputed, state)
	}

	return updated, nil
}

// RefreshResult summarises one RefreshActiveLoans run.
type RefreshResult struct {
	Total     int `json:"total"`
	Refreshed int `json:"refreshed"`
	Failed    int `json:"failed"`
}

// RefreshActiveLoans recomputes every active loan on a bounded worker pool.
// A failing loan is logged and counted; it does not stop the run.
func (s *LoanService) RefreshActiveLoans(ctx context.Context) (*RefreshResult, error) {
	ids, err := s.repo.ListActiveLoanIDs(ctx)
	if err != nil {
		return nil, err
	}

	result := &RefreshResult{Total: len(ids)}
	if len(ids) == 0 {
		return result, nil
	}

	pool, err := ants.NewPool(s.poolSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create refresh worker pool: %w", err)
	}
	defer pool.Release()

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	record := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			result.Failed++
			return
		}
		result.Refreshed++
	}

	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}

		loanID := id
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			_, err := s.Recompute(ctx, loanID)
			if err != nil {
				s.logger.Error("Failed to refresh loan", "loan_id", loanID.String(), "error", err)
			}
			record(err)
		})
		if submitErr != nil {
			wg.Done()
			s.logger.Error("Failed to submit loan refresh", "loan_id", loanID.String(), "error", submitErr)
			record(submitErr)
		}
	}
	wg.Wait()

	s.logger.Info("Active loans refreshed",
		"total", result.Total,
		"refreshed", result.Refreshed,
		"failed", result.Failed,
	)

	return result, ctx.Err()
}

func (s *LoanService) snapshot(ctx context.Context, loanID uuid.UUID) (*domain.Loan, []*domain.Repayment, error) {
	loan, err := s.repo.GetLoan(ctx, loanID)
	if err != nil {
		return nil, nil, err
	}
	repayments, err := s.repo.GetRepayments(ctx, loanID)
	if err != nil {
		return nil, nil, err
	}
	return loan, repayments, nil
}

// afterCommit runs once the transaction is durable. Failures here are logged;
// the committed state stays authoritative.
func (s *LoanService) afterCommit(ctx context.Context, loanID uuid.UUID, reason string, state domain.DerivedState) {
	if err := s.cache.Invalidate(ctx, loanID); err != nil {
		s.logger.Warn("Schedule cache invalidation failed", "loan_id", loanID.String(), "error", customError.WrapCacheError(err))
	}

	event := events.NewLoanStateChanged(loanID, reason, state, s.now())
	if err := s.publisher.PublishLoanStateChanged(ctx, event); err != nil {
		s.logger.Warn("Loan event not published", "loan_id", loanID.String(), "reason", reason, "error", err)
	}
}

// recompute derives the loan's state from the ledger as seen through store and
// persists it. It must run inside a loan transaction.
func recompute(ctx context.Context, store repository.LoanStore, loan *domain.Loan, asOf time.Time) (*domain.Loan, domain.DerivedState, error) {
	repayments, err := store.GetRepayments(ctx, loan.ID)
	if err != nil {
		return nil, domain.DerivedState{}, err
	}

	state, err := accounting.Derive(loan, repayments, asOf)
	if err != nil {
		return nil, domain.DerivedState{}, err
	}

	if err := store.SaveLoanDerivedState(ctx, loan.ID, state); err != nil {
		return nil, domain.DerivedState{}, err
	}

	loan.ApplyDerivedState(state)
	return loan, state, nil
}

func checkRepaymentAllowed(loan *domain.Loan, repayment *domain.Repayment) error {
	if repayment.Period > loan.Duration {
		return customError.WrapPeriodOutOfRange(repayment.Period, loan.Duration)
	}

	switch {
	case repayment.IsFull() && !loan.IsActive():
		return customError.WrapLoanNotActive(loan.ID, string(loan.Status))
	case !repayment.IsFull() && loan.Status == domain.LoanStatusCompleted:
		return customError.WrapLoanNotActive(loan.ID, string(loan.Status))
	}

	if repayment.IsFull() && repayment.Amount.GreaterThan(loan.RemainingAmount) {
		return customError.WrapAmountExceedsRemaining(repayment.Amount, loan.RemainingAmount)
	}
	return nil
}

func applyTerms(loan *domain.Loan, req *domain.UpdateLoanTermsRequest) {
	if req.InterestRate != nil {
		loan.InterestRate = *req.InterestRate
	}
	if req.DocumentCharge != nil {
		loan.DocumentCharge = *req.DocumentCharge
	}
	if req.RepaymentType != nil {
		loan.RepaymentType = *req.RepaymentType
	}
	if req.Duration != nil {
		loan.Duration = *req.Duration
	}
	if req.DisbursementDate != nil {
		loan.DisbursementDate = utils.TruncateToDate(*req.DisbursementDate)
	}
	if req.InstallmentAmount != nil {
		loan.InstallmentAmount = *req.InstallmentAmount
	}
}

// checkSchedulable rejects terms no schedule can be built from.
func checkSchedulable(loan *domain.Loan) error {
	if loan.RepaymentType == domain.RepaymentTypeWeekly && loan.Duration < 2 {
		return customError.WrapInvalidRequest(fmt.Errorf("weekly loans need a duration of at least 2 periods, got %d", loan.Duration))
	}
	return nil
}

// checkInstallment rejects a monthly installment that does not cover its flat interest.
func checkInstallment(loan *domain.Loan) error {
	if !loan.InstallmentAmount.IsPositive() {
		return customError.WrapInvalidAmount(loan.InstallmentAmount)
	}
	if loan.RepaymentType == domain.RepaymentTypeMonthly && loan.InstallmentAmount.LessThan(loan.InterestRate) {
		return customError.WrapInvalidRequest(fmt.Errorf("installment %s is below the interest rate %s", loan.InstallmentAmount, loan.InterestRate))
	}
	return nil
}

func stateChanged(loan *domain.Loan, state domain.DerivedState) bool {
	if !loan.RemainingAmount.Equal(state.RemainingAmount) ||
		loan.Status != state.Status ||
		!loan.OverdueAmount.Equal(state.OverdueAmount) ||
		loan.MissedPayments != state.MissedPayments {
		return true
	}
	switch {
	case loan.NextPaymentDate == nil && state.NextPaymentDate == nil:
		return false
	case loan.NextPaymentDate == nil || state.NextPaymentDate == nil:
		return true
	default:
		return !loan.NextPaymentDate.Equal(*state.NextPaymentDate)
	}
}
