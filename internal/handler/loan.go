package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/segyhp/loan-ledger/internal/domain"
	customError "github.com/segyhp/loan-ledger/pkg/errors"
	"github.com/segyhp/loan-ledger/pkg/response"
	"github.com/segyhp/loan-ledger/pkg/utils"

	"github.com/gorilla/mux"
)

// LoanService is the part of service.LoanService the HTTP layer needs.
type LoanService interface {
	CreateLoan(ctx context.Context, req *domain.CreateLoanRequest) (*domain.Loan, error)
	GetLoan(ctx context.Context, loanID uuid.UUID) (*domain.Loan, error)
	GetSchedule(ctx context.Context, loanID uuid.UUID, windowed bool) (*domain.ScheduleResponse, error)
	GetOverdueState(ctx context.Context, loanID uuid.UUID, asOf *time.Time) (*domain.OverdueResponse, error)
	AddRepayment(ctx context.Context, loanID uuid.UUID, req *domain.AddRepaymentRequest) (*domain.AddRepaymentResponse, error)
	DeleteRepayment(ctx context.Context, repaymentID uuid.UUID) (*domain.Loan, error)
	UpdateLoanTerms(ctx context.Context, loanID uuid.UUID, req *domain.UpdateLoanTermsRequest) (*domain.Loan, error)
	MarkDefaulted(ctx context.Context, loanID uuid.UUID) (*domain.Loan, error)
	Recompute(ctx context.Context, loanID uuid.UUID) (*domain.Loan, error)
}

type LoanHandler struct {
	service LoanService
}

func NewLoanHandler(service LoanService) *LoanHandler {
	return &LoanHandler{service: service}
}

// RegisterRoutes mounts the loan API on router.
func (h *LoanHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/loans", h.CreateLoan).Methods(http.MethodPost)
	router.HandleFunc("/loans/{loanId}", h.GetLoan).Methods(http.MethodGet)
	router.HandleFunc("/loans/{loanId}/terms", h.UpdateLoanTerms).Methods(http.MethodPut)
	router.HandleFunc("/loans/{loanId}/schedule", h.GetSchedule).Methods(http.MethodGet)
	router.HandleFunc("/loans/{loanId}/overdue", h.GetOverdueState).Methods(http.MethodGet)
	router.HandleFunc("/loans/{loanId}/repayments", h.AddRepayment).Methods(http.MethodPost)
	router.HandleFunc("/loans/{loanId}/default", h.MarkDefaulted).Methods(http.MethodPost)
	router.HandleFunc("/loans/{loanId}/recompute", h.Recompute).Methods(http.MethodPost)
	router.HandleFunc("/repayments/{repaymentId}", h.DeleteRepayment).Methods(http.MethodDelete)
}

func (h *LoanHandler) CreateLoan(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateLoanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.FromError(w, customError.WrapInvalidRequest(err))
		return
	}

	loan, err := h.service.CreateLoan(r.Context(), &req)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Created(w, loan)
}

func (h *LoanHandler) GetLoan(w http.ResponseWriter, r *http.Request) {
	loanID, ok := pathID(w, r, "loanId")
	if !ok {
		return
	}

	loan, err := h.service.GetLoan(r.Context(), loanID)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Success(w, loan)
}

// GetSchedule serves the projected schedule; ?window=true trims it to the
// borrower-facing view.
func (h *LoanHandler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	loanID, ok := pathID(w, r, "loanId")
	if !ok {
		return
	}

	windowed := false
	if raw := r.URL.Query().Get("window"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			response.FromError(w, customError.WrapInvalidRequest(err))
			return
		}
		windowed = parsed
	}

	schedule, err := h.service.GetSchedule(r.Context(), loanID, windowed)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Success(w, schedule)
}

func (h *LoanHandler) GetOverdueState(w http.ResponseWriter, r *http.Request) {
	loanID, ok := pathID(w, r, "loanId")
	if !ok {
		return
	}

	var asOf *time.Time
	if raw := r.URL.Query().Get("as_of"); raw != "" {
		parsed, err := utils.ParseDate(raw)
		if err != nil {
			response.FromError(w, customError.WrapInvalidDate("as_of"))
			return
		}
		asOf = &parsed
	}

	state, err := h.service.GetOverdueState(r.Context(), loanID, asOf)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Success(w, state)
}

func (h *LoanHandler) AddRepayment(w http.ResponseWriter, r *http.Request) {
	loanID, ok := pathID(w, r, "loanId")
	if !ok {
		return
	}

	var req domain.AddRepaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.FromError(w, customError.WrapInvalidRequest(err))
		return
	}

	result, err := h.service.AddRepayment(r.Context(), loanID, &req)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Created(w, result)
}

func (h *LoanHandler) DeleteRepayment(w http.ResponseWriter, r *http.Request) {
	repaymentID, ok := pathID(w, r, "repaymentId")
	if !ok {
		return
	}

	loan, err := h.service.DeleteRepayment(r.Context(), repaymentID)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Success(w, loan)
}

func (h *LoanHandler) UpdateLoanTerms(w http.ResponseWriter, r *http.Request) {
	loanID, ok := pathID(w, r, "loanId")
	if !ok {
		return
	}

	var req domain.UpdateLoanTermsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.FromError(w, customError.WrapInvalidRequest(err))
		return
	}

	loan, err := h.service.UpdateLoanTerms(r.Context(), loanID, &req)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Success(w, loan)
}

func (h *LoanHandler) MarkDefaulted(w http.ResponseWriter, r *http.Request) {
	loanID, ok := pathID(w, r, "loanId")
	if !ok {
		return
	}

	loan, err := h.service.MarkDefaulted(r.Context(), loanID)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Success(w, loan)
}

func (h *LoanHandler) Recompute(w http.ResponseWriter, r *http.Request) {
	loanID, ok := pathID(w, r, "loanId")
	if !ok {
		return
	}

	loan, err := h.service.Recompute(r.Context(), loanID)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Success(w, loan)
}

// pathID parses a UUID route variable, writing a 400 when it is malformed.
func pathID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)[name])
	if err != nil {
		response.FromError(w, customError.WrapInvalidRequest(err))
		return uuid.Nil, false
	}
	return id, true
}
