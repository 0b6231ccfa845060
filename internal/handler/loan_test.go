package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/segyhp/loan-ledger/internal/domain"
	customError "github.com/segyhp/loan-ledger/pkg/errors"
	"github.com/segyhp/loan-ledger/pkg/response"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockLoanService mocks LoanService
type MockLoanService struct {
	mock.Mock
}

func (m *MockLoanService) CreateLoan(ctx context.Context, req *domain.CreateLoanRequest) (*domain.Loan, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Loan), args.Error(1)
}

func (m *MockLoanService) GetLoan(ctx context.Context, loanID uuid.UUID) (*domain.Loan, error) {
	args := m.Called(ctx, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Loan), args.Error(1)
}

func (m *MockLoanService) GetSchedule(ctx context.Context, loanID uuid.UUID, windowed bool) (*domain.ScheduleResponse, error) {
	args := m.Called(ctx, loanID, windowed)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ScheduleResponse), args.Error(1)
}

func (m *MockLoanService) GetOverdueState(ctx context.Context, loanID uuid.UUID, asOf *time.Time) (*domain.OverdueResponse, error) {
	args := m.Called(ctx, loanID, asOf)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.OverdueResponse), args.Error(1)
}

func (m *MockLoanService) AddRepayment(ctx context.Context, loanID uuid.UUID, req *domain.AddRepaymentRequest) (*domain.AddRepaymentResponse, error) {
	args := m.Called(ctx, loanID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AddRepaymentResponse), args.Error(1)
}

func (m *MockLoanService) DeleteRepayment(ctx context.Context, repaymentID uuid.UUID) (*domain.Loan, error) {
	args := m.Called(ctx, repaymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Loan), args.Error(1)
}

func (m *MockLoanService) UpdateLoanTerms(ctx context.Context, loanID uuid.UUID, req *domain.UpdateLoanTermsRequest) (*domain.Loan, error) {
	args := m.Called(ctx, loanID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Loan), args.Error(1)
}

func (m *MockLoanService) MarkDefaulted(ctx context.Context, loanID uuid.UUID) (*domain.Loan, error) {
	args := m.Called(ctx, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Loan), args.Error(1)
}

func (m *MockLoanService) Recompute(ctx context.Context, loanID uuid.UUID) (*domain.Loan, error) {
	args := m.Called(ctx, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Loan), args.Error(1)
}

func newTestRouter(svc LoanService) *mux.Router {
	router := mux.NewRouter()
	NewLoanHandler(svc).RegisterRoutes(router.PathPrefix("/api/v1").Subrouter())
	return router
}

func serve(router http.Handler, method, target string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) response.ErrorResponse {
	t.Helper()
	var body response.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestCreateLoan(t *testing.T) {
	svc := new(MockLoanService)
	router := newTestRouter(svc)

	loan := &domain.Loan{ID: uuid.New(), PrincipalAmount: decimal.NewFromInt(12000), Status: domain.LoanStatusActive}
	svc.On("CreateLoan", mock.Anything, mock.MatchedBy(func(req *domain.CreateLoanRequest) bool {
		return req.PrincipalAmount.Equal(decimal.NewFromInt(12000)) &&
			req.RepaymentType == domain.RepaymentTypeMonthly &&
			req.Duration == 12 &&
			req.DisbursementDate.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	})).Return(loan, nil).Once()

	rec := serve(router, http.MethodPost, "/api/v1/loans", map[string]interface{}{
		"owner_id":          "borrower-1",
		"principal_amount":  "12000",
		"interest_rate":     "100",
		"document_charge":   "0",
		"repayment_type":    "monthly",
		"duration":          12,
		"disbursement_date": "2024-01-01T00:00:00Z",
	})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), loan.ID.String())
	svc.AssertExpectations(t)
}

func TestCreateLoan_MalformedBody(t *testing.T) {
	svc := new(MockLoanService)
	router := newTestRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/loans", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, customError.ErrCodeInvalidRequest, decodeError(t, rec).Error)
	svc.AssertNotCalled(t, "CreateLoan", mock.Anything, mock.Anything)
}

func TestGetLoan_InvalidID(t *testing.T) {
	svc := new(MockLoanService)
	router := newTestRouter(svc)

	rec := serve(router, http.MethodGet, "/api/v1/loans/not-a-uuid", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertNotCalled(t, "GetLoan", mock.Anything, mock.Anything)
}

func TestErrorKindsMapToStatus(t *testing.T) {
	loanID := uuid.New()

	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"not found", customError.WrapLoanNotFound(loanID), http.StatusNotFound, customError.ErrCodeLoanNotFound},
		{"exceeds remaining", customError.WrapAmountExceedsRemaining(decimal.NewFromInt(2), decimal.NewFromInt(1)), http.StatusBadRequest, customError.ErrCodeAmountExceedsRemain},
		{"not active", customError.WrapLoanNotActive(loanID, "completed"), http.StatusConflict, customError.ErrCodeLoanNotActive},
		{"computation", customError.WrapInvariantViolated("bad ledger"), http.StatusInternalServerError, customError.ErrCodeInvariantViolated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockLoanService)
			router := newTestRouter(svc)
			svc.On("AddRepayment", mock.Anything, loanID, mock.Anything).Return(nil, tt.err).Once()

			rec := serve(router, http.MethodPost, "/api/v1/loans/"+loanID.String()+"/repayments", map[string]interface{}{
				"amount":       "1100",
				"paid_date":    "2024-02-01T00:00:00Z",
				"payment_type": "full",
				"period":       1,
			})

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, decodeError(t, rec).Error)
			svc.AssertExpectations(t)
		})
	}
}

func TestAddRepayment(t *testing.T) {
	svc := new(MockLoanService)
	router := newTestRouter(svc)
	loanID := uuid.New()

	result := &domain.AddRepaymentResponse{
		Repayment: &domain.Repayment{ID: uuid.New(), LoanID: loanID, PaymentType: domain.PaymentTypeInterestOnly, Period: 2},
		Loan:      &domain.Loan{ID: loanID},
	}
	svc.On("AddRepayment", mock.Anything, loanID, mock.MatchedBy(func(req *domain.AddRepaymentRequest) bool {
		return req.PaymentType == domain.PaymentTypeInterestOnly && req.Period == 2 &&
			req.Amount.Equal(decimal.RequireFromString("100.50"))
	})).Return(result, nil).Once()

	rec := serve(router, http.MethodPost, "/api/v1/loans/"+loanID.String()+"/repayments", map[string]interface{}{
		"amount":       "100.50",
		"paid_date":    "2024-03-01T00:00:00Z",
		"payment_type": "interest_only",
		"period":       2,
	})

	assert.Equal(t, http.StatusCreated, rec.Code)
	svc.AssertExpectations(t)
}

func TestGetSchedule_WindowParam(t *testing.T) {
	svc := new(MockLoanService)
	router := newTestRouter(svc)
	loanID := uuid.New()

	svc.On("GetSchedule", mock.Anything, loanID, true).Return(&domain.ScheduleResponse{LoanID: loanID}, nil).Once()
	svc.On("GetSchedule", mock.Anything, loanID, false).Return(&domain.ScheduleResponse{LoanID: loanID}, nil).Once()

	rec := serve(router, http.MethodGet, "/api/v1/loans/"+loanID.String()+"/schedule?window=true", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(router, http.MethodGet, "/api/v1/loans/"+loanID.String()+"/schedule", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(router, http.MethodGet, "/api/v1/loans/"+loanID.String()+"/schedule?window=maybe", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	svc.AssertExpectations(t)
}

func TestGetOverdueState_AsOf(t *testing.T) {
	svc := new(MockLoanService)
	router := newTestRouter(svc)
	loanID := uuid.New()
	asOf := time.Date(2024, 4, 15, 0, 0, 0, 0, time.UTC)

	svc.On("GetOverdueState", mock.Anything, loanID, mock.MatchedBy(func(at *time.Time) bool {
		return at != nil && at.Equal(asOf)
	})).Return(&domain.OverdueResponse{
		LoanID:         loanID,
		AsOf:           asOf,
		OverdueAmount:  decimal.NewFromInt(3300),
		MissedPayments: 3,
	}, nil).Once()

	rec := serve(router, http.MethodGet, "/api/v1/loans/"+loanID.String()+"/overdue?as_of=2024-04-15", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"missed_payments":3`)

	rec = serve(router, http.MethodGet, "/api/v1/loans/"+loanID.String()+"/overdue?as_of=15-04-2024", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, customError.ErrCodeInvalidDate, decodeError(t, rec).Error)

	svc.AssertExpectations(t)
}

func TestDeleteRepayment(t *testing.T) {
	svc := new(MockLoanService)
	router := newTestRouter(svc)
	repaymentID := uuid.New()

	svc.On("DeleteRepayment", mock.Anything, repaymentID).Return(&domain.Loan{ID: uuid.New()}, nil).Once()

	rec := serve(router, http.MethodDelete, "/api/v1/repayments/"+repaymentID.String(), nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	missing := uuid.New()
	svc.On("DeleteRepayment", mock.Anything, missing).Return(nil, customError.WrapRepaymentNotFound(missing)).Once()

	rec = serve(router, http.MethodDelete, "/api/v1/repayments/"+missing.String(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	svc.AssertExpectations(t)
}

func TestUpdateLoanTerms(t *testing.T) {
	svc := new(MockLoanService)
	router := newTestRouter(svc)
	loanID := uuid.New()

	svc.On("UpdateLoanTerms", mock.Anything, loanID, mock.MatchedBy(func(req *domain.UpdateLoanTermsRequest) bool {
		return req.Duration != nil && *req.Duration == 18 && req.InstallmentAmount == nil
	})).Return(&domain.Loan{ID: loanID, Duration: 18}, nil).Once()

	rec := serve(router, http.MethodPut, "/api/v1/loans/"+loanID.String()+"/terms", map[string]interface{}{"duration": 18})
	assert.Equal(t, http.StatusOK, rec.Code)
	svc.AssertExpectations(t)
}

func TestMarkDefaultedAndRecompute(t *testing.T) {
	svc := new(MockLoanService)
	router := newTestRouter(svc)
	loanID := uuid.New()

	svc.On("MarkDefaulted", mock.Anything, loanID).Return(nil, customError.WrapLoanNotActive(loanID, "completed")).Once()
	svc.On("Recompute", mock.Anything, loanID).Return(&domain.Loan{ID: loanID}, nil).Once()

	rec := serve(router, http.MethodPost, "/api/v1/loans/"+loanID.String()+"/default", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = serve(router, http.MethodPost, "/api/v1/loans/"+loanID.String()+"/recompute", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	svc.AssertExpectations(t)
}
