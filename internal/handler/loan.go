package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/segyhp/pawn-engine/internal/domain"
	"github.com/segyhp/pawn-engine/internal/lifecycle"
	customError "github.com/segyhp/pawn-engine/pkg/errors"
	"github.com/segyhp/pawn-engine/pkg/response"
)

const maxBodyBytes = 1 << 20

// LoanService is what the HTTP layer needs from the pawn service
type LoanService interface {
	CreateLoan(ctx context.Context, request *domain.CreateLoanRequest, operator domain.Operator) (*domain.Loan, error)
	GetLoan(ctx context.Context, loanID uuid.UUID) (*domain.Loan, error)
	ListLoans(ctx context.Context, filter domain.LoanFilter) ([]*domain.Loan, error)
	MakePayment(ctx context.Context, loanID uuid.UUID, request domain.PaymentRequest, operator domain.Operator) (*lifecycle.Result, error)
	AddMoney(ctx context.Context, loanID uuid.UUID, request domain.AddMoneyRequest, operator domain.Operator) (*lifecycle.Result, error)
	ApplyDiscount(ctx context.Context, loanID uuid.UUID, request domain.DiscountRequest, operator domain.Operator) (*lifecycle.Result, error)
	Extend(ctx context.Context, loanID uuid.UUID, request domain.ExtendRequest, operator domain.Operator) (*lifecycle.Result, error)
	EditLoan(ctx context.Context, loanID uuid.UUID, request domain.EditLoanRequest, operator domain.Operator) (*lifecycle.Result, error)
	Redeem(ctx context.Context, loanID uuid.UUID, request domain.RedeemRequest, operator domain.Operator) (*lifecycle.Result, error)
	Forfeit(ctx context.Context, loanID uuid.UUID, operator domain.Operator) (*lifecycle.Result, error)
	Reactivate(ctx context.Context, loanID uuid.UUID, operator domain.Operator) (*lifecycle.Result, error)
	Void(ctx context.Context, loanID uuid.UUID, request domain.VoidRequest, operator domain.Operator) (*lifecycle.Result, error)
	GetPaymentHistory(ctx context.Context, loanID uuid.UUID) ([]*domain.PaymentRecord, error)
	GetAuditTrail(ctx context.Context, loanID uuid.UUID) ([]*domain.AuditEntry, error)
	GetForfeitureEligibility(ctx context.Context, loanID uuid.UUID) (*domain.EligibilityResponse, error)
	GetCollections(ctx context.Context, from, to time.Time) (*domain.CollectionsResponse, error)
}

type LoanHandler struct {
	service   LoanService
	validator *validator.Validate
}

func NewLoanHandler(service LoanService) *LoanHandler {
	return &LoanHandler{
		service:   service,
		validator: newValidator(),
	}
}

// RegisterRoutes mounts the loan API on r
func (h *LoanHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/loans", h.CreateLoan).Methods(http.MethodPost)
	r.HandleFunc("/loans", h.ListLoans).Methods(http.MethodGet)
	r.HandleFunc("/loans/{loanId}", h.GetLoan).Methods(http.MethodGet)
	r.HandleFunc("/loans/{loanId}", h.EditLoan).Methods(http.MethodPut)
	r.HandleFunc("/loans/{loanId}", h.VoidLoan).Methods(http.MethodDelete)
	r.HandleFunc("/loans/{loanId}/payments", h.MakePayment).Methods(http.MethodPost)
	r.HandleFunc("/loans/{loanId}/payments", h.GetPaymentHistory).Methods(http.MethodGet)
	r.HandleFunc("/loans/{loanId}/add-money", h.AddMoney).Methods(http.MethodPost)
	r.HandleFunc("/loans/{loanId}/discount", h.ApplyDiscount).Methods(http.MethodPost)
	r.HandleFunc("/loans/{loanId}/extend", h.Extend).Methods(http.MethodPost)
	r.HandleFunc("/loans/{loanId}/redeem", h.Redeem).Methods(http.MethodPost)
	r.HandleFunc("/loans/{loanId}/forfeit", h.Forfeit).Methods(http.MethodPost)
	r.HandleFunc("/loans/{loanId}/reactivate", h.Reactivate).Methods(http.MethodPost)
	r.HandleFunc("/loans/{loanId}/audit", h.GetAuditTrail).Methods(http.MethodGet)
	r.HandleFunc("/loans/{loanId}/forfeiture-eligibility", h.GetForfeitureEligibility).Methods(http.MethodGet)
	r.HandleFunc("/collections", h.GetCollections).Methods(http.MethodGet)
}

func (h *LoanHandler) CreateLoan(w http.ResponseWriter, r *http.Request) {
	var request domain.CreateLoanRequest
	if !h.bind(w, r, &request, false) {
		return
	}

	loan, err := h.service.CreateLoan(r.Context(), &request, operator(r))
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Created(w, loan)
}

func (h *LoanHandler) GetLoan(w http.ResponseWriter, r *http.Request) {
	loanID, ok := loanIDParam(w, r)
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

func (h *LoanHandler) ListLoans(w http.ResponseWriter, r *http.Request) {
	filter, err := parseLoanFilter(r)
	if err != nil {
		response.FromError(w, err)
		return
	}

	loans, err := h.service.ListLoans(r.Context(), filter)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Success(w, loans)
}

func (h *LoanHandler) EditLoan(w http.ResponseWriter, r *http.Request) {
	var request domain.EditLoanRequest
	h.operate(w, r, &request, false, func(ctx context.Context, id uuid.UUID, op domain.Operator) (*lifecycle.Result, error) {
		return h.service.EditLoan(ctx, id, request, op)
	})
}

func (h *LoanHandler) VoidLoan(w http.ResponseWriter, r *http.Request) {
	var request domain.VoidRequest
	h.operate(w, r, &request, true, func(ctx context.Context, id uuid.UUID, op domain.Operator) (*lifecycle.Result, error) {
		return h.service.Void(ctx, id, request, op)
	})
}

func (h *LoanHandler) MakePayment(w http.ResponseWriter, r *http.Request) {
	var request domain.PaymentRequest
	h.operate(w, r, &request, false, func(ctx context.Context, id uuid.UUID, op domain.Operator) (*lifecycle.Result, error) {
		return h.service.MakePayment(ctx, id, request, op)
	})
}

func (h *LoanHandler) AddMoney(w http.ResponseWriter, r *http.Request) {
	var request domain.AddMoneyRequest
	h.operate(w, r, &request, false, func(ctx context.Context, id uuid.UUID, op domain.Operator) (*lifecycle.Result, error) {
		return h.service.AddMoney(ctx, id, request, op)
	})
}

func (h *LoanHandler) ApplyDiscount(w http.ResponseWriter, r *http.Request) {
	var request domain.DiscountRequest
	h.operate(w, r, &request, false, func(ctx context.Context, id uuid.UUID, op domain.Operator) (*lifecycle.Result, error) {
		return h.service.ApplyDiscount(ctx, id, request, op)
	})
}

func (h *LoanHandler) Extend(w http.ResponseWriter, r *http.Request) {
	var request domain.ExtendRequest
	h.operate(w, r, &request, true, func(ctx context.Context, id uuid.UUID, op domain.Operator) (*lifecycle.Result, error) {
		return h.service.Extend(ctx, id, request, op)
	})
}

func (h *LoanHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	var request domain.RedeemRequest
	h.operate(w, r, &request, true, func(ctx context.Context, id uuid.UUID, op domain.Operator) (*lifecycle.Result, error) {
		return h.service.Redeem(ctx, id, request, op)
	})
}

func (h *LoanHandler) Forfeit(w http.ResponseWriter, r *http.Request) {
	h.operate(w, r, nil, true, h.service.Forfeit)
}

func (h *LoanHandler) Reactivate(w http.ResponseWriter, r *http.Request) {
	h.operate(w, r, nil, true, h.service.Reactivate)
}

func (h *LoanHandler) GetPaymentHistory(w http.ResponseWriter, r *http.Request) {
	loanID, ok := loanIDParam(w, r)
	if !ok {
		return
	}

	payments, err := h.service.GetPaymentHistory(r.Context(), loanID)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Success(w, payments)
}

func (h *LoanHandler) GetAuditTrail(w http.ResponseWriter, r *http.Request) {
	loanID, ok := loanIDParam(w, r)
	if !ok {
		return
	}

	entries, err := h.service.GetAuditTrail(r.Context(), loanID)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Success(w, entries)
}

func (h *LoanHandler) GetForfeitureEligibility(w http.ResponseWriter, r *http.Request) {
	loanID, ok := loanIDParam(w, r)
	if !ok {
		return
	}

	eligibility, err := h.service.GetForfeitureEligibility(r.Context(), loanID)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Success(w, eligibility)
}

// GetCollections accepts RFC 3339 timestamps or plain dates for from and to
func (h *LoanHandler) GetCollections(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	from, err := parseTime(query.Get("from"))
	if err != nil {
		response.FromError(w, customError.WrapValidation("from: "+err.Error()))
		return
	}
	to, err := parseTime(query.Get("to"))
	if err != nil {
		response.FromError(w, customError.WrapValidation("to: "+err.Error()))
		return
	}

	collections, err := h.service.GetCollections(r.Context(), from, to)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Success(w, collections)
}

type operation func(ctx context.Context, loanID uuid.UUID, operator domain.Operator) (*lifecycle.Result, error)

// operate handles the shared shape of state-changing loan endpoints. A nil
// request means the endpoint takes no body.
func (h *LoanHandler) operate(w http.ResponseWriter, r *http.Request, request interface{}, bodyOptional bool, run operation) {
	loanID, ok := loanIDParam(w, r)
	if !ok {
		return
	}
	if request != nil && !h.bind(w, r, request, bodyOptional) {
		return
	}

	result, err := run(r.Context(), loanID, operator(r))
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Success(w, toOperationResponse(result))
}

// bind decodes and validates a JSON body. Unknown fields are rejected.
func (h *LoanHandler) bind(w http.ResponseWriter, r *http.Request, dst interface{}, optional bool) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil && !(optional && errors.Is(err, io.EOF)) {
		response.BadRequest(w, "Invalid request body", customError.WrapValidation(err.Error()))
		return false
	}

	if err := h.validator.Struct(dst); err != nil {
		response.BadRequest(w, "Validation failed", customError.WrapValidation(err.Error()))
		return false
	}
	return true
}

func toOperationResponse(result *lifecycle.Result) *domain.OperationResponse {
	audit := result.Audit
	loan := result.Loan
	return &domain.OperationResponse{
		Loan:        &loan,
		Payment:     result.Payment,
		Audit:       &audit,
		FullyPaid:   result.FullyPaid,
		Overpayment: result.Overpayment,
	}
}

func loanIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	loanID, err := uuid.Parse(mux.Vars(r)["loanId"])
	if err != nil {
		response.BadRequest(w, "Invalid loan id", customError.WrapValidation("loan id must be a UUID"))
		return uuid.Nil, false
	}
	return loanID, true
}

// operator is set by the auth middleware; requests that bypass it act as
// the system operator
func operator(r *http.Request) domain.Operator {
	if op, ok := OperatorFromContext(r.Context()); ok {
		return op
	}
	return domain.SystemOperator
}

func parseLoanFilter(r *http.Request) (domain.LoanFilter, error) {
	query := r.URL.Query()
	filter := domain.LoanFilter{Status: domain.LoanStatus(query.Get("status"))}

	if raw := query.Get("customer_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return filter, customError.WrapValidation("customer_id must be a UUID")
		}
		filter.CustomerID = id
	}
	if raw := query.Get("due_before"); raw != "" {
		dueBefore, err := parseTime(raw)
		if err != nil {
			return filter, customError.WrapValidation("due_before: " + err.Error())
		}
		filter.DueBefore = dueBefore
	}
	for name, target := range map[string]*int{"limit": &filter.Limit, "offset": &filter.Offset} {
		if raw := query.Get(name); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				return filter, customError.WrapValidation(name + " must be a non-negative integer")
			}
			*target = n
		}
	}
	return filter, nil
}

func parseTime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, errors.New("is required")
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, errors.New("must be RFC 3339 or YYYY-MM-DD")
	}
	return t, nil
}
