/*
handlers.go - HTTP API handlers for the payment platform

PURPOSE:
  Exposes the ledger engine and payment flows via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Companies:
    GET    /api/companies                     List all companies
    POST   /api/companies                     Register a company
    GET    /api/companies/{id}                Get company details
    GET    /api/companies/{id}/balance        Live balance (settles due items first)
    GET    /api/companies/{id}/transactions   Transaction history
    GET    /api/companies/{id}/scheduled/due  Due scheduled payments (read-only)

  Funds:
    POST   /api/companies/{id}/funds/add      Deposit
    POST   /api/companies/{id}/funds/withdraw Withdrawal

  Payments:
    POST   /api/payments/send                 Send or schedule a payment

  Payment requests:
    POST   /api/requests                      Create a request
    GET    /api/companies/{id}/requests/incoming
    GET    /api/companies/{id}/requests/outgoing
    POST   /api/requests/{id}/accept          Pay a pending request
    POST   /api/requests/{id}/reject          Decline a pending request

  Settlement:
    POST   /api/settlement/run                Trigger a settlement sweep

  Scenarios:
    GET    /api/scenarios                     List demo scenarios
    POST   /api/scenarios/load                Load a demo scenario
    POST   /api/scenarios/reset               Wipe the database

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input, insufficient balance
  - 404: Resource not found
  - 409: Conflict (duplicate email, request already closed)
  - 500: Internal errors
  - 503: Balance unavailable (store failure; no number is better than a
         wrong number)

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/vero/finance-engine/ledger"
	"github.com/vero/finance-engine/payments"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// ResettableStore is the store surface the API needs: the full ledger port
// plus the ability to wipe everything for scenario loading.
type ResettableStore interface {
	ledger.Store
	Reset(ctx context.Context) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store    ResettableStore
	Payments *payments.Service
	Balances *ledger.BalanceService
	Settler  *ledger.Settler
	Log      logrus.FieldLogger

	validate *validator.Validate

	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a new handler with the given store and rate source.
func NewHandler(store ResettableStore, rates payments.RateSource) *Handler {
	svc := payments.NewService(store, rates)
	return &Handler{
		Store:    store,
		Payments: svc,
		Balances: svc.Balances,
		Settler:  svc.Balances.Settler,
		Log:      logrus.StandardLogger(),
		validate: validator.New(),
	}
}

func (h *Handler) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return false
	}
	return true
}

// =============================================================================
// COMPANY HANDLERS
// =============================================================================

// ListCompanies returns all companies.
func (h *Handler) ListCompanies(w http.ResponseWriter, r *http.Request) {
	companies, err := h.Store.ListCompanies(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list companies", err)
		return
	}

	dtos := make([]CompanyDTO, len(companies))
	for i, c := range companies {
		dtos[i] = toCompanyDTO(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateCompany registers a new company.
func (h *Handler) CreateCompany(w http.ResponseWriter, r *http.Request) {
	var req CreateCompanyRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	company, err := h.Payments.CreateCompany(r.Context(), req.Name, req.Email, req.WalletAddress)
	if err != nil {
		h.domainError(w, "Failed to create company", err)
		return
	}
	writeJSON(w, http.StatusCreated, toCompanyDTO(*company))
}

// GetCompany returns a single company.
func (h *Handler) GetCompany(w http.ResponseWriter, r *http.Request) {
	id := ledger.CompanyID(chi.URLParam(r, "id"))

	company, err := h.Store.GetCompany(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get company", err)
		return
	}
	if company == nil {
		writeError(w, http.StatusNotFound, "Company not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toCompanyDTO(*company))
}

// =============================================================================
// BALANCE / TRANSACTION HANDLERS
// =============================================================================

// GetBalance returns the company's live balance. Due scheduled payments
// are settled first, so the number reflects everything currently due.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	id := ledger.CompanyID(chi.URLParam(r, "id"))

	balance, err := h.Balances.Balance(r.Context(), id, true)
	if err != nil {
		h.domainError(w, "Failed to compute balance", err)
		return
	}

	writeJSON(w, http.StatusOK, BalanceResponse{
		CompanyID: string(id),
		Balance:   balance.String(),
		Currency:  payments.BaseCurrency,
		AsOf:      time.Now().UTC().Format(time.RFC3339),
	})
}

// GetTransactions returns every transaction the company participates in,
// as sender or recipient.
func (h *Handler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	id := ledger.CompanyID(chi.URLParam(r, "id"))

	txs, err := ledger.CompanyTransactions(r.Context(), h.Store, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list transactions", err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTOs(txs))
}

// GetDueScheduled returns the company's currently-due scheduled payments
// without settling them.
func (h *Handler) GetDueScheduled(w http.ResponseWriter, r *http.Request) {
	id := ledger.CompanyID(chi.URLParam(r, "id"))

	due, err := h.Settler.GetDueScheduledPayments(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list due scheduled payments", err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTOs(due))
}

// =============================================================================
// FUNDS HANDLERS
// =============================================================================

// AddFunds records a deposit from an external source.
func (h *Handler) AddFunds(w http.ResponseWriter, r *http.Request) {
	id := ledger.CompanyID(chi.URLParam(r, "id"))

	var req DepositRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}

	tx, err := h.Payments.Deposit(r.Context(), id, amount, req.Source, req.Description)
	if err != nil {
		h.domainError(w, "Failed to add funds", err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionDTO(*tx))
}

// WithdrawFunds initiates a withdrawal to an external destination.
func (h *Handler) WithdrawFunds(w http.ResponseWriter, r *http.Request) {
	id := ledger.CompanyID(chi.URLParam(r, "id"))

	var req WithdrawRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}

	tx, err := h.Payments.Withdraw(r.Context(), id, amount, req.Destination)
	if err != nil {
		h.domainError(w, "Failed to withdraw funds", err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionDTO(*tx))
}

// =============================================================================
// PAYMENT HANDLERS
// =============================================================================

// SendPayment executes or schedules a payment.
func (h *Handler) SendPayment(w http.ResponseWriter, r *http.Request) {
	var req SendPaymentRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}

	var scheduledFor *time.Time
	if req.ScheduledFor != "" {
		t, err := time.Parse(time.RFC3339, req.ScheduledFor)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid scheduled_for (use RFC3339)", err)
			return
		}
		scheduledFor = &t
	}

	tx, err := h.Payments.SendPayment(r.Context(), payments.SendPaymentInput{
		FromCompanyID:  ledger.CompanyID(req.FromCompanyID),
		RecipientEmail: req.RecipientEmail,
		Amount:         amount,
		Currency:       req.Currency,
		Description:    req.Description,
		ScheduledFor:   scheduledFor,
	})
	if err != nil {
		h.domainError(w, "Failed to send payment", err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionDTO(*tx))
}

// =============================================================================
// PAYMENT REQUEST HANDLERS
// =============================================================================

// CreatePaymentRequest records an invoice-like ask.
func (h *Handler) CreatePaymentRequest(w http.ResponseWriter, r *http.Request) {
	var req CreatePaymentRequestRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}
	dueDate, err := time.Parse(time.RFC3339, req.DueDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid due_date (use RFC3339)", err)
		return
	}

	request, err := h.Payments.CreatePaymentRequest(r.Context(), payments.CreateRequestInput{
		RequesterID: ledger.CompanyID(req.RequesterID),
		PayerEmail:  req.PayerEmail,
		Amount:      amount,
		Currency:    req.Currency,
		DueDate:     dueDate,
	})
	if err != nil {
		h.domainError(w, "Failed to create payment request", err)
		return
	}
	writeJSON(w, http.StatusCreated, toPaymentRequestDTO(*request))
}

// ListIncomingRequests returns requests addressed to the company.
func (h *Handler) ListIncomingRequests(w http.ResponseWriter, r *http.Request) {
	id := ledger.CompanyID(chi.URLParam(r, "id"))

	reqs, err := h.Store.RequestsForPayer(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list requests", err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentRequestDTOs(reqs))
}

// ListOutgoingRequests returns requests the company created.
func (h *Handler) ListOutgoingRequests(w http.ResponseWriter, r *http.Request) {
	id := ledger.CompanyID(chi.URLParam(r, "id"))

	reqs, err := h.Store.RequestsByRequester(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list requests", err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentRequestDTOs(reqs))
}

// AcceptRequest pays a pending request.
func (h *Handler) AcceptRequest(w http.ResponseWriter, r *http.Request) {
	requestID := ledger.RequestID(chi.URLParam(r, "id"))

	var req RequestActionRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	request, err := h.Payments.AcceptPaymentRequest(r.Context(),
		ledger.CompanyID(req.CompanyID), requestID)
	if err != nil {
		h.domainError(w, "Failed to accept payment request", err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentRequestDTO(*request))
}

// RejectRequest declines a pending request.
func (h *Handler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	requestID := ledger.RequestID(chi.URLParam(r, "id"))

	var req RequestActionRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	request, err := h.Payments.RejectPaymentRequest(r.Context(),
		ledger.CompanyID(req.CompanyID), requestID)
	if err != nil {
		h.domainError(w, "Failed to reject payment request", err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentRequestDTO(*request))
}

// =============================================================================
// SETTLEMENT HANDLERS
// =============================================================================

// TriggerSettlement runs a settlement sweep on demand.
func (h *Handler) TriggerSettlement(w http.ResponseWriter, r *http.Request) {
	settled, err := h.Settler.ProcessScheduledPayments(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Settlement sweep failed", err)
		return
	}
	settlementSweepsTotal.Inc()
	settledTransactionsTotal.Add(float64(len(settled)))

	ids := make([]string, len(settled))
	for i, id := range settled {
		ids[i] = string(id)
	}
	writeJSON(w, http.StatusOK, SettlementResponse{
		SettledCount: len(settled),
		SettledIDs:   ids,
		RanAt:        time.Now().UTC().Format(time.RFC3339),
	})
}

// =============================================================================
// HELPERS
// =============================================================================

// domainError translates engine and flow errors into HTTP status codes.
func (h *Handler) domainError(w http.ResponseWriter, message string, err error) {
	switch {
	case errors.Is(err, ledger.ErrBalanceUnavailable):
		writeError(w, http.StatusServiceUnavailable, message, err)
	case ledger.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case errors.Is(err, ledger.ErrDuplicateEmail),
		errors.Is(err, payments.ErrRequestClosed):
		writeError(w, http.StatusConflict, message, err)
	case errors.Is(err, ledger.ErrInsufficientBalance),
		errors.Is(err, payments.ErrAmountNotPositive),
		errors.Is(err, payments.ErrSelfPayment),
		errors.Is(err, payments.ErrNotRequestPayer):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// detailFields flattens a detail variant to a JSON object for the wire.
func detailFields(d ledger.TransactionDetails) map[string]any {
	raw, err := json.Marshal(d)
	if err != nil {
		return nil
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil
	}
	return fields
}
