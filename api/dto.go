/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON shapes exchanged with clients, decoupled from the
  domain types. Monetary values cross the wire as decimal strings, never
  floats; timestamps are RFC3339.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

VALIDATION:
  Request structs carry go-playground/validator tags. Handlers run the
  shared validator before touching domain logic, so malformed input is
  rejected with 400 and a field-level message.

SEE ALSO:
  - handlers.go: Handler implementations using these DTOs
*/
package api

import (
	"time"

	"github.com/vero/finance-engine/ledger"
)

// =============================================================================
// COMPANY DTOs
// =============================================================================

// CreateCompanyRequest is the payload for POST /api/companies.
type CreateCompanyRequest struct {
	Name          string `json:"name" validate:"required"`
	Email         string `json:"email" validate:"required,email"`
	WalletAddress string `json:"wallet_address,omitempty"`
}

// CompanyDTO is the wire representation of a company.
type CompanyDTO struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	WalletAddress string `json:"wallet_address,omitempty"`
	CreatedAt     string `json:"created_at"`
}

func toCompanyDTO(c ledger.Company) CompanyDTO {
	return CompanyDTO{
		ID:            string(c.ID),
		Name:          c.Name,
		Email:         c.Email,
		WalletAddress: c.WalletAddress,
		CreatedAt:     c.CreatedAt.Format(time.RFC3339),
	}
}

// =============================================================================
// BALANCE DTOs
// =============================================================================

// BalanceResponse is the payload for GET /api/companies/{id}/balance.
type BalanceResponse struct {
	CompanyID string `json:"company_id"`
	Balance   string `json:"balance"`
	Currency  string `json:"currency"`
	AsOf      string `json:"as_of"`
}

// =============================================================================
// TRANSACTION DTOs
// =============================================================================

// TransactionDTO is the wire representation of a ledger entry.
type TransactionDTO struct {
	ID            string         `json:"id"`
	Type          string         `json:"type"`
	Amount        string         `json:"amount"`
	Currency      string         `json:"currency"`
	ExchangeRate  string         `json:"exchange_rate,omitempty"`
	FromCompanyID string         `json:"from_company_id"`
	ToCompanyID   string         `json:"to_company_id,omitempty"`
	Status        string         `json:"status"`
	CreatedAt     string         `json:"created_at"`
	ScheduledFor  string         `json:"scheduled_for,omitempty"`
	DetailKind    string         `json:"detail_kind,omitempty"`
	Details       map[string]any `json:"details,omitempty"`
}

func toTransactionDTO(tx ledger.Transaction) TransactionDTO {
	dto := TransactionDTO{
		ID:            string(tx.ID),
		Type:          string(tx.Type),
		Amount:        tx.Amount.String(),
		Currency:      tx.Currency,
		FromCompanyID: string(tx.FromCompanyID),
		ToCompanyID:   string(tx.ToCompanyID),
		Status:        string(tx.Status),
		CreatedAt:     tx.CreatedAt.Format(time.RFC3339),
	}
	if !tx.ExchangeRate.IsZero() {
		dto.ExchangeRate = tx.ExchangeRate.String()
	}
	if tx.ScheduledFor != nil {
		dto.ScheduledFor = tx.ScheduledFor.Format(time.RFC3339)
	}
	if tx.Details != nil {
		dto.DetailKind = tx.Details.DetailKind()
		dto.Details = detailFields(tx.Details)
	}
	return dto
}

func toTransactionDTOs(txs []ledger.Transaction) []TransactionDTO {
	dtos := make([]TransactionDTO, len(txs))
	for i, tx := range txs {
		dtos[i] = toTransactionDTO(tx)
	}
	return dtos
}

// =============================================================================
// PAYMENT DTOs
// =============================================================================

// SendPaymentRequest is the payload for POST /api/payments/send.
type SendPaymentRequest struct {
	FromCompanyID  string `json:"from_company_id" validate:"required"`
	RecipientEmail string `json:"recipient_email" validate:"required,email"`
	Amount         string `json:"amount" validate:"required"`
	Currency       string `json:"currency" validate:"required"`
	Description    string `json:"description,omitempty"`
	ScheduledFor   string `json:"scheduled_for,omitempty"` // RFC3339
}

// DepositRequest is the payload for POST /api/companies/{id}/funds/add.
type DepositRequest struct {
	Amount      string `json:"amount" validate:"required"`
	Source      string `json:"source,omitempty"`
	Description string `json:"description,omitempty"`
}

// WithdrawRequest is the payload for POST /api/companies/{id}/funds/withdraw.
type WithdrawRequest struct {
	Amount      string `json:"amount" validate:"required"`
	Destination string `json:"destination" validate:"required"`
}

// =============================================================================
// PAYMENT REQUEST DTOs
// =============================================================================

// CreatePaymentRequestRequest is the payload for POST /api/requests.
type CreatePaymentRequestRequest struct {
	RequesterID string `json:"requester_id" validate:"required"`
	PayerEmail  string `json:"payer_email" validate:"required,email"`
	Amount      string `json:"amount" validate:"required"`
	Currency    string `json:"currency" validate:"required"`
	DueDate     string `json:"due_date" validate:"required"` // RFC3339
}

// RequestActionRequest identifies the acting payer for accept/reject.
type RequestActionRequest struct {
	CompanyID string `json:"company_id" validate:"required"`
}

// PaymentRequestDTO is the wire representation of a payment request.
type PaymentRequestDTO struct {
	ID            string `json:"id"`
	FromCompanyID string `json:"from_company_id"`
	ToCompanyID   string `json:"to_company_id"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
	DueDate       string `json:"due_date"`
	Status        string `json:"status"`
	CreatedAt     string `json:"created_at"`
}

func toPaymentRequestDTO(r ledger.PaymentRequest) PaymentRequestDTO {
	return PaymentRequestDTO{
		ID:            string(r.ID),
		FromCompanyID: string(r.FromCompanyID),
		ToCompanyID:   string(r.ToCompanyID),
		Amount:        r.Amount.String(),
		Currency:      r.Currency,
		DueDate:       r.DueDate.Format(time.RFC3339),
		Status:        string(r.Status),
		CreatedAt:     r.CreatedAt.Format(time.RFC3339),
	}
}

func toPaymentRequestDTOs(reqs []ledger.PaymentRequest) []PaymentRequestDTO {
	dtos := make([]PaymentRequestDTO, len(reqs))
	for i, r := range reqs {
		dtos[i] = toPaymentRequestDTO(r)
	}
	return dtos
}

// =============================================================================
// SETTLEMENT DTOs
// =============================================================================

// SettlementResponse reports the outcome of a settlement sweep.
type SettlementResponse struct {
	SettledCount int      `json:"settled_count"`
	SettledIDs   []string `json:"settled_ids"`
	RanAt        string   `json:"ran_at"`
}

// =============================================================================
// SCENARIO DTOs
// =============================================================================

// ScenarioDTO describes a loadable demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest is the payload for POST /api/scenarios/load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the uniform error payload.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
