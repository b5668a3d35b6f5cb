/*
Package ledger provides the core balance and settlement engine.

PURPOSE:
  This package contains the domain types and algorithms behind the Vero
  Finance dashboard: companies, wallets, a transaction ledger, and the
  scheduled-payment settlement machinery. Everything an economic effect
  flows through lives here; UI surfaces and persistence engines are
  collaborators behind interfaces.

KEY CONCEPTS IN THIS FILE (types.go):
  - Company: a participant in the payment network
  - Wallet: one per company, holding a cached base-currency baseline
  - Transaction: the central ledger entry (deposit, withdrawal, payment)
  - PaymentRequest: an invoice-like ask between two companies
  - Rate: an exchange rate that knows whether it was actually resolved

DESIGN PRINCIPLES:
  1. Snapshot baseline: a wallet's Balance is a starting point, never the
     live balance. The live balance is always baseline + fold(transactions).
  2. Precision: decimal.Decimal for all monetary values.
  3. Type safety: strong typing for IDs prevents mixing company and
     transaction identifiers.
  4. One-way settlement: pending -> completed is the only automatic
     transition; completed transactions are immutable.

SEE ALSO:
  - balance.go: the pure balance fold and the query facade
  - settlement.go: due predicate and the settlement sweep
  - details.go: per-type transaction detail variants
  - store.go: persistence ports
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type CompanyID string
type TransactionID string
type RequestID string

// =============================================================================
// COMPANY - A participant in the payment network
// =============================================================================

// Company is immutable once created; there is no update path.
type Company struct {
	ID            CompanyID
	Name          string
	Email         string // unique
	WalletAddress string // optional
	CreatedAt     time.Time
}

// =============================================================================
// WALLET - Cached base-currency baseline, one per company
// =============================================================================

// Wallet holds a snapshot baseline, not the live balance. The live balance
// is always Balance + fold(transactions); nothing in the engine increments
// Balance after creation.
type Wallet struct {
	CompanyID   CompanyID
	Balance     decimal.Decimal // base units (stable coin)
	Currency    string          // informational label only
	LastUpdated time.Time
}

// =============================================================================
// TRANSACTION - The central ledger entry
// =============================================================================

type TransactionType string

const (
	TxDeposit         TransactionType = "deposit"
	TxWithdrawal      TransactionType = "withdrawal"
	TxPaymentSent     TransactionType = "payment_sent"
	TxPaymentReceived TransactionType = "payment_received"
)

// Outgoing reports whether the type moves value out of the sender's wallet.
func (t TransactionType) Outgoing() bool {
	return t == TxPaymentSent || t == TxWithdrawal
}

// Incoming reports whether the type moves value into the recipient's wallet.
func (t TransactionType) Incoming() bool {
	return t == TxPaymentReceived || t == TxDeposit
}

type TransactionStatus string

const (
	StatusPending   TransactionStatus = "pending"
	StatusCompleted TransactionStatus = "completed"
	StatusFailed    TransactionStatus = "failed"
)

// Transaction is a ledger entry. Amount is always positive and denominated
// in Currency; ExchangeRate is the value of one unit of Currency in base
// units at transaction time (zero means unset, treated as 1:1).
//
// Invariants:
//   - FromCompanyID and ToCompanyID, when both set, must differ. Enforced by
//     callers, not by the engine.
//   - A pending transaction with ScheduledFor set becomes settleable once
//     ScheduledFor <= now; settlement rewrites Status and nothing else.
//   - Completed transactions are immutable.
type Transaction struct {
	ID            TransactionID
	Type          TransactionType
	Amount        decimal.Decimal
	Currency      string
	ExchangeRate  decimal.Decimal // zero => unset, treated as 1
	FromCompanyID CompanyID
	ToCompanyID   CompanyID // optional
	Status        TransactionStatus
	CreatedAt     time.Time
	ScheduledFor  *time.Time // optional future-settlement time
	Details       TransactionDetails
}

// RateOrOne returns the stored exchange rate, defaulting to 1 when unset.
// An unset rate and an explicit zero are both treated as 1:1, mirroring the
// fallback the rate lookup applies when a currency cannot be resolved.
func (t Transaction) RateOrOne() decimal.Decimal {
	if t.ExchangeRate.IsZero() {
		return decimal.NewFromInt(1)
	}
	return t.ExchangeRate
}

// BaseValue is the transaction amount expressed in base units.
func (t Transaction) BaseValue() decimal.Decimal {
	return t.Amount.Mul(t.RateOrOne())
}

// NetworkFee returns the base-unit fee attached to this transaction, or
// zero. Fees live on the outgoing detail variants only.
func (t Transaction) NetworkFee() decimal.Decimal {
	if fb, ok := t.Details.(FeeBearer); ok {
		return fb.Fee()
	}
	return decimal.Zero
}

// =============================================================================
// PAYMENT REQUEST - Invoice-like ask between two companies
// =============================================================================

type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestAccepted RequestStatus = "accepted"
	RequestRejected RequestStatus = "rejected"
	RequestPaid     RequestStatus = "paid"
)

// PaymentRequest: FromCompanyID asks ToCompanyID for Amount Currency.
// Created pending; transitions to paid when the payer accepts, which spawns
// a pair of completed transactions referencing the request.
type PaymentRequest struct {
	ID            RequestID
	FromCompanyID CompanyID // requester (payee)
	ToCompanyID   CompanyID // payer
	Amount        decimal.Decimal
	Currency      string
	DueDate       time.Time
	Status        RequestStatus
	CreatedAt     time.Time
}

// =============================================================================
// RATE - Exchange rate with provenance
// =============================================================================

// Rate carries a numeric exchange rate plus whether it was actually
// resolved. Lookups fall back to 1:1 on failure for availability, but
// callers can distinguish "confirmed 1:1" from "could not resolve".
type Rate struct {
	Value decimal.Decimal
	Known bool
}

// KnownRate wraps a resolved rate value.
func KnownRate(v decimal.Decimal) Rate { return Rate{Value: v, Known: true} }

// UnknownRate is the 1:1 fallback used when a rate cannot be resolved.
func UnknownRate() Rate { return Rate{Value: decimal.NewFromInt(1), Known: false} }
