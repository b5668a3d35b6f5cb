/*
store.go - Persistence ports consumed by the engine

PURPOSE:
  Defines the interface between the engine and the host persistence layer.
  The platform provides an object store keyed by primary id with secondary
  lookups; different implementations back it with SQLite or memory.

WRITE DISCIPLINE:
  - Put* operations are full-record upserts keyed by primary id.
  - MarkTransactionCompleted is the ONLY partial update anywhere: it
    rewrites a pending transaction's status and nothing else. A single
    record update is atomic; cross-record atomicity is not assumed.
  - Nothing in the engine writes wallets after creation; all economic
    effects flow through transactions.

IMPLEMENTATIONS:
  - store/sqlite: embedded SQLite (production/demo)
  - ledger/store:  in-memory (tests/dev)

SEE ALSO:
  - settlement.go: uses DueScheduledTransactions + MarkTransactionCompleted
  - balance.go:    uses the company-scoped transaction lookups
*/
package ledger

import (
	"context"
	"time"
)

// =============================================================================
// TRANSACTION STORE
// =============================================================================

type TransactionStore interface {
	// PutTransaction upserts a full transaction record by id.
	PutTransaction(ctx context.Context, tx Transaction) error

	// GetTransaction returns the transaction, or nil when absent.
	GetTransaction(ctx context.Context, id TransactionID) (*Transaction, error)

	// AllTransactions returns the entire transaction population.
	AllTransactions(ctx context.Context) ([]Transaction, error)

	// TransactionsBySender returns transactions where the company is the
	// sender, via the from-company secondary key.
	TransactionsBySender(ctx context.Context, id CompanyID) ([]Transaction, error)

	// TransactionsByRecipient returns transactions where the company is the
	// recipient, via the to-company secondary key.
	TransactionsByRecipient(ctx context.Context, id CompanyID) ([]Transaction, error)

	// DueScheduledTransactions returns pending transactions whose scheduled
	// time is at or before the given instant. Implementations index the
	// scheduled time so this is a range scan, not a full sweep.
	DueScheduledTransactions(ctx context.Context, at time.Time) ([]Transaction, error)

	// MarkTransactionCompleted rewrites only the status of a pending
	// transaction to completed, leaving every other field untouched.
	// Returns ErrNotPending when the record exists but is not pending, and
	// ErrTransactionNotFound when it does not exist.
	MarkTransactionCompleted(ctx context.Context, id TransactionID) error
}

// =============================================================================
// WALLET STORE - one record per company
// =============================================================================

type WalletStore interface {
	// PutWallet upserts the wallet keyed by company id. At most one wallet
	// per company exists.
	PutWallet(ctx context.Context, w Wallet) error

	// GetWallet returns the wallet, or nil when absent. A missing wallet is
	// not an error; the balance facade treats it as a zero baseline.
	GetWallet(ctx context.Context, id CompanyID) (*Wallet, error)
}

// =============================================================================
// COMPANY STORE
// =============================================================================

type CompanyStore interface {
	// CreateCompany inserts a new company. Returns ErrDuplicateEmail when
	// the email is already registered.
	CreateCompany(ctx context.Context, c Company) error

	// GetCompany returns the company, or nil when absent.
	GetCompany(ctx context.Context, id CompanyID) (*Company, error)

	// CompanyByEmail looks a company up by its unique email, nil when absent.
	CompanyByEmail(ctx context.Context, email string) (*Company, error)

	// ListCompanies returns all companies.
	ListCompanies(ctx context.Context) ([]Company, error)
}

// =============================================================================
// PAYMENT REQUEST STORE
// =============================================================================

type PaymentRequestStore interface {
	// PutPaymentRequest upserts a payment request by id.
	PutPaymentRequest(ctx context.Context, r PaymentRequest) error

	// GetPaymentRequest returns the request, or nil when absent.
	GetPaymentRequest(ctx context.Context, id RequestID) (*PaymentRequest, error)

	// RequestsForPayer returns requests addressed to the company (it is the
	// one being asked to pay).
	RequestsForPayer(ctx context.Context, id CompanyID) ([]PaymentRequest, error)

	// RequestsByRequester returns requests the company created.
	RequestsByRequester(ctx context.Context, id CompanyID) ([]PaymentRequest, error)
}

// =============================================================================
// AGGREGATE STORE
// =============================================================================

// Store is the full persistence surface the engine and its callers need.
type Store interface {
	TransactionStore
	WalletStore
	CompanyStore
	PaymentRequestStore
}

// CompanyTransactions returns the union of transactions where the company
// is sender or recipient, deduplicated by id. A transaction listing the
// same company on both sides appears once.
func CompanyTransactions(ctx context.Context, store TransactionStore, id CompanyID) ([]Transaction, error) {
	outgoing, err := store.TransactionsBySender(ctx, id)
	if err != nil {
		return nil, err
	}
	incoming, err := store.TransactionsByRecipient(ctx, id)
	if err != nil {
		return nil, err
	}

	seen := make(map[TransactionID]struct{}, len(outgoing)+len(incoming))
	result := make([]Transaction, 0, len(outgoing)+len(incoming))
	for _, tx := range append(outgoing, incoming...) {
		if _, dup := seen[tx.ID]; dup {
			continue
		}
		seen[tx.ID] = struct{}{}
		result = append(result, tx)
	}
	return result, nil
}
