// Package store provides Store implementations.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vero/finance-engine/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu           sync.RWMutex
	transactions map[ledger.TransactionID]ledger.Transaction
	wallets      map[ledger.CompanyID]ledger.Wallet
	companies    map[ledger.CompanyID]ledger.Company
	requests     map[ledger.RequestID]ledger.PaymentRequest
}

func NewMemory() *Memory {
	return &Memory{
		transactions: make(map[ledger.TransactionID]ledger.Transaction),
		wallets:      make(map[ledger.CompanyID]ledger.Wallet),
		companies:    make(map[ledger.CompanyID]ledger.Company),
		requests:     make(map[ledger.RequestID]ledger.PaymentRequest),
	}
}

var _ ledger.Store = (*Memory)(nil)

// Reset wipes all data.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transactions = make(map[ledger.TransactionID]ledger.Transaction)
	m.wallets = make(map[ledger.CompanyID]ledger.Wallet)
	m.companies = make(map[ledger.CompanyID]ledger.Company)
	m.requests = make(map[ledger.RequestID]ledger.PaymentRequest)
	return nil
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func (m *Memory) PutTransaction(_ context.Context, tx ledger.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transactions[tx.ID] = tx
	return nil
}

func (m *Memory) GetTransaction(_ context.Context, id ledger.TransactionID) (*ledger.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tx, ok := m.transactions[id]
	if !ok {
		return nil, nil
	}
	return &tx, nil
}

func (m *Memory) AllTransactions(_ context.Context) ([]ledger.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.collect(func(ledger.Transaction) bool { return true }), nil
}

func (m *Memory) TransactionsBySender(_ context.Context, id ledger.CompanyID) ([]ledger.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.collect(func(tx ledger.Transaction) bool { return tx.FromCompanyID == id }), nil
}

func (m *Memory) TransactionsByRecipient(_ context.Context, id ledger.CompanyID) ([]ledger.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.collect(func(tx ledger.Transaction) bool { return tx.ToCompanyID == id }), nil
}

func (m *Memory) DueScheduledTransactions(_ context.Context, at time.Time) ([]ledger.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.collect(func(tx ledger.Transaction) bool {
		return ledger.IsScheduledPaymentDue(tx, at)
	}), nil
}

func (m *Memory) MarkTransactionCompleted(_ context.Context, id ledger.TransactionID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx, ok := m.transactions[id]
	if !ok {
		return ledger.ErrTransactionNotFound
	}
	if tx.Status != ledger.StatusPending {
		return ledger.ErrNotPending
	}
	tx.Status = ledger.StatusCompleted
	m.transactions[id] = tx
	return nil
}

// collect returns matching transactions in stable creation order so reads
// are deterministic across calls.
func (m *Memory) collect(match func(ledger.Transaction) bool) []ledger.Transaction {
	result := make([]ledger.Transaction, 0)
	for _, tx := range m.transactions {
		if match(tx) {
			result = append(result, tx)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

// =============================================================================
// WALLETS
// =============================================================================

func (m *Memory) PutWallet(_ context.Context, w ledger.Wallet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.wallets[w.CompanyID] = w
	return nil
}

func (m *Memory) GetWallet(_ context.Context, id ledger.CompanyID) (*ledger.Wallet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.wallets[id]
	if !ok {
		return nil, nil
	}
	return &w, nil
}

// =============================================================================
// COMPANIES
// =============================================================================

func (m *Memory) CreateCompany(_ context.Context, c ledger.Company) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.companies {
		if existing.Email == c.Email {
			return ledger.ErrDuplicateEmail
		}
	}
	m.companies[c.ID] = c
	return nil
}

func (m *Memory) GetCompany(_ context.Context, id ledger.CompanyID) (*ledger.Company, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.companies[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (m *Memory) CompanyByEmail(_ context.Context, email string) (*ledger.Company, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.companies {
		if c.Email == email {
			c := c
			return &c, nil
		}
	}
	return nil, nil
}

func (m *Memory) ListCompanies(_ context.Context) ([]ledger.Company, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]ledger.Company, 0, len(m.companies))
	for _, c := range m.companies {
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// =============================================================================
// PAYMENT REQUESTS
// =============================================================================

func (m *Memory) PutPaymentRequest(_ context.Context, r ledger.PaymentRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests[r.ID] = r
	return nil
}

func (m *Memory) GetPaymentRequest(_ context.Context, id ledger.RequestID) (*ledger.PaymentRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.requests[id]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (m *Memory) RequestsForPayer(_ context.Context, id ledger.CompanyID) ([]ledger.PaymentRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.collectRequests(func(r ledger.PaymentRequest) bool { return r.ToCompanyID == id }), nil
}

func (m *Memory) RequestsByRequester(_ context.Context, id ledger.CompanyID) ([]ledger.PaymentRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.collectRequests(func(r ledger.PaymentRequest) bool { return r.FromCompanyID == id }), nil
}

func (m *Memory) collectRequests(match func(ledger.PaymentRequest) bool) []ledger.PaymentRequest {
	result := make([]ledger.PaymentRequest, 0)
	for _, r := range m.requests {
		if match(r) {
			result = append(result, r)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}
