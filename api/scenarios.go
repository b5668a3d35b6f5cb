/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	data for testing and demos. Each scenario creates companies, wallets,
	transactions, and payment requests that demonstrate specific features.

AVAILABLE SCENARIOS:

	demo-dashboard:     Four companies, a funded wallet, mixed history
	scheduled-payments: Overdue and future scheduled payments
	fresh-start:        Companies only, no economic history

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Create companies and wallets
 3. Write transactions and payment requests directly

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "demo-dashboard"}

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: shared helpers and routing targets
  - server.go: scenario routes
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vero/finance-engine/ledger"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "demo-dashboard",
		Name:        "Demo Dashboard",
		Description: "Four companies, a funded wallet, and a mixed transaction history",
	},
	{
		ID:          "scheduled-payments",
		Name:        "Scheduled Payments",
		Description: "Overdue and future scheduled payments for exercising settlement",
	},
	{
		ID:          "fresh-start",
		Name:        "Fresh Start",
		Description: "Registered companies with no economic history",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	if current == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}

	writeJSON(w, http.StatusOK, ScenarioDTO{
		ID:          current,
		Name:        current,
		Description: "Currently loaded scenario",
	})
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	ctx := r.Context()

	// Reset first
	if err := h.Store.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}

	var err error
	switch req.ScenarioID {
	case "demo-dashboard":
		err = h.loadDemoDashboard(ctx)
	case "scheduled-payments":
		err = h.loadScheduledPayments(ctx)
	case "fresh-start":
		err = h.loadFreshStart(ctx)
	default:
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("Unknown scenario: %s", req.ScenarioID), nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}

	h.mu.Lock()
	h.currentScenario = req.ScenarioID
	h.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "loaded",
		"scenario": req.ScenarioID,
	})
}

// ResetDatabase wipes all data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}

	h.mu.Lock()
	h.currentScenario = ""
	h.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

// demoCompanies are the participants every scenario starts from.
func demoCompanies(now time.Time) []ledger.Company {
	return []ledger.Company{
		{ID: "company-1", Name: "My Company LLC", Email: "billing@mycompany.com",
			WalletAddress: "0x1a2b3c4d5e6f", CreatedAt: now.AddDate(0, -6, 0)},
		{ID: "company-2", Name: "Acme Corporation", Email: "accounts@acme.com",
			WalletAddress: "0x2b3c4d5e6f7a", CreatedAt: now.AddDate(0, -5, 0)},
		{ID: "company-3", Name: "TechStart Inc", Email: "finance@techstart.io",
			WalletAddress: "0x3c4d5e6f7a8b", CreatedAt: now.AddDate(0, -4, 0)},
		{ID: "company-4", Name: "Global Ventures", Email: "payments@globalventures.com",
			WalletAddress: "0x4d5e6f7a8b9c", CreatedAt: now.AddDate(0, -3, 0)},
	}
}

func (h *Handler) createDemoCompanies(ctx context.Context, now time.Time) error {
	for _, c := range demoCompanies(now) {
		if err := h.Store.CreateCompany(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

// loadDemoDashboard mirrors the dashboard's stock dataset: a funded
// wallet, settled payments in both directions, a pending scheduled
// payment, and an open payment request.
func (h *Handler) loadDemoDashboard(ctx context.Context) error {
	now := time.Now()

	if err := h.createDemoCompanies(ctx, now); err != nil {
		return err
	}

	if err := h.Store.PutWallet(ctx, ledger.Wallet{
		CompanyID:   "company-1",
		Balance:     decimal.NewFromInt(10000),
		Currency:    "USDC",
		LastUpdated: now,
	}); err != nil {
		return err
	}

	tomorrow := now.AddDate(0, 0, 1)
	txs := []ledger.Transaction{
		{
			ID: "tx-1", Type: ledger.TxPaymentSent,
			Amount: decimal.NewFromInt(1000), Currency: "USDC",
			FromCompanyID: "company-1", ToCompanyID: "company-2",
			Status: ledger.StatusCompleted, CreatedAt: now.AddDate(0, 0, -14),
			Details: ledger.PaymentDetails{Description: "Invoice #1042", RecipientEmail: "accounts@acme.com"},
		},
		{
			ID: "tx-2", Type: ledger.TxPaymentReceived,
			Amount: decimal.NewFromInt(2500), Currency: "USDC",
			FromCompanyID: "company-3", ToCompanyID: "company-1",
			Status: ledger.StatusCompleted, CreatedAt: now.AddDate(0, 0, -10),
			Details: ledger.ReceiptDetails{Description: "Consulting services"},
		},
		{
			ID: "tx-3", Type: ledger.TxDeposit,
			Amount: decimal.NewFromInt(5000), Currency: "USDC",
			FromCompanyID: "external", ToCompanyID: "company-1",
			Status: ledger.StatusCompleted, CreatedAt: now.AddDate(0, 0, -7),
			Details: ledger.DepositDetails{Description: "Treasury top-up", Source: "bank transfer"},
		},
		{
			ID: "tx-4", Type: ledger.TxPaymentSent,
			Amount: decimal.NewFromInt(500), Currency: "USDC",
			FromCompanyID: "company-1", ToCompanyID: "company-4",
			Status: ledger.StatusPending, CreatedAt: now.AddDate(0, 0, -2),
			ScheduledFor: &tomorrow,
			Details:      ledger.PaymentDetails{Description: "Retainer, next month", RecipientEmail: "payments@globalventures.com"},
		},
	}
	for _, tx := range txs {
		if err := h.Store.PutTransaction(ctx, tx); err != nil {
			return err
		}
	}

	return h.Store.PutPaymentRequest(ctx, ledger.PaymentRequest{
		ID:            "req-1",
		FromCompanyID: "company-2",
		ToCompanyID:   "company-1",
		Amount:        decimal.NewFromInt(750),
		Currency:      "USDC",
		DueDate:       now.AddDate(0, 0, 7),
		Status:        ledger.RequestPending,
		CreatedAt:     now.AddDate(0, 0, -3),
	})
}

// loadScheduledPayments seeds one already-due and one future scheduled
// payment, so a single sweep settles exactly one of them.
func (h *Handler) loadScheduledPayments(ctx context.Context) error {
	now := time.Now()

	if err := h.createDemoCompanies(ctx, now); err != nil {
		return err
	}

	if err := h.Store.PutWallet(ctx, ledger.Wallet{
		CompanyID:   "company-1",
		Balance:     decimal.NewFromInt(10000),
		Currency:    "USDC",
		LastUpdated: now,
	}); err != nil {
		return err
	}

	yesterday := now.AddDate(0, 0, -1)
	nextWeek := now.AddDate(0, 0, 7)
	txs := []ledger.Transaction{
		{
			ID: "tx-overdue", Type: ledger.TxPaymentSent,
			Amount: decimal.NewFromInt(1200), Currency: "USDC",
			FromCompanyID: "company-1", ToCompanyID: "company-2",
			Status: ledger.StatusPending, CreatedAt: now.AddDate(0, 0, -5),
			ScheduledFor: &yesterday,
			Details:      ledger.PaymentDetails{Description: "Overdue vendor payment", RecipientEmail: "accounts@acme.com"},
		},
		{
			ID: "tx-future", Type: ledger.TxPaymentSent,
			Amount: decimal.NewFromInt(800), Currency: "USDC",
			FromCompanyID: "company-1", ToCompanyID: "company-3",
			Status: ledger.StatusPending, CreatedAt: now.AddDate(0, 0, -5),
			ScheduledFor: &nextWeek,
			Details:      ledger.PaymentDetails{Description: "Next sprint invoice", RecipientEmail: "finance@techstart.io"},
		},
	}
	for _, tx := range txs {
		if err := h.Store.PutTransaction(ctx, tx); err != nil {
			return err
		}
	}
	return nil
}

// loadFreshStart registers the demo companies with no history.
func (h *Handler) loadFreshStart(ctx context.Context) error {
	return h.createDemoCompanies(ctx, time.Now())
}
