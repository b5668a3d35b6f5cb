/*
balance.go - Balance fold and the balance query facade

PURPOSE:
  Computes a company's live balance. This is the central calculation that
  answers "how much does this company have right now?"

THE FOLD:
  Balance = baseline + sum of per-transaction effects. Only completed
  transactions have an effect; pending and failed contribute zero.

  Per-transaction effect:
    payment_sent, withdrawal:    -amount*rate - networkFee
    payment_received, deposit:   +amount*rate (fees never deducted; the
                                 payer bears all fees)
    anything else:               0 (neutral no-op, the fold is total)

  The network fee is already denominated in base units and is deliberately
  NOT multiplied by the exchange rate: fees are quoted directly in the
  settlement currency.

  The fold is pure, deterministic, and order-independent: additions commute,
  so any permutation of the same transactions yields the same balance.

THE FACADE:
  BalanceService coordinates "settle due items, then read, then fold". Any
  store failure along the way surfaces as ErrBalanceUnavailable; a wrong or
  partial number is never returned.

SEE ALSO:
  - settlement.go: the sweep the facade runs first
  - store.go: CompanyTransactions union helper
*/
package ledger

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// =============================================================================
// BALANCE FOLD - Pure, total, order-independent
// =============================================================================

// CalculateBalance folds the economic effect of every completed transaction
// over the initial balance. It never fails: malformed or unknown
// transaction types contribute nothing.
func CalculateBalance(initial decimal.Decimal, txs []Transaction) decimal.Decimal {
	balance := initial
	for _, tx := range txs {
		balance = balance.Add(transactionEffect(tx))
	}
	return balance
}

// transactionEffect returns the signed base-unit effect of one transaction.
func transactionEffect(tx Transaction) decimal.Decimal {
	if tx.Status != StatusCompleted {
		return decimal.Zero
	}

	value := tx.BaseValue()

	switch {
	case tx.Type.Outgoing():
		return value.Neg().Sub(tx.NetworkFee())
	case tx.Type.Incoming():
		// Incoming fees are ignored even when a fee-bearing detail variant
		// is attached; the payer bears all fees.
		return value
	default:
		return decimal.Zero
	}
}

// =============================================================================
// BALANCE QUERY FACADE
// =============================================================================

// BalanceService answers balance queries, settling due scheduled payments
// first so the caller observes a balance consistent with everything
// currently due.
type BalanceService struct {
	Store   Store
	Settler *Settler
	Log     logrus.FieldLogger
}

// NewBalanceService wires a facade over the given store.
func NewBalanceService(store Store) *BalanceService {
	return &BalanceService{
		Store:   store,
		Settler: NewSettler(store),
		Log:     logrus.StandardLogger(),
	}
}

// Balance returns the company's live balance in base units.
//
// When settleFirst is true a global settlement sweep runs before reading,
// so every currently-due scheduled payment is reflected. A missing wallet
// is a zero baseline, not an error. Any read or write failure surfaces as
// ErrBalanceUnavailable.
func (s *BalanceService) Balance(ctx context.Context, companyID CompanyID, settleFirst bool) (decimal.Decimal, error) {
	if settleFirst {
		if _, err := s.Settler.ProcessScheduledPayments(ctx); err != nil {
			s.Log.WithError(err).WithField("company_id", companyID).
				Error("settlement sweep failed before balance read")
			return decimal.Zero, fmt.Errorf("%w: %v", ErrBalanceUnavailable, err)
		}
	}

	wallet, err := s.Store.GetWallet(ctx, companyID)
	if err != nil {
		s.Log.WithError(err).WithField("company_id", companyID).Error("wallet read failed")
		return decimal.Zero, fmt.Errorf("%w: %v", ErrBalanceUnavailable, err)
	}

	baseline := decimal.Zero
	if wallet != nil {
		baseline = wallet.Balance
	}

	txs, err := CompanyTransactions(ctx, s.Store, companyID)
	if err != nil {
		s.Log.WithError(err).WithField("company_id", companyID).Error("transaction read failed")
		return decimal.Zero, fmt.Errorf("%w: %v", ErrBalanceUnavailable, err)
	}

	return CalculateBalance(baseline, txs), nil
}
