/*
settlement.go - Scheduled-payment settlement

PURPOSE:
  Promotes due scheduled transactions from pending to completed. A
  transaction created with a future ScheduledFor sits pending until its
  time passes, then the next sweep settles it.

STATE MACHINE (per transaction):
  pending, no ScheduledFor   -> never auto-transitions
  pending, ScheduledFor = t  -> completed, once a sweep runs at now >= t
  completed                  -> terminal
  failed                     -> terminal (never produced by the settler)

WHY SWEEPING ON EVERY BALANCE QUERY IS SAFE:
  Settlement is idempotent and monotonic. A due item cannot become un-due,
  a completed item is never revisited, and marking completed twice writes
  the same value. Overlapping sweeps therefore cannot double-apply an
  economic effect as long as each single record update is atomic.

PARTIAL FAILURE:
  A failure on one item is logged and skipped; the sweep continues and the
  item stays pending, so the next sweep naturally retries it. Partial
  success is the normal completion mode, not an error.

SEE ALSO:
  - balance.go: the facade that runs the sweep before reading
  - api/scheduler.go: the background ticker that sweeps periodically
*/
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
)

// =============================================================================
// DUE PREDICATE
// =============================================================================

// IsScheduledPaymentDue reports whether the transaction is a scheduled
// payment whose time has come: pending, with a scheduled time at or before
// now. Pure predicate, no I/O.
func IsScheduledPaymentDue(tx Transaction, now time.Time) bool {
	return tx.Status == StatusPending &&
		tx.ScheduledFor != nil &&
		!tx.ScheduledFor.After(now)
}

// =============================================================================
// SETTLER
// =============================================================================

// Settler runs settlement sweeps against a transaction store.
type Settler struct {
	Store TransactionStore
	Log   logrus.FieldLogger

	// Now is the clock used for dueness checks. Overridable in tests.
	Now func() time.Time
}

func NewSettler(store TransactionStore) *Settler {
	return &Settler{
		Store: store,
		Log:   logrus.StandardLogger(),
		Now:   time.Now,
	}
}

// GetDueScheduledPayments returns the company's due scheduled payments:
// the union of transactions where it is sender or recipient, deduplicated
// by id, filtered by the due predicate. Read-only, no mutation.
func (s *Settler) GetDueScheduledPayments(ctx context.Context, companyID CompanyID) ([]Transaction, error) {
	txs, err := CompanyTransactions(ctx, s.Store, companyID)
	if err != nil {
		return nil, err
	}

	now := s.Now()
	due := make([]Transaction, 0)
	for _, tx := range txs {
		if IsScheduledPaymentDue(tx, now) {
			due = append(due, tx)
		}
	}
	return due, nil
}

// ProcessScheduledPayments sweeps the whole transaction population and
// settles every currently-due item, rewriting only its status. Returns the
// ids actually updated.
//
// Per-item failures are logged and skipped; only a failure to read the due
// set aborts the sweep. An item raced to completion by a concurrent sweep
// is skipped silently, it is already in the state this sweep wanted.
func (s *Settler) ProcessScheduledPayments(ctx context.Context) ([]TransactionID, error) {
	now := s.Now()

	due, err := s.Store.DueScheduledTransactions(ctx, now)
	if err != nil {
		return nil, err
	}

	processed := make([]TransactionID, 0, len(due))
	for _, tx := range due {
		if !IsScheduledPaymentDue(tx, now) {
			// The store's due query should already guarantee this; keep the
			// predicate authoritative regardless of the index behavior.
			continue
		}

		if err := s.Store.MarkTransactionCompleted(ctx, tx.ID); err != nil {
			if errors.Is(err, ErrNotPending) {
				continue // settled by a concurrent sweep
			}
			s.Log.WithError(err).WithField("transaction_id", tx.ID).
				Error("failed to settle scheduled transaction")
			continue
		}
		processed = append(processed, tx.ID)
	}

	if len(processed) > 0 {
		s.Log.WithField("count", len(processed)).Info("settled scheduled payments")
	}
	return processed, nil
}
