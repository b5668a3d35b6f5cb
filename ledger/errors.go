/*
errors.go - Centralized error types for the ledger engine

PURPOSE:
  All engine error types in one place. Callers match with errors.Is and
  errors.As; surrounding packages wrap these with their own context.

ERROR CATEGORIES:
  1. Not-found errors - missing records (a missing wallet is NOT an error;
     the balance facade treats it as a zero baseline)
  2. State errors - illegal transitions (completing a non-pending record)
  3. Availability errors - the facade boundary's "balance unavailable"

SEE ALSO:
  - balance.go: wraps store failures in ErrBalanceUnavailable
  - settlement.go: tolerates per-item failures, never aborts the sweep
*/
package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrCompanyNotFound is returned when a referenced company doesn't exist.
	ErrCompanyNotFound = errors.New("company not found")

	// ErrTransactionNotFound is returned when a transaction id is unknown.
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrRequestNotFound is returned when a payment request id is unknown.
	ErrRequestNotFound = errors.New("payment request not found")

	// ErrNotPending is returned when settlement targets a transaction that
	// is no longer pending. Completed and failed are terminal states.
	ErrNotPending = errors.New("transaction is not pending")

	// ErrDuplicateEmail is returned when creating a company with an email
	// that is already registered.
	ErrDuplicateEmail = errors.New("company email already registered")

	// ErrDuplicateTransaction is returned when inserting a transaction id
	// that already exists through a path that does not permit replacement.
	ErrDuplicateTransaction = errors.New("transaction id already exists")

	// ErrBalanceUnavailable is the facade boundary error: a store failure
	// during settlement or fetch means no balance can be reported. A wrong
	// number is never returned in its place.
	ErrBalanceUnavailable = errors.New("balance unavailable")

	// ErrInsufficientBalance is returned when an outgoing flow exceeds the
	// available balance.
	ErrInsufficientBalance = errors.New("insufficient balance")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InsufficientBalanceError details a balance shortage.
type InsufficientBalanceError struct {
	CompanyID CompanyID
	Available decimal.Decimal
	Requested decimal.Decimal // base units, fees included
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance for %s: available %s, requested %s",
		e.CompanyID, e.Available, e.Requested)
}

func (e *InsufficientBalanceError) Unwrap() error {
	return ErrInsufficientBalance
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound reports whether the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrCompanyNotFound) ||
		errors.Is(err, ErrTransactionNotFound) ||
		errors.Is(err, ErrRequestNotFound)
}

// IsClientError reports whether the error is due to invalid caller input
// rather than an engine or store failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrDuplicateEmail) ||
		errors.Is(err, ErrDuplicateTransaction) ||
		errors.Is(err, ErrNotPending)
}
