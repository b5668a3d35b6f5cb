/*
details.go - Per-type transaction detail variants

PURPOSE:
  Each transaction type carries only the extra fields relevant to it,
  instead of a single nullable metadata bag. Outgoing variants expose a
  base-unit network fee through the FeeBearer interface; incoming variants
  structurally cannot bear one.

HOW DESERIALIZATION WORKS:
  Stores persist details as (kind, JSON) pairs. A registry maps kinds back
  to concrete variant types so a record read from disk round-trips to the
  same Go type. Built-in variants self-register in init().

SEE ALSO:
  - types.go: Transaction.NetworkFee uses FeeBearer
  - store/sqlite: persists kind + JSON columns
*/
package ledger

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
)

// =============================================================================
// DETAIL VARIANTS
// =============================================================================

// TransactionDetails is the tagged variant attached to a transaction.
type TransactionDetails interface {
	// DetailKind returns the stable tag used for persistence.
	DetailKind() string
}

// FeeBearer is implemented by detail variants that carry a network fee.
// The fee is always denominated in base units; it is never multiplied by
// the transaction's exchange rate.
type FeeBearer interface {
	Fee() decimal.Decimal
}

// PaymentDetails annotates an outgoing payment_sent transaction.
type PaymentDetails struct {
	Description    string          `json:"description,omitempty"`
	RecipientEmail string          `json:"recipient_email,omitempty"`
	RequestID      RequestID       `json:"request_id,omitempty"`
	NetworkFee     decimal.Decimal `json:"network_fee"`
}

func (PaymentDetails) DetailKind() string     { return "payment" }
func (d PaymentDetails) Fee() decimal.Decimal { return d.NetworkFee }

// WithdrawalDetails annotates a withdrawal, including the off-ramp fee.
type WithdrawalDetails struct {
	Destination string          `json:"destination,omitempty"`
	NetworkFee  decimal.Decimal `json:"network_fee"`
}

func (WithdrawalDetails) DetailKind() string     { return "withdrawal" }
func (d WithdrawalDetails) Fee() decimal.Decimal { return d.NetworkFee }

// DepositDetails annotates a deposit. No fee field: the payer bears fees.
type DepositDetails struct {
	Description string `json:"description,omitempty"`
	Source      string `json:"source,omitempty"`
}

func (DepositDetails) DetailKind() string { return "deposit" }

// ReceiptDetails annotates a payment_received transaction, linking it back
// to the payment request that produced it when there is one.
type ReceiptDetails struct {
	Description string    `json:"description,omitempty"`
	RequestID   RequestID `json:"request_id,omitempty"`
}

func (ReceiptDetails) DetailKind() string { return "receipt" }

// =============================================================================
// DETAIL REGISTRY - kind string -> concrete type, for deserialization
// =============================================================================

var (
	detailRegistry = make(map[string]func() TransactionDetails)
	detailMu       sync.RWMutex
)

// RegisterDetailKind registers a variant constructor under its kind.
// Built-in kinds are registered in init(); callers may add their own.
func RegisterDetailKind(kind string, newFn func() TransactionDetails) {
	detailMu.Lock()
	defer detailMu.Unlock()
	detailRegistry[kind] = newFn
}

func init() {
	RegisterDetailKind("payment", func() TransactionDetails { return &PaymentDetails{} })
	RegisterDetailKind("withdrawal", func() TransactionDetails { return &WithdrawalDetails{} })
	RegisterDetailKind("deposit", func() TransactionDetails { return &DepositDetails{} })
	RegisterDetailKind("receipt", func() TransactionDetails { return &ReceiptDetails{} })
}

// EncodeDetails serializes a variant to its (kind, JSON) pair.
// A nil variant encodes to ("", nil).
func EncodeDetails(d TransactionDetails) (kind string, raw []byte, err error) {
	if d == nil {
		return "", nil, nil
	}
	raw, err = json.Marshal(d)
	if err != nil {
		return "", nil, fmt.Errorf("encode %s details: %w", d.DetailKind(), err)
	}
	return d.DetailKind(), raw, nil
}

// DecodeDetails reconstructs a variant from its (kind, JSON) pair.
// An empty kind decodes to nil. Unknown kinds are an error: a store with a
// kind we cannot represent indicates a version mismatch, not missing data.
func DecodeDetails(kind string, raw []byte) (TransactionDetails, error) {
	if kind == "" {
		return nil, nil
	}
	detailMu.RLock()
	newFn, ok := detailRegistry[kind]
	detailMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown transaction detail kind %q", kind)
	}
	d := newFn()
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, d); err != nil {
			return nil, fmt.Errorf("decode %s details: %w", kind, err)
		}
	}
	return deref(d), nil
}

// deref unwraps the pointer the registry constructors return so stored and
// in-memory transactions compare equal on the value.
func deref(d TransactionDetails) TransactionDetails {
	switch v := d.(type) {
	case *PaymentDetails:
		return *v
	case *WithdrawalDetails:
		return *v
	case *DepositDetails:
		return *v
	case *ReceiptDetails:
		return *v
	default:
		return d
	}
}
