package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vero/finance-engine/ledger"
	"github.com/vero/finance-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func d(v string) decimal.Decimal {
	dec, err := decimal.NewFromString(v)
	if err != nil {
		panic(err)
	}
	return dec
}

// Stored timestamps have second precision; use whole-second times so
// round-trips compare equal.
func ts(offsetDays int) time.Time {
	return time.Now().UTC().Truncate(time.Second).AddDate(0, 0, offsetDays)
}

func sampleTransaction(id string) ledger.Transaction {
	scheduled := ts(1)
	return ledger.Transaction{
		ID:            ledger.TransactionID(id),
		Type:          ledger.TxPaymentSent,
		Amount:        d("1234.56"),
		Currency:      "ETH",
		ExchangeRate:  d("3000"),
		FromCompanyID: "company-1",
		ToCompanyID:   "company-2",
		Status:        ledger.StatusPending,
		CreatedAt:     ts(0),
		ScheduledFor:  &scheduled,
		Details: ledger.PaymentDetails{
			Description:    "Invoice #42",
			RecipientEmail: "accounts@acme.com",
			NetworkFee:     d("5"),
		},
	}
}

// =============================================================================
// TRANSACTION TESTS
// =============================================================================

func TestStore_TransactionRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	want := sampleTransaction("tx-1")
	require.NoError(t, store.PutTransaction(ctx, want))

	got, err := store.GetTransaction(ctx, "tx-1")
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.Type, got.Type)
	assert.True(t, want.Amount.Equal(got.Amount))
	assert.Equal(t, want.Currency, got.Currency)
	assert.True(t, want.ExchangeRate.Equal(got.ExchangeRate))
	assert.Equal(t, want.FromCompanyID, got.FromCompanyID)
	assert.Equal(t, want.ToCompanyID, got.ToCompanyID)
	assert.Equal(t, want.Status, got.Status)
	assert.True(t, want.CreatedAt.Equal(got.CreatedAt))
	require.NotNil(t, got.ScheduledFor)
	assert.True(t, want.ScheduledFor.Equal(*got.ScheduledFor))

	details, ok := got.Details.(ledger.PaymentDetails)
	require.True(t, ok, "details should round-trip to the same variant")
	assert.Equal(t, "Invoice #42", details.Description)
	assert.True(t, d("5").Equal(details.NetworkFee))
}

func TestStore_GetTransaction_AbsentIsNil(t *testing.T) {
	store := newTestStore(t)

	got, err := store.GetTransaction(context.Background(), "tx-missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStore_PutTransaction_Upserts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	tx := sampleTransaction("tx-1")
	require.NoError(t, store.PutTransaction(ctx, tx))

	tx.Status = ledger.StatusFailed
	require.NoError(t, store.PutTransaction(ctx, tx))

	got, err := store.GetTransaction(ctx, "tx-1")
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusFailed, got.Status)
}

func TestStore_SecondaryLookups(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a := sampleTransaction("tx-a")
	b := sampleTransaction("tx-b")
	b.FromCompanyID = "company-3"
	b.ToCompanyID = "company-1"
	require.NoError(t, store.PutTransaction(ctx, a))
	require.NoError(t, store.PutTransaction(ctx, b))

	bySender, err := store.TransactionsBySender(ctx, "company-1")
	require.NoError(t, err)
	require.Len(t, bySender, 1)
	assert.Equal(t, ledger.TransactionID("tx-a"), bySender[0].ID)

	byRecipient, err := store.TransactionsByRecipient(ctx, "company-1")
	require.NoError(t, err)
	require.Len(t, byRecipient, 1)
	assert.Equal(t, ledger.TransactionID("tx-b"), byRecipient[0].ID)

	all, err := store.AllTransactions(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestStore_DueScheduledTransactions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	overdue := sampleTransaction("tx-overdue")
	past := ts(-1)
	overdue.ScheduledFor = &past

	future := sampleTransaction("tx-future")
	later := ts(7)
	future.ScheduledFor = &later

	unscheduled := sampleTransaction("tx-unscheduled")
	unscheduled.ScheduledFor = nil

	completed := sampleTransaction("tx-completed")
	completed.ScheduledFor = &past
	completed.Status = ledger.StatusCompleted

	for _, tx := range []ledger.Transaction{overdue, future, unscheduled, completed} {
		require.NoError(t, store.PutTransaction(ctx, tx))
	}

	due, err := store.DueScheduledTransactions(ctx, time.Now())
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, ledger.TransactionID("tx-overdue"), due[0].ID)
}

func TestStore_MarkTransactionCompleted(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	tx := sampleTransaction("tx-1")
	require.NoError(t, store.PutTransaction(ctx, tx))

	require.NoError(t, store.MarkTransactionCompleted(ctx, "tx-1"))

	got, err := store.GetTransaction(ctx, "tx-1")
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusCompleted, got.Status)

	// Everything else is untouched
	assert.True(t, tx.Amount.Equal(got.Amount))
	require.NotNil(t, got.ScheduledFor)
	assert.True(t, tx.ScheduledFor.Equal(*got.ScheduledFor))

	// Re-completing a terminal record is ErrNotPending
	err = store.MarkTransactionCompleted(ctx, "tx-1")
	assert.ErrorIs(t, err, ledger.ErrNotPending)

	// Unknown id is ErrTransactionNotFound
	err = store.MarkTransactionCompleted(ctx, "tx-missing")
	assert.ErrorIs(t, err, ledger.ErrTransactionNotFound)
}

// =============================================================================
// WALLET TESTS
// =============================================================================

func TestStore_WalletRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	absent, err := store.GetWallet(ctx, "company-1")
	require.NoError(t, err)
	assert.Nil(t, absent, "missing wallet is nil, not an error")

	want := ledger.Wallet{
		CompanyID:   "company-1",
		Balance:     d("10000.50"),
		Currency:    "USDC",
		LastUpdated: ts(0),
	}
	require.NoError(t, store.PutWallet(ctx, want))

	got, err := store.GetWallet(ctx, "company-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, want.Balance.Equal(got.Balance))
	assert.Equal(t, want.Currency, got.Currency)

	// Upsert keeps one record per company
	want.Balance = d("9000")
	require.NoError(t, store.PutWallet(ctx, want))
	got, err = store.GetWallet(ctx, "company-1")
	require.NoError(t, err)
	assert.True(t, d("9000").Equal(got.Balance))
}

// =============================================================================
// COMPANY TESTS
// =============================================================================

func TestStore_CompanyUniqueEmail(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	c := ledger.Company{ID: "company-1", Name: "Acme", Email: "a@acme.com", CreatedAt: ts(0)}
	require.NoError(t, store.CreateCompany(ctx, c))

	dup := ledger.Company{ID: "company-2", Name: "Other", Email: "a@acme.com", CreatedAt: ts(0)}
	err := store.CreateCompany(ctx, dup)
	assert.ErrorIs(t, err, ledger.ErrDuplicateEmail)
}

func TestStore_CompanyLookups(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	c := ledger.Company{ID: "company-1", Name: "Acme", Email: "a@acme.com",
		WalletAddress: "0xabc", CreatedAt: ts(0)}
	require.NoError(t, store.CreateCompany(ctx, c))

	byID, err := store.GetCompany(ctx, "company-1")
	require.NoError(t, err)
	require.NotNil(t, byID)
	assert.Equal(t, "Acme", byID.Name)
	assert.Equal(t, "0xabc", byID.WalletAddress)

	byEmail, err := store.CompanyByEmail(ctx, "a@acme.com")
	require.NoError(t, err)
	require.NotNil(t, byEmail)
	assert.Equal(t, ledger.CompanyID("company-1"), byEmail.ID)

	missing, err := store.GetCompany(ctx, "company-404")
	require.NoError(t, err)
	assert.Nil(t, missing)

	list, err := store.ListCompanies(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

// =============================================================================
// PAYMENT REQUEST TESTS
// =============================================================================

func TestStore_PaymentRequestLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	r := ledger.PaymentRequest{
		ID:            "req-1",
		FromCompanyID: "company-2",
		ToCompanyID:   "company-1",
		Amount:        d("750"),
		Currency:      "USDC",
		DueDate:       ts(7),
		Status:        ledger.RequestPending,
		CreatedAt:     ts(0),
	}
	require.NoError(t, store.PutPaymentRequest(ctx, r))

	forPayer, err := store.RequestsForPayer(ctx, "company-1")
	require.NoError(t, err)
	require.Len(t, forPayer, 1)
	assert.True(t, d("750").Equal(forPayer[0].Amount))

	byRequester, err := store.RequestsByRequester(ctx, "company-2")
	require.NoError(t, err)
	assert.Len(t, byRequester, 1)

	// Status flip via upsert
	r.Status = ledger.RequestPaid
	require.NoError(t, store.PutPaymentRequest(ctx, r))

	got, err := store.GetPaymentRequest(ctx, "req-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, ledger.RequestPaid, got.Status)
}

// =============================================================================
// RESET
// =============================================================================

func TestStore_Reset(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.PutTransaction(ctx, sampleTransaction("tx-1")))
	require.NoError(t, store.CreateCompany(ctx,
		ledger.Company{ID: "company-1", Name: "Acme", Email: "a@acme.com", CreatedAt: ts(0)}))

	require.NoError(t, store.Reset(ctx))

	all, err := store.AllTransactions(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	companies, err := store.ListCompanies(ctx)
	require.NoError(t, err)
	assert.Empty(t, companies)
}
