package payments_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vero/finance-engine/ledger"
	"github.com/vero/finance-engine/ledger/store"
	"github.com/vero/finance-engine/payments"
)

// =============================================================================
// TEST SETUP
// =============================================================================

// stubRates returns a fixed rate for every lookup.
type stubRates struct {
	rate  decimal.Decimal
	known bool
}

func (s stubRates) Rate(_ context.Context, currency, base string) ledger.Rate {
	if currency == base {
		return ledger.KnownRate(decimal.NewFromInt(1))
	}
	if !s.known {
		return ledger.UnknownRate()
	}
	return ledger.KnownRate(s.rate)
}

func d(v string) decimal.Decimal {
	dec, err := decimal.NewFromString(v)
	if err != nil {
		panic(err)
	}
	return dec
}

func newTestService(t *testing.T) (*payments.Service, *store.Memory) {
	mem := store.NewMemory()
	svc := payments.NewService(mem, stubRates{rate: decimal.NewFromInt(1), known: true})
	return svc, mem
}

// seedCompany registers a company and funds its wallet.
func seedCompany(t *testing.T, mem *store.Memory, id, email, balance string) {
	ctx := context.Background()
	require.NoError(t, mem.CreateCompany(ctx, ledger.Company{
		ID:        ledger.CompanyID(id),
		Name:      id,
		Email:     email,
		CreatedAt: time.Now(),
	}))
	if balance != "" {
		require.NoError(t, mem.PutWallet(ctx, ledger.Wallet{
			CompanyID:   ledger.CompanyID(id),
			Balance:     d(balance),
			Currency:    payments.BaseCurrency,
			LastUpdated: time.Now(),
		}))
	}
}

// =============================================================================
// SEND PAYMENT TESTS
// =============================================================================

func TestSendPayment_ImmediateWritesCompletedPair(t *testing.T) {
	// GIVEN: A funded sender and a registered recipient
	// WHEN: Sending an immediate payment
	// THEN: Both legs are written completed and the balance drops

	svc, mem := newTestService(t)
	ctx := context.Background()
	seedCompany(t, mem, "company-1", "a@one.com", "10000")
	seedCompany(t, mem, "company-2", "b@two.com", "")

	tx, err := svc.SendPayment(ctx, payments.SendPaymentInput{
		FromCompanyID:  "company-1",
		RecipientEmail: "b@two.com",
		Amount:         d("1000"),
		Currency:       "USDC",
		Description:    "Invoice #1",
	})
	require.NoError(t, err)
	assert.Equal(t, ledger.TxPaymentSent, tx.Type)
	assert.Equal(t, ledger.StatusCompleted, tx.Status)
	assert.Nil(t, tx.ScheduledFor)

	all, err := mem.AllTransactions(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2, "immediate payment writes two legs")

	types := map[ledger.TransactionType]ledger.Transaction{}
	for _, leg := range all {
		types[leg.Type] = leg
		assert.Equal(t, ledger.StatusCompleted, leg.Status)
		assert.Equal(t, ledger.CompanyID("company-1"), leg.FromCompanyID)
		assert.Equal(t, ledger.CompanyID("company-2"), leg.ToCompanyID)
	}
	require.Contains(t, types, ledger.TxPaymentSent)
	require.Contains(t, types, ledger.TxPaymentReceived)

	balance, err := svc.Balances.Balance(ctx, "company-1", false)
	require.NoError(t, err)
	assert.True(t, d("9000").Equal(balance), "got %s", balance)

	// The recipient sees the receiving leg
	recipientBalance, err := svc.Balances.Balance(ctx, "company-2", false)
	require.NoError(t, err)
	assert.True(t, d("1000").Equal(recipientBalance), "got %s", recipientBalance)
}

func TestSendPayment_InsufficientBalance(t *testing.T) {
	svc, mem := newTestService(t)
	seedCompany(t, mem, "company-1", "a@one.com", "100")
	seedCompany(t, mem, "company-2", "b@two.com", "")

	_, err := svc.SendPayment(context.Background(), payments.SendPaymentInput{
		FromCompanyID:  "company-1",
		RecipientEmail: "b@two.com",
		Amount:         d("1000"),
		Currency:       "USDC",
	})
	assert.ErrorIs(t, err, ledger.ErrInsufficientBalance)

	var detail *ledger.InsufficientBalanceError
	require.ErrorAs(t, err, &detail)
	assert.True(t, d("100").Equal(detail.Available))
	assert.True(t, d("1000").Equal(detail.Requested))

	// Nothing was written
	all, err := mem.AllTransactions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestSendPayment_ScheduledWritesSinglePendingLeg(t *testing.T) {
	// GIVEN: A scheduled send for tomorrow
	// WHEN: Creating it
	// THEN: One pending payment_sent exists; no receiving leg yet

	svc, mem := newTestService(t)
	ctx := context.Background()
	seedCompany(t, mem, "company-1", "a@one.com", "10000")
	seedCompany(t, mem, "company-2", "b@two.com", "")

	tomorrow := time.Now().AddDate(0, 0, 1)
	tx, err := svc.SendPayment(ctx, payments.SendPaymentInput{
		FromCompanyID:  "company-1",
		RecipientEmail: "b@two.com",
		Amount:         d("500"),
		Currency:       "USDC",
		ScheduledFor:   &tomorrow,
	})
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusPending, tx.Status)
	require.NotNil(t, tx.ScheduledFor)

	all, err := mem.AllTransactions(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	// Pending scheduled payments do not affect the balance yet
	balance, err := svc.Balances.Balance(ctx, "company-1", true)
	require.NoError(t, err)
	assert.True(t, d("10000").Equal(balance))
}

func TestSendPayment_ScheduledSettlesWhenDue(t *testing.T) {
	// GIVEN: A payment scheduled in the past (clock moved forward)
	// WHEN: Querying the balance with settle-first
	// THEN: The payment completes and is deducted

	svc, mem := newTestService(t)
	ctx := context.Background()
	seedCompany(t, mem, "company-1", "a@one.com", "10000")
	seedCompany(t, mem, "company-2", "b@two.com", "")

	soon := time.Now().Add(time.Minute)
	tx, err := svc.SendPayment(ctx, payments.SendPaymentInput{
		FromCompanyID:  "company-1",
		RecipientEmail: "b@two.com",
		Amount:         d("500"),
		Currency:       "USDC",
		ScheduledFor:   &soon,
	})
	require.NoError(t, err)

	// Move the settler's clock past the due time
	svc.Balances.Settler.Now = func() time.Time { return time.Now().Add(2 * time.Minute) }

	balance, err := svc.Balances.Balance(ctx, "company-1", true)
	require.NoError(t, err)
	assert.True(t, d("9500").Equal(balance), "got %s", balance)

	settled, err := mem.GetTransaction(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusCompleted, settled.Status)
}

func TestSendPayment_ExchangeRateCostsBaseUnits(t *testing.T) {
	// GIVEN: A rate source quoting 3000 base units per unit
	// WHEN: Sending 1 unit
	// THEN: The sender's balance drops by 3000

	mem := store.NewMemory()
	svc := payments.NewService(mem, stubRates{rate: d("3000"), known: true})
	ctx := context.Background()
	seedCompany(t, mem, "company-1", "a@one.com", "10000")
	seedCompany(t, mem, "company-2", "b@two.com", "")

	tx, err := svc.SendPayment(ctx, payments.SendPaymentInput{
		FromCompanyID:  "company-1",
		RecipientEmail: "b@two.com",
		Amount:         d("1"),
		Currency:       "ETH",
	})
	require.NoError(t, err)
	assert.True(t, d("3000").Equal(tx.ExchangeRate))

	balance, err := svc.Balances.Balance(ctx, "company-1", false)
	require.NoError(t, err)
	assert.True(t, d("7000").Equal(balance), "got %s", balance)
}

func TestSendPayment_UnknownRecipientRegistered(t *testing.T) {
	// GIVEN: A recipient email with no registered company
	// WHEN: Sending a payment to it
	// THEN: A placeholder company is created and receives the payment

	svc, mem := newTestService(t)
	ctx := context.Background()
	seedCompany(t, mem, "company-1", "a@one.com", "10000")

	_, err := svc.SendPayment(ctx, payments.SendPaymentInput{
		FromCompanyID:  "company-1",
		RecipientEmail: "new@unknown.com",
		Amount:         d("100"),
		Currency:       "USDC",
	})
	require.NoError(t, err)

	created, err := mem.CompanyByEmail(ctx, "new@unknown.com")
	require.NoError(t, err)
	require.NotNil(t, created)
	assert.Equal(t, "New Company", created.Name)
}

func TestSendPayment_Validation(t *testing.T) {
	svc, mem := newTestService(t)
	ctx := context.Background()
	seedCompany(t, mem, "company-1", "a@one.com", "10000")

	_, err := svc.SendPayment(ctx, payments.SendPaymentInput{
		FromCompanyID:  "company-1",
		RecipientEmail: "b@two.com",
		Amount:         d("-5"),
		Currency:       "USDC",
	})
	assert.ErrorIs(t, err, payments.ErrAmountNotPositive)

	_, err = svc.SendPayment(ctx, payments.SendPaymentInput{
		FromCompanyID:  "company-1",
		RecipientEmail: "a@one.com",
		Amount:         d("5"),
		Currency:       "USDC",
	})
	assert.ErrorIs(t, err, payments.ErrSelfPayment)

	_, err = svc.SendPayment(ctx, payments.SendPaymentInput{
		FromCompanyID:  "company-404",
		RecipientEmail: "b@two.com",
		Amount:         d("5"),
		Currency:       "USDC",
	})
	assert.ErrorIs(t, err, ledger.ErrCompanyNotFound)
}

// =============================================================================
// DEPOSIT / WITHDRAWAL TESTS
// =============================================================================

func TestDeposit_CreatesWalletAndCredits(t *testing.T) {
	svc, mem := newTestService(t)
	ctx := context.Background()
	seedCompany(t, mem, "company-1", "a@one.com", "")

	tx, err := svc.Deposit(ctx, "company-1", d("5000"), "bank transfer", "Treasury top-up")
	require.NoError(t, err)
	assert.Equal(t, ledger.TxDeposit, tx.Type)
	assert.Equal(t, ledger.StatusCompleted, tx.Status)
	assert.Equal(t, ledger.CompanyID("external"), tx.FromCompanyID)

	wallet, err := mem.GetWallet(ctx, "company-1")
	require.NoError(t, err)
	require.NotNil(t, wallet, "first deposit creates the wallet record")
	assert.True(t, wallet.Balance.IsZero(), "wallet baseline stays zero; the deposit is a transaction")

	balance, err := svc.Balances.Balance(ctx, "company-1", false)
	require.NoError(t, err)
	assert.True(t, d("5000").Equal(balance))
}

func TestWithdraw_PendingWithFlatFee(t *testing.T) {
	svc, mem := newTestService(t)
	ctx := context.Background()
	seedCompany(t, mem, "company-1", "a@one.com", "10000")

	tx, err := svc.Withdraw(ctx, "company-1", d("1000"), "0xdeadbeef")
	require.NoError(t, err)
	assert.Equal(t, ledger.TxWithdrawal, tx.Type)
	assert.Equal(t, ledger.StatusPending, tx.Status)
	assert.Nil(t, tx.ScheduledFor, "withdrawals are not scheduled; they stay pending")

	details, ok := tx.Details.(ledger.WithdrawalDetails)
	require.True(t, ok)
	assert.Equal(t, "0xdeadbeef", details.Destination)
	assert.True(t, d("5").Equal(details.NetworkFee))

	// Pending withdrawal has no effect yet
	balance, err := svc.Balances.Balance(ctx, "company-1", true)
	require.NoError(t, err)
	assert.True(t, d("10000").Equal(balance))

	// Once completed, amount plus fee are deducted
	require.NoError(t, mem.MarkTransactionCompleted(ctx, tx.ID))
	balance, err = svc.Balances.Balance(ctx, "company-1", false)
	require.NoError(t, err)
	assert.True(t, d("8995").Equal(balance), "got %s", balance)
}

func TestWithdraw_BalanceCheckIncludesFee(t *testing.T) {
	svc, mem := newTestService(t)
	seedCompany(t, mem, "company-1", "a@one.com", "1002")

	// 1000 + 5 fee > 1002
	_, err := svc.Withdraw(context.Background(), "company-1", d("1000"), "0xabc")
	assert.ErrorIs(t, err, ledger.ErrInsufficientBalance)
}

// =============================================================================
// PAYMENT REQUEST TESTS
// =============================================================================

func TestPaymentRequest_AcceptPaysAndMarksPaid(t *testing.T) {
	// GIVEN: A pending request from company-2 to company-1
	// WHEN: The payer accepts it
	// THEN: A completed pair referencing the request is written and the
	//       request flips to paid

	svc, mem := newTestService(t)
	ctx := context.Background()
	seedCompany(t, mem, "company-1", "a@one.com", "10000")
	seedCompany(t, mem, "company-2", "b@two.com", "")

	request, err := svc.CreatePaymentRequest(ctx, payments.CreateRequestInput{
		RequesterID: "company-2",
		PayerEmail:  "a@one.com",
		Amount:      d("750"),
		Currency:    "USDC",
		DueDate:     time.Now().AddDate(0, 0, 7),
	})
	require.NoError(t, err)
	assert.Equal(t, ledger.RequestPending, request.Status)

	paid, err := svc.AcceptPaymentRequest(ctx, "company-1", request.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.RequestPaid, paid.Status)

	all, err := mem.AllTransactions(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	for _, leg := range all {
		assert.Equal(t, ledger.StatusCompleted, leg.Status)
		assert.Equal(t, ledger.CompanyID("company-1"), leg.FromCompanyID)
		assert.Equal(t, ledger.CompanyID("company-2"), leg.ToCompanyID)
	}

	balance, err := svc.Balances.Balance(ctx, "company-1", false)
	require.NoError(t, err)
	assert.True(t, d("9250").Equal(balance), "got %s", balance)

	requesterBalance, err := svc.Balances.Balance(ctx, "company-2", false)
	require.NoError(t, err)
	assert.True(t, d("750").Equal(requesterBalance))
}

func TestPaymentRequest_AcceptGuards(t *testing.T) {
	svc, mem := newTestService(t)
	ctx := context.Background()
	seedCompany(t, mem, "company-1", "a@one.com", "10000")
	seedCompany(t, mem, "company-2", "b@two.com", "")
	seedCompany(t, mem, "company-3", "c@three.com", "10000")

	request, err := svc.CreatePaymentRequest(ctx, payments.CreateRequestInput{
		RequesterID: "company-2",
		PayerEmail:  "a@one.com",
		Amount:      d("750"),
		Currency:    "USDC",
		DueDate:     time.Now().AddDate(0, 0, 7),
	})
	require.NoError(t, err)

	// Wrong payer
	_, err = svc.AcceptPaymentRequest(ctx, "company-3", request.ID)
	assert.ErrorIs(t, err, payments.ErrNotRequestPayer)

	// Unknown request
	_, err = svc.AcceptPaymentRequest(ctx, "company-1", "req-404")
	assert.ErrorIs(t, err, ledger.ErrRequestNotFound)

	// Already closed
	_, err = svc.AcceptPaymentRequest(ctx, "company-1", request.ID)
	require.NoError(t, err)
	_, err = svc.AcceptPaymentRequest(ctx, "company-1", request.ID)
	assert.ErrorIs(t, err, payments.ErrRequestClosed)
}

func TestPaymentRequest_AcceptInsufficientBalance(t *testing.T) {
	svc, mem := newTestService(t)
	ctx := context.Background()
	seedCompany(t, mem, "company-1", "a@one.com", "100")
	seedCompany(t, mem, "company-2", "b@two.com", "")

	request, err := svc.CreatePaymentRequest(ctx, payments.CreateRequestInput{
		RequesterID: "company-2",
		PayerEmail:  "a@one.com",
		Amount:      d("750"),
		Currency:    "USDC",
		DueDate:     time.Now().AddDate(0, 0, 7),
	})
	require.NoError(t, err)

	_, err = svc.AcceptPaymentRequest(ctx, "company-1", request.ID)
	assert.ErrorIs(t, err, ledger.ErrInsufficientBalance)

	// Request stays pending; it can be retried after funding
	got, err := mem.GetPaymentRequest(ctx, request.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.RequestPending, got.Status)
}

func TestPaymentRequest_Reject(t *testing.T) {
	svc, mem := newTestService(t)
	ctx := context.Background()
	seedCompany(t, mem, "company-1", "a@one.com", "10000")
	seedCompany(t, mem, "company-2", "b@two.com", "")

	request, err := svc.CreatePaymentRequest(ctx, payments.CreateRequestInput{
		RequesterID: "company-2",
		PayerEmail:  "a@one.com",
		Amount:      d("750"),
		Currency:    "USDC",
		DueDate:     time.Now().AddDate(0, 0, 7),
	})
	require.NoError(t, err)

	rejected, err := svc.RejectPaymentRequest(ctx, "company-1", request.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.RequestRejected, rejected.Status)

	// No money moved
	all, err := mem.AllTransactions(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	// A rejected request cannot be accepted afterwards
	_, err = svc.AcceptPaymentRequest(ctx, "company-1", request.ID)
	assert.ErrorIs(t, err, payments.ErrRequestClosed)
}

// =============================================================================
// COMPANY TESTS
// =============================================================================

func TestCreateCompany_DuplicateEmail(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateCompany(ctx, "Acme", "a@acme.com", "")
	require.NoError(t, err)

	_, err = svc.CreateCompany(ctx, "Other", "a@acme.com", "")
	assert.ErrorIs(t, err, ledger.ErrDuplicateEmail)
}
