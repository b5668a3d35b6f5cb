/*
Package payments implements the money-movement flows on top of the ledger
engine: sending and scheduling payments, deposits, withdrawals, and the
payment-request (invoice) lifecycle.

FLOWS:
  SendPayment:   immediate sends write a completed payment_sent /
                 payment_received pair; scheduled sends write one pending
                 payment_sent carrying its due time, and the settlement
                 sweep completes it later.
  Deposit:       one completed deposit transaction; the company's wallet
                 record is created on first use.
  Withdraw:      one pending withdrawal carrying a flat network fee in
                 base units. Withdrawals have no due time, so they stay
                 pending until an operator resolves them.
  Requests:      created pending by the payee; the payer accepts (spawning
                 a completed pair and marking the request paid) or rejects.

BALANCE CHECKS:
  Every immediate outgoing flow is checked against the live balance
  (settling due items first) before any write. Scheduled sends are not
  checked at creation; sufficiency matters at settlement time, and the
  demo settler completes them regardless, matching the dashboard.

All writes are per-record; a crash between the two legs of a pair can
leave one leg behind. Single-record atomicity is the platform guarantee
this package is built against.
*/
package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/vero/finance-engine/ledger"
)

// BaseCurrency is the settlement currency every balance is denominated in.
const BaseCurrency = "USDC"

// withdrawalNetworkFee is the flat base-unit fee charged on withdrawals.
var withdrawalNetworkFee = decimal.NewFromInt(5)

var (
	// ErrAmountNotPositive is returned for zero or negative amounts.
	ErrAmountNotPositive = errors.New("amount must be positive")

	// ErrSelfPayment is returned when sender and recipient are the same
	// company.
	ErrSelfPayment = errors.New("cannot send a payment to yourself")

	// ErrNotRequestPayer is returned when a company tries to act on a
	// payment request addressed to someone else.
	ErrNotRequestPayer = errors.New("payment request is addressed to another company")

	// ErrRequestClosed is returned when accepting or rejecting a request
	// that is no longer pending.
	ErrRequestClosed = errors.New("payment request is no longer pending")
)

// RateSource resolves exchange rates into the base currency.
type RateSource interface {
	Rate(ctx context.Context, currency, base string) ledger.Rate
}

// Service implements the payment flows over a ledger store.
type Service struct {
	Store    ledger.Store
	Rates    RateSource
	Balances *ledger.BalanceService
	Log      logrus.FieldLogger
	Now      func() time.Time
}

// NewService wires a payment service over the given store and rate source.
func NewService(store ledger.Store, rates RateSource) *Service {
	return &Service{
		Store:    store,
		Rates:    rates,
		Balances: ledger.NewBalanceService(store),
		Log:      logrus.StandardLogger(),
		Now:      time.Now,
	}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func newTransactionID() ledger.TransactionID {
	return ledger.TransactionID("tx-" + uuid.NewString())
}

// =============================================================================
// COMPANIES
// =============================================================================

// CreateCompany registers a new participant. Email must be unique.
func (s *Service) CreateCompany(ctx context.Context, name, email, walletAddress string) (*ledger.Company, error) {
	company := ledger.Company{
		ID:            ledger.CompanyID("company-" + uuid.NewString()),
		Name:          name,
		Email:         email,
		WalletAddress: walletAddress,
		CreatedAt:     s.now(),
	}
	if err := s.Store.CreateCompany(ctx, company); err != nil {
		return nil, err
	}
	return &company, nil
}

// resolveRecipient finds the company registered under email, registering a
// placeholder company when none exists so payments to unknown addresses
// still land somewhere queryable.
func (s *Service) resolveRecipient(ctx context.Context, email string) (*ledger.Company, error) {
	existing, err := s.Store.CompanyByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	company, err := s.CreateCompany(ctx, "New Company", email, "")
	if err != nil {
		return nil, err
	}
	s.Log.WithFields(logrus.Fields{
		"company_id": company.ID,
		"email":      email,
	}).Info("registered placeholder company for unknown recipient")
	return company, nil
}

// =============================================================================
// SEND / SCHEDULE PAYMENTS
// =============================================================================

// SendPaymentInput describes an outgoing payment.
type SendPaymentInput struct {
	FromCompanyID  ledger.CompanyID
	RecipientEmail string
	Amount         decimal.Decimal
	Currency       string
	Description    string
	ScheduledFor   *time.Time // nil => immediate
}

// SendPayment executes or schedules a payment from one company to another.
//
// Immediate payments settle on the spot: both ledger legs are written
// completed. Scheduled payments write a single pending payment_sent whose
// due time drives later settlement; the receiving leg does not exist until
// then.
func (s *Service) SendPayment(ctx context.Context, in SendPaymentInput) (*ledger.Transaction, error) {
	if !in.Amount.IsPositive() {
		return nil, ErrAmountNotPositive
	}

	sender, err := s.Store.GetCompany(ctx, in.FromCompanyID)
	if err != nil {
		return nil, err
	}
	if sender == nil {
		return nil, ledger.ErrCompanyNotFound
	}
	if sender.Email == in.RecipientEmail {
		return nil, ErrSelfPayment
	}

	recipient, err := s.resolveRecipient(ctx, in.RecipientEmail)
	if err != nil {
		return nil, err
	}
	if recipient.ID == sender.ID {
		return nil, ErrSelfPayment
	}

	rate := s.Rates.Rate(ctx, in.Currency, BaseCurrency)
	now := s.now()

	if in.ScheduledFor != nil {
		scheduled := *in.ScheduledFor
		tx := ledger.Transaction{
			ID:            newTransactionID(),
			Type:          ledger.TxPaymentSent,
			Amount:        in.Amount,
			Currency:      in.Currency,
			ExchangeRate:  rate.Value,
			FromCompanyID: sender.ID,
			ToCompanyID:   recipient.ID,
			Status:        ledger.StatusPending,
			CreatedAt:     now,
			ScheduledFor:  &scheduled,
			Details: ledger.PaymentDetails{
				Description:    in.Description,
				RecipientEmail: in.RecipientEmail,
			},
		}
		if err := s.Store.PutTransaction(ctx, tx); err != nil {
			return nil, err
		}
		s.Log.WithFields(logrus.Fields{
			"transaction_id": tx.ID,
			"from":           sender.ID,
			"to":             recipient.ID,
			"scheduled_for":  scheduled,
		}).Info("payment scheduled")
		return &tx, nil
	}

	cost := in.Amount.Mul(rate.Value)
	if err := s.requireBalance(ctx, sender.ID, cost); err != nil {
		return nil, err
	}

	sent, _, err := s.writeCompletedPair(ctx, sender.ID, recipient.ID, in.Amount, in.Currency, rate.Value,
		ledger.PaymentDetails{Description: in.Description, RecipientEmail: in.RecipientEmail},
		ledger.ReceiptDetails{Description: in.Description},
	)
	if err != nil {
		return nil, err
	}

	s.Log.WithFields(logrus.Fields{
		"transaction_id": sent.ID,
		"from":           sender.ID,
		"to":             recipient.ID,
		"amount":         in.Amount,
		"currency":       in.Currency,
	}).Info("payment sent")
	return sent, nil
}

// writeCompletedPair writes the two legs of a settled payment. Both legs
// carry the same direction (payer to recipient); the transaction type, not
// the endpoints, tells the balance fold which side each leg belongs to.
func (s *Service) writeCompletedPair(
	ctx context.Context,
	from, to ledger.CompanyID,
	amount decimal.Decimal,
	currency string,
	rate decimal.Decimal,
	sentDetails, receivedDetails ledger.TransactionDetails,
) (*ledger.Transaction, *ledger.Transaction, error) {
	now := s.now()

	sent := ledger.Transaction{
		ID:            newTransactionID(),
		Type:          ledger.TxPaymentSent,
		Amount:        amount,
		Currency:      currency,
		ExchangeRate:  rate,
		FromCompanyID: from,
		ToCompanyID:   to,
		Status:        ledger.StatusCompleted,
		CreatedAt:     now,
		Details:       sentDetails,
	}
	received := ledger.Transaction{
		ID:            newTransactionID(),
		Type:          ledger.TxPaymentReceived,
		Amount:        amount,
		Currency:      currency,
		ExchangeRate:  rate,
		FromCompanyID: from,
		ToCompanyID:   to,
		Status:        ledger.StatusCompleted,
		CreatedAt:     now,
		Details:       receivedDetails,
	}

	if err := s.Store.PutTransaction(ctx, sent); err != nil {
		return nil, nil, err
	}
	if err := s.Store.PutTransaction(ctx, received); err != nil {
		return nil, nil, fmt.Errorf("receiving leg failed after sent leg %s: %w", sent.ID, err)
	}
	return &sent, &received, nil
}

// requireBalance fails with InsufficientBalanceError when the company's
// live balance cannot cover cost (base units, fees included).
func (s *Service) requireBalance(ctx context.Context, companyID ledger.CompanyID, cost decimal.Decimal) error {
	available, err := s.Balances.Balance(ctx, companyID, true)
	if err != nil {
		return err
	}
	if available.LessThan(cost) {
		return &ledger.InsufficientBalanceError{
			CompanyID: companyID,
			Available: available,
			Requested: cost,
		}
	}
	return nil
}

// =============================================================================
// DEPOSITS / WITHDRAWALS
// =============================================================================

// Deposit credits a company with funds from an external source. The
// transaction is written completed; the company's wallet record is created
// with a zero baseline if this is its first economic activity.
func (s *Service) Deposit(ctx context.Context, companyID ledger.CompanyID, amount decimal.Decimal, source, description string) (*ledger.Transaction, error) {
	if !amount.IsPositive() {
		return nil, ErrAmountNotPositive
	}

	company, err := s.Store.GetCompany(ctx, companyID)
	if err != nil {
		return nil, err
	}
	if company == nil {
		return nil, ledger.ErrCompanyNotFound
	}

	if err := s.ensureWallet(ctx, companyID); err != nil {
		return nil, err
	}

	tx := ledger.Transaction{
		ID:            newTransactionID(),
		Type:          ledger.TxDeposit,
		Amount:        amount,
		Currency:      BaseCurrency,
		FromCompanyID: "external",
		ToCompanyID:   companyID,
		Status:        ledger.StatusCompleted,
		CreatedAt:     s.now(),
		Details:       ledger.DepositDetails{Description: description, Source: source},
	}
	if err := s.Store.PutTransaction(ctx, tx); err != nil {
		return nil, err
	}

	s.Log.WithFields(logrus.Fields{
		"transaction_id": tx.ID,
		"company_id":     companyID,
		"amount":         amount,
	}).Info("deposit recorded")
	return &tx, nil
}

// Withdraw moves funds out to an external destination. The transaction is
// written pending with a flat network fee; it carries no due time, so the
// settlement sweep never touches it.
func (s *Service) Withdraw(ctx context.Context, companyID ledger.CompanyID, amount decimal.Decimal, destination string) (*ledger.Transaction, error) {
	if !amount.IsPositive() {
		return nil, ErrAmountNotPositive
	}

	company, err := s.Store.GetCompany(ctx, companyID)
	if err != nil {
		return nil, err
	}
	if company == nil {
		return nil, ledger.ErrCompanyNotFound
	}

	cost := amount.Add(withdrawalNetworkFee)
	if err := s.requireBalance(ctx, companyID, cost); err != nil {
		return nil, err
	}

	tx := ledger.Transaction{
		ID:            newTransactionID(),
		Type:          ledger.TxWithdrawal,
		Amount:        amount,
		Currency:      BaseCurrency,
		FromCompanyID: companyID,
		Status:        ledger.StatusPending,
		CreatedAt:     s.now(),
		Details: ledger.WithdrawalDetails{
			Destination: destination,
			NetworkFee:  withdrawalNetworkFee,
		},
	}
	if err := s.Store.PutTransaction(ctx, tx); err != nil {
		return nil, err
	}

	s.Log.WithFields(logrus.Fields{
		"transaction_id": tx.ID,
		"company_id":     companyID,
		"amount":         amount,
	}).Info("withdrawal initiated")
	return &tx, nil
}

// ensureWallet creates a zero-baseline wallet when none exists yet.
func (s *Service) ensureWallet(ctx context.Context, companyID ledger.CompanyID) error {
	wallet, err := s.Store.GetWallet(ctx, companyID)
	if err != nil {
		return err
	}
	if wallet != nil {
		return nil
	}
	return s.Store.PutWallet(ctx, ledger.Wallet{
		CompanyID:   companyID,
		Balance:     decimal.Zero,
		Currency:    BaseCurrency,
		LastUpdated: s.now(),
	})
}

// =============================================================================
// PAYMENT REQUESTS
// =============================================================================

// CreateRequestInput describes an invoice-like ask.
type CreateRequestInput struct {
	RequesterID ledger.CompanyID
	PayerEmail  string
	Amount      decimal.Decimal
	Currency    string
	DueDate     time.Time
}

// CreatePaymentRequest records a pending request for payment addressed to
// the company registered under PayerEmail.
func (s *Service) CreatePaymentRequest(ctx context.Context, in CreateRequestInput) (*ledger.PaymentRequest, error) {
	if !in.Amount.IsPositive() {
		return nil, ErrAmountNotPositive
	}

	requester, err := s.Store.GetCompany(ctx, in.RequesterID)
	if err != nil {
		return nil, err
	}
	if requester == nil {
		return nil, ledger.ErrCompanyNotFound
	}
	if requester.Email == in.PayerEmail {
		return nil, ErrSelfPayment
	}

	payer, err := s.resolveRecipient(ctx, in.PayerEmail)
	if err != nil {
		return nil, err
	}
	if payer.ID == requester.ID {
		return nil, ErrSelfPayment
	}

	request := ledger.PaymentRequest{
		ID:            ledger.RequestID("req-" + uuid.NewString()),
		FromCompanyID: requester.ID,
		ToCompanyID:   payer.ID,
		Amount:        in.Amount,
		Currency:      in.Currency,
		DueDate:       in.DueDate,
		Status:        ledger.RequestPending,
		CreatedAt:     s.now(),
	}
	if err := s.Store.PutPaymentRequest(ctx, request); err != nil {
		return nil, err
	}

	s.Log.WithFields(logrus.Fields{
		"request_id": request.ID,
		"requester":  requester.ID,
		"payer":      payer.ID,
		"amount":     in.Amount,
	}).Info("payment request created")
	return &request, nil
}

// AcceptPaymentRequest pays a pending request addressed to payerID. On
// success a completed transaction pair referencing the request is written
// and the request is marked paid.
//
// The pair is written before the status flip, so a crash in between leaves
// a paid-in-ledger request still showing pending. Re-accepting it would
// double-pay; the demo accepts this, a production system would need an
// idempotency key on the pair.
func (s *Service) AcceptPaymentRequest(ctx context.Context, payerID ledger.CompanyID, requestID ledger.RequestID) (*ledger.PaymentRequest, error) {
	request, err := s.Store.GetPaymentRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request == nil {
		return nil, ledger.ErrRequestNotFound
	}
	if request.ToCompanyID != payerID {
		return nil, ErrNotRequestPayer
	}
	if request.Status != ledger.RequestPending {
		return nil, ErrRequestClosed
	}

	rate := s.Rates.Rate(ctx, request.Currency, BaseCurrency)
	cost := request.Amount.Mul(rate.Value)
	if err := s.requireBalance(ctx, payerID, cost); err != nil {
		return nil, err
	}

	description := fmt.Sprintf("Payment for request %s", request.ID)
	_, _, err = s.writeCompletedPair(ctx, payerID, request.FromCompanyID,
		request.Amount, request.Currency, rate.Value,
		ledger.PaymentDetails{Description: description, RequestID: request.ID},
		ledger.ReceiptDetails{Description: description, RequestID: request.ID},
	)
	if err != nil {
		return nil, err
	}

	request.Status = ledger.RequestPaid
	if err := s.Store.PutPaymentRequest(ctx, *request); err != nil {
		return nil, err
	}

	s.Log.WithFields(logrus.Fields{
		"request_id": request.ID,
		"payer":      payerID,
	}).Info("payment request paid")
	return request, nil
}

// RejectPaymentRequest declines a pending request addressed to payerID.
func (s *Service) RejectPaymentRequest(ctx context.Context, payerID ledger.CompanyID, requestID ledger.RequestID) (*ledger.PaymentRequest, error) {
	request, err := s.Store.GetPaymentRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request == nil {
		return nil, ledger.ErrRequestNotFound
	}
	if request.ToCompanyID != payerID {
		return nil, ErrNotRequestPayer
	}
	if request.Status != ledger.RequestPending {
		return nil, ErrRequestClosed
	}

	request.Status = ledger.RequestRejected
	if err := s.Store.PutPaymentRequest(ctx, *request); err != nil {
		return nil, err
	}

	s.Log.WithFields(logrus.Fields{
		"request_id": request.ID,
		"payer":      payerID,
	}).Info("payment request rejected")
	return request, nil
}
