/*
Package sqlite provides a SQLite-backed implementation of the storage ports.

PURPOSE:
  Implements ledger.Store (transactions, wallets, companies, payment
  requests) using an embedded SQLite database. This is the platform
  persistence layer the engine consumes through its ports.

KEY TABLES:
  companies:        Participant records (email unique)
  wallets:          One baseline record per company (company_id primary key)
  transactions:     The ledger itself
  payment_requests: Invoice-like asks between companies

INDEXES:
  Secondary lookups mirror the object-store index layout:
  - idx_transactions_from / idx_transactions_to: per-company unions
  - idx_transactions_created: chronological listing
  - idx_transactions_due: partial index over pending scheduled items, so the
    settlement sweep is a range scan rather than a full-table scan

SINGLE-FIELD SETTLEMENT UPDATE:
  MarkTransactionCompleted issues UPDATE ... SET status = 'completed'
  WHERE id = ? AND status = 'pending'. One record, one statement: the write
  is atomic per record, and every other column is untouched. The loser of a
  race between two overlapping sweeps simply matches zero rows.

WAL MODE:
  The database is opened with WAL (Write-Ahead Logging):
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/vero.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - ledger/store.go: Port definitions
  - ledger/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/vero/finance-engine/ledger"
)

// Store implements ledger.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ ledger.Store = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Companies
	CREATE TABLE IF NOT EXISTS companies (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		wallet_address TEXT,
		created_at TEXT NOT NULL
	);

	-- Wallets (one baseline record per company)
	CREATE TABLE IF NOT EXISTS wallets (
		company_id TEXT PRIMARY KEY,
		balance TEXT NOT NULL,
		currency TEXT NOT NULL,
		last_updated TEXT NOT NULL
	);

	-- Transactions (the ledger)
	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		tx_type TEXT NOT NULL,
		amount TEXT NOT NULL,
		currency TEXT NOT NULL,
		exchange_rate TEXT,
		from_company_id TEXT NOT NULL,
		to_company_id TEXT,
		status TEXT NOT NULL,
		created_at TEXT NOT NULL,
		scheduled_for TEXT,
		detail_kind TEXT,
		details_json TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_from
		ON transactions(from_company_id);
	CREATE INDEX IF NOT EXISTS idx_transactions_to
		ON transactions(to_company_id) WHERE to_company_id IS NOT NULL;
	CREATE INDEX IF NOT EXISTS idx_transactions_created
		ON transactions(created_at);

	-- Settlement hot path: due pending scheduled items as a range scan
	CREATE INDEX IF NOT EXISTS idx_transactions_due
		ON transactions(scheduled_for)
		WHERE status = 'pending' AND scheduled_for IS NOT NULL;

	-- Payment Requests
	CREATE TABLE IF NOT EXISTS payment_requests (
		id TEXT PRIMARY KEY,
		from_company_id TEXT NOT NULL,
		to_company_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		currency TEXT NOT NULL,
		due_date TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_requests_from
		ON payment_requests(from_company_id);
	CREATE INDEX IF NOT EXISTS idx_requests_to
		ON payment_requests(to_company_id);
	CREATE INDEX IF NOT EXISTS idx_requests_status
		ON payment_requests(status);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Reset wipes all data. Used by scenario loading only.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{"transactions", "wallets", "companies", "payment_requests"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to reset %s: %w", table, err)
		}
	}
	return nil
}

// =============================================================================
// TRANSACTIONS (ledger.TransactionStore)
// =============================================================================

const txColumns = `id, tx_type, amount, currency, exchange_rate,
	from_company_id, to_company_id, status, created_at, scheduled_for,
	detail_kind, details_json`

// PutTransaction upserts a full transaction record.
func (s *Store) PutTransaction(ctx context.Context, tx ledger.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kind, detailsJSON, err := ledger.EncodeDetails(tx.Details)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO transactions
		(id, tx_type, amount, currency, exchange_rate, from_company_id,
		 to_company_id, status, created_at, scheduled_for, detail_kind, details_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			tx_type = excluded.tx_type,
			amount = excluded.amount,
			currency = excluded.currency,
			exchange_rate = excluded.exchange_rate,
			from_company_id = excluded.from_company_id,
			to_company_id = excluded.to_company_id,
			status = excluded.status,
			created_at = excluded.created_at,
			scheduled_for = excluded.scheduled_for,
			detail_kind = excluded.detail_kind,
			details_json = excluded.details_json
	`

	_, err = s.db.ExecContext(ctx, query,
		tx.ID,
		tx.Type,
		tx.Amount.String(),
		tx.Currency,
		nullDecimal(tx.ExchangeRate),
		tx.FromCompanyID,
		nullString(string(tx.ToCompanyID)),
		tx.Status,
		formatTime(tx.CreatedAt),
		nullTime(tx.ScheduledFor),
		nullString(kind),
		nullString(string(detailsJSON)),
	)
	if err != nil {
		return fmt.Errorf("failed to put transaction: %w", err)
	}
	return nil
}

// GetTransaction returns the transaction, or nil when absent.
func (s *Store) GetTransaction(ctx context.Context, id ledger.TransactionID) (*ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + txColumns + ` FROM transactions WHERE id = ?`
	txs, err := s.queryTransactions(ctx, query, id)
	if err != nil {
		return nil, err
	}
	if len(txs) == 0 {
		return nil, nil
	}
	return &txs[0], nil
}

// AllTransactions returns the entire transaction population.
func (s *Store) AllTransactions(ctx context.Context) ([]ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + txColumns + ` FROM transactions ORDER BY created_at ASC, id ASC`
	return s.queryTransactions(ctx, query)
}

// TransactionsBySender returns transactions via the from-company index.
func (s *Store) TransactionsBySender(ctx context.Context, id ledger.CompanyID) ([]ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + txColumns + ` FROM transactions
		WHERE from_company_id = ? ORDER BY created_at ASC, id ASC`
	return s.queryTransactions(ctx, query, id)
}

// TransactionsByRecipient returns transactions via the to-company index.
func (s *Store) TransactionsByRecipient(ctx context.Context, id ledger.CompanyID) ([]ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + txColumns + ` FROM transactions
		WHERE to_company_id = ? ORDER BY created_at ASC, id ASC`
	return s.queryTransactions(ctx, query, id)
}

// DueScheduledTransactions range-scans the due-time partial index.
// RFC3339 strings in UTC compare lexicographically in time order.
func (s *Store) DueScheduledTransactions(ctx context.Context, at time.Time) ([]ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + txColumns + ` FROM transactions
		WHERE status = 'pending' AND scheduled_for IS NOT NULL AND scheduled_for <= ?
		ORDER BY scheduled_for ASC, id ASC`
	return s.queryTransactions(ctx, query, formatTime(at))
}

// MarkTransactionCompleted rewrites only the status of a pending record.
func (s *Store) MarkTransactionCompleted(ctx context.Context, id ledger.TransactionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE transactions SET status = 'completed' WHERE id = ? AND status = 'pending'`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to settle transaction %s: %w", id, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}

	// No row matched: distinguish a missing record from a terminal status.
	var status string
	err = s.db.QueryRowContext(ctx,
		`SELECT status FROM transactions WHERE id = ?`, id,
	).Scan(&status)
	if err == sql.ErrNoRows {
		return ledger.ErrTransactionNotFound
	}
	if err != nil {
		return err
	}
	return ledger.ErrNotPending
}

func (s *Store) queryTransactions(ctx context.Context, query string, args ...any) ([]ledger.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var transactions []ledger.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, tx)
	}

	return transactions, rows.Err()
}

func scanTransaction(rows *sql.Rows) (ledger.Transaction, error) {
	var (
		tx           ledger.Transaction
		amount       string
		exchangeRate sql.NullString
		toCompany    sql.NullString
		createdAt    string
		scheduledFor sql.NullString
		detailKind   sql.NullString
		detailsJSON  sql.NullString
	)

	err := rows.Scan(
		&tx.ID, &tx.Type, &amount, &tx.Currency, &exchangeRate,
		&tx.FromCompanyID, &toCompany, &tx.Status, &createdAt, &scheduledFor,
		&detailKind, &detailsJSON,
	)
	if err != nil {
		return tx, fmt.Errorf("failed to scan transaction: %w", err)
	}

	tx.Amount = parseDecimal(amount)
	if exchangeRate.Valid {
		tx.ExchangeRate = parseDecimal(exchangeRate.String)
	}
	tx.ToCompanyID = ledger.CompanyID(toCompany.String)
	tx.CreatedAt = parseTime(createdAt)
	if scheduledFor.Valid {
		t := parseTime(scheduledFor.String)
		tx.ScheduledFor = &t
	}

	tx.Details, err = ledger.DecodeDetails(detailKind.String, []byte(detailsJSON.String))
	if err != nil {
		return tx, err
	}

	return tx, nil
}

// =============================================================================
// WALLETS (ledger.WalletStore)
// =============================================================================

// PutWallet upserts the one wallet record for a company.
func (s *Store) PutWallet(ctx context.Context, w ledger.Wallet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO wallets (company_id, balance, currency, last_updated)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(company_id) DO UPDATE SET
			balance = excluded.balance,
			currency = excluded.currency,
			last_updated = excluded.last_updated
	`

	_, err := s.db.ExecContext(ctx, query,
		w.CompanyID, w.Balance.String(), w.Currency, formatTime(w.LastUpdated))
	if err != nil {
		return fmt.Errorf("failed to put wallet: %w", err)
	}
	return nil
}

// GetWallet returns the wallet, or nil when absent.
func (s *Store) GetWallet(ctx context.Context, id ledger.CompanyID) (*ledger.Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		w           ledger.Wallet
		balance     string
		lastUpdated string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT company_id, balance, currency, last_updated FROM wallets WHERE company_id = ?`,
		id,
	).Scan(&w.CompanyID, &balance, &w.Currency, &lastUpdated)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}

	w.Balance = parseDecimal(balance)
	w.LastUpdated = parseTime(lastUpdated)
	return &w, nil
}

// =============================================================================
// COMPANIES (ledger.CompanyStore)
// =============================================================================

// CreateCompany inserts a new company record.
func (s *Store) CreateCompany(ctx context.Context, c ledger.Company) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO companies (id, name, email, wallet_address, created_at)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		c.ID, c.Name, c.Email, nullString(c.WalletAddress), formatTime(c.CreatedAt))
	if err != nil {
		if isUniqueConstraintError(err) {
			return ledger.ErrDuplicateEmail
		}
		return fmt.Errorf("failed to create company: %w", err)
	}
	return nil
}

// GetCompany returns the company, or nil when absent.
func (s *Store) GetCompany(ctx context.Context, id ledger.CompanyID) (*ledger.Company, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryCompany(ctx, `WHERE id = ?`, id)
}

// CompanyByEmail looks a company up by its unique email.
func (s *Store) CompanyByEmail(ctx context.Context, email string) (*ledger.Company, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryCompany(ctx, `WHERE email = ?`, email)
}

func (s *Store) queryCompany(ctx context.Context, where string, arg any) (*ledger.Company, error) {
	var (
		c             ledger.Company
		walletAddress sql.NullString
		createdAt     string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, email, wallet_address, created_at FROM companies `+where,
		arg,
	).Scan(&c.ID, &c.Name, &c.Email, &walletAddress, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query company: %w", err)
	}

	c.WalletAddress = walletAddress.String
	c.CreatedAt = parseTime(createdAt)
	return &c, nil
}

// ListCompanies returns all companies ordered by creation.
func (s *Store) ListCompanies(ctx context.Context) ([]ledger.Company, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, email, wallet_address, created_at FROM companies ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list companies: %w", err)
	}
	defer rows.Close()

	var companies []ledger.Company
	for rows.Next() {
		var (
			c             ledger.Company
			walletAddress sql.NullString
			createdAt     string
		)
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &walletAddress, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan company: %w", err)
		}
		c.WalletAddress = walletAddress.String
		c.CreatedAt = parseTime(createdAt)
		companies = append(companies, c)
	}
	return companies, rows.Err()
}

// =============================================================================
// PAYMENT REQUESTS (ledger.PaymentRequestStore)
// =============================================================================

// PutPaymentRequest upserts a payment request.
func (s *Store) PutPaymentRequest(ctx context.Context, r ledger.PaymentRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO payment_requests
		(id, from_company_id, to_company_id, amount, currency, due_date, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status
	`
	_, err := s.db.ExecContext(ctx, query,
		r.ID, r.FromCompanyID, r.ToCompanyID, r.Amount.String(), r.Currency,
		formatTime(r.DueDate), r.Status, formatTime(r.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to put payment request: %w", err)
	}
	return nil
}

// GetPaymentRequest returns the request, or nil when absent.
func (s *Store) GetPaymentRequest(ctx context.Context, id ledger.RequestID) (*ledger.PaymentRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	reqs, err := s.queryRequests(ctx, `WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(reqs) == 0 {
		return nil, nil
	}
	return &reqs[0], nil
}

// RequestsForPayer returns requests addressed to the company.
func (s *Store) RequestsForPayer(ctx context.Context, id ledger.CompanyID) ([]ledger.PaymentRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryRequests(ctx, `WHERE to_company_id = ? ORDER BY created_at ASC, id ASC`, id)
}

// RequestsByRequester returns requests the company created.
func (s *Store) RequestsByRequester(ctx context.Context, id ledger.CompanyID) ([]ledger.PaymentRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryRequests(ctx, `WHERE from_company_id = ? ORDER BY created_at ASC, id ASC`, id)
}

func (s *Store) queryRequests(ctx context.Context, where string, args ...any) ([]ledger.PaymentRequest, error) {
	query := `SELECT id, from_company_id, to_company_id, amount, currency, due_date, status, created_at
		FROM payment_requests ` + where

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query payment requests: %w", err)
	}
	defer rows.Close()

	var requests []ledger.PaymentRequest
	for rows.Next() {
		var (
			r         ledger.PaymentRequest
			amount    string
			dueDate   string
			createdAt string
		)
		if err := rows.Scan(&r.ID, &r.FromCompanyID, &r.ToCompanyID, &amount,
			&r.Currency, &dueDate, &r.Status, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan payment request: %w", err)
		}
		r.Amount = parseDecimal(amount)
		r.DueDate = parseTime(dueDate)
		r.CreatedAt = parseTime(createdAt)
		requests = append(requests, r)
	}
	return requests, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullDecimal(d decimal.Decimal) any {
	if d.IsZero() {
		return nil
	}
	return d.String()
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
