/*
Package sqlite provides a SQLite-backed implementation of the billing
storage interfaces.

PURPOSE:
  Implements billing.Store and billing.TxStore using SQLite. In production,
  the same patterns apply to PostgreSQL - only minor SQL dialect
  differences.

KEY TABLES:
  contacts: Agents and named insureds
  policies: Policy records with schedule, premium, and status
  invoices: Generated invoice sets; soft-deleted on schedule change
  payments: Append-only payment records

INVOICE GENERATION GUARD:
  idx_invoices_policy_bill_active is a UNIQUE partial index on
  (policy_id, bill_date) over non-deleted invoices. Two sessions racing to
  invoice the same policy cannot both commit: the loser's batch violates
  the index and rolls back. Soft-deleted rows are excluded, so schedule
  regeneration can reuse the same bill dates.

SOFT DELETE:
  Invoices carry a deleted flag. Regular reads filter it; no invoice row is
  ever removed.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency
  and crash recovery.

USAGE:
  store, err := sqlite.New("./data/billing.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper migration
  tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - billing/store.go: Interface definitions
  - billing/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/billing-engine/billing"
)

// Store implements billing.TxStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// querier abstracts *sql.DB and *sql.Tx so every operation can run either
// standalone or inside WithTx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection: every ":memory:" connection is a separate database,
	// and writes are serialized by the store mutex anyway.
	db.SetMaxOpenConns(1)

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
	CREATE TABLE IF NOT EXISTS contacts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		role TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS policies (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		effective_date TEXT NOT NULL,
		annual_premium TEXT NOT NULL,
		billing_schedule TEXT NOT NULL,
		named_insured_id INTEGER REFERENCES contacts(id),
		agent_id INTEGER REFERENCES contacts(id),
		status TEXT NOT NULL DEFAULT 'Active',
		cancel_description TEXT,
		canceled_on TEXT
	);

	CREATE TABLE IF NOT EXISTS invoices (
		id TEXT PRIMARY KEY,
		policy_id INTEGER NOT NULL REFERENCES policies(id),
		bill_date TEXT NOT NULL,
		due_date TEXT NOT NULL,
		cancel_date TEXT NOT NULL,
		amount_due TEXT NOT NULL,
		deleted BOOLEAN NOT NULL DEFAULT FALSE
	);

	CREATE INDEX IF NOT EXISTS idx_invoices_policy_bill
		ON invoices(policy_id, bill_date);

	-- CRITICAL: closes the duplicate-generation race. Two sessions that both
	-- find a policy uninvoiced will both try to insert the same bill dates;
	-- only one batch can commit. Soft-deleted rows are excluded so schedule
	-- regeneration can reuse dates.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_invoices_policy_bill_active
		ON invoices(policy_id, bill_date)
		WHERE deleted = FALSE;

	CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY,
		policy_id INTEGER NOT NULL REFERENCES policies(id),
		contact_id INTEGER REFERENCES contacts(id),
		amount_paid TEXT NOT NULL,
		transaction_date TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_payments_policy_date
		ON payments(policy_id, transaction_date);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// CONTACTS
// =============================================================================

// CreateContact inserts a contact, assigning its id.
func (s *Store) CreateContact(ctx context.Context, contact *billing.Contact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return createContact(ctx, s.db, contact)
}

func createContact(ctx context.Context, q querier, contact *billing.Contact) error {
	result, err := q.ExecContext(ctx,
		"INSERT INTO contacts (name, role) VALUES (?, ?)",
		contact.Name, string(contact.Role),
	)
	if err != nil {
		return fmt.Errorf("failed to insert contact: %w", err)
	}
	contact.ID, err = result.LastInsertId()
	return err
}

// GetContact retrieves a contact by id.
func (s *Store) GetContact(ctx context.Context, id int64) (*billing.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getContact(ctx, s.db, id)
}

func getContact(ctx context.Context, q querier, id int64) (*billing.Contact, error) {
	var contact billing.Contact
	var role string

	err := q.QueryRowContext(ctx,
		"SELECT id, name, role FROM contacts WHERE id = ?", id,
	).Scan(&contact.ID, &contact.Name, &role)

	if err == sql.ErrNoRows {
		return nil, &billing.NotFoundError{Kind: "contact", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get contact: %w", err)
	}

	contact.Role = billing.ContactRole(role)
	return &contact, nil
}

// =============================================================================
// POLICIES
// =============================================================================

// CreatePolicy inserts a policy, assigning its id.
func (s *Store) CreatePolicy(ctx context.Context, policy *billing.Policy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return createPolicy(ctx, s.db, policy)
}

func createPolicy(ctx context.Context, q querier, policy *billing.Policy) error {
	if policy.Status == "" {
		policy.Status = billing.StatusActive
	}

	result, err := q.ExecContext(ctx, `
		INSERT INTO policies
		(name, effective_date, annual_premium, billing_schedule, named_insured_id, agent_id, status, cancel_description, canceled_on)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		policy.Name,
		policy.EffectiveDate.String(),
		policy.AnnualPremium.String(),
		string(policy.BillingSchedule),
		nullID(policy.NamedInsuredID),
		nullID(policy.AgentID),
		string(policy.Status),
		nullStr(policy.CancelDescription),
		nullDate(policy.CanceledOn),
	)
	if err != nil {
		return fmt.Errorf("failed to insert policy: %w", err)
	}
	policy.ID, err = result.LastInsertId()
	return err
}

// GetPolicy retrieves a policy by id.
func (s *Store) GetPolicy(ctx context.Context, id int64) (*billing.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getPolicy(ctx, s.db, id)
}

func getPolicy(ctx context.Context, q querier, id int64) (*billing.Policy, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, name, effective_date, annual_premium, billing_schedule,
		       named_insured_id, agent_id, status, cancel_description, canceled_on
		FROM policies WHERE id = ?`, id)

	policy, err := scanPolicy(row)
	if err == sql.ErrNoRows {
		return nil, &billing.NotFoundError{Kind: "policy", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get policy: %w", err)
	}
	return policy, nil
}

// UpdatePolicy persists schedule, status, and cancellation changes.
func (s *Store) UpdatePolicy(ctx context.Context, policy *billing.Policy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updatePolicy(ctx, s.db, policy)
}

func updatePolicy(ctx context.Context, q querier, policy *billing.Policy) error {
	result, err := q.ExecContext(ctx, `
		UPDATE policies
		SET name = ?, effective_date = ?, annual_premium = ?, billing_schedule = ?,
		    named_insured_id = ?, agent_id = ?, status = ?, cancel_description = ?, canceled_on = ?
		WHERE id = ?`,
		policy.Name,
		policy.EffectiveDate.String(),
		policy.AnnualPremium.String(),
		string(policy.BillingSchedule),
		nullID(policy.NamedInsuredID),
		nullID(policy.AgentID),
		string(policy.Status),
		nullStr(policy.CancelDescription),
		nullDate(policy.CanceledOn),
		policy.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update policy: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return &billing.NotFoundError{Kind: "policy", ID: policy.ID}
	}
	return nil
}

// ListPolicies returns all policies ordered by id.
func (s *Store) ListPolicies(ctx context.Context) ([]billing.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listPolicies(ctx, s.db)
}

func listPolicies(ctx context.Context, q querier) ([]billing.Policy, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, name, effective_date, annual_premium, billing_schedule,
		       named_insured_id, agent_id, status, cancel_description, canceled_on
		FROM policies ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list policies: %w", err)
	}
	defer rows.Close()

	var policies []billing.Policy
	for rows.Next() {
		policy, err := scanPolicy(rows)
		if err != nil {
			return nil, err
		}
		policies = append(policies, *policy)
	}
	return policies, rows.Err()
}

type scannable interface {
	Scan(dest ...any) error
}

func scanPolicy(row scannable) (*billing.Policy, error) {
	var (
		policy            billing.Policy
		effectiveDate     string
		premium           string
		schedule          string
		namedInsured      sql.NullInt64
		agent             sql.NullInt64
		status            string
		cancelDescription sql.NullString
		canceledOn        sql.NullString
	)

	err := row.Scan(&policy.ID, &policy.Name, &effectiveDate, &premium, &schedule,
		&namedInsured, &agent, &status, &cancelDescription, &canceledOn)
	if err != nil {
		return nil, err
	}

	policy.EffectiveDate, err = billing.ParseDate(effectiveDate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse effective_date: %w", err)
	}
	policy.AnnualPremium = billing.MustParseMoney(premium)
	policy.BillingSchedule = billing.Schedule(schedule)
	policy.NamedInsuredID = namedInsured.Int64
	policy.AgentID = agent.Int64
	policy.Status = billing.PolicyStatus(status)
	policy.CancelDescription = cancelDescription.String
	if canceledOn.Valid {
		policy.CanceledOn, _ = billing.ParseDate(canceledOn.String)
	}
	return &policy, nil
}

// =============================================================================
// INVOICES
// =============================================================================

// CreateInvoices inserts an invoice batch atomically.
func (s *Store) CreateInvoices(ctx context.Context, invoices []billing.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := createInvoices(ctx, sqlTx, invoices); err != nil {
		return err
	}
	return sqlTx.Commit()
}

func createInvoices(ctx context.Context, q querier, invoices []billing.Invoice) error {
	for _, invoice := range invoices {
		_, err := q.ExecContext(ctx, `
			INSERT INTO invoices (id, policy_id, bill_date, due_date, cancel_date, amount_due, deleted)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			invoice.ID,
			invoice.PolicyID,
			invoice.BillDate.String(),
			invoice.DueDate.String(),
			invoice.CancelDate.String(),
			invoice.AmountDue.String(),
			invoice.Deleted,
		)
		if err != nil {
			if isUniqueConstraintError(err) {
				return fmt.Errorf("invoice set already exists for policy %d: %w",
					invoice.PolicyID, err)
			}
			return fmt.Errorf("failed to insert invoice: %w", err)
		}
	}
	return nil
}

// InvoicesByPolicy returns a policy's invoices ordered by bill date.
// Soft-deleted invoices are excluded unless includeDeleted is set.
func (s *Store) InvoicesByPolicy(ctx context.Context, policyID int64, includeDeleted bool) ([]billing.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return invoicesByPolicy(ctx, s.db, policyID, includeDeleted)
}

func invoicesByPolicy(ctx context.Context, q querier, policyID int64, includeDeleted bool) ([]billing.Invoice, error) {
	query := `
		SELECT id, policy_id, bill_date, due_date, cancel_date, amount_due, deleted
		FROM invoices
		WHERE policy_id = ?`
	if !includeDeleted {
		query += " AND deleted = FALSE"
	}
	query += " ORDER BY bill_date ASC"

	rows, err := q.QueryContext(ctx, query, policyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query invoices: %w", err)
	}
	defer rows.Close()

	var invoices []billing.Invoice
	for rows.Next() {
		var (
			invoice    billing.Invoice
			billDate   string
			dueDate    string
			cancelDate string
			amountDue  string
		)
		if err := rows.Scan(&invoice.ID, &invoice.PolicyID, &billDate, &dueDate,
			&cancelDate, &amountDue, &invoice.Deleted); err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		invoice.BillDate, _ = billing.ParseDate(billDate)
		invoice.DueDate, _ = billing.ParseDate(dueDate)
		invoice.CancelDate, _ = billing.ParseDate(cancelDate)
		invoice.AmountDue = billing.MustParseMoney(amountDue)
		invoices = append(invoices, invoice)
	}
	return invoices, rows.Err()
}

// CountActiveInvoices counts a policy's non-deleted invoices.
func (s *Store) CountActiveInvoices(ctx context.Context, policyID int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return countActiveInvoices(ctx, s.db, policyID)
}

func countActiveInvoices(ctx context.Context, q querier, policyID int64) (int, error) {
	var count int
	err := q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM invoices WHERE policy_id = ? AND deleted = FALSE",
		policyID,
	).Scan(&count)
	return count, err
}

// SoftDeleteInvoices marks all of a policy's invoices deleted. Rows stay.
func (s *Store) SoftDeleteInvoices(ctx context.Context, policyID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return softDeleteInvoices(ctx, s.db, policyID)
}

func softDeleteInvoices(ctx context.Context, q querier, policyID int64) error {
	_, err := q.ExecContext(ctx,
		"UPDATE invoices SET deleted = TRUE WHERE policy_id = ?", policyID)
	if err != nil {
		return fmt.Errorf("failed to soft-delete invoices: %w", err)
	}
	return nil
}

// =============================================================================
// PAYMENTS
// =============================================================================

// CreatePayment inserts a payment. Append-only: there is no update or
// delete for payments.
func (s *Store) CreatePayment(ctx context.Context, payment *billing.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return createPayment(ctx, s.db, payment)
}

func createPayment(ctx context.Context, q querier, payment *billing.Payment) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO payments (id, policy_id, contact_id, amount_paid, transaction_date)
		VALUES (?, ?, ?, ?, ?)`,
		payment.ID,
		payment.PolicyID,
		nullID(payment.ContactID),
		payment.AmountPaid.String(),
		payment.TransactionDate.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert payment: %w", err)
	}
	return nil
}

// PaymentsByPolicy returns a policy's payments ordered by transaction date.
func (s *Store) PaymentsByPolicy(ctx context.Context, policyID int64) ([]billing.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return paymentsByPolicy(ctx, s.db, policyID)
}

func paymentsByPolicy(ctx context.Context, q querier, policyID int64) ([]billing.Payment, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, policy_id, contact_id, amount_paid, transaction_date
		FROM payments
		WHERE policy_id = ?
		ORDER BY transaction_date ASC`, policyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	defer rows.Close()

	var payments []billing.Payment
	for rows.Next() {
		var (
			payment         billing.Payment
			contactID       sql.NullInt64
			amountPaid      string
			transactionDate string
		)
		if err := rows.Scan(&payment.ID, &payment.PolicyID, &contactID,
			&amountPaid, &transactionDate); err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payment.ContactID = contactID.Int64
		payment.AmountPaid = billing.MustParseMoney(amountPaid)
		payment.TransactionDate, _ = billing.ParseDate(transactionDate)
		payments = append(payments, payment)
	}
	return payments, rows.Err()
}

// =============================================================================
// TRANSACTIONAL STORE (billing.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store billing.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// txStore runs every operation against the open transaction. It takes no
// locks: the parent holds the write lock for the duration of WithTx.
type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) CreateContact(ctx context.Context, contact *billing.Contact) error {
	return createContact(ctx, ts.tx, contact)
}

func (ts *txStore) GetContact(ctx context.Context, id int64) (*billing.Contact, error) {
	return getContact(ctx, ts.tx, id)
}

func (ts *txStore) CreatePolicy(ctx context.Context, policy *billing.Policy) error {
	return createPolicy(ctx, ts.tx, policy)
}

func (ts *txStore) GetPolicy(ctx context.Context, id int64) (*billing.Policy, error) {
	return getPolicy(ctx, ts.tx, id)
}

func (ts *txStore) UpdatePolicy(ctx context.Context, policy *billing.Policy) error {
	return updatePolicy(ctx, ts.tx, policy)
}

func (ts *txStore) ListPolicies(ctx context.Context) ([]billing.Policy, error) {
	return listPolicies(ctx, ts.tx)
}

func (ts *txStore) CreateInvoices(ctx context.Context, invoices []billing.Invoice) error {
	return createInvoices(ctx, ts.tx, invoices)
}

func (ts *txStore) InvoicesByPolicy(ctx context.Context, policyID int64, includeDeleted bool) ([]billing.Invoice, error) {
	return invoicesByPolicy(ctx, ts.tx, policyID, includeDeleted)
}

func (ts *txStore) CountActiveInvoices(ctx context.Context, policyID int64) (int, error) {
	return countActiveInvoices(ctx, ts.tx, policyID)
}

func (ts *txStore) SoftDeleteInvoices(ctx context.Context, policyID int64) error {
	return softDeleteInvoices(ctx, ts.tx, policyID)
}

func (ts *txStore) CreatePayment(ctx context.Context, payment *billing.Payment) error {
	return createPayment(ctx, ts.tx, payment)
}

func (ts *txStore) PaymentsByPolicy(ctx context.Context, policyID int64) ([]billing.Payment, error) {
	return paymentsByPolicy(ctx, ts.tx, policyID)
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"payments", "invoices", "policies", "contacts"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// Helper functions

func nullID(id int64) sql.NullInt64 {
	if id == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: id, Valid: true}
}

func nullStr(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullDate(d billing.Date) sql.NullString {
	if d.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
