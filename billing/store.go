/*
store.go - Persistence interfaces for billing records

PURPOSE:
  Defines the interface between the billing domain and the database.
  Different implementations can use SQLite or in-memory storage.

KEY INTERFACES:
  Store:   CRUD for contacts, policies, invoices, payments
  TxStore: Transactional wrapper for atomic multi-write operations

TRANSACTION BOUNDARIES:
  Two operations must be atomic:
  - EnsureInvoiced: check-then-create of a full invoice batch. The SQLite
    implementation additionally carries a unique index on
    (policy_id, bill_date) over non-deleted invoices, so two racing
    sessions cannot commit two batches for the same policy.
  - ChangeBillingSchedule: persist the new schedule, soft-delete the old
    invoice set, and insert the regenerated set in one commit.

SOFT DELETE:
  Invoices are never hard-removed. Regeneration marks the old set
  deleted=true; balance queries exclude deleted rows but the history stays.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: Production SQLite
  - billing/store/memory.go: In-memory for testing

SEE ALSO:
  - account.go: Facade built on these interfaces
*/
package billing

import "context"

// =============================================================================
// STORE - Persistence for billing records
// =============================================================================

// Store handles persistence of contacts, policies, invoices, and payments.
// Reads that feed balance computation return rows ordered by date.
type Store interface {
	// Contacts
	CreateContact(ctx context.Context, contact *Contact) error
	GetContact(ctx context.Context, id int64) (*Contact, error)

	// Policies
	CreatePolicy(ctx context.Context, policy *Policy) error
	GetPolicy(ctx context.Context, id int64) (*Policy, error)
	UpdatePolicy(ctx context.Context, policy *Policy) error
	ListPolicies(ctx context.Context) ([]Policy, error)

	// Invoices. Reads exclude soft-deleted rows unless asked otherwise and
	// are ordered by bill_date ascending.
	CreateInvoices(ctx context.Context, invoices []Invoice) error
	InvoicesByPolicy(ctx context.Context, policyID int64, includeDeleted bool) ([]Invoice, error)
	CountActiveInvoices(ctx context.Context, policyID int64) (int, error)
	SoftDeleteInvoices(ctx context.Context, policyID int64) error

	// Payments. Append-only; reads ordered by transaction_date ascending.
	CreatePayment(ctx context.Context, payment *Payment) error
	PaymentsByPolicy(ctx context.Context, policyID int64) ([]Payment, error)
}

// =============================================================================
// TRANSACTIONAL STORE - For atomic operations across multiple writes
// =============================================================================

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}
