/*
Package billing computes insurance policy billing schedules, invoice
generation, payment application, and cancellation eligibility.

PURPOSE:
  This package contains the domain model and algorithms for per-policy
  accounting. A policy's annual premium is split into a schedule of
  invoices; payments reduce the outstanding balance; unpaid invoices past
  their cancel date make the policy eligible for cancellation.

KEY CONCEPTS IN THIS FILE (types.go):
  - Contact: A person attached to policies (agent or named insured)
  - Policy: The insured contract; owns its invoices and payments
  - Invoice: A scheduled bill for part of the premium, with derived dates
  - Payment: A recorded amount applied against the balance

DESIGN PRINCIPLES:
  1. Derived dates: due_date and cancel_date are always computed from
     bill_date, never stored independently of it
  2. Soft delete: superseded invoices are marked, never removed, so the
     billing history stays auditable
  3. Precision: Money wraps decimal.Decimal; no floating-point currency
  4. Append-only payments: corrections would be negative payments, not edits

SEE ALSO:
  - schedule.go: Billing schedule enum and the period/spacing table
  - engine.go: Invoice schedule generation
  - account.go: Per-policy accounting facade
  - store.go: Persistence interfaces
*/
package billing

// =============================================================================
// CONTACT - Agents and named insureds
// =============================================================================

type ContactRole string

const (
	RoleAgent        ContactRole = "Agent"
	RoleNamedInsured ContactRole = "Named Insured"
)

// Contact is a person attached to policies. Immutable once created.
type Contact struct {
	ID   int64
	Name string
	Role ContactRole
}

// =============================================================================
// POLICY - The insured contract
// =============================================================================

type PolicyStatus string

const (
	StatusActive   PolicyStatus = "Active"
	StatusCanceled PolicyStatus = "Canceled"
)

// Policy owns its invoices (1:N, soft-deleted on schedule change) and
// accumulates payments (1:N, append-only).
type Policy struct {
	ID              int64
	Name            string
	EffectiveDate   Date
	AnnualPremium   Money // invariant: positive
	BillingSchedule Schedule
	NamedInsuredID  int64
	AgentID         int64
	Status          PolicyStatus

	// Cancellation record, populated by Cancel.
	CancelDescription string
	CanceledOn        Date
}

// Cancel transitions the policy to Canceled, recording why and as of when.
// Callers decide eligibility first (see PolicyAccount.EvaluateCancel).
func (p *Policy) Cancel(description string, cancelationDate Date) {
	p.Status = StatusCanceled
	p.CancelDescription = description
	if cancelationDate.IsZero() {
		cancelationDate = Today()
	}
	p.CanceledOn = cancelationDate
}

// =============================================================================
// INVOICE - A scheduled bill for part of the premium
// =============================================================================

// Invoice belongs to exactly one policy. DueDate and CancelDate are derived
// from BillDate at construction; NewInvoice is the only way they are set.
type Invoice struct {
	ID         string // uuid
	PolicyID   int64
	BillDate   Date
	DueDate    Date // BillDate + 1 month
	CancelDate Date // DueDate + 14 days
	AmountDue  Money
	Deleted    bool
}

// NewInvoice builds an invoice with its dates derived from billDate.
func NewInvoice(id string, policyID int64, billDate Date, amountDue Money) Invoice {
	due := billDate.AddMonths(1)
	return Invoice{
		ID:         id,
		PolicyID:   policyID,
		BillDate:   billDate,
		DueDate:    due,
		CancelDate: due.AddDays(14),
		AmountDue:  amountDue,
	}
}

// =============================================================================
// PAYMENT - An amount applied against a policy's balance
// =============================================================================

// Payment belongs to one policy and one contact (the payer). Immutable once
// created; it reduces the outstanding balance as of TransactionDate.
type Payment struct {
	ID              string // uuid
	PolicyID        int64
	ContactID       int64
	AmountPaid      Money
	TransactionDate Date
}
