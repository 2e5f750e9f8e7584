/*
account.go - Per-policy accounting facade

PURPOSE:
  PolicyAccount is the entry point for everything accounting-related on a
  single policy: invoice generation, balance as of a date, payments,
  schedule changes, and cancellation evaluation. One account operates on
  one policy's data within one logical request.

INVOICING IS EXPLICIT:
  Opening an account never mutates state. Callers invoke EnsureInvoiced
  deliberately; it is idempotent and runs its check-then-create inside a
  store transaction. The SQLite schema backs this with a unique index on
  (policy_id, bill_date) over non-deleted invoices, so two racing sessions
  cannot commit two invoice sets.

BALANCE:
  balance(asOf) = sum(amount_due of non-deleted invoices billed on or
  before asOf) - sum(amount_paid of payments on or before asOf).
  May be negative when overpaid. Soft-deleted invoices are excluded from
  every invoice read in this file; the store's default read enforces it.

CANCELLATION:
  Two distinct questions:
  - CancellationPendingDueToNonPay: has any invoice passed its DUE date
    unpaid? True before the policy is actually cancelable.
  - EvaluateCancel: is there an invoice past its CANCEL date whose balance
    as of that cancel date is still nonzero? That makes the policy
    cancelable.

SEE ALSO:
  - engine.go: Invoice generation
  - store.go: Persistence interfaces
*/
package billing

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// =============================================================================
// POLICY ACCOUNT - Facade over one policy's billing data
// =============================================================================

// PolicyAccount exposes accounting operations for a single policy.
type PolicyAccount struct {
	store  TxStore
	log    logrus.FieldLogger
	policy *Policy
}

// OpenAccount resolves the policy or fails with ErrPolicyNotFound.
// No side effects: call EnsureInvoiced to generate missing invoices.
func OpenAccount(ctx context.Context, store TxStore, log logrus.FieldLogger, policyID int64) (*PolicyAccount, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}

	policy, err := store.GetPolicy(ctx, policyID)
	if err != nil {
		return nil, err
	}

	return &PolicyAccount{store: store, log: log, policy: policy}, nil
}

// Policy returns the account's policy.
func (a *PolicyAccount) Policy() *Policy {
	return a.policy
}

// =============================================================================
// INVOICE GENERATION
// =============================================================================

// EnsureInvoiced generates the policy's invoice set if it has none.
// Idempotent: a policy that already has active invoices is left alone.
//
// A schedule outside the billing table (Semi-Annual included) is logged
// and skipped rather than raised: the policy simply stays uninvoiced.
func (a *PolicyAccount) EnsureInvoiced(ctx context.Context) error {
	return a.store.WithTx(ctx, func(s Store) error {
		count, err := s.CountActiveInvoices(ctx, a.policy.ID)
		if err != nil {
			return err
		}
		if count > 0 {
			return nil
		}
		return a.generateInvoices(ctx, s)
	})
}

// generateInvoices writes a fresh invoice set within the caller's
// transaction. Invalid schedules warn and skip.
func (a *PolicyAccount) generateInvoices(ctx context.Context, s Store) error {
	invoices, err := GenerateInvoices(a.policy)
	if err != nil {
		if errors.Is(err, ErrInvalidSchedule) {
			a.log.WithFields(logrus.Fields{
				"policy_id": a.policy.ID,
				"schedule":  a.policy.BillingSchedule,
			}).Warn("billing schedule has no invoice terms; skipping generation")
			return nil
		}
		return err
	}
	return s.CreateInvoices(ctx, invoices)
}

// =============================================================================
// BALANCE
// =============================================================================

// AccountBalance returns the signed balance as of asOf (today if zero).
// Positive means owed; negative means overpaid. No side effects.
func (a *PolicyAccount) AccountBalance(ctx context.Context, asOf Date) (Money, error) {
	if asOf.IsZero() {
		asOf = Today()
	}

	invoices, err := a.store.InvoicesByPolicy(ctx, a.policy.ID, false)
	if err != nil {
		return Money{}, err
	}

	balance := NewMoney(0)
	for _, invoice := range invoices {
		if invoice.BillDate.BeforeOrEqual(asOf) {
			balance = balance.Add(invoice.AmountDue)
		}
	}

	payments, err := a.store.PaymentsByPolicy(ctx, a.policy.ID)
	if err != nil {
		return Money{}, err
	}
	for _, payment := range payments {
		if payment.TransactionDate.BeforeOrEqual(asOf) {
			balance = balance.Sub(payment.AmountPaid)
		}
	}

	return balance, nil
}

// =============================================================================
// PAYMENTS
// =============================================================================

// MakePayment records a payment and returns it. A zero contact id defaults
// to the policy's named insured; a zero date defaults to today. The amount
// must be positive.
func (a *PolicyAccount) MakePayment(ctx context.Context, contactID int64, date Date, amount Money) (*Payment, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if contactID == 0 {
		contactID = a.policy.NamedInsuredID
	}
	if date.IsZero() {
		date = Today()
	}

	payment := &Payment{
		ID:              uuid.NewString(),
		PolicyID:        a.policy.ID,
		ContactID:       contactID,
		AmountPaid:      amount,
		TransactionDate: date,
	}
	if err := a.store.CreatePayment(ctx, payment); err != nil {
		return nil, err
	}
	return payment, nil
}

// =============================================================================
// CANCELLATION
// =============================================================================

// CancellationPendingDueToNonPay reports whether any invoice has passed its
// due date without being paid in full as of asOf. The invoice has not
// necessarily reached its cancel date yet, so a true result does not make
// the policy cancelable on its own.
func (a *PolicyAccount) CancellationPendingDueToNonPay(ctx context.Context, asOf Date) (bool, error) {
	if asOf.IsZero() {
		asOf = Today()
	}

	invoices, err := a.store.InvoicesByPolicy(ctx, a.policy.ID, false)
	if err != nil {
		return false, err
	}

	due := NewMoney(0)
	for _, invoice := range invoices {
		if invoice.DueDate.BeforeOrEqual(asOf) {
			due = due.Add(invoice.AmountDue)
		}
	}

	payments, err := a.store.PaymentsByPolicy(ctx, a.policy.ID)
	if err != nil {
		return false, err
	}
	for _, payment := range payments {
		if payment.TransactionDate.BeforeOrEqual(asOf) {
			due = due.Sub(payment.AmountPaid)
		}
	}

	return !due.IsZero(), nil
}

// EvaluateCancel reports whether the policy is cancelable as of asOf: true
// iff some invoice's cancel date has passed and the balance as of that
// cancel date is still nonzero. Invoices are checked in bill-date order and
// the first qualifying one short-circuits.
func (a *PolicyAccount) EvaluateCancel(ctx context.Context, asOf Date) (bool, error) {
	if asOf.IsZero() {
		asOf = Today()
	}

	invoices, err := a.store.InvoicesByPolicy(ctx, a.policy.ID, false)
	if err != nil {
		return false, err
	}

	for _, invoice := range invoices {
		if invoice.CancelDate.After(asOf) {
			continue
		}
		balance, err := a.AccountBalance(ctx, invoice.CancelDate)
		if err != nil {
			return false, err
		}
		if !balance.IsZero() {
			return true, nil
		}
	}
	return false, nil
}

// MakeCancelation cancels the policy if EvaluateCancel(asOf) allows it.
// Returns true if the policy was canceled, false if it was not cancelable
// (reported, not an error). The description and cancelation date are
// recorded on the policy.
func (a *PolicyAccount) MakeCancelation(ctx context.Context, description string, asOf, cancelationDate Date) (bool, error) {
	cancelable, err := a.EvaluateCancel(ctx, asOf)
	if err != nil {
		return false, err
	}
	if !cancelable {
		return false, nil
	}

	a.policy.Cancel(description, cancelationDate)
	if err := a.store.UpdatePolicy(ctx, a.policy); err != nil {
		return false, err
	}
	return true, nil
}

// =============================================================================
// SCHEDULE CHANGES
// =============================================================================

// ChangeBillingSchedule switches the policy to newSchedule and regenerates
// its invoices, soft-deleting the old set first, all in one transaction.
// Changing to the current schedule is a no-op (returns false, nil).
// A schedule outside the defined enum fails with ErrInvalidSchedule and
// touches nothing.
func (a *PolicyAccount) ChangeBillingSchedule(ctx context.Context, newSchedule Schedule) (bool, error) {
	if !newSchedule.Valid() {
		return false, &InvalidScheduleError{Schedule: newSchedule}
	}
	if newSchedule == a.policy.BillingSchedule {
		return false, nil
	}

	previous := a.policy.BillingSchedule
	a.policy.BillingSchedule = newSchedule

	err := a.store.WithTx(ctx, func(s Store) error {
		if err := s.UpdatePolicy(ctx, a.policy); err != nil {
			return err
		}
		if err := s.SoftDeleteInvoices(ctx, a.policy.ID); err != nil {
			return err
		}
		return a.generateInvoices(ctx, s)
	})
	if err != nil {
		a.policy.BillingSchedule = previous
		return false, err
	}
	return true, nil
}
