/*
engine.go - Invoice schedule generation

PURPOSE:
  Turns a policy's annual premium, effective date, and billing schedule
  into its full set of invoices. Pure computation: persistence happens in
  the accounting facade.

THE SCHEDULE TABLE:
  Annual     1 invoice   12 months apart
  Two-Pay    2 invoices   6 months apart
  Quarterly  4 invoices   3 months apart
  Monthly   12 invoices   1 month apart

ROUNDING:
  Every invoice gets floor(annual_premium / invoices). The remainder is not
  redistributed, so a 1000 premium billed Monthly yields twelve invoices of
  83 (996 total). This reproduces the historical behavior; do not "fix" it
  here without a business decision on where the remainder lands.

DATES:
  bill_date   = effective_date + i * spacing months (clamped month math)
  due_date    = bill_date + 1 month
  cancel_date = due_date + 14 days

SEE ALSO:
  - schedule.go: The period/spacing table
  - account.go: EnsureInvoiced persists the generated set
*/
package billing

import (
	"github.com/google/uuid"
)

// GenerateInvoices computes the invoice set for a policy. The first invoice
// bills on the effective date; each subsequent invoice bills one spacing
// further out. Returns ErrInvalidSchedule (wrapped) if the policy's
// schedule has no billing terms.
func GenerateInvoices(policy *Policy) ([]Invoice, error) {
	terms, err := policy.BillingSchedule.Terms()
	if err != nil {
		return nil, err
	}

	share := policy.AnnualPremium.SplitBy(terms.Invoices)

	invoices := make([]Invoice, 0, terms.Invoices)
	for i := 0; i < terms.Invoices; i++ {
		billDate := policy.EffectiveDate.AddMonths(i * terms.SpacingMonths)
		invoices = append(invoices, NewInvoice(uuid.NewString(), policy.ID, billDate, share))
	}
	return invoices, nil
}
