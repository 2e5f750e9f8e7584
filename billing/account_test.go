package billing_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/billing-engine/billing"
	billingstore "github.com/warp/billing-engine/billing/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func quietLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// openTestAccount seeds an insured + policy into a fresh memory store and
// opens the account. Invoicing stays explicit, like production callers.
func openTestAccount(t *testing.T, schedule billing.Schedule, premium int64) (*billing.PolicyAccount, *billingstore.Memory) {
	t.Helper()
	ctx := context.Background()
	store := billingstore.NewMemory()

	insured := &billing.Contact{Name: "Test Insured", Role: billing.RoleNamedInsured}
	agent := &billing.Contact{Name: "Test Agent", Role: billing.RoleAgent}
	require.NoError(t, store.CreateContact(ctx, insured))
	require.NoError(t, store.CreateContact(ctx, agent))

	policy := &billing.Policy{
		Name:            "Test Policy",
		EffectiveDate:   billing.NewDate(2015, time.January, 1),
		AnnualPremium:   billing.NewMoney(premium),
		BillingSchedule: schedule,
		NamedInsuredID:  insured.ID,
		AgentID:         agent.ID,
		Status:          billing.StatusActive,
	}
	require.NoError(t, store.CreatePolicy(ctx, policy))

	account, err := billing.OpenAccount(ctx, store, quietLogger(), policy.ID)
	require.NoError(t, err)
	return account, store
}

func date(year int, month time.Month, day int) billing.Date {
	return billing.NewDate(year, month, day)
}

// =============================================================================
// ACCOUNT OPENING
// =============================================================================

func TestOpenAccount_UnknownPolicy_NotFound(t *testing.T) {
	store := billingstore.NewMemory()

	_, err := billing.OpenAccount(context.Background(), store, quietLogger(), 42)

	assert.ErrorIs(t, err, billing.ErrPolicyNotFound)
	assert.True(t, billing.IsNotFound(err))
}

func TestOpenAccount_HasNoSideEffects(t *testing.T) {
	// GIVEN: A freshly created, uninvoiced policy
	// WHEN: Opening its account
	// THEN: Still no invoices; generation waits for EnsureInvoiced

	account, store := openTestAccount(t, billing.ScheduleAnnual, 1200)
	ctx := context.Background()

	count, err := store.CountActiveInvoices(ctx, account.Policy().ID)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

// =============================================================================
// ENSURE INVOICED
// =============================================================================

func TestEnsureInvoiced_GeneratesFullSchedule(t *testing.T) {
	account, store := openTestAccount(t, billing.ScheduleMonthly, 1200)
	ctx := context.Background()

	require.NoError(t, account.EnsureInvoiced(ctx))

	invoices, err := store.InvoicesByPolicy(ctx, account.Policy().ID, false)
	require.NoError(t, err)
	assert.Len(t, invoices, 12)
}

func TestEnsureInvoiced_Idempotent(t *testing.T) {
	// GIVEN: A policy already invoiced
	// WHEN: EnsureInvoiced runs again
	// THEN: The invoice set is unchanged, not doubled

	account, store := openTestAccount(t, billing.ScheduleQuarterly, 1200)
	ctx := context.Background()

	require.NoError(t, account.EnsureInvoiced(ctx))
	require.NoError(t, account.EnsureInvoiced(ctx))

	invoices, err := store.InvoicesByPolicy(ctx, account.Policy().ID, false)
	require.NoError(t, err)
	assert.Len(t, invoices, 4)
}

func TestEnsureInvoiced_SemiAnnual_SkipsWithoutError(t *testing.T) {
	// GIVEN: A policy on Semi-Annual, which has no billing terms
	// WHEN: EnsureInvoiced runs
	// THEN: No error, no invoices - the skip is logged, not raised

	account, store := openTestAccount(t, billing.ScheduleSemiAnnual, 1200)
	ctx := context.Background()

	require.NoError(t, account.EnsureInvoiced(ctx))

	count, err := store.CountActiveInvoices(ctx, account.Policy().ID)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

// =============================================================================
// BALANCE
// =============================================================================

func TestAccountBalance_Annual_FullPremiumAtEffectiveDate(t *testing.T) {
	account, _ := openTestAccount(t, billing.ScheduleAnnual, 1200)
	ctx := context.Background()
	require.NoError(t, account.EnsureInvoiced(ctx))

	balance, err := account.AccountBalance(ctx, date(2015, time.January, 1))
	require.NoError(t, err)
	assert.Equal(t, int64(1200), balance.Units())
}

func TestAccountBalance_Quarterly_AccruesPerBillDate(t *testing.T) {
	// GIVEN: A Quarterly policy, premium 1200, effective 2015-01-01
	// THEN: One share owed at the effective date, the full premium once the
	//       fourth bill date passes

	account, _ := openTestAccount(t, billing.ScheduleQuarterly, 1200)
	ctx := context.Background()
	require.NoError(t, account.EnsureInvoiced(ctx))

	balance, err := account.AccountBalance(ctx, date(2015, time.January, 1))
	require.NoError(t, err)
	assert.Equal(t, int64(300), balance.Units())

	balance, err = account.AccountBalance(ctx, date(2015, time.October, 1))
	require.NoError(t, err)
	assert.Equal(t, int64(1200), balance.Units())
}

func TestAccountBalance_IgnoresFutureInvoicesAndPayments(t *testing.T) {
	account, _ := openTestAccount(t, billing.ScheduleQuarterly, 1200)
	ctx := context.Background()
	require.NoError(t, account.EnsureInvoiced(ctx))

	// Payment dated after the as-of date must not count
	_, err := account.MakePayment(ctx, 0, date(2015, time.June, 1), billing.NewMoney(300))
	require.NoError(t, err)

	balance, err := account.AccountBalance(ctx, date(2015, time.January, 1))
	require.NoError(t, err)
	assert.Equal(t, int64(300), balance.Units())
}

func TestAccountBalance_PaymentZeroesOutBalance(t *testing.T) {
	// GIVEN: A Quarterly policy with two bill dates elapsed (600 owed)
	// WHEN: A 600 payment lands on the second bill date
	// THEN: Balance at that date is zero

	account, _ := openTestAccount(t, billing.ScheduleQuarterly, 1200)
	ctx := context.Background()
	require.NoError(t, account.EnsureInvoiced(ctx))

	_, err := account.MakePayment(ctx, 0, date(2015, time.April, 1), billing.NewMoney(600))
	require.NoError(t, err)

	balance, err := account.AccountBalance(ctx, date(2015, time.April, 1))
	require.NoError(t, err)
	assert.True(t, balance.IsZero(), "balance = %s", balance)
}

func TestAccountBalance_Overpayment_GoesNegative(t *testing.T) {
	account, _ := openTestAccount(t, billing.ScheduleAnnual, 1200)
	ctx := context.Background()
	require.NoError(t, account.EnsureInvoiced(ctx))

	_, err := account.MakePayment(ctx, 0, date(2015, time.January, 1), billing.NewMoney(1500))
	require.NoError(t, err)

	balance, err := account.AccountBalance(ctx, date(2015, time.January, 2))
	require.NoError(t, err)
	assert.Equal(t, int64(-300), balance.Units())
}

// =============================================================================
// PAYMENTS
// =============================================================================

func TestMakePayment_DefaultsToNamedInsured(t *testing.T) {
	account, store := openTestAccount(t, billing.ScheduleAnnual, 1200)
	ctx := context.Background()

	payment, err := account.MakePayment(ctx, 0, date(2015, time.March, 1), billing.NewMoney(100))
	require.NoError(t, err)

	assert.Equal(t, account.Policy().NamedInsuredID, payment.ContactID)
	assert.NotEmpty(t, payment.ID)

	stored, err := store.PaymentsByPolicy(ctx, account.Policy().ID)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, int64(100), stored[0].AmountPaid.Units())
}

func TestMakePayment_RejectsNonPositiveAmounts(t *testing.T) {
	account, _ := openTestAccount(t, billing.ScheduleAnnual, 1200)
	ctx := context.Background()

	_, err := account.MakePayment(ctx, 0, date(2015, time.March, 1), billing.NewMoney(0))
	assert.ErrorIs(t, err, billing.ErrInvalidAmount)

	_, err = account.MakePayment(ctx, 0, date(2015, time.March, 1), billing.NewMoney(-50))
	assert.ErrorIs(t, err, billing.ErrInvalidAmount)
	assert.True(t, billing.IsClientError(billing.ErrInvalidAmount))
}

// =============================================================================
// CANCELLATION
// =============================================================================

func TestCancellationPendingDueToNonPay(t *testing.T) {
	// Annual policy: single invoice billed 2015-01-01, due 2015-02-01.
	account, _ := openTestAccount(t, billing.ScheduleAnnual, 1200)
	ctx := context.Background()
	require.NoError(t, account.EnsureInvoiced(ctx))

	// Before the due date nothing is late
	pending, err := account.CancellationPendingDueToNonPay(ctx, date(2015, time.January, 15))
	require.NoError(t, err)
	assert.False(t, pending)

	// On the due date the unpaid invoice is late
	pending, err = account.CancellationPendingDueToNonPay(ctx, date(2015, time.February, 1))
	require.NoError(t, err)
	assert.True(t, pending)
}

func TestEvaluateCancel_RequiresCancelDateToPass(t *testing.T) {
	// Annual: due 2015-02-01, cancel 2015-02-15.
	account, _ := openTestAccount(t, billing.ScheduleAnnual, 1200)
	ctx := context.Background()
	require.NoError(t, account.EnsureInvoiced(ctx))

	// Past due but not yet past the cancel date
	cancelable, err := account.EvaluateCancel(ctx, date(2015, time.February, 10))
	require.NoError(t, err)
	assert.False(t, cancelable)

	// Cancel date reached, still unpaid
	cancelable, err = account.EvaluateCancel(ctx, date(2015, time.February, 15))
	require.NoError(t, err)
	assert.True(t, cancelable)
}

func TestEvaluateCancel_PaidInFull_NotCancelable(t *testing.T) {
	account, _ := openTestAccount(t, billing.ScheduleAnnual, 1200)
	ctx := context.Background()
	require.NoError(t, account.EnsureInvoiced(ctx))

	_, err := account.MakePayment(ctx, 0, date(2015, time.January, 5), billing.NewMoney(1200))
	require.NoError(t, err)

	cancelable, err := account.EvaluateCancel(ctx, date(2015, time.March, 1))
	require.NoError(t, err)
	assert.False(t, cancelable)
}

func TestMakeCancelation_CancelsUnpaidPolicy(t *testing.T) {
	// GIVEN: An unpaid Annual policy past its invoice's cancel date
	// WHEN: MakeCancelation runs
	// THEN: The policy is Canceled with the description and date recorded

	account, store := openTestAccount(t, billing.ScheduleAnnual, 1200)
	ctx := context.Background()
	require.NoError(t, account.EnsureInvoiced(ctx))

	canceled, err := account.MakeCancelation(ctx, "Nonpayment of premium",
		date(2015, time.March, 1), date(2015, time.March, 1))
	require.NoError(t, err)
	assert.True(t, canceled)

	stored, err := store.GetPolicy(ctx, account.Policy().ID)
	require.NoError(t, err)
	assert.Equal(t, billing.StatusCanceled, stored.Status)
	assert.Equal(t, "Nonpayment of premium", stored.CancelDescription)
	assert.Equal(t, "2015-03-01", stored.CanceledOn.String())
}

func TestMakeCancelation_PaidPolicy_LeftUnchanged(t *testing.T) {
	account, store := openTestAccount(t, billing.ScheduleAnnual, 1200)
	ctx := context.Background()
	require.NoError(t, account.EnsureInvoiced(ctx))

	_, err := account.MakePayment(ctx, 0, date(2015, time.January, 5), billing.NewMoney(1200))
	require.NoError(t, err)

	canceled, err := account.MakeCancelation(ctx, "Nonpayment of premium",
		date(2015, time.March, 1), date(2015, time.March, 1))
	require.NoError(t, err)
	assert.False(t, canceled)

	stored, err := store.GetPolicy(ctx, account.Policy().ID)
	require.NoError(t, err)
	assert.Equal(t, billing.StatusActive, stored.Status)
	assert.Empty(t, stored.CancelDescription)
}

// =============================================================================
// SCHEDULE CHANGES
// =============================================================================

func TestChangeBillingSchedule_RegeneratesInvoices(t *testing.T) {
	// GIVEN: A Quarterly policy with 4 invoices
	// WHEN: Switching to Monthly
	// THEN: The old set is soft-deleted, 12 active invoices replace it

	account, store := openTestAccount(t, billing.ScheduleQuarterly, 1200)
	ctx := context.Background()
	require.NoError(t, account.EnsureInvoiced(ctx))

	changed, err := account.ChangeBillingSchedule(ctx, billing.ScheduleMonthly)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, billing.ScheduleMonthly, account.Policy().BillingSchedule)

	active, err := store.InvoicesByPolicy(ctx, account.Policy().ID, false)
	require.NoError(t, err)
	assert.Len(t, active, 12)

	all, err := store.InvoicesByPolicy(ctx, account.Policy().ID, true)
	require.NoError(t, err)
	assert.Len(t, all, 16)
}

func TestChangeBillingSchedule_SoftDeletedInvoicesDropOutOfBalance(t *testing.T) {
	account, _ := openTestAccount(t, billing.ScheduleQuarterly, 1200)
	ctx := context.Background()
	require.NoError(t, account.EnsureInvoiced(ctx))

	_, err := account.ChangeBillingSchedule(ctx, billing.ScheduleMonthly)
	require.NoError(t, err)

	// Only the Monthly set counts: one 100 invoice billed by mid-January
	balance, err := account.AccountBalance(ctx, date(2015, time.January, 15))
	require.NoError(t, err)
	assert.Equal(t, int64(100), balance.Units())
}

func TestChangeBillingSchedule_SameSchedule_NoOp(t *testing.T) {
	account, store := openTestAccount(t, billing.ScheduleQuarterly, 1200)
	ctx := context.Background()
	require.NoError(t, account.EnsureInvoiced(ctx))

	before, err := store.InvoicesByPolicy(ctx, account.Policy().ID, true)
	require.NoError(t, err)

	changed, err := account.ChangeBillingSchedule(ctx, billing.ScheduleQuarterly)
	require.NoError(t, err)
	assert.False(t, changed)

	after, err := store.InvoicesByPolicy(ctx, account.Policy().ID, true)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestChangeBillingSchedule_UnknownSchedule_TouchesNothing(t *testing.T) {
	account, store := openTestAccount(t, billing.ScheduleQuarterly, 1200)
	ctx := context.Background()
	require.NoError(t, account.EnsureInvoiced(ctx))

	changed, err := account.ChangeBillingSchedule(ctx, billing.Schedule("Biweekly"))
	assert.ErrorIs(t, err, billing.ErrInvalidSchedule)
	assert.False(t, changed)
	assert.Equal(t, billing.ScheduleQuarterly, account.Policy().BillingSchedule)

	invoices, err := store.InvoicesByPolicy(ctx, account.Policy().ID, false)
	require.NoError(t, err)
	assert.Len(t, invoices, 4)
}

func TestChangeBillingSchedule_ToSemiAnnual_LeavesPolicyUninvoiced(t *testing.T) {
	// GIVEN: An invoiced Quarterly policy
	// WHEN: Switching to Semi-Annual (valid enum, no billing terms)
	// THEN: The change commits, the old set is soft-deleted, and no new
	//       invoices exist - the skip is logged, not raised

	account, store := openTestAccount(t, billing.ScheduleQuarterly, 1200)
	ctx := context.Background()
	require.NoError(t, account.EnsureInvoiced(ctx))

	changed, err := account.ChangeBillingSchedule(ctx, billing.ScheduleSemiAnnual)
	require.NoError(t, err)
	assert.True(t, changed)

	active, err := store.InvoicesByPolicy(ctx, account.Policy().ID, false)
	require.NoError(t, err)
	assert.Empty(t, active)

	all, err := store.InvoicesByPolicy(ctx, account.Policy().ID, true)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}
