// Package store provides billing.Store implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/billing-engine/billing"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu       sync.RWMutex
	contacts map[int64]billing.Contact
	policies map[int64]billing.Policy
	invoices map[int64][]billing.Invoice
	payments map[int64][]billing.Payment

	nextContactID int64
	nextPolicyID  int64
}

func NewMemory() *Memory {
	return &Memory{
		contacts: make(map[int64]billing.Contact),
		policies: make(map[int64]billing.Policy),
		invoices: make(map[int64][]billing.Invoice),
		payments: make(map[int64][]billing.Payment),
	}
}

// =============================================================================
// CONTACTS
// =============================================================================

func (m *Memory) CreateContact(_ context.Context, contact *billing.Contact) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if contact.ID == 0 {
		m.nextContactID++
		contact.ID = m.nextContactID
	}
	m.contacts[contact.ID] = *contact
	return nil
}

func (m *Memory) GetContact(_ context.Context, id int64) (*billing.Contact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	contact, ok := m.contacts[id]
	if !ok {
		return nil, &billing.NotFoundError{Kind: "contact", ID: id}
	}
	return &contact, nil
}

// =============================================================================
// POLICIES
// =============================================================================

func (m *Memory) CreatePolicy(_ context.Context, policy *billing.Policy) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if policy.ID == 0 {
		m.nextPolicyID++
		policy.ID = m.nextPolicyID
	}
	m.policies[policy.ID] = *policy
	return nil
}

func (m *Memory) GetPolicy(_ context.Context, id int64) (*billing.Policy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	policy, ok := m.policies[id]
	if !ok {
		return nil, &billing.NotFoundError{Kind: "policy", ID: id}
	}
	return &policy, nil
}

func (m *Memory) UpdatePolicy(_ context.Context, policy *billing.Policy) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.policies[policy.ID]; !ok {
		return &billing.NotFoundError{Kind: "policy", ID: policy.ID}
	}
	m.policies[policy.ID] = *policy
	return nil
}

func (m *Memory) ListPolicies(_ context.Context) ([]billing.Policy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	policies := make([]billing.Policy, 0, len(m.policies))
	for _, p := range m.policies {
		policies = append(policies, p)
	}
	sort.Slice(policies, func(i, j int) bool { return policies[i].ID < policies[j].ID })
	return policies, nil
}

// =============================================================================
// INVOICES
// =============================================================================

func (m *Memory) CreateInvoices(_ context.Context, invoices []billing.Invoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, invoice := range invoices {
		m.invoices[invoice.PolicyID] = append(m.invoices[invoice.PolicyID], invoice)
	}
	return nil
}

func (m *Memory) InvoicesByPolicy(_ context.Context, policyID int64, includeDeleted bool) ([]billing.Invoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var invoices []billing.Invoice
	for _, invoice := range m.invoices[policyID] {
		if invoice.Deleted && !includeDeleted {
			continue
		}
		invoices = append(invoices, invoice)
	}
	sort.Slice(invoices, func(i, j int) bool {
		return invoices[i].BillDate.Before(invoices[j].BillDate)
	})
	return invoices, nil
}

func (m *Memory) CountActiveInvoices(_ context.Context, policyID int64) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, invoice := range m.invoices[policyID] {
		if !invoice.Deleted {
			count++
		}
	}
	return count, nil
}

func (m *Memory) SoftDeleteInvoices(_ context.Context, policyID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	invoices := m.invoices[policyID]
	for i := range invoices {
		invoices[i].Deleted = true
	}
	return nil
}

// =============================================================================
// PAYMENTS
// =============================================================================

func (m *Memory) CreatePayment(_ context.Context, payment *billing.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.payments[payment.PolicyID] = append(m.payments[payment.PolicyID], *payment)
	return nil
}

func (m *Memory) PaymentsByPolicy(_ context.Context, policyID int64) ([]billing.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	payments := make([]billing.Payment, len(m.payments[policyID]))
	copy(payments, m.payments[policyID])
	sort.Slice(payments, func(i, j int) bool {
		return payments[i].TransactionDate.Before(payments[j].TransactionDate)
	})
	return payments, nil
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx runs fn against the store directly. The memory store has no real
// transactions; tests that need rollback semantics use the SQLite store.
func (m *Memory) WithTx(_ context.Context, fn func(billing.Store) error) error {
	return fn(m)
}
