/*
seed.go - Demo dataset loader

PURPOSE:
  Loads a small, deterministic book of business for demos and manual
  testing: six contacts, four policies across all billable schedules, the
  invoice set for each, and one payment. Dates are fixed in 2015 so
  balances are reproducible.

WARNING:
  Seeding RESETS the database first. Dev/demo only; the route should not
  exist in a production deployment.
*/
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/warp/billing-engine/billing"
)

// SeedDemo resets the database and loads the demo dataset.
// POST /api/seed
func (h *Handler) SeedDemo(w http.ResponseWriter, r *http.Request) {
	if err := h.Seed(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to seed demo data", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"seeded": true})
}

// Seed wipes the store (when it supports Reset) and loads the demo book of
// business.
func (h *Handler) Seed(ctx context.Context) error {
	if resetter, ok := h.Store.(interface{ Reset(context.Context) error }); ok {
		if err := resetter.Reset(ctx); err != nil {
			return err
		}
	}

	johnDoeAgent := &billing.Contact{Name: "John Doe", Role: billing.RoleAgent}
	johnDoeInsured := &billing.Contact{Name: "John Doe", Role: billing.RoleNamedInsured}
	bobSmith := &billing.Contact{Name: "Bob Smith", Role: billing.RoleAgent}
	annaWhite := &billing.Contact{Name: "Anna White", Role: billing.RoleNamedInsured}
	joeLee := &billing.Contact{Name: "Joe Lee", Role: billing.RoleAgent}
	ryanBucket := &billing.Contact{Name: "Ryan Bucket", Role: billing.RoleNamedInsured}

	contacts := []*billing.Contact{johnDoeAgent, johnDoeInsured, bobSmith, annaWhite, joeLee, ryanBucket}
	for _, contact := range contacts {
		if err := h.Store.CreateContact(ctx, contact); err != nil {
			return err
		}
	}

	policies := []*billing.Policy{
		{
			Name:            "Policy One",
			EffectiveDate:   billing.NewDate(2015, time.January, 1),
			AnnualPremium:   billing.NewMoney(365),
			BillingSchedule: billing.ScheduleAnnual,
			NamedInsuredID:  johnDoeInsured.ID,
			AgentID:         bobSmith.ID,
		},
		{
			Name:            "Policy Two",
			EffectiveDate:   billing.NewDate(2015, time.February, 1),
			AnnualPremium:   billing.NewMoney(1600),
			BillingSchedule: billing.ScheduleQuarterly,
			NamedInsuredID:  annaWhite.ID,
			AgentID:         joeLee.ID,
		},
		{
			Name:            "Policy Three",
			EffectiveDate:   billing.NewDate(2015, time.January, 1),
			AnnualPremium:   billing.NewMoney(1200),
			BillingSchedule: billing.ScheduleMonthly,
			NamedInsuredID:  ryanBucket.ID,
			AgentID:         johnDoeAgent.ID,
		},
		{
			Name:            "Policy Four",
			EffectiveDate:   billing.NewDate(2015, time.February, 1),
			AnnualPremium:   billing.NewMoney(500),
			BillingSchedule: billing.ScheduleTwoPay,
			NamedInsuredID:  ryanBucket.ID,
			AgentID:         johnDoeAgent.ID,
		},
	}
	for _, policy := range policies {
		if err := h.Store.CreatePolicy(ctx, policy); err != nil {
			return err
		}
	}

	// Invoice every policy up front, the way the nightly onboarding job
	// would.
	for _, policy := range policies {
		account, err := billing.OpenAccount(ctx, h.Store, h.Log, policy.ID)
		if err != nil {
			return err
		}
		if err := account.EnsureInvoiced(ctx); err != nil {
			return err
		}
	}

	// Policy Two starts partially paid.
	policyTwo, err := billing.OpenAccount(ctx, h.Store, h.Log, policies[1].ID)
	if err != nil {
		return err
	}
	_, err = policyTwo.MakePayment(ctx, annaWhite.ID,
		billing.NewDate(2015, time.February, 1), billing.NewMoney(400))
	return err
}
