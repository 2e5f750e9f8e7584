/*
handlers.go - HTTP API handlers for the policy billing system

PURPOSE:
  Exposes the billing engine via HTTP. Handles request parsing, JSON
  serialization, and delegates to the accounting facade.

ENDPOINTS:
  Report (fixed external contract, HTTP 200 always):
    GET  /get-policy/?policy=<int>&date=<ISO>  Balance + invoice report

  REST:
    GET  /api/policies                      List policies
    GET  /api/policies/{id}                 Policy detail with invoices
    POST /api/policies/{id}/payments        Record a payment
    POST /api/policies/{id}/schedule        Change billing schedule
    POST /api/policies/{id}/cancel          Attempt cancellation
    GET  /api/policies/{id}/cancellation    Evaluate cancellation standing
    POST /api/seed                          Load the demo dataset

REQUEST FLOW:
  1. Parse HTTP request
  2. Open a PolicyAccount (resolves the policy or 404s)
  3. Call facade operations
  4. Serialize response

ERROR HANDLING:
  The report endpoint converts every failure into
  {"success":false,"msg":...} with HTTP 200 - that contract predates the
  REST routes. REST routes use conventional status codes:
  - 400: invalid input, invalid schedule, invalid amount
  - 404: policy or contact not found
  - 500: storage errors

SEE ALSO:
  - dto.go: Request/response data structures
  - seed.go: Demo data loader
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
	"github.com/warp/billing-engine/billing"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store billing.TxStore
	Log   logrus.FieldLogger
}

// NewHandler creates a new handler with the given store.
func NewHandler(store billing.TxStore, log logrus.FieldLogger) *Handler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handler{Store: store, Log: log}
}

// =============================================================================
// REPORT ENDPOINT (/get-policy/)
// =============================================================================

// GetPolicyReport returns a policy's balance and invoices.
// GET /get-policy/?policy=<int>&date=<ISO date, optional>
//
// Always HTTP 200; failures are reported in the payload. Missing invoices
// are generated before the balance is computed, so a freshly seeded policy
// reports a full schedule on first read.
func (h *Handler) GetPolicyReport(w http.ResponseWriter, r *http.Request) {
	policyParam := r.URL.Query().Get("policy")
	policyID, err := strconv.ParseInt(policyParam, 10, 64)
	if err != nil || policyID <= 0 {
		writeReportFailure(w, "invalid policy id")
		return
	}

	asOf := billing.Date{}
	if dateParam := r.URL.Query().Get("date"); dateParam != "" {
		asOf, err = billing.ParseDate(dateParam)
		if err != nil {
			writeReportFailure(w, "invalid date: "+dateParam)
			return
		}
	}

	ctx := r.Context()
	account, err := billing.OpenAccount(ctx, h.Store, h.Log, policyID)
	if err != nil {
		writeReportFailure(w, err.Error())
		return
	}

	if err := account.EnsureInvoiced(ctx); err != nil {
		writeReportFailure(w, err.Error())
		return
	}

	balance, err := account.AccountBalance(ctx, asOf)
	if err != nil {
		writeReportFailure(w, err.Error())
		return
	}

	// The report includes superseded invoices; their deleted flag tells
	// consumers to skip them for anything but history.
	invoices, err := h.Store.InvoicesByPolicy(ctx, policyID, true)
	if err != nil {
		writeReportFailure(w, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, PolicyReportDTO{
		Success:  true,
		Balance:  balance.Units(),
		Invoices: toInvoiceDTOs(invoices),
	})
}

func writeReportFailure(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusOK, ReportFailureDTO{Success: false, Msg: msg})
}

// =============================================================================
// POLICY HANDLERS
// =============================================================================

// ListPolicies returns all policies.
func (h *Handler) ListPolicies(w http.ResponseWriter, r *http.Request) {
	policies, err := h.Store.ListPolicies(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list policies", err)
		return
	}

	dtos := make([]PolicyDTO, len(policies))
	for i, policy := range policies {
		dtos[i] = toPolicyDTO(policy)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetPolicy returns a single policy with its active invoices.
func (h *Handler) GetPolicy(w http.ResponseWriter, r *http.Request) {
	policyID, ok := policyIDParam(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	policy, err := h.Store.GetPolicy(ctx, policyID)
	if err != nil {
		writeDomainError(w, "Failed to get policy", err)
		return
	}

	invoices, err := h.Store.InvoicesByPolicy(ctx, policyID, false)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get invoices", err)
		return
	}

	dto := toPolicyDTO(*policy)
	dto.Invoices = toInvoiceDTOs(invoices)
	writeJSON(w, http.StatusOK, dto)
}

// =============================================================================
// PAYMENT HANDLERS
// =============================================================================

// MakePayment records a payment against a policy.
// POST /api/policies/{id}/payments
func (h *Handler) MakePayment(w http.ResponseWriter, r *http.Request) {
	policyID, ok := policyIDParam(w, r)
	if !ok {
		return
	}

	var req MakePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	date := billing.Date{}
	if req.Date != "" {
		var err error
		date, err = billing.ParseDate(req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
			return
		}
	}

	ctx := r.Context()
	account, err := billing.OpenAccount(ctx, h.Store, h.Log, policyID)
	if err != nil {
		writeDomainError(w, "Failed to open policy account", err)
		return
	}

	payment, err := account.MakePayment(ctx, req.ContactID, date, billing.NewMoney(req.Amount))
	if err != nil {
		writeDomainError(w, "Failed to record payment", err)
		return
	}

	writeJSON(w, http.StatusCreated, toPaymentDTO(*payment))
}

// =============================================================================
// SCHEDULE HANDLERS
// =============================================================================

// ChangeSchedule switches a policy's billing schedule and regenerates its
// invoices.
// POST /api/policies/{id}/schedule
func (h *Handler) ChangeSchedule(w http.ResponseWriter, r *http.Request) {
	policyID, ok := policyIDParam(w, r)
	if !ok {
		return
	}

	var req ChangeScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := r.Context()
	account, err := billing.OpenAccount(ctx, h.Store, h.Log, policyID)
	if err != nil {
		writeDomainError(w, "Failed to open policy account", err)
		return
	}

	changed, err := account.ChangeBillingSchedule(ctx, billing.Schedule(req.Schedule))
	if err != nil {
		writeDomainError(w, "Failed to change billing schedule", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"changed":  changed,
		"schedule": string(account.Policy().BillingSchedule),
	})
}

// =============================================================================
// CANCELLATION HANDLERS
// =============================================================================

// GetCancellation evaluates a policy's cancellation standing.
// GET /api/policies/{id}/cancellation?date=<ISO date, optional>
func (h *Handler) GetCancellation(w http.ResponseWriter, r *http.Request) {
	policyID, ok := policyIDParam(w, r)
	if !ok {
		return
	}

	asOf := billing.Date{}
	if dateParam := r.URL.Query().Get("date"); dateParam != "" {
		var err error
		asOf, err = billing.ParseDate(dateParam)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
			return
		}
	}
	if asOf.IsZero() {
		asOf = billing.Today()
	}

	ctx := r.Context()
	account, err := billing.OpenAccount(ctx, h.Store, h.Log, policyID)
	if err != nil {
		writeDomainError(w, "Failed to open policy account", err)
		return
	}

	pending, err := account.CancellationPendingDueToNonPay(ctx, asOf)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to evaluate cancellation", err)
		return
	}
	cancelable, err := account.EvaluateCancel(ctx, asOf)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to evaluate cancellation", err)
		return
	}

	writeJSON(w, http.StatusOK, CancellationDTO{
		PolicyID:   policyID,
		AsOf:       asOf.String(),
		Pending:    pending,
		Cancelable: cancelable,
	})
}

// CancelPolicy attempts to cancel a policy for non-payment.
// POST /api/policies/{id}/cancel
func (h *Handler) CancelPolicy(w http.ResponseWriter, r *http.Request) {
	policyID, ok := policyIDParam(w, r)
	if !ok {
		return
	}

	var req CancelPolicyRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
	}

	asOf, err := parseOptionalDate(req.AsOf)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid as_of date (use YYYY-MM-DD)", err)
		return
	}
	cancelationDate, err := parseOptionalDate(req.CancelationDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid cancelation_date (use YYYY-MM-DD)", err)
		return
	}

	ctx := r.Context()
	account, err := billing.OpenAccount(ctx, h.Store, h.Log, policyID)
	if err != nil {
		writeDomainError(w, "Failed to open policy account", err)
		return
	}

	canceled, err := account.MakeCancelation(ctx, req.Description, asOf, cancelationDate)
	if err != nil {
		writeDomainError(w, "Failed to cancel policy", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"canceled": canceled,
		"status":   string(account.Policy().Status),
	})
}

// =============================================================================
// HELPERS
// =============================================================================

func policyIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid policy id", err)
		return 0, false
	}
	return id, true
}

func parseOptionalDate(s string) (billing.Date, error) {
	if s == "" {
		return billing.Date{}, nil
	}
	return billing.ParseDate(s)
}

// writeDomainError maps billing errors to HTTP status codes.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case billing.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case billing.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
