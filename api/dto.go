/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

THE REPORT CONTRACT:
  /get-policy/ has a fixed external shape that predates the REST routes:
  HTTP 200 always, {"success":true,"balance":...,"invoices":[...]} on
  success and {"success":false,"msg":"..."} on failure. Do not change it
  without coordinating with report consumers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"github.com/warp/billing-engine/billing"
)

// =============================================================================
// REPORT CONTRACT (/get-policy/)
// =============================================================================

// PolicyReportDTO is the success payload of /get-policy/.
type PolicyReportDTO struct {
	Success  bool         `json:"success"`
	Balance  int64        `json:"balance"`
	Invoices []InvoiceDTO `json:"invoices"`
}

// ReportFailureDTO is the failure payload of /get-policy/. Still HTTP 200.
type ReportFailureDTO struct {
	Success bool   `json:"success"`
	Msg     string `json:"msg"`
}

// =============================================================================
// REST TYPES
// =============================================================================

// InvoiceDTO represents an invoice in API responses.
type InvoiceDTO struct {
	ID         string `json:"id"`
	BillDate   string `json:"bill_date"`
	DueDate    string `json:"due_date"`
	CancelDate string `json:"cancel_date"`
	AmountDue  int64  `json:"amount_due"`
	Deleted    bool   `json:"deleted"`
}

// PolicyDTO represents a policy in API responses.
type PolicyDTO struct {
	ID              int64        `json:"id"`
	Name            string       `json:"name"`
	EffectiveDate   string       `json:"effective_date"`
	AnnualPremium   int64        `json:"annual_premium"`
	BillingSchedule string       `json:"billing_schedule"`
	NamedInsuredID  int64        `json:"named_insured_id,omitempty"`
	AgentID         int64        `json:"agent_id,omitempty"`
	Status          string       `json:"status"`
	CanceledOn      string       `json:"canceled_on,omitempty"`
	Invoices        []InvoiceDTO `json:"invoices,omitempty"`
}

// PaymentDTO represents a payment in API responses.
type PaymentDTO struct {
	ID              string `json:"id"`
	PolicyID        int64  `json:"policy_id"`
	ContactID       int64  `json:"contact_id"`
	AmountPaid      int64  `json:"amount_paid"`
	TransactionDate string `json:"transaction_date"`
}

// MakePaymentRequest is the request to record a payment.
type MakePaymentRequest struct {
	ContactID int64  `json:"contact_id,omitempty"` // defaults to named insured
	Date      string `json:"date,omitempty"`       // ISO date, defaults to today
	Amount    int64  `json:"amount"`
}

// ChangeScheduleRequest is the request to change a billing schedule.
type ChangeScheduleRequest struct {
	Schedule string `json:"schedule"`
}

// CancelPolicyRequest is the request to attempt cancellation.
type CancelPolicyRequest struct {
	Description     string `json:"description,omitempty"`
	AsOf            string `json:"as_of,omitempty"`            // ISO date
	CancelationDate string `json:"cancelation_date,omitempty"` // ISO date
}

// CancellationDTO reports a policy's cancellation standing.
type CancellationDTO struct {
	PolicyID   int64  `json:"policy_id"`
	AsOf       string `json:"as_of"`
	Pending    bool   `json:"pending_due_to_non_pay"`
	Cancelable bool   `json:"cancelable"`
}

// ErrorResponse is the standard error response for the REST routes.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toInvoiceDTO(invoice billing.Invoice) InvoiceDTO {
	return InvoiceDTO{
		ID:         invoice.ID,
		BillDate:   invoice.BillDate.String(),
		DueDate:    invoice.DueDate.String(),
		CancelDate: invoice.CancelDate.String(),
		AmountDue:  invoice.AmountDue.Units(),
		Deleted:    invoice.Deleted,
	}
}

func toInvoiceDTOs(invoices []billing.Invoice) []InvoiceDTO {
	dtos := make([]InvoiceDTO, len(invoices))
	for i, invoice := range invoices {
		dtos[i] = toInvoiceDTO(invoice)
	}
	return dtos
}

func toPolicyDTO(policy billing.Policy) PolicyDTO {
	dto := PolicyDTO{
		ID:              policy.ID,
		Name:            policy.Name,
		EffectiveDate:   policy.EffectiveDate.String(),
		AnnualPremium:   policy.AnnualPremium.Units(),
		BillingSchedule: string(policy.BillingSchedule),
		NamedInsuredID:  policy.NamedInsuredID,
		AgentID:         policy.AgentID,
		Status:          string(policy.Status),
	}
	if !policy.CanceledOn.IsZero() {
		dto.CanceledOn = policy.CanceledOn.String()
	}
	return dto
}

func toPaymentDTO(payment billing.Payment) PaymentDTO {
	return PaymentDTO{
		ID:              payment.ID,
		PolicyID:        payment.PolicyID,
		ContactID:       payment.ContactID,
		AmountPaid:      payment.AmountPaid.Units(),
		TransactionDate: payment.TransactionDate.String(),
	}
}
