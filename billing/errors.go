/*
errors.go - Centralized error types for the billing domain

PURPOSE:
  All domain error types in one place for consistency and discoverability.
  Callers classify with errors.Is/errors.As; the HTTP layer converts
  recoverable domain errors into structured failure payloads.

ERROR CATEGORIES:
  1. Not-found errors - Missing policy or contact records
  2. Schedule errors  - Unrecognized billing schedules
  3. Input errors     - Invalid amounts or arguments

SEE ALSO:
  - account.go: Produces these errors
  - api/handlers.go: Converts them to failure responses
*/
package billing

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrPolicyNotFound is returned when a policy id does not resolve to a
	// record. Recoverable; surfaced as a failure response, never fatal.
	ErrPolicyNotFound = errors.New("policy not found")

	// ErrContactNotFound is returned when a referenced contact doesn't exist.
	ErrContactNotFound = errors.New("contact not found")

	// ErrInvalidSchedule is returned for a billing schedule outside the
	// defined enum, or one the invoice engine cannot bill.
	ErrInvalidSchedule = errors.New("invalid billing schedule")

	// ErrInvalidAmount is returned for non-positive premiums or payments.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrPolicyCanceled is returned when an operation requires an active
	// policy.
	ErrPolicyCanceled = errors.New("policy is canceled")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvalidScheduleError reports which schedule value was rejected.
type InvalidScheduleError struct {
	Schedule Schedule
}

func (e *InvalidScheduleError) Error() string {
	return fmt.Sprintf("invalid billing schedule %q", string(e.Schedule))
}

func (e *InvalidScheduleError) Unwrap() error {
	return ErrInvalidSchedule
}

// NotFoundError reports which record was missing.
type NotFoundError struct {
	Kind string // "policy" or "contact"
	ID   int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error {
	if e.Kind == "contact" {
		return ErrContactNotFound
	}
	return ErrPolicyNotFound
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrPolicyNotFound) ||
		errors.Is(err, ErrContactNotFound)
}

// IsClientError returns true if the error is due to invalid caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidSchedule) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrPolicyCanceled)
}
