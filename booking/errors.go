/*
errors.go - Centralized error types for the reservation engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers match with errors.Is() on the sentinels; structured errors
  carry context and Unwrap() to their sentinel.

ERROR TAXONOMY:
  ValidationError   - malformed or out-of-policy input, never retried
  BookingConflict   - genuine interval overlap, terminal
  HighContention    - optimistic-write retries exhausted, terminal but the
                      caller may retry later
  NotFound          - missing vehicle or reservation
  Forbidden         - requester does not own the reservation
  InvalidState      - lifecycle violation (e.g. cancelling a completed one)
  Interrupted       - caller's context cancelled during backoff

  ErrRevisionConflict is INTERNAL: it signals a lost optimistic write and is
  always converted into a retry or, after exhaustion, into HighContention.
  It must never reach an external caller.

SEE ALSO:
  - engine.go: Converts revision conflicts into retries
  - store.go: Contracts that return ErrRevisionConflict
*/
package booking

import (
	"errors"
	"fmt"
	"time"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is returned for malformed or out-of-policy input.
	ErrValidation = errors.New("validation failed")

	// ErrBookingConflict is returned when the requested interval overlaps an
	// existing active reservation. Terminal: retrying cannot help.
	ErrBookingConflict = errors.New("booking conflict")

	// ErrHighContention is returned after exhausting bounded retries on
	// optimistic-write conflicts. Distinct from ErrBookingConflict: the
	// vehicle may well be free, the caller should simply try again later.
	ErrHighContention = errors.New("high contention, retry later")

	// ErrNotFound is returned when a referenced vehicle or reservation does
	// not exist (or the vehicle is inactive).
	ErrNotFound = errors.New("not found")

	// ErrForbidden is returned when the requester does not own the
	// reservation being acted on.
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidState is returned for disallowed lifecycle transitions.
	ErrInvalidState = errors.New("invalid reservation state")

	// ErrInterrupted is returned when the caller's context is cancelled
	// while the engine is waiting to retry.
	ErrInterrupted = errors.New("operation interrupted")

	// ErrRevisionConflict signals a lost optimistic write. Internal only:
	// the engine catches it and retries, it is never surfaced to callers.
	ErrRevisionConflict = errors.New("revision conflict")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError reports which precondition failed.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// BookingConflictError identifies the offending vehicle and requested range.
type BookingConflictError struct {
	VehicleID VehicleID
	Start     time.Time
	End       time.Time
}

func (e *BookingConflictError) Error() string {
	return fmt.Sprintf("vehicle %s is not available in [%s, %s)",
		e.VehicleID, e.Start.Format(time.RFC3339), e.End.Format(time.RFC3339))
}

func (e *BookingConflictError) Unwrap() error { return ErrBookingConflict }

// InvalidStateError reports a disallowed lifecycle transition.
type InvalidStateError struct {
	ReservationID ReservationID
	State         ReservationState
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("reservation %s is %s, only active reservations can transition",
		e.ReservationID, e.State)
}

func (e *InvalidStateError) Unwrap() error { return ErrInvalidState }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRevisionConflict)
}

// IsClientError returns true if the error is due to the caller's input or
// timing, not an engine failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrBookingConflict) ||
		errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrInvalidState)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
