/*
errors.go - Centralized error types for the booking engine

PURPOSE:
  Every rejection the engine can produce is a sentinel here. Structured
  errors carry context and unwrap to their sentinel, so callers always
  test with errors.Is().

ERROR CATEGORIES:
  1. Input errors - malformed arguments (InvalidInput)
  2. Access errors - admin-gated calls, owner mismatch (Unauthorized)
  3. Lookup errors - missing venue, user, booking, holiday (NotFound)
  4. Rule violations - capacity, duplicates, blackouts, windows
  5. Collaborator errors - refund transfer failures

Every rejected call leaves state unchanged.

SEE ALSO:
  - engine.go: Produces most of these errors
  - api/handlers.go: Maps them to HTTP status codes
*/
package booking

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrInvalidInput            = errors.New("invalid input")
	ErrUnauthorized            = errors.New("unauthorized")
	ErrNotFound                = errors.New("not found")
	ErrAlreadyExists           = errors.New("already exists")
	ErrVenueInactive           = errors.New("venue inactive")
	ErrSlotFull                = errors.New("slot full")
	ErrDuplicateBooking        = errors.New("duplicate booking")
	ErrBlackoutViolation       = errors.New("day is a holiday")
	ErrAdmissionWindowExceeded = errors.New("admission window exceeded")
	ErrAlreadyCheckedIn        = errors.New("already checked in")
	ErrTransferFailed          = errors.New("transfer failed")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// SlotFullError reports the occupancy that caused the rejection.
type SlotFullError struct {
	Slot      SlotKey
	Occupancy int
	Capacity  int
}

func (e *SlotFullError) Error() string {
	return fmt.Sprintf("slot full: %s has %d of %d places taken", e.Slot, e.Occupancy, e.Capacity)
}

func (e *SlotFullError) Unwrap() error { return ErrSlotFull }

// WindowError reports how far a requested slot lies beyond the horizon.
type WindowError struct {
	Scheduled time.Time
	Horizon   time.Time
}

func (e *WindowError) Error() string {
	return fmt.Sprintf("admission window exceeded: slot at %s is after horizon %s",
		e.Scheduled.Format(time.RFC3339), e.Horizon.Format(time.RFC3339))
}

func (e *WindowError) Unwrap() error { return ErrAdmissionWindowExceeded }

// TransferError wraps the collaborator failure behind a refund.
type TransferError struct {
	To     Identity
	Amount decimal.Decimal
	Err    error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("transfer failed: refund %s to %s: %v", e.Amount, e.To, e.Err)
}

// Unwrap exposes both the sentinel and the underlying cause.
func (e *TransferError) Unwrap() []error { return []error{ErrTransferFailed, e.Err} }

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrAdmissionWindowExceeded) ||
		errors.Is(err, ErrBlackoutViolation)
}

// IsConflict returns true if the request clashes with current state.
func IsConflict(err error) bool {
	return errors.Is(err, ErrAlreadyExists) ||
		errors.Is(err, ErrSlotFull) ||
		errors.Is(err, ErrDuplicateBooking) ||
		errors.Is(err, ErrAlreadyCheckedIn) ||
		errors.Is(err, ErrVenueInactive)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
