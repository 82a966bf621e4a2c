package reservation

import (
	"errors"
	"fmt"
)

// ============================================================
// Sentinels
// ============================================================

var (
	ErrUnitBooked      = errors.New("unit_booked")
	ErrUnitHeld        = errors.New("unit_held")
	ErrBusy            = errors.New("request_in_flight")
	ErrUnknownUnit     = errors.New("unknown_unit")
	ErrNotFound        = errors.New("not_found")
	ErrInvalidDuration = errors.New("invalid_hold_duration")
	ErrNoPrice         = errors.New("price_unavailable")
	ErrClosed          = errors.New("view_closed")
	// ErrSessionRequired means the buyer session is missing or has expired;
	// start a new one and retry.
	ErrSessionRequired = errors.New("session_required")
)

const (
	ReasonAlreadyLocked = "already_locked"
	ReasonAlreadyBooked = "already_booked"
)

// ============================================================
// Typed errors
// ============================================================

// TransitionConflict means the backend refused a status change because the
// unit has moved on. It is surfaced as is and never retried.
type TransitionConflict struct {
	UnitID string
	Reason string
}

func (e *TransitionConflict) Error() string {
	return fmt.Sprintf("unit %s: %s", e.UnitID, e.Reason)
}

// NetworkError wraps a transport failure or a 5xx from the backend.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Retryable is true: the user may try the action again.
func (e *NetworkError) Retryable() bool { return true }

// PaymentError is a failure or cancellation in the payment handoff. Nothing
// has been booked when it is returned.
type PaymentError struct {
	Stage string
	Err   error
}

func (e *PaymentError) Error() string {
	return fmt.Sprintf("payment %s: %v", e.Stage, e.Err)
}

func (e *PaymentError) Unwrap() error { return e.Err }

// ValidationError is a request the backend rejected as malformed.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Message
}
