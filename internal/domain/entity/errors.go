package entity

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrIDIsRequired           = errors.New("id is required")
	ErrOrderNotFound          = errors.New("order not found")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrConcurrentModification = errors.New("order was modified concurrently")
	ErrTimeConflict           = errors.New("driver time window conflict")
	ErrRouteNotFound          = errors.New("no route between coordinates")
	ErrRoutingUnavailable     = errors.New("routing engine unavailable")
	ErrStaleUpdate            = errors.New("stale location update")
	ErrConnectionRejected     = errors.New("connection rejected")
	ErrValidation             = errors.New("validation failed")
	ErrForbidden              = errors.New("caller may not act on this resource")
)

// ValidationError reports malformed input. It is raised before any side effect.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// InvalidTransitionError is returned when the state table has no edge From -> To.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid state transition %s -> %s", e.From, e.To)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidStateTransition }

// TimeConflictError identifies the active order blocking a booking.
type TimeConflictError struct {
	DriverID        string
	BlockingOrderID string
	BlockingWindow  TimeWindow
}

func (e *TimeConflictError) Error() string {
	return fmt.Sprintf("driver %s already booked by order %s for %s",
		e.DriverID, e.BlockingOrderID, e.BlockingWindow)
}

func (e *TimeConflictError) Unwrap() error { return ErrTimeConflict }

// RouteNotFoundError means the engine answered but no path exists. Not retryable.
type RouteNotFoundError struct {
	Pickup  Coordinates
	Dropoff Coordinates
}

func (e *RouteNotFoundError) Error() string {
	return fmt.Sprintf("no route from %s to %s", e.Pickup, e.Dropoff)
}

func (e *RouteNotFoundError) Unwrap() error { return ErrRouteNotFound }

// RoutingUnavailableError wraps a transient engine failure after retries ran out.
type RoutingUnavailableError struct {
	Attempts int
	Err      error
}

func (e *RoutingUnavailableError) Error() string {
	return fmt.Sprintf("routing engine unavailable after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *RoutingUnavailableError) Unwrap() []error { return []error{ErrRoutingUnavailable, e.Err} }

// StaleUpdateError rejects a location older than the one already stored.
type StaleUpdateError struct {
	DriverID string
	Received time.Time
	Current  time.Time
}

func (e *StaleUpdateError) Error() string {
	return fmt.Sprintf("location for driver %s at %s is older than stored %s",
		e.DriverID, e.Received.Format(time.RFC3339Nano), e.Current.Format(time.RFC3339Nano))
}

func (e *StaleUpdateError) Unwrap() error { return ErrStaleUpdate }

// ConnectionRejectedError is produced when a realtime client fails admission.
type ConnectionRejectedError struct {
	Origin string
	Reason string
}

func (e *ConnectionRejectedError) Error() string {
	return fmt.Sprintf("connection from origin %q rejected: %s", e.Origin, e.Reason)
}

func (e *ConnectionRejectedError) Unwrap() error { return ErrConnectionRejected }
