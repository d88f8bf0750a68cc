package entity

import (
	"math"
	"strings"
	"time"
)

type Order struct {
	id                 string
	driverID           string
	state              OrderState
	priority           int
	pickup             Coordinates
	dropoff            Coordinates
	window             TimeWindow
	price              *float64
	route              *Route
	routePending       bool
	arrivedAt          *time.Time
	startedAt          *time.Time
	endTime            *time.Time
	cancelledAt        *time.Time
	cancellationReason string
	version            int64
	createdAt          time.Time
	updatedAt          time.Time
}

// OrderDraft is the dispatcher input for a new order, before routing.
type OrderDraft struct {
	Pickup   Coordinates
	Dropoff  Coordinates
	Window   TimeWindow
	Priority int
}

func (d OrderDraft) Validate() error {
	if err := d.Pickup.Validate("pickup"); err != nil {
		return err
	}
	if err := d.Dropoff.Validate("dropoff"); err != nil {
		return err
	}
	if _, err := NewTimeWindow(d.Window.Start, d.Window.End); err != nil {
		return err
	}
	return nil
}

func NewOrder(id string, draft OrderDraft, now time.Time) (*Order, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrIDIsRequired
	}
	if err := draft.Validate(); err != nil {
		return nil, err
	}
	window, _ := NewTimeWindow(draft.Window.Start, draft.Window.End)
	return &Order{
		id:        id,
		state:     &PendingState{},
		priority:  draft.Priority,
		pickup:    draft.Pickup,
		dropoff:   draft.Dropoff,
		window:    window,
		createdAt: now.UTC(),
		updatedAt: now.UTC(),
	}, nil
}

func (o *Order) TransitionTo(s OrderState) { o.state = s }

// AssignTo books the order for driverID over window. The caller owns the
// overlap check; this only enforces the state table.
func (o *Order) AssignTo(driverID string, window TimeWindow, now time.Time) error {
	if strings.TrimSpace(driverID) == "" {
		return NewValidationError("driver_id", "is required")
	}
	if _, err := NewTimeWindow(window.Start, window.End); err != nil {
		return err
	}
	if err := o.state.Assign(o, driverID, window); err != nil {
		return err
	}
	o.touch(now)
	return nil
}

func (o *Order) Arrive(now time.Time) error {
	if err := o.state.Arrive(o); err != nil {
		return err
	}
	o.arrivedAt = stamp(now)
	o.touch(now)
	return nil
}

func (o *Order) Start(now time.Time) error {
	if err := o.state.Start(o); err != nil {
		return err
	}
	o.startedAt = stamp(now)
	o.touch(now)
	return nil
}

func (o *Order) Complete(now time.Time) error {
	if err := o.state.Complete(o); err != nil {
		return err
	}
	o.endTime = stamp(now)
	o.touch(now)
	return nil
}

func (o *Order) Cancel(reason string, now time.Time) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return NewValidationError("reason", "cancellation requires a reason")
	}
	if err := o.state.Cancel(o); err != nil {
		return err
	}
	o.cancellationReason = reason
	o.cancelledAt = stamp(now)
	o.touch(now)
	return nil
}

// Transition applies a lifecycle step by target status. ASSIGNED needs a
// driver and an overlap check, so it only goes through AssignTo.
func (o *Order) Transition(target Status, reason string, now time.Time) error {
	switch target {
	case StatusDriverArrived:
		return o.Arrive(now)
	case StatusInProgress:
		return o.Start(now)
	case StatusCompleted:
		return o.Complete(now)
	case StatusCancelled:
		return o.Cancel(reason, now)
	case StatusAssigned:
		if o.Status() != StatusPending && o.Status() != StatusAssigned {
			return &InvalidTransitionError{From: o.Status(), To: target}
		}
		return NewValidationError("status", "assignment requires a driver; use reassign")
	case StatusPending:
		return &InvalidTransitionError{From: o.Status(), To: target}
	}
	return NewValidationError("status", "unknown status "+string(target))
}

// ApplyRoute records a successful routing lookup and clears any pending re-route.
func (o *Order) ApplyRoute(route Route, price float64, now time.Time) {
	r := route
	p := math.Round(price*100) / 100
	o.route = &r
	o.price = &p
	o.routePending = false
	o.touch(now)
}

// MarkRoutePending is the degraded commit: no price or route until re-routed.
func (o *Order) MarkRoutePending(now time.Time) {
	o.route = nil
	o.price = nil
	o.routePending = true
	o.touch(now)
}

// ClearRoute drops routing data without scheduling a re-route.
func (o *Order) ClearRoute(now time.Time) {
	o.route = nil
	o.price = nil
	o.routePending = false
	o.touch(now)
}

// Committed is called by repositories once a write with the new version succeeded.
func (o *Order) Committed(version int64) { o.version = version }

func (o *Order) touch(now time.Time) { o.updatedAt = now.UTC() }

func stamp(t time.Time) *time.Time {
	u := t.UTC()
	return &u
}

func (o *Order) ID() string                 { return o.id }
func (o *Order) DriverID() string           { return o.driverID }
func (o *Order) HasDriver() bool            { return o.driverID != "" }
func (o *Order) Status() Status             { return o.state.Name() }
func (o *Order) Priority() int              { return o.priority }
func (o *Order) Pickup() Coordinates        { return o.pickup }
func (o *Order) Dropoff() Coordinates       { return o.dropoff }
func (o *Order) Window() TimeWindow         { return o.window }
func (o *Order) Price() *float64            { return o.price }
func (o *Order) Route() *Route              { return o.route }
func (o *Order) RoutePending() bool         { return o.routePending }
func (o *Order) CancellationReason() string { return o.cancellationReason }
func (o *Order) Version() int64             { return o.version }
func (o *Order) CreatedAt() time.Time       { return o.createdAt }
func (o *Order) UpdatedAt() time.Time       { return o.updatedAt }
func (o *Order) IsActive() bool             { return o.Status().IsActive() }
func (o *Order) IsTerminal() bool           { return o.Status().IsTerminal() }

// OccupiesDriver reports whether the order counts against driverID's calendar.
func (o *Order) OccupiesDriver(driverID string) bool {
	return o.driverID == driverID && o.IsActive()
}

// Clone returns an independent copy, used to keep stored state immutable.
func (o *Order) Clone() *Order {
	snap := o.Snapshot()
	return RestoreOrder(snap)
}
