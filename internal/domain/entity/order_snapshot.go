package entity

import "time"

// OrderSnapshot is the serialisable view of an order: event payload, API
// body and repository row all use it.
type OrderSnapshot struct {
	ID                 string      `json:"id"`
	DriverID           *string     `json:"driver_id"`
	Status             Status      `json:"status"`
	Priority           int         `json:"priority"`
	Pickup             Coordinates `json:"pickup"`
	Dropoff            Coordinates `json:"dropoff"`
	TimeStart          time.Time   `json:"time_start"`
	TimeEnd            time.Time   `json:"time_end"`
	Price              *float64    `json:"price"`
	Route              *Route      `json:"route,omitempty"`
	RoutePending       bool        `json:"route_pending"`
	ArrivedAt          *time.Time  `json:"arrived_at,omitempty"`
	StartedAt          *time.Time  `json:"started_at,omitempty"`
	EndTime            *time.Time  `json:"end_time,omitempty"`
	CancelledAt        *time.Time  `json:"cancelled_at,omitempty"`
	CancellationReason *string     `json:"cancellation_reason,omitempty"`
	Version            int64       `json:"version"`
	CreatedAt          time.Time   `json:"created_at"`
	UpdatedAt          time.Time   `json:"updated_at"`
}

func (o *Order) Snapshot() OrderSnapshot {
	s := OrderSnapshot{
		ID:           o.id,
		Status:       o.Status(),
		Priority:     o.priority,
		Pickup:       o.pickup,
		Dropoff:      o.dropoff,
		TimeStart:    o.window.Start,
		TimeEnd:      o.window.End,
		RoutePending: o.routePending,
		ArrivedAt:    copyTime(o.arrivedAt),
		StartedAt:    copyTime(o.startedAt),
		EndTime:      copyTime(o.endTime),
		CancelledAt:  copyTime(o.cancelledAt),
		Version:      o.version,
		CreatedAt:    o.createdAt,
		UpdatedAt:    o.updatedAt,
	}
	if o.driverID != "" {
		d := o.driverID
		s.DriverID = &d
	}
	if o.price != nil {
		p := *o.price
		s.Price = &p
	}
	if o.route != nil {
		r := *o.route
		s.Route = &r
	}
	if o.cancellationReason != "" {
		r := o.cancellationReason
		s.CancellationReason = &r
	}
	return s
}

// RestoreOrder rebuilds an aggregate from persisted state without re-validating it.
func RestoreOrder(s OrderSnapshot) *Order {
	state := stateFor(s.Status)
	if state == nil {
		state = &PendingState{}
	}
	o := &Order{
		id:           s.ID,
		state:        state,
		priority:     s.Priority,
		pickup:       s.Pickup,
		dropoff:      s.Dropoff,
		window:       TimeWindow{Start: s.TimeStart, End: s.TimeEnd},
		routePending: s.RoutePending,
		arrivedAt:    copyTime(s.ArrivedAt),
		startedAt:    copyTime(s.StartedAt),
		endTime:      copyTime(s.EndTime),
		cancelledAt:  copyTime(s.CancelledAt),
		version:      s.Version,
		createdAt:    s.CreatedAt,
		updatedAt:    s.UpdatedAt,
	}
	if s.DriverID != nil {
		o.driverID = *s.DriverID
	}
	if s.Price != nil {
		p := *s.Price
		o.price = &p
	}
	if s.Route != nil {
		r := *s.Route
		o.route = &r
	}
	if s.CancellationReason != nil {
		o.cancellationReason = *s.CancellationReason
	}
	return o
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
