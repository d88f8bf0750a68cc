package events

import (
	"context"
	"time"
)

type Type string

const (
	OrderCreated   Type = "ORDER_CREATED"
	OrderUpdated   Type = "ORDER_UPDATED"
	OrderDeleted   Type = "ORDER_DELETED"
	DriverLocation Type = "DRIVER_LOCATION"
)

// Event is a committed state change. Payload is a full snapshot of the
// entity named by Key; Version grows monotonically per Key in commit order.
type Event struct {
	ID         string    `json:"id"`
	Type       Type      `json:"type"`
	Key        string    `json:"key"`
	Version    int64     `json:"version"`
	OccurredAt time.Time `json:"occurred_at"`
	// Audience lists the driver ids allowed to see the event besides staff.
	Audience []string `json:"audience,omitempty"`
	// Final marks the last event an entity will ever produce.
	Final   bool `json:"final,omitempty"`
	Payload any  `json:"payload"`
}

// Publisher is fire-and-forget: implementations must not block on delivery.
type Publisher interface {
	Publish(ctx context.Context, event Event)
}

type PublisherFunc func(ctx context.Context, event Event)

func (f PublisherFunc) Publish(ctx context.Context, event Event) { f(ctx, event) }

// Fanout publishes every event to each of its publishers in order.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, event Event) {
	for _, p := range f {
		if p != nil {
			p.Publish(ctx, event)
		}
	}
}
