package order

import (
	"time"

	"github.com/DioGolang/FleetDispatch/internal/domain/entity"
)

// Input

type CreateInput struct {
	Pickup   entity.Coordinates `json:"pickup"`
	Dropoff  entity.Coordinates `json:"dropoff"`
	Start    time.Time          `json:"time_start"`
	End      time.Time          `json:"time_end"`
	Priority int                `json:"priority"`
	DriverID string             `json:"driver_id,omitempty"`
}

type ReassignInput struct {
	OrderID  string    `json:"-"`
	DriverID string    `json:"driver_id"`
	Start    time.Time `json:"time_start"`
	End      time.Time `json:"time_end"`
}

type TransitionInput struct {
	OrderID string        `json:"-"`
	Target  entity.Status `json:"status"`
	Reason  string        `json:"reason,omitempty"`
	// ActorDriverID is set when a driver, not staff, requests the transition.
	ActorDriverID string `json:"-"`
}

type ListActiveInput struct {
	// DriverID narrows the board to one driver's orders when set.
	DriverID string
}
