package order

import (
	"context"
	"errors"
	"time"

	"github.com/DioGolang/FleetDispatch/internal/application/port/outbound"
	"github.com/DioGolang/FleetDispatch/internal/domain/entity"
	"github.com/DioGolang/FleetDispatch/pkg/events"
	"github.com/DioGolang/FleetDispatch/pkg/logger"
	"github.com/DioGolang/FleetDispatch/pkg/metrics"
	"github.com/google/uuid"
)

// Dependencies are shared by every order use case.
type Dependencies struct {
	UnitOfWork outbound.UnitOfWork
	// Orders serves reads that need no lock.
	Orders    outbound.OrderRepository
	Quoter    RouteQuoter
	Publisher events.Publisher
	Metrics   metrics.Metrics
	Log       logger.Logger
	Now       Clock
	NewID     IDGenerator
}

func (d Dependencies) withDefaults() Dependencies {
	if d.Now == nil {
		d.Now = func() time.Time { return time.Now().UTC() }
	}
	if d.NewID == nil {
		d.NewID = uuid.NewString
	}
	if d.Log == nil {
		d.Log = logger.Nop()
	}
	if d.Publisher == nil {
		d.Publisher = events.Fanout{}
	}
	return d
}

// routeOutcome is how a routing attempt ended, after the booking policy ran.
type routeOutcome int

const (
	routed routeOutcome = iota
	unrouted
	degraded
)

func (r routeOutcome) String() string {
	switch r {
	case routed:
		return "routed"
	case degraded:
		return "degraded"
	default:
		return "unrouted"
	}
}

// quote applies the routing failure policy to o. A missing path is fatal
// when a driver is being booked; an unreachable engine never is.
func (d Dependencies) quote(ctx context.Context, o *entity.Order, bookingDriver bool, now time.Time) (routeOutcome, error) {
	q, err := d.Quoter.Quote(ctx, o.Pickup(), o.Dropoff())
	if err == nil {
		o.ApplyRoute(q.Route, q.Price, now)
		return routed, nil
	}

	var noPath *entity.RouteNotFoundError
	var unavailable *entity.RoutingUnavailableError
	switch {
	case errors.As(err, &noPath):
		if bookingDriver {
			return unrouted, err
		}
		o.ClearRoute(now)
		return unrouted, nil
	case errors.As(err, &unavailable):
		d.Log.Warn(ctx, "routing unavailable, committing without price",
			logger.String("order_id", o.ID()),
			logger.Int("attempts", unavailable.Attempts),
			logger.WithError(err),
		)
		o.MarkRoutePending(now)
		return degraded, nil
	default:
		return unrouted, err
	}
}

// copyRouting moves the routing result computed on src onto dst.
func copyRouting(dst, src *entity.Order, now time.Time) {
	switch {
	case src.Route() != nil && src.Price() != nil:
		dst.ApplyRoute(*src.Route(), *src.Price(), now)
	case src.RoutePending():
		dst.MarkRoutePending(now)
	default:
		dst.ClearRoute(now)
	}
}

func (d Dependencies) publish(ctx context.Context, typ events.Type, o *entity.Order, audience ...string) {
	seen := make(map[string]struct{}, len(audience))
	var drivers []string
	for _, id := range audience {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		drivers = append(drivers, id)
	}
	d.Publisher.Publish(ctx, events.Event{
		ID:         d.NewID(),
		Type:       typ,
		Key:        o.ID(),
		Version:    o.Version(),
		OccurredAt: d.Now(),
		Audience:   drivers,
		Final:      o.IsTerminal(),
		Payload:    o.Snapshot(),
	})
}

func (d Dependencies) recordCommit(operation string, err error, status entity.Status) {
	if d.Metrics == nil {
		return
	}
	if err == nil {
		d.Metrics.RecordOrderCommitted(operation, string(status))
		return
	}
	if errors.Is(err, entity.ErrTimeConflict) {
		d.Metrics.RecordBookingConflict(operation)
	}
}

// checkAvailability fails with a TimeConflictError when driverID already
// holds an active order overlapping window.
func checkAvailability(ctx context.Context, repo outbound.OrderRepository, driverID string, window entity.TimeWindow, excludeID string) error {
	blocking, err := repo.FindOverlapping(ctx, driverID, window, excludeID)
	if err != nil {
		return err
	}
	if blocking != nil {
		return &entity.TimeConflictError{
			DriverID:        driverID,
			BlockingOrderID: blocking.ID(),
			BlockingWindow:  blocking.Window(),
		}
	}
	return nil
}
