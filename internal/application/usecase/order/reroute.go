package order

import (
	"context"
	"errors"
	"time"

	"github.com/DioGolang/FleetDispatch/internal/application/port/outbound"
	"github.com/DioGolang/FleetDispatch/internal/domain/entity"
	"github.com/DioGolang/FleetDispatch/pkg/events"
	"github.com/DioGolang/FleetDispatch/pkg/logger"
)

var errNothingToReroute = errors.New("order no longer awaits a route")

// Rerouter prices orders that were committed while the routing engine was down.
type Rerouter struct {
	deps     Dependencies
	claimer  outbound.RerouteClaimer
	batch    int
	claimTTL time.Duration
}

func NewRerouter(deps Dependencies, claimer outbound.RerouteClaimer, batch int, claimTTL time.Duration) *Rerouter {
	if batch <= 0 {
		batch = 50
	}
	if claimTTL <= 0 {
		claimTTL = time.Minute
	}
	return &Rerouter{deps: deps.withDefaults(), claimer: claimer, batch: batch, claimTTL: claimTTL}
}

// Tick runs one sweep and returns how many orders received a route.
func (r *Rerouter) Tick(ctx context.Context) (int, error) {
	pending, err := r.deps.Orders.ListRoutePending(ctx, r.batch)
	if err != nil {
		return 0, err
	}
	done := 0
	for _, o := range pending {
		if ctx.Err() != nil {
			return done, ctx.Err()
		}
		ok, err := r.reroute(ctx, o)
		if err != nil {
			r.deps.Log.Warn(ctx, "re-route failed", logger.String("order_id", o.ID()), logger.WithError(err))
			continue
		}
		if ok {
			done++
		}
	}
	return done, nil
}

func (r *Rerouter) reroute(ctx context.Context, o *entity.Order) (bool, error) {
	if r.claimer != nil {
		claimed, err := r.claimer.Claim(ctx, o.ID(), r.claimTTL)
		if err != nil {
			return false, err
		}
		if !claimed {
			return false, nil
		}
		defer func() {
			if err := r.claimer.Release(context.WithoutCancel(ctx), o.ID()); err != nil {
				r.deps.Log.Warn(ctx, "release re-route claim", logger.String("order_id", o.ID()), logger.WithError(err))
			}
		}()
	}

	now := r.deps.Now()
	routedCopy := o.Clone()
	q, err := r.deps.Quoter.Quote(ctx, o.Pickup(), o.Dropoff())
	var noPath *entity.RouteNotFoundError
	switch {
	case err == nil:
		routedCopy.ApplyRoute(q.Route, q.Price, now)
	case errors.As(err, &noPath):
		routedCopy.ClearRoute(now)
	case errors.Is(err, entity.ErrRoutingUnavailable):
		return false, nil
	default:
		return false, err
	}

	var committed *entity.Order
	err = r.deps.UnitOfWork.Do(ctx, nil, func(p outbound.RepositoryProvider) error {
		fresh, err := p.Order().FindByID(ctx, o.ID())
		if err != nil {
			return err
		}
		if !fresh.RoutePending() || fresh.IsTerminal() {
			return errNothingToReroute
		}
		copyRouting(fresh, routedCopy, now)
		if err := p.Order().Update(ctx, fresh); err != nil {
			return err
		}
		committed = fresh
		return nil
	})
	if errors.Is(err, errNothingToReroute) {
		return false, nil
	}
	r.deps.recordCommit("reroute", err, routedCopy.Status())
	if err != nil {
		return false, err
	}

	if noPath != nil {
		r.deps.Log.Warn(ctx, "no route exists for pending order, leaving it unpriced", logger.String("order_id", committed.ID()))
	}
	r.deps.publish(ctx, events.OrderUpdated, committed, committed.DriverID())
	return noPath == nil, nil
}
