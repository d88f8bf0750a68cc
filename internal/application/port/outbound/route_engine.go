package outbound

import (
	"context"
	"time"

	"github.com/DioGolang/FleetDispatch/internal/domain/entity"
)

// RouteEngine is the external routing service. Implementations return an
// *entity.RouteNotFoundError when no path exists; every other error is
// treated as the engine being unreachable.
type RouteEngine interface {
	Route(ctx context.Context, pickup, dropoff entity.Coordinates) (entity.Route, error)
}

// RerouteClaimer makes sure one instance at a time re-routes a given order.
type RerouteClaimer interface {
	Claim(ctx context.Context, orderID string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, orderID string) error
}
