package order

import (
	"context"
	"time"

	"github.com/DioGolang/FleetDispatch/internal/application/routing"
	"github.com/DioGolang/FleetDispatch/internal/domain/entity"
)

type CreateUseCase interface {
	Execute(ctx context.Context, input CreateInput) (entity.OrderSnapshot, error)
}

type ReassignUseCase interface {
	Execute(ctx context.Context, input ReassignInput) (entity.OrderSnapshot, error)
}

type TransitionUseCase interface {
	Execute(ctx context.Context, input TransitionInput) (entity.OrderSnapshot, error)
}

type GetUseCase interface {
	Execute(ctx context.Context, id string) (entity.OrderSnapshot, error)
}

type ListActiveUseCase interface {
	Execute(ctx context.Context, input ListActiveInput) ([]entity.OrderSnapshot, error)
}

// RouteQuoter is the part of the routing gateway the booking engine needs.
type RouteQuoter interface {
	Quote(ctx context.Context, pickup, dropoff entity.Coordinates) (routing.Quote, error)
}

type Clock func() time.Time

type IDGenerator func() string
