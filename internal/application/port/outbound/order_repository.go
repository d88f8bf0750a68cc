package outbound

import (
	"context"
	"time"

	"github.com/DioGolang/FleetDispatch/internal/domain/entity"
)

type OrderRepository interface {
	FindByID(ctx context.Context, id string) (*entity.Order, error)
	ListActive(ctx context.Context) ([]*entity.Order, error)
	ListRoutePending(ctx context.Context, limit int) ([]*entity.Order, error)
	HasActiveBookingAt(ctx context.Context, driverID string, at time.Time) (bool, error)

	// FindOverlapping returns the first order occupying driverID during window,
	// ignoring excludeOrderID, or nil. Only meaningful inside a UnitOfWork that
	// holds driverID.
	FindOverlapping(ctx context.Context, driverID string, window entity.TimeWindow, excludeOrderID string) (*entity.Order, error)
	Insert(ctx context.Context, order *entity.Order) error
	// Update writes order if its stored version still equals order.Version(),
	// otherwise it fails with entity.ErrConcurrentModification.
	Update(ctx context.Context, order *entity.Order) error
}
