package outbound

import (
	"context"

	"github.com/DioGolang/FleetDispatch/internal/domain/entity"
)

// LocationStore is the hot tier: latest position per driver.
type LocationStore interface {
	// Put stores loc unless the stored entry is strictly newer. When it is,
	// applied is false and current holds the stored entry.
	Put(ctx context.Context, loc entity.DriverLocation) (applied bool, current entity.DriverLocation, err error)
	Get(ctx context.Context, driverID string) (entity.DriverLocation, bool, error)
	Snapshot(ctx context.Context) ([]entity.DriverLocation, error)
	Remove(ctx context.Context, driverID string) error
	// Nearest lists drivers within radiusKm of center, closest first.
	Nearest(ctx context.Context, center entity.Coordinates, radiusKm float64, limit int) ([]entity.DriverLocation, error)
}

// LocationHistoryRepository is the durable append-only tier.
type LocationHistoryRepository interface {
	Append(ctx context.Context, records []entity.LocationHistoryRecord) error
}

// DriverDirectory belongs to the external driver-management service.
type DriverDirectory interface {
	IsActive(ctx context.Context, driverID string) (bool, error)
}
