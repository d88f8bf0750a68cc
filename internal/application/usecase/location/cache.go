package location

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/DioGolang/FleetDispatch/internal/application/port/outbound"
	"github.com/DioGolang/FleetDispatch/internal/domain/entity"
	"github.com/DioGolang/FleetDispatch/pkg/events"
	"github.com/DioGolang/FleetDispatch/pkg/logger"
	"github.com/DioGolang/FleetDispatch/pkg/metrics"
	"github.com/google/uuid"
)

const (
	outcomeApplied = "applied"
	outcomeStale   = "stale"
	outcomeInvalid = "invalid"
)

// BookingLookup answers whether a driver holds an active order at an instant.
type BookingLookup interface {
	HasActiveBookingAt(ctx context.Context, driverID string, at time.Time) (bool, error)
}

type Config struct {
	StalenessThreshold time.Duration
}

type UpdateInput struct {
	DriverID  string    `json:"-"`
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	Timestamp time.Time `json:"ts"`
}

type StatusOutput struct {
	DriverID string                 `json:"driver_id"`
	Status   entity.DriverStatus    `json:"status"`
	Location *entity.DriverLocation `json:"location,omitempty"`
}

// Cache is the hot tier of driver positions. Status is derived on every
// read from freshness and bookings and never stored.
type Cache struct {
	store     outbound.LocationStore
	bookings  BookingLookup
	directory outbound.DriverDirectory
	publisher events.Publisher
	cfg       Config
	log       logger.Logger
	metrics   metrics.Metrics
	now       func() time.Time
}

// NewCache builds the cache. directory may be nil, in which case every
// driver is considered active.
func NewCache(
	store outbound.LocationStore,
	bookings BookingLookup,
	directory outbound.DriverDirectory,
	publisher events.Publisher,
	cfg Config,
	log logger.Logger,
	m metrics.Metrics,
) *Cache {
	if publisher == nil {
		publisher = events.Fanout{}
	}
	return &Cache{
		store:     store,
		bookings:  bookings,
		directory: directory,
		publisher: publisher,
		cfg:       cfg,
		log:       log.With(logger.String("component", "location_cache")),
		metrics:   m,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Update records a position. A timestamp strictly older than the stored one
// is rejected with a StaleUpdateError and changes nothing.
func (c *Cache) Update(ctx context.Context, in UpdateInput) (entity.DriverLocation, error) {
	loc, err := entity.NewDriverLocation(in.DriverID, in.Lat, in.Lon, in.Timestamp)
	if err != nil {
		c.metrics.RecordLocationUpdate(outcomeInvalid)
		return entity.DriverLocation{}, err
	}

	applied, current, err := c.store.Put(ctx, loc)
	if err != nil {
		return entity.DriverLocation{}, fmt.Errorf("store location for %s: %w", loc.DriverID, err)
	}
	if !applied {
		c.metrics.RecordLocationUpdate(outcomeStale)
		stale := &entity.StaleUpdateError{DriverID: loc.DriverID, Received: loc.ObservedAt, Current: current.ObservedAt}
		c.log.Warn(ctx, "stale location update rejected",
			logger.String("driver_id", loc.DriverID),
			logger.Duration("behind", current.ObservedAt.Sub(loc.ObservedAt)),
		)
		return current, stale
	}

	// The store's revision orders events for this driver, so a write that
	// reuses a timestamp still reaches subscribers.
	loc = current
	c.metrics.RecordLocationUpdate(outcomeApplied)
	c.publisher.Publish(ctx, events.Event{
		ID:         uuid.NewString(),
		Type:       events.DriverLocation,
		Key:        "driver:" + loc.DriverID,
		Version:    loc.Revision,
		OccurredAt: c.now(),
		Audience:   []string{loc.DriverID},
		Payload:    loc,
	})
	return loc, nil
}

func (c *Cache) Snapshot(ctx context.Context) ([]entity.DriverLocation, error) {
	return c.store.Snapshot(ctx)
}

func (c *Cache) Remove(ctx context.Context, driverID string) error {
	if driverID == "" {
		return entity.NewValidationError("driver_id", "is required")
	}
	return c.store.Remove(ctx, driverID)
}

func (c *Cache) Status(ctx context.Context, driverID string) (StatusOutput, error) {
	if driverID == "" {
		return StatusOutput{}, entity.NewValidationError("driver_id", "is required")
	}
	loc, found, err := c.store.Get(ctx, driverID)
	if err != nil {
		return StatusOutput{}, err
	}
	var locPtr *entity.DriverLocation
	if found {
		locPtr = &loc
	}
	return c.derive(ctx, driverID, locPtr)
}

// Nearby lists drivers around center with their derived status, closest first.
func (c *Cache) Nearby(ctx context.Context, center entity.Coordinates, radiusKm float64, limit int) ([]StatusOutput, error) {
	if err := center.Validate("center"); err != nil {
		return nil, err
	}
	if radiusKm <= 0 {
		return nil, entity.NewValidationError("radius_km", "must be positive")
	}
	locs, err := c.store.Nearest(ctx, center, radiusKm, limit)
	if err != nil {
		return nil, err
	}
	return c.deriveAll(ctx, locs)
}

// Statuses derives the status of every driver currently in the hot store.
func (c *Cache) Statuses(ctx context.Context) ([]StatusOutput, error) {
	locs, err := c.store.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return c.deriveAll(ctx, locs)
}

func (c *Cache) deriveAll(ctx context.Context, locs []entity.DriverLocation) ([]StatusOutput, error) {
	out := make([]StatusOutput, 0, len(locs))
	for i := range locs {
		st, err := c.derive(ctx, locs[i].DriverID, &locs[i])
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}

func (c *Cache) derive(ctx context.Context, driverID string, loc *entity.DriverLocation) (StatusOutput, error) {
	now := c.now()
	in := entity.DriverStatusInput{
		Location:           loc,
		Active:             true,
		Now:                now,
		StalenessThreshold: c.cfg.StalenessThreshold,
	}
	if c.directory != nil {
		active, err := c.directory.IsActive(ctx, driverID)
		if err != nil {
			return StatusOutput{}, fmt.Errorf("driver directory: %w", err)
		}
		in.Active = active
	}
	// The booking lookup only matters for a fresh, active driver.
	if in.Active && loc != nil && loc.Age(now) <= c.cfg.StalenessThreshold {
		busy, err := c.bookings.HasActiveBookingAt(ctx, driverID, now)
		if err != nil {
			return StatusOutput{}, fmt.Errorf("booking lookup: %w", err)
		}
		in.HasActiveBooking = busy
	}
	return StatusOutput{DriverID: driverID, Status: entity.DeriveDriverStatus(in), Location: loc}, nil
}

// IsStale reports whether err rejected an out-of-order location.
func IsStale(err error) bool {
	return errors.Is(err, entity.ErrStaleUpdate)
}
