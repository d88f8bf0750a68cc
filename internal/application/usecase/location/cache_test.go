package location

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/DioGolang/FleetDispatch/internal/application/port/outbound"
	"github.com/DioGolang/FleetDispatch/internal/domain/entity"
	"github.com/DioGolang/FleetDispatch/internal/infra/memory"
	"github.com/DioGolang/FleetDispatch/pkg/events"
	"github.com/DioGolang/FleetDispatch/pkg/logger"
	"github.com/DioGolang/FleetDispatch/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

type bookings map[string]bool

func (b bookings) HasActiveBookingAt(_ context.Context, driverID string, _ time.Time) (bool, error) {
	return b[driverID], nil
}

type directory map[string]bool

func (d directory) IsActive(_ context.Context, driverID string) (bool, error) {
	return d[driverID], nil
}

type capture struct {
	mu     sync.Mutex
	events []events.Event
}

func (c *capture) Publish(_ context.Context, e events.Event) {
	c.mu.Lock()
	c.events = append(c.events, e)
	c.mu.Unlock()
}

func newCache(b bookings, dir directory, pub events.Publisher, now time.Time) *Cache {
	var d outbound.DriverDirectory
	if dir != nil {
		d = dir
	}
	c := NewCache(memory.NewLocationStore(), b, d, pub, Config{StalenessThreshold: 2 * time.Minute},
		logger.Nop(), metrics.NewPrometheusMetrics(prometheus.NewRegistry(), "test"))
	c.now = func() time.Time { return now }
	return c
}

func TestCache_UpdatePublishesDriverLocation(t *testing.T) {
	pub := &capture{}
	c := newCache(bookings{}, nil, pub, t0)

	loc, err := c.Update(context.Background(), UpdateInput{DriverID: "d1", Lat: -23.5, Lon: -46.6, Timestamp: t0})

	require.NoError(t, err)
	assert.Equal(t, "d1", loc.DriverID)
	require.Len(t, pub.events, 1)
	assert.Equal(t, events.DriverLocation, pub.events[0].Type)
	assert.Equal(t, []string{"d1"}, pub.events[0].Audience)
}

func TestCache_OutOfOrderUpdateIsRejected(t *testing.T) {
	pub := &capture{}
	c := newCache(bookings{}, nil, pub, t0)
	ctx := context.Background()

	_, err := c.Update(ctx, UpdateInput{DriverID: "d1", Lat: 1, Lon: 1, Timestamp: t0.Add(10 * time.Second)})
	require.NoError(t, err)

	current, err := c.Update(ctx, UpdateInput{DriverID: "d1", Lat: 2, Lon: 2, Timestamp: t0})

	var stale *entity.StaleUpdateError
	require.ErrorAs(t, err, &stale)
	assert.True(t, IsStale(err))
	assert.Equal(t, t0.Add(10*time.Second), stale.Current)
	assert.Equal(t, 1.0, current.Lat)
	assert.Len(t, pub.events, 1, "rejected update must not be broadcast")

	snap, _ := c.Snapshot(ctx)
	require.Len(t, snap, 1)
	assert.Equal(t, 1.0, snap[0].Lat)
}

func TestCache_EqualTimestampStillAdvancesTheEventVersion(t *testing.T) {
	pub := &capture{}
	c := newCache(bookings{}, nil, pub, t0)
	ctx := context.Background()

	_, err := c.Update(ctx, UpdateInput{DriverID: "7", Lat: 1, Lon: 1, Timestamp: t0})
	require.NoError(t, err)
	loc, err := c.Update(ctx, UpdateInput{DriverID: "7", Lat: 2, Lon: 2, Timestamp: t0})
	require.NoError(t, err)

	require.Len(t, pub.events, 2)
	assert.Greater(t, pub.events[1].Version, pub.events[0].Version)
	assert.Equal(t, loc.Revision, pub.events[1].Version)
	assert.Equal(t, "driver:7", pub.events[1].Key)
}

func TestCache_UpdateValidation(t *testing.T) {
	c := newCache(bookings{}, nil, nil, t0)

	_, err := c.Update(context.Background(), UpdateInput{DriverID: "d1", Lat: 100, Lon: 0, Timestamp: t0})
	assert.ErrorIs(t, err, entity.ErrValidation)
	_, err = c.Update(context.Background(), UpdateInput{DriverID: "d1", Lat: 1, Lon: 1})
	assert.ErrorIs(t, err, entity.ErrValidation)
}

func TestCache_Status(t *testing.T) {
	tests := []struct {
		name      string
		observed  time.Duration
		busy      bool
		directory directory
		want      entity.DriverStatus
	}{
		{name: "fresh and idle", observed: -30 * time.Second, want: entity.DriverAvailable},
		{name: "fresh with booking", observed: -30 * time.Second, busy: true, want: entity.DriverBusy},
		{name: "stale", observed: -3 * time.Minute, busy: true, want: entity.DriverOffline},
		{name: "inactive in directory", observed: -time.Second, directory: directory{"d1": false}, want: entity.DriverOffline},
		{name: "active in directory", observed: -time.Second, directory: directory{"d1": true}, want: entity.DriverAvailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newCache(bookings{"d1": tt.busy}, tt.directory, nil, t0)
			_, err := c.Update(context.Background(), UpdateInput{DriverID: "d1", Lat: 1, Lon: 1, Timestamp: t0.Add(tt.observed)})
			require.NoError(t, err)

			got, err := c.Status(context.Background(), "d1")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Status)
		})
	}
}

func TestCache_UnknownDriverIsOffline(t *testing.T) {
	c := newCache(bookings{}, nil, nil, t0)

	got, err := c.Status(context.Background(), "ghost")

	require.NoError(t, err)
	assert.Equal(t, entity.DriverOffline, got.Status)
	assert.Nil(t, got.Location)
}

func TestCache_StatusFollowsTheClock(t *testing.T) {
	c := newCache(bookings{}, nil, nil, t0)
	_, err := c.Update(context.Background(), UpdateInput{DriverID: "d1", Lat: 1, Lon: 1, Timestamp: t0})
	require.NoError(t, err)

	c.now = func() time.Time { return t0.Add(5 * time.Minute) }
	statuses, err := c.Statuses(context.Background())

	require.NoError(t, err)
	require.Len(t, statuses, 1)
	assert.Equal(t, entity.DriverOffline, statuses[0].Status)
}

func TestCache_RemoveMakesDriverOffline(t *testing.T) {
	c := newCache(bookings{}, nil, nil, t0)
	ctx := context.Background()
	_, err := c.Update(ctx, UpdateInput{DriverID: "d1", Lat: 1, Lon: 1, Timestamp: t0})
	require.NoError(t, err)

	require.NoError(t, c.Remove(ctx, "d1"))

	got, err := c.Status(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, entity.DriverOffline, got.Status)
}

type flakyHistory struct {
	fail    bool
	batches [][]entity.LocationHistoryRecord
}

func (h *flakyHistory) Append(_ context.Context, records []entity.LocationHistoryRecord) error {
	if h.fail {
		return errors.New("connection reset")
	}
	h.batches = append(h.batches, records)
	return nil
}

func TestFlushWorker_WritesOnlyChangedPositions(t *testing.T) {
	ctx := context.Background()
	store := memory.NewLocationStore()
	history := &flakyHistory{}
	w := NewFlushWorker(store, history, logger.Nop(), metrics.NewPrometheusMetrics(prometheus.NewRegistry(), "test"))

	_, _, _ = store.Put(ctx, entity.DriverLocation{DriverID: "a", Lat: 1, Lon: 1, ObservedAt: t0})
	_, _, _ = store.Put(ctx, entity.DriverLocation{DriverID: "b", Lat: 2, Lon: 2, ObservedAt: t0})

	n, err := w.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = w.Tick(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "nothing moved")

	_, _, _ = store.Put(ctx, entity.DriverLocation{DriverID: "a", Lat: 1.5, Lon: 1, ObservedAt: t0.Add(time.Minute)})
	n, err = w.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, history.batches, 2)
	assert.Equal(t, "a", history.batches[1][0].DriverID)
}

func TestFlushWorker_ReturningDriverIsRecordedAgain(t *testing.T) {
	ctx := context.Background()
	store := memory.NewLocationStore()
	history := &flakyHistory{}
	w := NewFlushWorker(store, history, logger.Nop(), metrics.NewPrometheusMetrics(prometheus.NewRegistry(), "test"))
	at := entity.DriverLocation{DriverID: "a", Lat: 1, Lon: 1, ObservedAt: t0}

	_, _, _ = store.Put(ctx, at)
	n, err := w.Tick(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	require.NoError(t, store.Remove(ctx, "a"))
	n, err = w.Tick(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, w.lastFlushed)

	_, _, _ = store.Put(ctx, at)
	n, err = w.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "same position after a removal is a new record")
}

func TestFlushWorker_FailureIsRetriedNextTick(t *testing.T) {
	ctx := context.Background()
	store := memory.NewLocationStore()
	history := &flakyHistory{fail: true}
	w := NewFlushWorker(store, history, logger.Nop(), metrics.NewPrometheusMetrics(prometheus.NewRegistry(), "test"))
	_, _, _ = store.Put(ctx, entity.DriverLocation{DriverID: "a", Lat: 1, Lon: 1, ObservedAt: t0})

	_, err := w.Tick(ctx)
	require.Error(t, err)

	history.fail = false
	n, err := w.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestCache_NearbyOrdersByDistance(t *testing.T) {
	c := newCache(bookings{"near": true}, nil, nil, t0)
	ctx := context.Background()
	paulista := entity.Coordinates{Lat: -23.5614, Lon: -46.6559}
	for _, in := range []UpdateInput{
		{DriverID: "far", Lat: -23.6200, Lon: -46.7000, Timestamp: t0},
		{DriverID: "near", Lat: -23.5620, Lon: -46.6560, Timestamp: t0},
		{DriverID: "campinas", Lat: -22.9056, Lon: -47.0608, Timestamp: t0},
	} {
		_, err := c.Update(ctx, in)
		require.NoError(t, err)
	}

	got, err := c.Nearby(ctx, paulista, 20, 10)

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "near", got[0].DriverID)
	assert.Equal(t, entity.DriverBusy, got[0].Status)
	assert.Equal(t, "far", got[1].DriverID)

	_, err = c.Nearby(ctx, paulista, 0, 10)
	assert.ErrorIs(t, err, entity.ErrValidation)
}
