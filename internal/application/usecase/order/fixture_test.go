package order

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DioGolang/FleetDispatch/internal/application/routing"
	"github.com/DioGolang/FleetDispatch/internal/domain/entity"
	"github.com/DioGolang/FleetDispatch/internal/infra/memory"
	"github.com/DioGolang/FleetDispatch/pkg/events"
	"github.com/DioGolang/FleetDispatch/pkg/logger"
	"github.com/DioGolang/FleetDispatch/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	t0      = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	pickup  = entity.Coordinates{Lat: -23.5614, Lon: -46.6559}
	dropoff = entity.Coordinates{Lat: -23.5874, Lon: -46.6576}
)

// stubEngine answers with a fixed route or error and counts calls.
type stubEngine struct {
	mu    sync.Mutex
	route entity.Route
	err   error
	calls atomic.Int32
}

func (e *stubEngine) Route(_ context.Context, p, d entity.Coordinates) (entity.Route, error) {
	e.calls.Add(1)
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return entity.Route{}, e.err
	}
	return e.route, nil
}

func (e *stubEngine) set(route entity.Route, err error) {
	e.mu.Lock()
	e.route, e.err = route, err
	e.mu.Unlock()
}

type recorder struct {
	mu     sync.Mutex
	events []events.Event
	onPub  func(events.Event)
}

func (r *recorder) Publish(_ context.Context, e events.Event) {
	if r.onPub != nil {
		r.onPub(e)
	}
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) all() []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.Event(nil), r.events...)
}

type fixture struct {
	store      *memory.OrderStore
	engine     *stubEngine
	published  *recorder
	deps       Dependencies
	create     *CreateUseCaseImpl
	reassign   *ReassignUseCaseImpl
	transition *TransitionUseCaseImpl
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	engine := &stubEngine{route: entity.Route{DistanceMeters: 5000, DurationSeconds: 900}}
	m := metrics.NewPrometheusMetrics(prometheus.NewRegistry(), "test")
	gateway := routing.NewGateway(engine, routing.Config{
		Tariff:          routing.Tariff{PerKm: 2, PerMinute: 0.5, MinimumFare: 7},
		Region:          entity.BoundingBox{MinLat: -24.1, MinLon: -47.2, MaxLat: -23.1, MaxLon: -46.2},
		RequestTimeout:  100 * time.Millisecond,
		Budget:          time.Second,
		MaxRetries:      1,
		Backoff:         time.Millisecond,
		BreakerFailures: 1000,
		BreakerOpenFor:  time.Minute,
	}, logger.Nop(), m)

	store := memory.NewOrderStore()
	rec := &recorder{}
	deps := Dependencies{
		UnitOfWork: store,
		Orders:     store,
		Quoter:     gateway,
		Publisher:  rec,
		Metrics:    m,
		Log:        logger.Nop(),
		Now:        func() time.Time { return t0 },
	}
	return &fixture{
		store:      store,
		engine:     engine,
		published:  rec,
		deps:       deps,
		create:     NewCreateOrderUseCase(deps),
		reassign:   NewReassignUseCase(deps),
		transition: NewTransitionUseCase(deps),
	}
}

func window(startMin, endMin int) (time.Time, time.Time) {
	return t0.Add(time.Duration(startMin) * time.Minute), t0.Add(time.Duration(endMin) * time.Minute)
}

func createInput(driverID string, startMin, endMin int) CreateInput {
	start, end := window(startMin, endMin)
	return CreateInput{Pickup: pickup, Dropoff: dropoff, Start: start, End: end, DriverID: driverID}
}
