package database

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/DioGolang/FleetDispatch/internal/application/port/outbound"
	"github.com/DioGolang/FleetDispatch/internal/domain/entity"
	"github.com/DioGolang/FleetDispatch/pkg/logger"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

var t0 = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

type PostgresIntegrationSuite struct {
	suite.Suite
	container *postgres.PostgresContainer
	db        *sql.DB
	uow       *UnitOfWorkImpl
	orders    *OrderRepositoryImpl
}

func TestPostgresIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test needs docker")
	}
	suite.Run(t, new(PostgresIntegrationSuite))
}

func (s *PostgresIntegrationSuite) SetupSuite() {
	ctx := context.Background()
	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("fleet"),
		postgres.WithUsername("fleet"),
		postgres.WithPassword("fleet"),
		testcontainers.WithWaitStrategy(wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(90*time.Second)),
	)
	if err != nil {
		s.T().Skipf("docker unavailable: %v", err)
	}
	s.container = container

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	s.Require().NoError(err)
	s.db, err = sql.Open("postgres", dsn)
	s.Require().NoError(err)
	s.Require().NoError(EnsureSchema(ctx, s.db))
	s.Require().NoError(EnsureSchema(ctx, s.db), "schema must be idempotent")

	s.uow = NewUnitOfWork(s.db, logger.Nop())
	s.orders = NewOrderRepository(s.db)
}

func (s *PostgresIntegrationSuite) SetupTest() {
	_, err := s.db.Exec("TRUNCATE TABLE orders, location_history")
	s.Require().NoError(err)
}

func (s *PostgresIntegrationSuite) TearDownSuite() {
	if s.db != nil {
		_ = s.db.Close()
	}
	if s.container != nil {
		s.Require().NoError(s.container.Terminate(context.Background()))
	}
}

func (s *PostgresIntegrationSuite) newOrder(id, driverID string, startMin, endMin int) *entity.Order {
	w, err := entity.NewTimeWindow(t0.Add(time.Duration(startMin)*time.Minute), t0.Add(time.Duration(endMin)*time.Minute))
	s.Require().NoError(err)
	o, err := entity.NewOrder(id, entity.OrderDraft{
		Pickup:  entity.Coordinates{Lat: -23.5614, Lon: -46.6559},
		Dropoff: entity.Coordinates{Lat: -23.5874, Lon: -46.6576},
		Window:  w,
	}, t0)
	s.Require().NoError(err)
	o.ApplyRoute(entity.Route{DistanceMeters: 4200, DurationSeconds: 600, Geometry: "poly"}, 18.4, t0)
	if driverID != "" {
		s.Require().NoError(o.AssignTo(driverID, w, t0))
	}
	return o
}

func (s *PostgresIntegrationSuite) book(o *entity.Order) error {
	ctx := context.Background()
	return s.uow.Do(ctx, []string{o.DriverID()}, func(p outbound.RepositoryProvider) error {
		blocking, err := p.Order().FindOverlapping(ctx, o.DriverID(), o.Window(), o.ID())
		if err != nil {
			return err
		}
		if blocking != nil {
			return &entity.TimeConflictError{DriverID: o.DriverID(), BlockingOrderID: blocking.ID(), BlockingWindow: blocking.Window()}
		}
		return p.Order().Insert(ctx, o)
	})
}

func (s *PostgresIntegrationSuite) TestInsertAndReadBack() {
	ctx := context.Background()
	o := s.newOrder("o-1", "driver-1", 0, 30)
	s.Require().NoError(s.book(o))
	s.Equal(int64(1), o.Version())

	got, err := s.orders.FindByID(ctx, "o-1")
	s.Require().NoError(err)
	s.Equal(o.Snapshot().TimeStart, got.Snapshot().TimeStart)
	s.Equal(entity.StatusAssigned, got.Status())
	s.Require().NotNil(got.Price())
	s.InDelta(18.4, *got.Price(), 1e-9)
	s.Equal("poly", got.Route().Geometry)
}

func (s *PostgresIntegrationSuite) TestConcurrentBookingsExactlyOneWins() {
	const n = 16
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.book(s.newOrder("c-"+string(rune('a'+i)), "driver-1", i, 60+i))
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		s.ErrorIs(err, entity.ErrTimeConflict)
	}
	s.Equal(1, wins)
}

func (s *PostgresIntegrationSuite) TestExclusionConstraintIsTheBackstop() {
	ctx := context.Background()
	s.Require().NoError(s.orders.Insert(ctx, s.newOrder("o-1", "driver-1", 0, 30)))

	err := s.orders.Insert(ctx, s.newOrder("o-2", "driver-1", 10, 40))

	s.ErrorIs(err, entity.ErrTimeConflict)
}

func (s *PostgresIntegrationSuite) TestTouchingWindowsAreAllowed() {
	s.Require().NoError(s.book(s.newOrder("o-1", "driver-1", 0, 30)))
	s.NoError(s.book(s.newOrder("o-2", "driver-1", 30, 60)))
}

func (s *PostgresIntegrationSuite) TestUpdateChecksVersion() {
	ctx := context.Background()
	s.Require().NoError(s.orders.Insert(ctx, s.newOrder("o-1", "", 0, 30)))

	a, err := s.orders.FindByID(ctx, "o-1")
	s.Require().NoError(err)
	b, err := s.orders.FindByID(ctx, "o-1")
	s.Require().NoError(err)

	s.Require().NoError(a.Cancel("weather", t0))
	s.Require().NoError(s.orders.Update(ctx, a))
	s.Equal(int64(2), a.Version())

	s.Require().NoError(b.Cancel("duplicate", t0))
	s.ErrorIs(s.orders.Update(ctx, b), entity.ErrConcurrentModification)

	_, err = s.orders.FindByID(ctx, "missing")
	s.ErrorIs(err, entity.ErrOrderNotFound)
}

func (s *PostgresIntegrationSuite) TestQueries() {
	ctx := context.Background()
	busy := s.newOrder("o-1", "driver-1", 0, 30)
	s.Require().NoError(s.orders.Insert(ctx, busy))
	pending := s.newOrder("o-2", "", 0, 30)
	pending.MarkRoutePending(t0)
	s.Require().NoError(s.orders.Insert(ctx, pending))

	active, err := s.orders.ListActive(ctx)
	s.Require().NoError(err)
	s.Len(active, 2)

	routePending, err := s.orders.ListRoutePending(ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(routePending, 1)
	s.Equal("o-2", routePending[0].ID())

	hasBooking, err := s.orders.HasActiveBookingAt(ctx, "driver-1", t0.Add(5*time.Minute))
	s.Require().NoError(err)
	s.True(hasBooking)
	hasBooking, err = s.orders.HasActiveBookingAt(ctx, "driver-1", t0.Add(30*time.Minute))
	s.Require().NoError(err)
	s.False(hasBooking)
}

func (s *PostgresIntegrationSuite) TestLocationHistoryCopy() {
	ctx := context.Background()
	repo := NewLocationHistoryRepository(s.db)
	records := []entity.LocationHistoryRecord{
		{DriverID: "driver-1", Lat: -23.5, Lon: -46.6, RecordedAt: t0},
		{DriverID: "driver-1", Lat: -23.6, Lon: -46.7, RecordedAt: t0.Add(time.Minute)},
		{DriverID: "driver-2", Lat: -23.7, Lon: -46.8, RecordedAt: t0},
	}

	s.Require().NoError(repo.Append(ctx, records))

	n, err := repo.CountForDriver(ctx, "driver-1")
	s.Require().NoError(err)
	s.Equal(2, n)
}
