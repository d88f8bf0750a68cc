// Package app assembles the adapters shared by the api and worker binaries.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"github.com/DioGolang/FleetDispatch/configs"
	"github.com/DioGolang/FleetDispatch/internal/application/port/outbound"
	"github.com/DioGolang/FleetDispatch/internal/application/routing"
	"github.com/DioGolang/FleetDispatch/internal/domain/entity"
	"github.com/DioGolang/FleetDispatch/internal/infra/database"
	"github.com/DioGolang/FleetDispatch/internal/infra/event"
	"github.com/DioGolang/FleetDispatch/internal/infra/memory"
	routingclient "github.com/DioGolang/FleetDispatch/internal/infra/routing"
	"github.com/DioGolang/FleetDispatch/internal/infra/storage"
	"github.com/DioGolang/FleetDispatch/pkg/logger"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
)

type Infra struct {
	DB    *sql.DB
	Redis *redis.Client

	Orders     outbound.OrderRepository
	UnitOfWork outbound.UnitOfWork
	Locations  outbound.LocationStore
	History    outbound.LocationHistoryRepository
	Reroute    outbound.RerouteClaimer
	Dedup      event.IdempotencyStore

	closers []func() error
}

// OpenInfra connects to the configured backends and falls back to in-memory
// adapters for anything not configured.
func OpenInfra(ctx context.Context, cfg *configs.Conf, instanceID string, log logger.Logger) (*Infra, error) {
	in := &Infra{}

	switch cfg.StorageMode {
	case configs.StoragePostgres:
		db, err := sql.Open(cfg.DBDriver, cfg.PostgresDSN())
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		in.closers = append(in.closers, db.Close)
		if err := db.PingContext(ctx); err != nil {
			_ = in.Close()
			return nil, fmt.Errorf("ping postgres: %w", err)
		}
		if err := database.EnsureSchema(ctx, db); err != nil {
			_ = in.Close()
			return nil, fmt.Errorf("apply schema: %w", err)
		}
		in.DB = db
		in.Orders = database.NewOrderRepository(db)
		in.UnitOfWork = database.NewUnitOfWork(db, log)
		in.History = database.NewLocationHistoryRepository(db)
	default:
		store := memory.NewOrderStore()
		in.Orders = store
		in.UnitOfWork = store
		in.History = memory.NewLocationHistory()
	}

	if addr := cfg.RedisAddr(); addr != "" {
		client := redis.NewClient(&redis.Options{Addr: addr, Password: cfg.RedisPassword})
		in.closers = append(in.closers, client.Close)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = in.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		in.Redis = client
		in.Locations = database.NewRedisLocationRepository(client, cfg.LocationTTL, log)
		in.Reroute = storage.NewRedisClaimer(client, "fleet:reroute:", instanceID)
		in.Dedup = storage.NewRedisClaimer(client, "fleet:", instanceID)
	} else {
		in.Locations = memory.NewLocationStore()
		in.Reroute = memory.NewClaimer()
		in.Dedup = memory.NewClaimer()
	}

	log.Info(ctx, "storage ready",
		logger.String("orders", cfg.StorageMode),
		logger.Any("redis", in.Redis != nil),
	)
	return in, nil
}

func (in *Infra) Close() error {
	var errs []error
	for i := len(in.closers) - 1; i >= 0; i-- {
		errs = append(errs, in.closers[i]())
	}
	in.closers = nil
	return errors.Join(errs...)
}

func NewRouteEngine(cfg *configs.Conf) (outbound.RouteEngine, error) {
	switch cfg.RoutingProvider {
	case configs.RoutingGoogle:
		return routingclient.NewGoogleClient(cfg.GoogleMapsAPIKey)
	default:
		return routingclient.NewOSRMClient(cfg.RoutingURL, &http.Client{Timeout: cfg.RoutingRequestTimeout}), nil
	}
}

func GatewayConfig(cfg *configs.Conf) routing.Config {
	return routing.Config{
		Tariff: routing.Tariff{
			PerKm:       cfg.TariffPerKm,
			PerMinute:   cfg.TariffPerMinute,
			MinimumFare: cfg.TariffMinimum,
		},
		Region: entity.BoundingBox{
			MinLat: cfg.RegionMinLat,
			MinLon: cfg.RegionMinLon,
			MaxLat: cfg.RegionMaxLat,
			MaxLon: cfg.RegionMaxLon,
		},
		RequestTimeout:  cfg.RoutingRequestTimeout,
		Budget:          cfg.RoutingBudget,
		MaxRetries:      cfg.RoutingMaxRetries,
		Backoff:         cfg.RoutingBackoff,
		BreakerFailures: cfg.BreakerFailures,
		BreakerOpenFor:  cfg.BreakerOpenFor,
	}
}
