package handler

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/hellofresh/health-go/v5"
	healthRabbit "github.com/hellofresh/health-go/v5/checks/rabbitmq"
	"github.com/redis/go-redis/v9"
)

// HealthOption adds a dependency check. A nil or empty dependency adds nothing,
// so the in-memory mode reports only the component itself.
type HealthOption func(*[]health.Config)

func WithPostgres(db *sql.DB) HealthOption {
	return func(checks *[]health.Config) {
		if db != nil {
			*checks = append(*checks, health.Config{
				Name:    "postgres",
				Timeout: 5 * time.Second,
				Check:   db.PingContext,
			})
		}
	}
}

func WithRedis(rdb *redis.Client) HealthOption {
	return func(checks *[]health.Config) {
		if rdb != nil {
			*checks = append(*checks, health.Config{
				Name:    "redis",
				Timeout: 3 * time.Second,
				Check:   func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
			})
		}
	}
}

// WithRabbitMQ only degrades health: a broken relay affects what other
// instances see, not this instance's own API.
func WithRabbitMQ(dsn string) HealthOption {
	return func(checks *[]health.Config) {
		if dsn != "" {
			*checks = append(*checks, health.Config{
				Name:      "rabbitmq",
				Timeout:   3 * time.Second,
				SkipOnErr: true,
				Check:     healthRabbit.New(healthRabbit.Config{DSN: dsn}),
			})
		}
	}
}

func NewHealthHandler(serviceName, version string, opts ...HealthOption) (http.Handler, error) {
	var checks []health.Config
	for _, opt := range opts {
		opt(&checks)
	}
	h, err := health.New(
		health.WithComponent(health.Component{Name: serviceName, Version: version}),
		health.WithChecks(checks...),
	)
	if err != nil {
		return nil, err
	}
	return h.Handler(), nil
}
