package routing

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/DioGolang/FleetDispatch/internal/application/port/outbound"
	"github.com/DioGolang/FleetDispatch/internal/domain/entity"
	"github.com/DioGolang/FleetDispatch/pkg/logger"
	"github.com/DioGolang/FleetDispatch/pkg/metrics"
	"github.com/sony/gobreaker"
)

const (
	outcomeOK           = "ok"
	outcomeNoRoute      = "no_route"
	outcomeUnavailable  = "unavailable"
	outcomeShortCircuit = "short_circuit"
)

// Tariff prices a trip. The result is rounded to cents and never below MinimumFare.
type Tariff struct {
	PerKm       float64
	PerMinute   float64
	MinimumFare float64
}

type Config struct {
	Tariff Tariff
	Region entity.BoundingBox
	// RequestTimeout bounds one engine call; Budget bounds the whole
	// operation including retries and backoff.
	RequestTimeout  time.Duration
	Budget          time.Duration
	MaxRetries      int
	Backoff         time.Duration
	BreakerFailures uint32
	BreakerOpenFor  time.Duration
}

// Quote is a computed route together with its price.
type Quote struct {
	Route entity.Route
	Price float64
}

type Gateway struct {
	engine  outbound.RouteEngine
	cfg     Config
	breaker *gobreaker.CircuitBreaker
	log     logger.Logger
	metrics metrics.Metrics
}

func NewGateway(engine outbound.RouteEngine, cfg Config, log logger.Logger, m metrics.Metrics) *Gateway {
	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 5
	}
	g := &Gateway{
		engine:  engine,
		cfg:     cfg,
		log:     log.With(logger.String("component", "routing_gateway")),
		metrics: m,
	}
	g.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "route-engine",
		Timeout: cfg.BreakerOpenFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		// A definitive "no path" answer means the engine is healthy.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, entity.ErrRouteNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			g.log.Warn(context.Background(), "routing circuit breaker changed state",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
		},
	})
	return g
}

// Quote routes pickup to dropoff and prices the result.
func (g *Gateway) Quote(ctx context.Context, pickup, dropoff entity.Coordinates) (Quote, error) {
	route, err := g.ComputeRoute(ctx, pickup, dropoff)
	if err != nil {
		return Quote{}, err
	}
	return Quote{Route: route, Price: g.ComputePrice(route.DistanceMeters, route.DurationSeconds)}, nil
}

func (g *Gateway) ComputeRoute(ctx context.Context, pickup, dropoff entity.Coordinates) (entity.Route, error) {
	if err := g.checkRegion("pickup", pickup); err != nil {
		return entity.Route{}, err
	}
	if err := g.checkRegion("dropoff", dropoff); err != nil {
		return entity.Route{}, err
	}
	if pickup.Equal(dropoff) {
		g.metrics.RecordRoutingCall(outcomeShortCircuit, 0)
		return entity.Route{}, nil
	}

	start := time.Now()
	if g.cfg.Budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.Budget)
		defer cancel()
	}

	var lastErr error
	attempts := 0
	for attempt := 0; attempt <= g.cfg.MaxRetries; attempt++ {
		attempts++
		route, err := g.call(ctx, pickup, dropoff)
		if err == nil {
			g.metrics.RecordRoutingCall(outcomeOK, time.Since(start))
			return route, nil
		}

		var noPath *entity.RouteNotFoundError
		if errors.As(err, &noPath) {
			g.metrics.RecordRoutingCall(outcomeNoRoute, time.Since(start))
			return entity.Route{}, noPath
		}
		lastErr = err

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			break
		}
		if attempt == g.cfg.MaxRetries || ctx.Err() != nil {
			break
		}

		wait := g.cfg.Backoff * time.Duration(math.Pow(2, float64(attempt)))
		g.log.Warn(ctx, "routing engine call failed, retrying",
			logger.Int("attempt", attempt+1),
			logger.Duration("wait", wait),
			logger.WithError(err),
		)
		if !sleep(ctx, wait) {
			break
		}
	}

	g.metrics.RecordRoutingCall(outcomeUnavailable, time.Since(start))
	return entity.Route{}, &entity.RoutingUnavailableError{Attempts: attempts, Err: lastErr}
}

func (g *Gateway) call(ctx context.Context, pickup, dropoff entity.Coordinates) (entity.Route, error) {
	attemptCtx := ctx
	if g.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, g.cfg.RequestTimeout)
		defer cancel()
	}
	res, err := g.breaker.Execute(func() (interface{}, error) {
		return g.engine.Route(attemptCtx, pickup, dropoff)
	})
	if err != nil {
		return entity.Route{}, err
	}
	return res.(entity.Route), nil
}

// ComputePrice applies the tariff to a distance in meters and a duration in seconds.
func (g *Gateway) ComputePrice(distanceMeters, durationSeconds float64) float64 {
	t := g.cfg.Tariff
	raw := distanceMeters/1000*t.PerKm + durationSeconds/60*t.PerMinute
	price := math.Round(raw*100) / 100
	if price < t.MinimumFare {
		return t.MinimumFare
	}
	return price
}

func (g *Gateway) checkRegion(field string, c entity.Coordinates) error {
	if err := c.Validate(field); err != nil {
		return err
	}
	if !g.cfg.Region.Contains(c) {
		return entity.NewValidationError(field, "outside the operating region")
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
