package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/DioGolang/FleetDispatch/configs"
	"github.com/DioGolang/FleetDispatch/internal/app"
	"github.com/DioGolang/FleetDispatch/internal/application/routing"
	"github.com/DioGolang/FleetDispatch/internal/application/usecase/order"
	"github.com/DioGolang/FleetDispatch/internal/infra/event"
	"github.com/DioGolang/FleetDispatch/pkg/events"
	"github.com/DioGolang/FleetDispatch/pkg/logger"
	"github.com/DioGolang/FleetDispatch/pkg/metrics"
	fleetotel "github.com/DioGolang/FleetDispatch/pkg/otel"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	amqp "github.com/rabbitmq/amqp091-go"
)

// The worker runs the periodic jobs against shared Postgres and Redis state
// so api instances can run with JOBS_IN_PROCESS=false.
func main() {
	cfg, err := configs.LoadConfig(".")
	if err != nil {
		panic(err)
	}
	if cfg.StorageMode != configs.StoragePostgres || cfg.RedisAddr() == "" {
		panic(errors.New("worker needs STORAGE_MODE=postgres and REDIS_HOST"))
	}
	log := logger.NewLogger(cfg.ServiceName+"-worker", cfg.Production)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := fleetotel.InitProvider(ctx, fleetotel.ProviderConfig{
		ServiceName:   cfg.ServiceName + "-worker",
		Version:       "1.0.0",
		CollectorAddr: cfg.OTLPEndpoint,
	})
	if err != nil {
		panic(err)
	}

	m := metrics.NewPrometheusMetrics(prometheus.NewRegistry(), cfg.ServiceName+"-worker")
	instanceID := uuid.NewString()

	infra, err := app.OpenInfra(ctx, cfg, instanceID, log)
	if err != nil {
		panic(err)
	}
	defer infra.Close()

	engine, err := app.NewRouteEngine(cfg)
	if err != nil {
		panic(err)
	}

	// Re-routed orders reach subscribers through the relay exchange.
	var publisher events.Publisher = events.Fanout{}
	if cfg.AMQPURL != "" {
		conn, err := amqp.Dial(cfg.AMQPURL)
		if err != nil {
			panic(err)
		}
		defer conn.Close()
		ch, err := conn.Channel()
		if err != nil {
			panic(err)
		}
		if err := event.DeclareExchange(ch, cfg.AMQPExchange); err != nil {
			panic(err)
		}
		dispatcher := event.NewDispatcher(ch, cfg.AMQPExchange, instanceID, 1024, log)
		go func() { _ = dispatcher.Run(ctx) }()
		publisher = dispatcher
	}

	deps := order.Dependencies{
		UnitOfWork: infra.UnitOfWork,
		Orders:     infra.Orders,
		Quoter:     routing.NewGateway(engine, app.GatewayConfig(cfg), log, m),
		Publisher:  publisher,
		Metrics:    m,
		Log:        log,
	}
	scheduler, err := app.NewScheduler(cfg, deps, infra, log, m)
	if err != nil {
		panic(err)
	}
	scheduler.Start()
	log.Info(ctx, "worker started", logger.String("instance_id", instanceID))

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer cancel()
	scheduler.Stop(shutdownCtx)
	_ = shutdownTracer(shutdownCtx)
}
