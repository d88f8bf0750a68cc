package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/DioGolang/FleetDispatch/configs"
	"github.com/DioGolang/FleetDispatch/internal/app"
	"github.com/DioGolang/FleetDispatch/internal/application/routing"
	"github.com/DioGolang/FleetDispatch/internal/application/usecase/location"
	"github.com/DioGolang/FleetDispatch/internal/application/usecase/order"
	"github.com/DioGolang/FleetDispatch/internal/infra/event"
	mqttingest "github.com/DioGolang/FleetDispatch/internal/infra/mqtt"
	"github.com/DioGolang/FleetDispatch/internal/infra/web"
	"github.com/DioGolang/FleetDispatch/internal/infra/web/handler"
	"github.com/DioGolang/FleetDispatch/internal/infra/web/middleware"
	"github.com/DioGolang/FleetDispatch/internal/infra/websocket"
	"github.com/DioGolang/FleetDispatch/internal/jobs"
	"github.com/DioGolang/FleetDispatch/pkg/events"
	"github.com/DioGolang/FleetDispatch/pkg/logger"
	"github.com/DioGolang/FleetDispatch/pkg/metrics"
	fleetotel "github.com/DioGolang/FleetDispatch/pkg/otel"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	amqp "github.com/rabbitmq/amqp091-go"
	"golang.org/x/sync/errgroup"
)

const version = "1.0.0"

func main() {
	cfg, err := configs.LoadConfig(".")
	if err != nil {
		panic(err)
	}
	log := logger.NewLogger(cfg.ServiceName, cfg.Production)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := fleetotel.InitProvider(ctx, fleetotel.ProviderConfig{
		ServiceName:   cfg.ServiceName,
		Version:       version,
		Environment:   environment(cfg.Production),
		CollectorAddr: cfg.OTLPEndpoint,
	})
	if err != nil {
		panic(err)
	}

	reg := prometheus.NewRegistry()
	m := metrics.NewPrometheusMetrics(reg, cfg.ServiceName)
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
	gateway := routing.NewGateway(engine, app.GatewayConfig(cfg), log, m)

	hub := websocket.NewHub(websocket.Config{
		AllowedOrigins: cfg.AllowedOrigins(),
		QueueSize:      cfg.HubQueueSize,
		Overflow:       cfg.HubOverflowPolicy,
		PingPeriod:     cfg.HubPingPeriod,
		WriteWait:      cfg.HubWriteWait,
	}, log, m)
	hub.Start()

	g, gctx := errgroup.WithContext(ctx)

	publisher := events.Fanout{hub}
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
		publisher = append(publisher, dispatcher)

		consumer := event.NewConsumer(conn, cfg.AMQPExchange, log)
		relay := event.NewRelayPipeline(instanceID, hub, infra.Dedup, log, m)
		g.Go(func() error { return dispatcher.Run(gctx) })
		g.Go(func() error { return consumer.Start(gctx, relay) })
	}

	deps := order.Dependencies{
		UnitOfWork: infra.UnitOfWork,
		Orders:     infra.Orders,
		Quoter:     gateway,
		Publisher:  publisher,
		Metrics:    m,
		Log:        log,
	}
	cache := location.NewCache(infra.Locations, infra.Orders, nil, publisher,
		location.Config{StalenessThreshold: cfg.StalenessThreshold}, log, m)

	if cfg.MQTTBroker != "" {
		client, err := mqttingest.Connect(cfg.MQTTBroker, cfg.MQTTClientID+"-"+instanceID[:8], nil)
		if err != nil {
			panic(err)
		}
		ingest, err := mqttingest.NewLocationIngest(client, cfg.MQTTTopic, cache, log)
		if err != nil {
			panic(err)
		}
		if err := ingest.Start(); err != nil {
			panic(err)
		}
		defer ingest.Stop()
	}

	var scheduler *jobs.Manager
	if cfg.JobsInProcess {
		scheduler, err = app.NewScheduler(cfg, deps, infra, log, m)
		if err != nil {
			panic(err)
		}
		scheduler.Start()
	}

	health, err := handler.NewHealthHandler(cfg.ServiceName, version,
		handler.WithPostgres(infra.DB),
		handler.WithRedis(infra.Redis),
		handler.WithRabbitMQ(cfg.AMQPURL),
	)
	if err != nil {
		panic(err)
	}

	limiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		Burst:             cfg.RateLimitBurst,
	})
	g.Go(func() error {
		limiter.Run(gctx)
		return nil
	})

	router := web.NewRouter(web.RouterDeps{
		ServiceName: cfg.ServiceName,
		Orders: &handler.Order{
			Create:     &order.CreateOrderMetricsDecorator{Next: order.NewCreateOrderUseCase(deps), Metrics: m},
			Reassign:   &order.ReassignOrderMetricsDecorator{Next: order.NewReassignUseCase(deps), Metrics: m},
			Transition: &order.TransitionOrderMetricsDecorator{Next: order.NewTransitionUseCase(deps), Metrics: m},
			Get:        order.NewGetUseCase(deps),
			ListActive: order.NewListActiveUseCase(deps),
			Log:        log,
		},
		Drivers:  &handler.Driver{Locations: cache, Log: log},
		Realtime: &handler.Realtime{Hub: hub},
		Health:   health,
		Metrics:  promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		Limiter:  limiter,
		Recorder: m,
		Log:      log,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.WebServerPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	g.Go(func() error {
		log.Info(gctx, "http server listening", logger.String("addr", srv.Addr), logger.String("instance_id", instanceID))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info(context.Background(), "shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
		defer cancel()

		if scheduler != nil {
			scheduler.Stop(shutdownCtx)
		}
		// Hijacked websocket connections are not tracked by Shutdown.
		hub.Stop()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error(shutdownCtx, "http shutdown", logger.WithError(err))
		}
		if err := shutdownTracer(shutdownCtx); err != nil {
			log.Warn(shutdownCtx, "tracer shutdown", logger.WithError(err))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error(context.Background(), "service stopped with error", logger.WithError(err))
	}
}

func environment(production bool) string {
	if production {
		return "production"
	}
	return "development"
}
