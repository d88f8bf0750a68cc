package web

import (
	"net/http"

	"github.com/DioGolang/FleetDispatch/internal/infra/web/handler"
	"github.com/DioGolang/FleetDispatch/internal/infra/web/middleware"
	"github.com/DioGolang/FleetDispatch/pkg/logger"
	"github.com/DioGolang/FleetDispatch/pkg/metrics"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/riandyrn/otelchi"
)

type RouterDeps struct {
	ServiceName string
	Orders      *handler.Order
	Drivers     *handler.Driver
	Realtime    *handler.Realtime
	Health      http.Handler
	// Metrics serves the Prometheus scrape endpoint.
	Metrics  http.Handler
	Limiter  *middleware.ClientLimiter
	Recorder metrics.Metrics
	Log      logger.Logger
}

func NewRouter(d RouterDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(otelchi.Middleware(d.ServiceName, otelchi.WithChiRoutes(r)))
	r.Use(middleware.RequestLogger(d.Log))
	r.Use(middleware.MetricsWrapper(d.Recorder))

	if d.Health != nil {
		r.Handle("/healthz", d.Health)
	}
	if d.Metrics != nil {
		r.Handle("/metrics", d.Metrics)
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.Identity)
		if d.Realtime != nil {
			r.Get("/ws", d.Realtime.Subscribe)
		}
		r.Route("/api/v1", func(r chi.Router) {
			if d.Limiter != nil {
				r.Use(d.Limiter.Handler(d.Log))
			}
			r.Route("/orders", d.Orders.Routes)
			r.Route("/drivers", d.Drivers.Routes)
		})
	})
	return r
}
