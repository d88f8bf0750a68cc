package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/DioGolang/FleetDispatch/pkg/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// MetricsWrapper observes request latency labelled by route pattern, never by
// raw path, so order and driver ids do not explode label cardinality.
// Upgraded websocket connections are skipped: their lifetime is not latency.
func MetricsWrapper(m metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Upgrade") != "" {
				next.ServeHTTP(w, r)
				return
			}
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			m.ObserveHTTPRequestDuration(r.Method, routePattern(r), statusLabel(ww.Status()), time.Since(start).Seconds())
		})
	}
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

// statusLabel reports 200 for handlers that wrote a body without WriteHeader.
func statusLabel(code int) string {
	if code == 0 {
		code = http.StatusOK
	}
	return strconv.Itoa(code)
}
