package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

type Prometheus struct {
	orderCommitted   *prometheus.CounterVec
	bookingConflicts *prometheus.CounterVec
	useCaseTotal     *prometheus.CounterVec
	useCaseDuration  *prometheus.HistogramVec
	routingCalls     *prometheus.CounterVec
	routingDuration  *prometheus.HistogramVec
	locationUpdates  *prometheus.CounterVec
	historyFlushed   prometheus.Counter
	flushFailures    prometheus.Counter
	hubSubscribers   prometheus.Gauge
	hubDropped       *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
}

func NewPrometheusMetrics(reg prometheus.Registerer, serviceName string) *Prometheus {
	constLabels := prometheus.Labels{"service": serviceName}
	m := &Prometheus{
		orderCommitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "dispatch_order_committed_total",
			Help:        "Order mutations committed, by operation and resulting status.",
			ConstLabels: constLabels,
		}, []string{"operation", "status"}),
		bookingConflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "dispatch_booking_conflicts_total",
			Help:        "Commits rejected because the driver window overlapped an active order.",
			ConstLabels: constLabels,
		}, []string{"operation"}),
		useCaseTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "app_usecase_total",
			Help:        "Total number of Use Case executions.",
			ConstLabels: constLabels,
		}, []string{"use_case", "status"}),
		useCaseDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "app_usecase_duration_seconds",
			Help:        "Use Case execution latency.",
			Buckets:     []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			ConstLabels: constLabels,
		}, []string{"use_case", "status"}),
		routingCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "dispatch_routing_calls_total",
			Help:        "Routing gateway lookups by outcome.",
			ConstLabels: constLabels,
		}, []string{"outcome"}),
		routingDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "dispatch_routing_duration_seconds",
			Help:        "Routing gateway latency including retries.",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: constLabels,
		}, []string{"outcome"}),
		locationUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "dispatch_location_updates_total",
			Help:        "Driver location updates by outcome.",
			ConstLabels: constLabels,
		}, []string{"outcome"}),
		historyFlushed: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "dispatch_location_history_flushed_total",
			Help:        "Location history records written by the flush worker.",
			ConstLabels: constLabels,
		}),
		flushFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "dispatch_location_flush_failures_total",
			Help:        "Flush ticks that failed to reach the durable store.",
			ConstLabels: constLabels,
		}),
		hubSubscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "dispatch_hub_subscribers",
			Help:        "Open realtime subscriber connections.",
			ConstLabels: constLabels,
		}),
		hubDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "dispatch_hub_frames_dropped_total",
			Help:        "Frames not delivered to a subscriber, by reason.",
			ConstLabels: constLabels,
		}, []string{"reason"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "app_http_duration_seconds",
			Help:        "Duration of HTTP requests.",
			Buckets:     []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			ConstLabels: constLabels,
		}, []string{"method", "path", "status_code"}),
	}

	reg.MustRegister(
		m.orderCommitted,
		m.bookingConflicts,
		m.useCaseTotal,
		m.useCaseDuration,
		m.routingCalls,
		m.routingDuration,
		m.locationUpdates,
		m.historyFlushed,
		m.flushFailures,
		m.hubSubscribers,
		m.hubDropped,
		m.httpDuration,
	)
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return m
}

func (p *Prometheus) RecordOrderCommitted(operation, status string) {
	p.orderCommitted.WithLabelValues(operation, status).Inc()
}

func (p *Prometheus) RecordBookingConflict(operation string) {
	p.bookingConflicts.WithLabelValues(operation).Inc()
}

func (p *Prometheus) RecordUseCaseExecution(useCase string, success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "failure"
	}
	p.useCaseTotal.WithLabelValues(useCase, status).Inc()
	p.useCaseDuration.WithLabelValues(useCase, status).Observe(duration.Seconds())
}

func (p *Prometheus) RecordRoutingCall(outcome string, duration time.Duration) {
	p.routingCalls.WithLabelValues(outcome).Inc()
	p.routingDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

func (p *Prometheus) RecordLocationUpdate(outcome string) {
	p.locationUpdates.WithLabelValues(outcome).Inc()
}

func (p *Prometheus) AddLocationHistoryFlushed(records int) {
	p.historyFlushed.Add(float64(records))
}

func (p *Prometheus) RecordFlushFailure() {
	p.flushFailures.Inc()
}

func (p *Prometheus) SetHubSubscribers(n int) {
	p.hubSubscribers.Set(float64(n))
}

func (p *Prometheus) IncHubFramesDropped(reason string) {
	p.hubDropped.WithLabelValues(reason).Inc()
}

func (p *Prometheus) ObserveHTTPRequestDuration(method, path, code string, duration float64) {
	p.httpDuration.WithLabelValues(method, path, code).Observe(duration)
}
