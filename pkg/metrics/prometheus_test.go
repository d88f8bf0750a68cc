package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestPrometheus_RecordsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPrometheusMetrics(reg, "test")

	m.RecordOrderCommitted("create", "ASSIGNED")
	m.RecordOrderCommitted("create", "ASSIGNED")
	m.RecordBookingConflict("reassign")
	m.RecordLocationUpdate("stale")
	m.AddLocationHistoryFlushed(3)
	m.IncHubFramesDropped("queue_full")
	m.SetHubSubscribers(4)
	m.RecordUseCaseExecution("CreateOrder", false, 10*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.orderCommitted.WithLabelValues("create", "ASSIGNED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.bookingConflicts.WithLabelValues("reassign")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.locationUpdates.WithLabelValues("stale")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.historyFlushed))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.hubDropped.WithLabelValues("queue_full")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.hubSubscribers))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.useCaseTotal.WithLabelValues("CreateOrder", "failure")))
}
