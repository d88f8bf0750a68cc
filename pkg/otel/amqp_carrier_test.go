package otel

import (
	"context"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func TestAMQPHeadersCarrier_RoundTripsTraceContext(t *testing.T) {
	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	headers := amqp.Table{"x-event-id": "evt-1"}
	prop := propagation.TraceContext{}
	prop.Inject(ctx, AMQPHeadersCarrier(headers))

	assert.Contains(t, AMQPHeadersCarrier(headers).Keys(), "traceparent")
	assert.Equal(t, "", AMQPHeadersCarrier(amqp.Table{"n": 1}).Get("n"))

	got := trace.SpanContextFromContext(prop.Extract(context.Background(), AMQPHeadersCarrier(headers)))
	assert.Equal(t, traceID, got.TraceID())
	assert.Equal(t, spanID, got.SpanID())
}
