package otel

import (
	"go.opentelemetry.io/otel/propagation"

	amqp "github.com/rabbitmq/amqp091-go"
)

// AMQPHeadersCarrier lets the propagators read and write message headers.
type AMQPHeadersCarrier amqp.Table

var _ propagation.TextMapCarrier = AMQPHeadersCarrier(nil)

// Get accepts both string and byte-slice values; some clients send the latter.
func (c AMQPHeadersCarrier) Get(key string) string {
	switch v := c[key].(type) {
	case string:
		return v
	case []byte:
		return string(v)
	}
	return ""
}

func (c AMQPHeadersCarrier) Set(key string, value string) {
	c[key] = value
}

func (c AMQPHeadersCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	return keys
}
