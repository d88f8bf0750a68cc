package event

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/DioGolang/FleetDispatch/pkg/events"
	"github.com/DioGolang/FleetDispatch/pkg/logger"
	"github.com/DioGolang/FleetDispatch/pkg/metrics"
	carrier "github.com/DioGolang/FleetDispatch/pkg/otel"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Consumer binds a private queue to the fanout exchange and hands every
// delivery to a MessageHandler.
type Consumer struct {
	conn     *amqp.Connection
	exchange string
	log      logger.Logger
}

func NewConsumer(conn *amqp.Connection, exchange string, l logger.Logger) *Consumer {
	return &Consumer{conn: conn, exchange: exchange, log: l}
}

// Start blocks until ctx is done or the broker closes the delivery channel.
func (c *Consumer) Start(ctx context.Context, handler MessageHandler) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	queueName, err := c.setupTopology(ch)
	if err != nil {
		return fmt.Errorf("error when configuring topology: %w", err)
	}

	msgs, err := ch.ConsumeWithContext(ctx, queueName, "", false, true, false, false, nil)
	if err != nil {
		return err
	}

	c.log.Info(ctx, "waiting for relayed events", logger.String("queue", queueName))
	tracer := otel.GetTracerProvider().Tracer("event-relay")
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("delivery channel closed")
			}
			c.handle(ctx, tracer, queueName, d, handler)
		}
	}
}

func (c *Consumer) handle(parent context.Context, tracer trace.Tracer, queue string, d amqp.Delivery, handler MessageHandler) {
	ctx := otel.GetTextMapPropagator().Extract(parent, carrier.AMQPHeadersCarrier(d.Headers))
	ctx, span := tracer.Start(ctx, "RelayEvent", trace.WithAttributes(
		attribute.String("queue.name", queue),
		attribute.String("messaging.message_id", d.MessageId),
	))
	defer span.End()

	if err := handler(ctx, d.Body, d.Headers); err != nil {
		span.RecordError(err)
		c.log.Warn(ctx, "relayed event rejected", logger.WithError(err))
		_ = d.Nack(false, false)
		return
	}
	_ = d.Ack(false)
}

func (c *Consumer) setupTopology(ch *amqp.Channel) (string, error) {
	if err := DeclareExchange(ch, c.exchange); err != nil {
		return "", err
	}
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return "", err
	}
	if err := ch.QueueBind(q.Name, "", c.exchange, false, nil); err != nil {
		return "", err
	}
	return q.Name, nil
}

// RelayHandler decodes a relayed event and republishes it locally, skipping
// events this instance produced itself.
func RelayHandler(origin string, local events.Publisher) MessageHandler {
	return func(ctx context.Context, msg []byte, headers map[string]interface{}) error {
		if v, ok := headers[headerOrigin].(string); ok && v == origin {
			return nil
		}
		var wire struct {
			events.Event
			Payload json.RawMessage `json:"payload"`
		}
		if err := json.Unmarshal(msg, &wire); err != nil {
			return fmt.Errorf("decode relayed event: %w", err)
		}
		ev := wire.Event
		ev.Payload = wire.Payload
		if ev.Key == "" || ev.Type == "" {
			return fmt.Errorf("relayed event %q missing key or type", ev.ID)
		}
		local.Publish(ctx, ev)
		return nil
	}
}

// NewRelayPipeline composes the relay handler with dedup and metrics.
func NewRelayPipeline(origin string, local events.Publisher, store IdempotencyStore, log logger.Logger, m metrics.Metrics) MessageHandler {
	h := RelayHandler(origin, local)
	h = WrapRelayDedup(log, store, origin, 10*time.Minute, h)
	return WrapMetrics(m, "RelayEvent", 5*time.Second, h)
}
