package event

import (
	"context"
	"encoding/json"
	"time"

	"github.com/DioGolang/FleetDispatch/pkg/events"
	"github.com/DioGolang/FleetDispatch/pkg/logger"
	carrier "github.com/DioGolang/FleetDispatch/pkg/otel"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"
)

// channelPublisher is the part of *amqp.Channel the dispatcher needs.
type channelPublisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

type outgoing struct {
	ctx   context.Context
	event events.Event
}

// Dispatcher forwards committed events to a fanout exchange so every
// instance's hub sees them. Publish never blocks; a full buffer drops.
type Dispatcher struct {
	ch       channelPublisher
	exchange string
	origin   string
	log      logger.Logger
	queue    chan outgoing
}

func NewDispatcher(ch channelPublisher, exchange, origin string, buffer int, log logger.Logger) *Dispatcher {
	if buffer <= 0 {
		buffer = 256
	}
	return &Dispatcher{
		ch:       ch,
		exchange: exchange,
		origin:   origin,
		log:      log,
		queue:    make(chan outgoing, buffer),
	}
}

// DeclareExchange creates the durable fanout exchange both sides bind to.
func DeclareExchange(ch *amqp.Channel, exchange string) error {
	return ch.ExchangeDeclare(exchange, amqp.ExchangeFanout, true, false, false, false, nil)
}

func (d *Dispatcher) Publish(ctx context.Context, event events.Event) {
	select {
	case d.queue <- outgoing{ctx: context.WithoutCancel(ctx), event: event}:
	default:
		d.log.Warn(ctx, "event relay buffer full, dropping",
			logger.String("event_id", event.ID),
			logger.String("key", event.Key),
		)
	}
}

// Run drains the buffer until ctx is done. Call it once.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case out := <-d.queue:
			if err := d.send(ctx, out); err != nil {
				d.log.Error(out.ctx, "failed to relay event",
					logger.String("event_id", out.event.ID),
					logger.WithError(err),
				)
			}
		}
	}
}

func (d *Dispatcher) send(ctx context.Context, out outgoing) error {
	msg, err := d.encode(out.ctx, out.event)
	if err != nil {
		return err
	}
	pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return d.ch.PublishWithContext(pubCtx, d.exchange, "", false, false, msg)
}

func (d *Dispatcher) encode(ctx context.Context, event events.Event) (amqp.Publishing, error) {
	headers := make(amqp.Table)
	otel.GetTextMapPropagator().Inject(ctx, carrier.AMQPHeadersCarrier(headers))
	headers[headerEventID] = event.ID
	headers[headerOrigin] = d.origin
	headers[headerEntityKey] = event.Key
	headers[headerEntityVersion] = event.Version

	body, err := json.Marshal(event)
	if err != nil {
		return amqp.Publishing{}, err
	}
	return amqp.Publishing{
		Headers:     headers,
		ContentType: "application/json",
		MessageId:   event.ID,
		Timestamp:   event.OccurredAt,
		Body:        body,
	}, nil
}
