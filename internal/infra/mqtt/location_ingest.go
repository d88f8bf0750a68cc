package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/DioGolang/FleetDispatch/internal/application/usecase/location"
	"github.com/DioGolang/FleetDispatch/internal/domain/entity"
	"github.com/DioGolang/FleetDispatch/pkg/logger"
	paho "github.com/eclipse/paho.mqtt.golang"
)

type LocationUpdater interface {
	Update(ctx context.Context, in location.UpdateInput) (entity.DriverLocation, error)
}

// LocationIngest feeds device position reports published on MQTT into the
// location cache. The topic filter must hold exactly one "+" for the driver id.
type LocationIngest struct {
	client  Client
	topic   string
	idLevel int
	cache   LocationUpdater
	log     logger.Logger
	timeout time.Duration
}

func NewLocationIngest(client Client, topic string, cache LocationUpdater, log logger.Logger) (*LocationIngest, error) {
	level := -1
	for i, part := range strings.Split(topic, "/") {
		if part == "+" {
			if level >= 0 {
				return nil, fmt.Errorf("topic %q: more than one wildcard", topic)
			}
			level = i
		}
	}
	if level < 0 {
		return nil, fmt.Errorf("topic %q: missing + wildcard for the driver id", topic)
	}
	return &LocationIngest{
		client:  client,
		topic:   topic,
		idLevel: level,
		cache:   cache,
		log:     log.With(logger.String("component", "mqtt_ingest")),
		timeout: 3 * time.Second,
	}, nil
}

func (l *LocationIngest) Start() error {
	token := l.client.Subscribe(l.topic, 1, l.handle)
	token.Wait()
	return token.Error()
}

func (l *LocationIngest) Stop() {
	if l.client.IsConnected() {
		l.client.Unsubscribe(l.topic).WaitTimeout(time.Second)
		l.client.Disconnect(250)
	}
}

func (l *LocationIngest) handle(_ paho.Client, msg paho.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	defer cancel()

	driverID, ok := l.driverID(msg.Topic())
	if !ok {
		l.log.Warn(ctx, "unexpected topic", logger.String("topic", msg.Topic()))
		return
	}

	var in location.UpdateInput
	if err := json.Unmarshal(msg.Payload(), &in); err != nil {
		l.log.Warn(ctx, "invalid location payload",
			logger.String("driver_id", driverID),
			logger.WithError(err),
		)
		return
	}
	in.DriverID = driverID

	if _, err := l.cache.Update(ctx, in); err != nil {
		if location.IsStale(err) {
			return
		}
		var verr *entity.ValidationError
		if errors.As(err, &verr) {
			l.log.Warn(ctx, "rejected location report", logger.String("driver_id", driverID), logger.WithError(err))
			return
		}
		l.log.Error(ctx, "failed to apply location report", logger.String("driver_id", driverID), logger.WithError(err))
	}
}

func (l *LocationIngest) driverID(topic string) (string, bool) {
	parts := strings.Split(topic, "/")
	if l.idLevel >= len(parts) || parts[l.idLevel] == "" {
		return "", false
	}
	return parts[l.idLevel], true
}
