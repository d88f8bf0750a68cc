package mqtt

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/DioGolang/FleetDispatch/internal/application/usecase/location"
	"github.com/DioGolang/FleetDispatch/internal/domain/entity"
	"github.com/DioGolang/FleetDispatch/pkg/logger"
	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockToken struct{}

func (t *mockToken) Wait() bool                       { return true }
func (t *mockToken) WaitTimeout(_ time.Duration) bool { return true }
func (t *mockToken) Error() error                     { return nil }
func (t *mockToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type mockClient struct {
	subscribed   string
	handler      paho.MessageHandler
	disconnected bool
}

func (m *mockClient) IsConnected() bool                { return true }
func (m *mockClient) Disconnect(uint)                  { m.disconnected = true }
func (m *mockClient) Unsubscribe(...string) paho.Token { return &mockToken{} }
func (m *mockClient) Subscribe(topic string, _ byte, cb paho.MessageHandler) paho.Token {
	m.subscribed, m.handler = topic, cb
	return &mockToken{}
}

type message struct {
	topic   string
	payload []byte
}

func (m message) Duplicate() bool   { return false }
func (m message) Qos() byte         { return 1 }
func (m message) Retained() bool    { return false }
func (m message) Topic() string     { return m.topic }
func (m message) MessageID() uint16 { return 1 }
func (m message) Payload() []byte   { return m.payload }
func (m message) Ack()              {}

type updater struct {
	mu  sync.Mutex
	got []location.UpdateInput
}

func (u *updater) Update(_ context.Context, in location.UpdateInput) (entity.DriverLocation, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.got = append(u.got, in)
	return entity.NewDriverLocation(in.DriverID, in.Lat, in.Lon, in.Timestamp)
}

func TestLocationIngest_FeedsCache(t *testing.T) {
	client := &mockClient{}
	cache := &updater{}
	ingest, err := NewLocationIngest(client, "fleet/drivers/+/location", cache, logger.Nop())
	require.NoError(t, err)
	require.NoError(t, ingest.Start())
	assert.Equal(t, "fleet/drivers/+/location", client.subscribed)

	client.handler(nil, message{
		topic:   "fleet/drivers/d-7/location",
		payload: []byte(`{"lat":-23.56,"lon":-46.65,"ts":"2026-03-02T10:00:00Z"}`),
	})
	client.handler(nil, message{topic: "fleet/drivers/d-7/location", payload: []byte(`nope`)})

	require.Len(t, cache.got, 1)
	got := cache.got[0]
	assert.Equal(t, "d-7", got.DriverID)
	assert.Equal(t, -23.56, got.Lat)
	assert.True(t, got.Timestamp.Equal(time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)))

	ingest.Stop()
	assert.True(t, client.disconnected)
}

func TestNewLocationIngest_TopicNeedsOneWildcard(t *testing.T) {
	_, err := NewLocationIngest(&mockClient{}, "fleet/drivers/location", &updater{}, logger.Nop())
	assert.Error(t, err)
	_, err = NewLocationIngest(&mockClient{}, "fleet/+/+/location", &updater{}, logger.Nop())
	assert.Error(t, err)
}
