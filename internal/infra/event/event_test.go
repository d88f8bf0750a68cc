package event

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/DioGolang/FleetDispatch/internal/infra/memory"
	"github.com/DioGolang/FleetDispatch/pkg/events"
	"github.com/DioGolang/FleetDispatch/pkg/logger"
	"github.com/DioGolang/FleetDispatch/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChannel struct {
	mu   sync.Mutex
	msgs []amqp.Publishing
	err  error
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, _ string, _, _ bool, msg amqp.Publishing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msg)
	return nil
}

func (f *fakeChannel) published() []amqp.Publishing {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]amqp.Publishing(nil), f.msgs...)
}

type collector struct {
	mu  sync.Mutex
	got []events.Event
}

func (c *collector) Publish(_ context.Context, e events.Event) {
	c.mu.Lock()
	c.got = append(c.got, e)
	c.mu.Unlock()
}

func sampleEvent() events.Event {
	return events.Event{
		ID:         "evt-1",
		Type:       events.OrderUpdated,
		Key:        "order:o-1",
		Version:    3,
		OccurredAt: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
		Audience:   []string{"d-1"},
		Payload:    map[string]any{"id": "o-1", "status": "IN_PROGRESS"},
	}
}

func TestDispatcher_RelaysWithHeaders(t *testing.T) {
	ch := &fakeChannel{}
	d := NewDispatcher(ch, "fleet.events", "node-a", 8, logger.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = d.Run(ctx)
		close(done)
	}()

	d.Publish(context.Background(), sampleEvent())
	require.Eventually(t, func() bool { return len(ch.published()) == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	msg := ch.published()[0]
	assert.Equal(t, "evt-1", msg.Headers[headerEventID])
	assert.Equal(t, "node-a", msg.Headers[headerOrigin])
	assert.Equal(t, "order:o-1", msg.Headers[headerEntityKey])
	assert.Equal(t, int64(3), msg.Headers[headerEntityVersion])
	assert.Equal(t, "application/json", msg.ContentType)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(msg.Body, &decoded))
	assert.Equal(t, "order:o-1", decoded["key"])
	assert.EqualValues(t, 3, decoded["version"])
}

func TestDispatcher_PublishDoesNotBlockWhenFull(t *testing.T) {
	d := NewDispatcher(&fakeChannel{}, "fleet.events", "node-a", 1, logger.Nop())

	finished := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			d.Publish(context.Background(), sampleEvent())
		}
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full buffer")
	}
	assert.Len(t, d.queue, 1)
}

func TestRelayHandler(t *testing.T) {
	body, err := json.Marshal(sampleEvent())
	require.NoError(t, err)

	t.Run("republishes foreign events", func(t *testing.T) {
		local := &collector{}
		h := RelayHandler("node-b", local)
		require.NoError(t, h(context.Background(), body, map[string]interface{}{headerOrigin: "node-a"}))

		require.Len(t, local.got, 1)
		got := local.got[0]
		assert.Equal(t, "order:o-1", got.Key)
		assert.Equal(t, int64(3), got.Version)
		assert.Equal(t, []string{"d-1"}, got.Audience)
		assert.JSONEq(t, `{"id":"o-1","status":"IN_PROGRESS"}`, string(got.Payload.(json.RawMessage)))
	})

	t.Run("skips own events", func(t *testing.T) {
		local := &collector{}
		h := RelayHandler("node-a", local)
		require.NoError(t, h(context.Background(), body, map[string]interface{}{headerOrigin: "node-a"}))
		assert.Empty(t, local.got)
	})

	t.Run("rejects garbage", func(t *testing.T) {
		h := RelayHandler("node-b", &collector{})
		assert.Error(t, h(context.Background(), []byte("{"), nil))
		assert.Error(t, h(context.Background(), []byte(`{"id":"x"}`), nil))
	})
}

func TestWrapRelayDedup(t *testing.T) {
	entity := func(version int64, id string) map[string]interface{} {
		return map[string]interface{}{
			headerOrigin:        "node-a",
			headerEventID:       id,
			headerEntityKey:     "order:o-1",
			headerEntityVersion: version,
		}
	}

	t.Run("one delivery per entity version", func(t *testing.T) {
		calls := 0
		next := func(context.Context, []byte, map[string]interface{}) error { calls++; return nil }
		h := WrapRelayDedup(logger.Nop(), memory.NewClaimer(), "node-b", time.Minute, next)

		require.NoError(t, h(context.Background(), nil, entity(3, "evt-1")))
		require.NoError(t, h(context.Background(), nil, entity(3, "evt-2")), "a second event id for the same version is a duplicate")
		require.NoError(t, h(context.Background(), nil, entity(4, "evt-3")))
		assert.Equal(t, 2, calls)
	})

	t.Run("failed handler releases the claim", func(t *testing.T) {
		calls := 0
		fail := true
		next := func(context.Context, []byte, map[string]interface{}) error {
			calls++
			if fail {
				return errors.New("boom")
			}
			return nil
		}
		h := WrapRelayDedup(logger.Nop(), memory.NewClaimer(), "node-b", time.Minute, next)

		assert.Error(t, h(context.Background(), nil, entity(3, "evt-1")))
		fail = false
		require.NoError(t, h(context.Background(), nil, entity(3, "evt-1")))
		require.NoError(t, h(context.Background(), nil, entity(3, "evt-1")))
		assert.Equal(t, 2, calls)
	})

	t.Run("own messages never touch the store", func(t *testing.T) {
		store := &failingStore{}
		next := func(context.Context, []byte, map[string]interface{}) error {
			t.Fatal("own message reached the handler")
			return nil
		}
		h := WrapRelayDedup(logger.Nop(), store, "node-a", time.Minute, next)
		require.NoError(t, h(context.Background(), nil, entity(3, "evt-1")))
		assert.Zero(t, store.claims)
	})

	t.Run("unreachable store fails closed", func(t *testing.T) {
		next := func(context.Context, []byte, map[string]interface{}) error {
			t.Fatal("handler ran without a claim")
			return nil
		}
		h := WrapRelayDedup(logger.Nop(), &failingStore{}, "node-b", time.Minute, next)
		assert.Error(t, h(context.Background(), nil, entity(3, "evt-1")))
	})
}

type failingStore struct{ claims int }

func (s *failingStore) Claim(context.Context, string, time.Duration) (bool, error) {
	s.claims++
	return false, errors.New("redis: connection refused")
}

func (s *failingStore) Release(context.Context, string) error { return nil }

func TestNewRelayPipeline_DeduplicatesRedeliveries(t *testing.T) {
	local := &collector{}
	m := metrics.NewPrometheusMetrics(prometheus.NewRegistry(), "test")
	h := NewRelayPipeline("node-b", local, memory.NewClaimer(), logger.Nop(), m)

	body, err := json.Marshal(sampleEvent())
	require.NoError(t, err)
	headers := map[string]interface{}{
		headerEventID:       "evt-1",
		headerOrigin:        "node-a",
		headerEntityKey:     "order:o-1",
		headerEntityVersion: int64(3),
	}

	require.NoError(t, h(context.Background(), body, headers))
	require.NoError(t, h(context.Background(), body, headers))
	assert.Len(t, local.got, 1)
}
