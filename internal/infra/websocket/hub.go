package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/DioGolang/FleetDispatch/internal/domain/entity"
	"github.com/DioGolang/FleetDispatch/pkg/events"
	"github.com/DioGolang/FleetDispatch/pkg/logger"
	"github.com/DioGolang/FleetDispatch/pkg/metrics"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	OverflowDropOldest = "drop_oldest"
	OverflowDisconnect = "disconnect"

	frameHello = "HELLO"
)

type Config struct {
	// AllowedOrigins is matched case-insensitively; "*" admits anything.
	// Empty means same-host browsers plus clients that send no Origin.
	AllowedOrigins []string
	QueueSize      int
	Overflow       string
	PingPeriod     time.Duration
	WriteWait      time.Duration
	// TombstoneRetention is how long a finished entity's last version is
	// remembered so late snapshots of it are still discarded.
	TombstoneRetention time.Duration
}

func (c Config) withDefaults() Config {
	if c.QueueSize <= 0 {
		c.QueueSize = 64
	}
	if c.Overflow == "" {
		c.Overflow = OverflowDropOldest
	}
	if c.PingPeriod <= 0 {
		c.PingPeriod = 30 * time.Second
	}
	if c.WriteWait <= 0 {
		c.WriteWait = 10 * time.Second
	}
	if c.TombstoneRetention <= 0 {
		c.TombstoneRetention = time.Minute
	}
	return c
}

// Viewer is the already authenticated identity behind a connection.
type Viewer struct {
	Staff    bool
	DriverID string
}

func (v Viewer) sees(e events.Event) bool {
	if v.Staff {
		return true
	}
	if v.DriverID == "" {
		return false
	}
	for _, id := range e.Audience {
		if id == v.DriverID {
			return true
		}
	}
	return false
}

type frame struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type hello struct {
	SubscriberID string    `json:"subscriber_id"`
	Role         string    `json:"role"`
	DriverID     string    `json:"driver_id,omitempty"`
	ServerTime   time.Time `json:"server_time"`
}

type lastSeen struct {
	version int64
	// finishedAt is set once the entity emitted its final event.
	finishedAt time.Time
}

// Hub fans committed events out to websocket subscribers. It owns every
// subscriber goroutine; Stop releases all of them.
type Hub struct {
	cfg      Config
	log      logger.Logger
	m        metrics.Metrics
	upgrader websocket.Upgrader
	now      func() time.Time

	mu       sync.Mutex
	subs     map[*subscriber]struct{}
	versions map[string]lastSeen
	stopped  bool

	wg       sync.WaitGroup
	stop     chan struct{}
	stopOnce sync.Once
}

func NewHub(cfg Config, log logger.Logger, m metrics.Metrics) *Hub {
	return &Hub{
		cfg: cfg.withDefaults(),
		log: log,
		m:   m,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Admission runs after the upgrade so rejections get a close frame.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		now:      time.Now,
		subs:     make(map[*subscriber]struct{}),
		versions: make(map[string]lastSeen),
		stop:     make(chan struct{}),
	}
}

// Start runs the tombstone janitor until Stop.
func (h *Hub) Start() {
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		t := time.NewTicker(h.cfg.TombstoneRetention / 2)
		defer t.Stop()
		for {
			select {
			case <-h.stop:
				return
			case <-t.C:
				h.pruneTombstones()
			}
		}
	}()
}

// Stop closes every subscriber with 1001 and waits for their goroutines.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.stop)

		h.mu.Lock()
		h.stopped = true
		subs := make([]*subscriber, 0, len(h.subs))
		for s := range h.subs {
			subs = append(subs, s)
		}
		h.subs = make(map[*subscriber]struct{})
		h.mu.Unlock()

		for _, s := range subs {
			s.shutdown(websocket.CloseGoingAway, "server shutting down")
		}
		h.m.SetHubSubscribers(0)
	})
	h.wg.Wait()
}

// Publish never blocks on a subscriber. Version checks and enqueueing share
// one critical section so per-entity order survives concurrent publishers.
func (h *Hub) Publish(ctx context.Context, e events.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return
	}

	if last, ok := h.versions[e.Key]; ok && (e.Version <= last.version || !last.finishedAt.IsZero()) {
		h.m.IncHubFramesDropped("stale")
		h.log.Debug(ctx, "discarding out-of-order event",
			logger.String("key", e.Key),
			logger.Int64("version", e.Version),
			logger.Int64("last_version", last.version),
		)
		return
	}
	seen := lastSeen{version: e.Version}
	if e.Final {
		seen.finishedAt = h.now()
	}
	h.versions[e.Key] = seen

	data, err := json.Marshal(frame{Type: string(e.Type), Payload: e.Payload})
	if err != nil {
		h.log.Error(ctx, "failed to encode event frame", logger.String("key", e.Key), logger.WithError(err))
		return
	}

	for s := range h.subs {
		if !s.viewer.sees(e) {
			continue
		}
		switch s.enqueue(data, h.cfg.Overflow) {
		case enqueueDroppedOldest:
			h.m.IncHubFramesDropped("overflow")
			h.log.Warn(ctx, "subscriber queue full, dropped oldest frame",
				logger.String("subscriber_id", s.id))
		case enqueueOverflow:
			delete(h.subs, s)
			h.m.IncHubFramesDropped("slow_consumer")
			h.log.Warn(ctx, "disconnecting slow subscriber", logger.String("subscriber_id", s.id))
			s.shutdown(websocket.ClosePolicyViolation, "slow consumer")
		}
	}
	h.m.SetHubSubscribers(len(h.subs))
}

// ServeWS upgrades the request and admits it as viewer. The handler returns
// as soon as the subscriber goroutines are running.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, viewer Viewer) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn(r.Context(), "websocket upgrade failed", logger.WithError(err))
		return
	}
	conn.SetReadLimit(4096)

	if err := h.admit(r); err != nil {
		h.log.Warn(r.Context(), "websocket connection rejected", logger.WithError(err))
		writeClose(conn, websocket.ClosePolicyViolation, err.Reason, h.cfg.WriteWait)
		_ = conn.Close()
		return
	}

	s := newSubscriber(conn, viewer, h.cfg.QueueSize)
	greeting := hello{SubscriberID: s.id, Role: "driver", DriverID: viewer.DriverID, ServerTime: h.now().UTC()}
	if viewer.Staff {
		greeting.Role = "staff"
	}
	data, _ := json.Marshal(frame{Type: frameHello, Payload: greeting})
	s.out <- data

	if !h.register(s) {
		writeClose(conn, websocket.CloseGoingAway, "server shutting down", h.cfg.WriteWait)
		_ = conn.Close()
		return
	}
	h.log.Info(r.Context(), "subscriber connected",
		logger.String("subscriber_id", s.id),
		logger.String("role", greeting.Role),
		logger.String("driver_id", viewer.DriverID),
	)
	go s.writePump(h.cfg.PingPeriod, h.cfg.WriteWait, h.wg.Done)
	go h.readPump(s)
}

func (h *Hub) admit(r *http.Request) *entity.ConnectionRejectedError {
	origin := r.Header.Get("Origin")
	if originAllowed(h.cfg.AllowedOrigins, origin, r.Host) {
		return nil
	}
	reason := "origin not allowed"
	if origin == "" {
		reason = "missing origin"
	}
	return &entity.ConnectionRejectedError{Origin: origin, Reason: reason}
}

func (h *Hub) register(s *subscriber) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return false
	}
	h.subs[s] = struct{}{}
	h.wg.Add(2)
	h.m.SetHubSubscribers(len(h.subs))
	return true
}

func (h *Hub) remove(s *subscriber, code int, reason string) {
	h.mu.Lock()
	_, ok := h.subs[s]
	delete(h.subs, s)
	n := len(h.subs)
	h.mu.Unlock()
	if ok {
		h.m.SetHubSubscribers(n)
		h.log.Info(context.Background(), "subscriber disconnected", logger.String("subscriber_id", s.id))
	}
	s.shutdown(code, reason)
}

// readPump only services control frames; clients have nothing to say.
func (h *Hub) readPump(s *subscriber) {
	defer h.wg.Done()
	wait := 2 * h.cfg.PingPeriod
	_ = s.conn.SetReadDeadline(time.Now().Add(wait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(wait))
	})
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			h.remove(s, websocket.CloseNormalClosure, "")
			return
		}
	}
}

func (h *Hub) pruneTombstones() {
	cutoff := h.now().Add(-h.cfg.TombstoneRetention)
	h.mu.Lock()
	defer h.mu.Unlock()
	for key, seen := range h.versions {
		if !seen.finishedAt.IsZero() && seen.finishedAt.Before(cutoff) {
			delete(h.versions, key)
		}
	}
}

// Subscribers reports the number of open connections.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func newSubscriberID() string { return uuid.NewString() }
