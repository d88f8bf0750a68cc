package websocket

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

type enqueueResult int

const (
	enqueued enqueueResult = iota
	enqueueDroppedOldest
	enqueueOverflow
)

type subscriber struct {
	id     string
	conn   *websocket.Conn
	viewer Viewer
	out    chan []byte

	done      chan struct{}
	closeOnce sync.Once
	// Written once before done is closed.
	closeCode   int
	closeReason string
}

func newSubscriber(conn *websocket.Conn, viewer Viewer, queueSize int) *subscriber {
	return &subscriber{
		id:     newSubscriberID(),
		conn:   conn,
		viewer: viewer,
		out:    make(chan []byte, queueSize),
		done:   make(chan struct{}),
	}
}

// enqueue is only called with the hub lock held, so it is the sole producer.
func (s *subscriber) enqueue(data []byte, policy string) enqueueResult {
	select {
	case s.out <- data:
		return enqueued
	default:
	}
	if policy == OverflowDisconnect {
		return enqueueOverflow
	}
	select {
	case <-s.out:
	default:
	}
	select {
	case s.out <- data:
	default:
	}
	return enqueueDroppedOldest
}

func (s *subscriber) shutdown(code int, reason string) {
	s.closeOnce.Do(func() {
		s.closeCode, s.closeReason = code, reason
		close(s.done)
	})
}

// writePump is the only writer on conn apart from the initial rejection path.
func (s *subscriber) writePump(pingPeriod, writeWait time.Duration, release func()) {
	defer release()
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer s.conn.Close()

	for {
		select {
		case <-s.done:
			if s.closeCode != 0 {
				writeClose(s.conn, s.closeCode, s.closeReason, writeWait)
			}
			return
		case data := <-s.out:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.shutdown(0, "")
				return
			}
		case <-ticker.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				s.shutdown(0, "")
				return
			}
		}
	}
}

func writeClose(conn *websocket.Conn, code int, reason string, wait time.Duration) {
	_ = conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason),
		time.Now().Add(wait),
	)
}
