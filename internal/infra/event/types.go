package event

import (
	"context"
	"time"
)

type MessageHandler func(ctx context.Context, msg []byte, headers map[string]interface{}) error

const (
	headerEventID       = "x-event-id"
	headerOrigin        = "x-origin"
	headerEntityKey     = "x-entity-key"
	headerEntityVersion = "x-entity-version"
)

// IdempotencyStore grants a key once until it expires or is released.
type IdempotencyStore interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}
