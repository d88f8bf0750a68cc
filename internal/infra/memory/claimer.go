package memory

import (
	"context"
	"sync"
	"time"
)

// Claimer hands out expiring exclusive claims inside a single process.
type Claimer struct {
	mu     sync.Mutex
	claims map[string]time.Time
	now    func() time.Time
}

func NewClaimer() *Claimer {
	return &Claimer{claims: make(map[string]time.Time), now: time.Now}
}

func (c *Claimer) Claim(_ context.Context, id string, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if exp, ok := c.claims[id]; ok && now.Before(exp) {
		return false, nil
	}
	c.claims[id] = now.Add(ttl)
	return true, nil
}

func (c *Claimer) Release(_ context.Context, id string) error {
	c.mu.Lock()
	delete(c.claims, id)
	c.mu.Unlock()
	return nil
}
