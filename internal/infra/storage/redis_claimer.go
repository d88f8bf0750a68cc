package storage

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// releaseIfOwner deletes the claim only when this instance still holds it.
var releaseIfOwner = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`)

// RedisClaimer hands out short-lived exclusive claims across instances with SETNX.
type RedisClaimer struct {
	client *redis.Client
	prefix string
	owner  string
}

func NewRedisClaimer(c *redis.Client, prefix, owner string) *RedisClaimer {
	return &RedisClaimer{client: c, prefix: prefix, owner: owner}
}

func (r *RedisClaimer) Claim(ctx context.Context, id string, ttl time.Duration) (bool, error) {
	return r.client.SetNX(ctx, r.prefix+id, r.owner, ttl).Result()
}

func (r *RedisClaimer) Release(ctx context.Context, id string) error {
	return releaseIfOwner.Run(ctx, r.client, []string{r.prefix + id}, r.owner).Err()
}
