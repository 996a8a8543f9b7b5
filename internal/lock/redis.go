// Package lock provides a Redis-backed guard that admits one outstanding
// transition per booking across processes.
package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "salon:transition:"

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisGuard implements lifecycle.InFlightGuard with SET NX PX. The TTL
// bounds how long a crashed holder can block a booking.
type RedisGuard struct {
	client *redis.Client
	ttl    time.Duration

	mu     sync.Mutex
	tokens map[string]string
}

// NewRedisGuard creates a guard; ttl defaults to 30 seconds.
func NewRedisGuard(client *redis.Client, ttl time.Duration) *RedisGuard {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisGuard{client: client, ttl: ttl, tokens: make(map[string]string)}
}

func (g *RedisGuard) TryAcquire(ctx context.Context, bookingID string) (bool, error) {
	token := uuid.NewString()
	ok, err := g.client.SetNX(ctx, keyPrefix+bookingID, token, g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	if !ok {
		return false, nil
	}

	g.mu.Lock()
	g.tokens[bookingID] = token
	g.mu.Unlock()
	return true, nil
}

func (g *RedisGuard) Release(ctx context.Context, bookingID string) error {
	g.mu.Lock()
	token, ok := g.tokens[bookingID]
	delete(g.tokens, bookingID)
	g.mu.Unlock()
	if !ok {
		return nil
	}

	if err := releaseScript.Run(ctx, g.client, []string{keyPrefix + bookingID}, token).Err(); err != nil {
		return fmt.Errorf("redis release: %w", err)
	}
	return nil
}
