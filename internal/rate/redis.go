package rate

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisWindowPrefix = "rw:"

// RedisWindow is the shared-counter backend for horizontally scaled
// deployments: INCR + conditional EXPIRE on the first hit, so the key's TTL
// marks the window boundary and Redis evicts the counter when the window
// elapses.
type RedisWindow struct {
	redis  redis.UniversalClient
	window time.Duration
}

// NewRedisWindow creates a [RedisWindow] over the given client.
func NewRedisWindow(client redis.UniversalClient, window time.Duration) *RedisWindow {
	if window <= 0 {
		window = time.Minute
	}
	return &RedisWindow{redis: client, window: window}
}

// Hit implements [Counter].
func (w *RedisWindow) Hit(ctx context.Context, principal string) (int, error) {
	key := redisWindowPrefix + principal

	count, err := w.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// First hit in the window carries the TTL; later hits ride the same key.
	if count == 1 {
		if err := w.redis.Expire(ctx, key, w.window).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return int(count), nil
}
