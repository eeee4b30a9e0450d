package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrRedisUnavailable wraps any transport failure from the counter store.
	ErrRedisUnavailable = errors.New("rate: redis unavailable")
)

// Limiter enforces fixed-window counters keyed by (operation prefix,
// identifier) pairs. Distinct prefixes keep counters independent.
type Limiter struct {
	redis redis.UniversalClient
}

// New creates a [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient) *Limiter {
	return &Limiter{redis: redisClient}
}

// Allow increments the window counter and reports whether the caller is
// within budget. The TTL is attached only when the increment creates the key;
// later increments never extend the window. On store failure Allow fails
// open: the request is reported allowed and the error is returned for
// logging and metrics.
func (l *Limiter) Allow(ctx context.Context, prefix, identifier string, limit int, window time.Duration) (bool, error) {
	if limit <= 0 || window <= 0 || identifier == "" {
		return true, nil
	}

	key := prefix + ":" + identifier

	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return true, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// NX: set only when no TTL exists. Covers both the create path and a
	// counter orphaned by a crash between INCR and EXPIRE.
	if err := l.redis.ExpireNX(ctx, key, window).Err(); err != nil {
		return true, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return count <= int64(limit), nil
}

// Reset clears the counter for the pair, reopening the window immediately.
// Used after successful authentication so earlier failures stop counting.
func (l *Limiter) Reset(ctx context.Context, prefix, identifier string) error {
	if identifier == "" {
		return nil
	}
	if err := l.redis.Del(ctx, prefix+":"+identifier).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
