package feedstream

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter is a fixed-window counter per key, shared by all instances.
type RateLimiter struct {
	rdb    *redis.Client
	max    int64
	window time.Duration
	prefix string
}

// NewRateLimiter allows max actions per key in each window.
func NewRateLimiter(rdb *redis.Client, max int, window time.Duration) *RateLimiter {
	return &RateLimiter{rdb: rdb, max: int64(max), window: window, prefix: "rate:"}
}

// DefaultReactionLimit allows 30 reaction toggles per user per minute.
func DefaultReactionLimit(rdb *redis.Client) *RateLimiter {
	return NewRateLimiter(rdb, 30, time.Minute)
}

// Allow records an action for key and reports whether it is within budget.
func (rl *RateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	key = rl.prefix + key

	pipe := rl.rdb.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, rl.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}
	return incr.Val() <= rl.max, nil
}
