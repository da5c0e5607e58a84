package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter reports whether a request identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string, window time.Duration, max int) (allowed bool, remaining int, resetAt time.Time, err error)
}

// FixedWindowRedis counts requests per key in fixed time windows backed by
// Redis INCR + EXPIRE. Counters expire on their own, so abandoned keys cost
// nothing.
type FixedWindowRedis struct {
	R      *redis.Client
	Prefix string
	Now    func() time.Time
}

func (l FixedWindowRedis) now() time.Time {
	if l.Now != nil {
		return l.Now()
	}
	return time.Now()
}

// Allow increments the counter for the current window and compares it to max.
func (l FixedWindowRedis) Allow(ctx context.Context, key string, window time.Duration, max int) (bool, int, time.Time, error) {
	if l.R == nil {
		return false, 0, time.Time{}, errors.New("ratelimit: redis client not configured")
	}
	if window <= 0 || max <= 0 {
		return true, max, l.now(), nil
	}
	bucket := l.now().Truncate(window)
	resetAt := bucket.Add(window)
	counterKey := l.counterKey(key, bucket)

	count, err := l.R.Incr(ctx, counterKey).Result()
	if err != nil {
		return false, 0, resetAt, err
	}
	if count == 1 {
		// First hit in the window owns the expiry.
		if err := l.R.Expire(ctx, counterKey, window).Err(); err != nil {
			return false, 0, resetAt, err
		}
	}
	remaining := max - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return count <= int64(max), remaining, resetAt, nil
}

func (l FixedWindowRedis) counterKey(key string, bucket time.Time) string {
	if l.Prefix == "" {
		return fmt.Sprintf("ratelimit:%s:%d", key, bucket.Unix())
	}
	return fmt.Sprintf("%s:ratelimit:%s:%d", l.Prefix, key, bucket.Unix())
}
