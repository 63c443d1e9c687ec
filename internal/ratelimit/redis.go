package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sjohnston82/twitter-t3-clone/internal/domain"
)

const defaultPrefix = "ratelimit:posts"

// RedisLimiter is a fixed-window limiter backed by a shared Redis counter,
// one key per (author, window slot). INCR is atomic per key, which is the
// sole serialization point between concurrent requests for the same author,
// including requests handled by different server instances.
type RedisLimiter struct {
	rdb    *redis.Client
	prefix string
	limit  int
	period time.Duration
	now    func() time.Time
}

// RedisOption customizes a RedisLimiter.
type RedisOption func(*RedisLimiter)

// WithPrefix overrides the key prefix, useful when sharing a Redis instance
// with other applications.
func WithPrefix(prefix string) RedisOption {
	return func(l *RedisLimiter) { l.prefix = strings.Trim(prefix, ":") }
}

// NewRedisLimiter creates a limiter allowing limit attempts per period for
// each key, with counters stored in Redis.
func NewRedisLimiter(rdb *redis.Client, limit int, period time.Duration, opts ...RedisOption) *RedisLimiter {
	l := &RedisLimiter{
		rdb:    rdb,
		prefix: defaultPrefix,
		limit:  limit,
		period: period,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Check implements domain.WriteLimiter. Every call counts as one attempt in
// the key's current window, whether or not it is allowed.
func (l *RedisLimiter) Check(ctx context.Context, key string) (domain.Decision, error) {
	now := l.now()
	slot := now.UnixMilli() / l.period.Milliseconds()
	windowKey := fmt.Sprintf("%s:%s:%d", l.prefix, key, slot)

	pipe := l.rdb.Pipeline()
	incr := pipe.Incr(ctx, windowKey)
	pipe.Expire(ctx, windowKey, l.period)
	if _, err := pipe.Exec(ctx); err != nil {
		return domain.Decision{}, fmt.Errorf("rate limit incr %s: %w", windowKey, err)
	}

	count := int(incr.Val())
	d := domain.Decision{
		Limit:   l.limit,
		Allowed: count <= l.limit,
	}
	if d.Allowed {
		d.Remaining = l.limit - count
	} else {
		windowEnd := time.UnixMilli((slot + 1) * l.period.Milliseconds())
		d.RetryAfter = windowEnd.Sub(now)
	}
	return d, nil
}
