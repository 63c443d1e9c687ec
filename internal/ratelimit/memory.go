// Package ratelimit provides fixed-window write limiters keyed by author.
// The in-memory backend serves single-instance deployments; the Redis
// backend shares counters across instances.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/sjohnston82/twitter-t3-clone/internal/domain"
)

// MemoryLimiter is a fixed-window limiter backed by a process-local map. The
// mutex makes each accept/reject decision atomic per key, so concurrent
// requests from the same author cannot both take the last slot.
type MemoryLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
	limit   int
	period  time.Duration
	now     func() time.Time
}

type window struct {
	start time.Time
	count int
}

// NewMemoryLimiter creates a limiter allowing limit attempts per period for
// each key.
func NewMemoryLimiter(limit int, period time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		windows: make(map[string]*window),
		limit:   limit,
		period:  period,
		now:     time.Now,
	}
}

// Check implements domain.WriteLimiter. Every call counts as one attempt in
// the key's current window, whether or not it is allowed.
func (l *MemoryLimiter) Check(_ context.Context, key string) (domain.Decision, error) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok || now.Sub(w.start) >= l.period {
		w = &window{start: now}
		l.windows[key] = w
	}
	w.count++

	d := domain.Decision{
		Limit:   l.limit,
		Allowed: w.count <= l.limit,
	}
	if d.Allowed {
		d.Remaining = l.limit - w.count
	} else {
		d.RetryAfter = w.start.Add(l.period).Sub(now)
	}
	return d, nil
}

// Cleanup drops windows that have already elapsed.
func (l *MemoryLimiter) Cleanup() {
	cutoff := l.now().Add(-l.period)

	l.mu.Lock()
	defer l.mu.Unlock()

	for k, w := range l.windows {
		if w.start.Before(cutoff) {
			delete(l.windows, k)
		}
	}
}

// StartJanitor removes expired windows periodically until ctx is cancelled.
func (l *MemoryLimiter) StartJanitor(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				l.Cleanup()
			}
		}
	}()
}
