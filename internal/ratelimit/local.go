package ratelimit

import (
	"context"
	"sync"
	"time"
)

type bucket struct {
	count   int
	resetAt time.Time
}

// Local is an in-process fixed-window limiter. Buckets reset in place when
// their window expires instead of being deleted. Each process instance has
// its own view, which is an accepted weakening when used as a fallback.
type Local struct {
	limit  int
	window time.Duration

	mu      sync.Mutex
	buckets map[string]*bucket

	now func() time.Time
}

func NewLocal(limit int, window time.Duration) *Local {
	return &Local{
		limit:   limit,
		window:  window,
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

func (l *Local) Allow(_ context.Context, namespace, identity string) (Result, error) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	k := key(namespace, identity)
	b, ok := l.buckets[k]
	if !ok || !now.Before(b.resetAt) {
		b = &bucket{count: 1, resetAt: now.Add(l.window)}
		l.buckets[k] = b
		return Result{OK: true, Remaining: l.limit - 1, ResetAt: b.resetAt}, nil
	}

	if b.count >= l.limit {
		return Result{
			OK:         false,
			Remaining:  0,
			ResetAt:    b.resetAt,
			RetryAfter: retryAfter(b.resetAt, now),
		}, nil
	}

	b.count++
	return Result{OK: true, Remaining: l.limit - b.count, ResetAt: b.resetAt}, nil
}
