// Package ratelimit implements fixed-window request limiting for the public
// read endpoints. The distributed implementation counts in Redis so all
// instances share one view; the local implementation is a per-process
// fallback that is best-effort under horizontal scaling.
package ratelimit

import (
	"context"
	"time"
)

// Result is the outcome of a single Allow call.
type Result struct {
	OK         bool
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

// Limiter is a fixed-window counter keyed by namespace:identity.
type Limiter interface {
	Allow(ctx context.Context, namespace, identity string) (Result, error)
}

// key builds the bucket key for a namespace and identity.
func key(namespace, identity string) string {
	return namespace + ":" + identity
}

// retryAfter converts the time until reset into a positive whole-second
// duration for the Retry-After header.
func retryAfter(resetAt time.Time, now time.Time) time.Duration {
	d := resetAt.Sub(now)
	if d <= 0 {
		return time.Second
	}
	// Round up so the client never retries before the window turns.
	secs := (d + time.Second - 1) / time.Second
	return secs * time.Second
}
