package ratelimit

import (
	"context"

	"go.uber.org/zap"
)

// Fallback composes a distributed limiter with a local one: requests go to
// the primary, and when it is absent or failing the local counter takes
// over so the endpoints stay guarded, just with a per-instance view.
type Fallback struct {
	primary  Limiter
	fallback Limiter
	log      *zap.Logger
}

func NewFallback(primary, fallback Limiter, log *zap.Logger) *Fallback {
	return &Fallback{primary: primary, fallback: fallback, log: log}
}

func (f *Fallback) Allow(ctx context.Context, namespace, identity string) (Result, error) {
	if f.primary != nil {
		res, err := f.primary.Allow(ctx, namespace, identity)
		if err == nil {
			return res, nil
		}
		f.log.Warn("Distributed rate limiter unavailable, falling back to local",
			zap.String("namespace", namespace),
			zap.Error(err))
	}
	return f.fallback.Allow(ctx, namespace, identity)
}
