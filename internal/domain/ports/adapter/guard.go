package adapter

import (
	"context"
	"time"
)

// InFlightGuard serialises work on a key across processes (e.g. a gateway payment id).
type InFlightGuard interface {
	// TryLock returns a token when the key was free; domain.ErrDuplicateInFlight otherwise.
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}

// RateLimiter is a fixed-window counter.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
