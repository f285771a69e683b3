package ratelimit

import (
	"context"
	"time"
)

// windowSeconds is the fixed-window size for login throttling.
const windowSeconds = 60

// Result describes the outcome of a rate limit check.
type Result struct {
	Allowed   bool
	Remaining int
	Reset     time.Time
}

// Limiter provides rate limit checks.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, now time.Time) (Result, error)
	Reset(ctx context.Context, key string, now time.Time) error
}
