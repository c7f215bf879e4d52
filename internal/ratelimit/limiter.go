package ratelimit

import (
	"context"
	"time"
)

// Limiter counts hits against a sliding window and reports whether the
// current hit is within limit, per spec.md §5.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
