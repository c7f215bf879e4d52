package ratelimit

import (
	"context"
	"strconv"
	"time"

	"github.com/valkey-io/valkey-go"

	"mcpd/internal/mcperrors"
)

// ValkeyLimiter is a sliding-window-log limiter: every accepted hit becomes
// a sorted-set member scored by its own timestamp; stale members are
// trimmed before counting, per spec.md §5's "sliding window" requirement.
type ValkeyLimiter struct {
	client valkey.Client
}

// NewValkeyLimiter connects to addr (host:port) as the rate-limit counter
// backend.
func NewValkeyLimiter(addr string) (*ValkeyLimiter, error) {
	client, err := valkey.NewClient(valkey.ClientOption{InitAddress: []string{addr}})
	if err != nil {
		return nil, mcperrors.Wrap(mcperrors.KindInternal, err, "connect to valkey rate limit backend")
	}
	return &ValkeyLimiter{client: client}, nil
}

func (l *ValkeyLimiter) Close() {
	l.client.Close()
}

// Stats reports the backend name, for /metrics. Per-key counters live in
// Valkey itself rather than process memory, so there is nothing further to
// report without an extra round trip on every metrics scrape.
func (l *ValkeyLimiter) Stats() map[string]any {
	return map[string]any{"backend": "valkey"}
}

func (l *ValkeyLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	now := time.Now()
	windowStart := now.Add(-window)
	member := strconv.FormatInt(now.UnixNano(), 10)

	trim := l.client.B().Zremrangebyscore().Key(key).Min("-inf").Max(strconv.FormatInt(windowStart.UnixNano(), 10)).Build()
	if err := l.client.Do(ctx, trim).Error(); err != nil {
		return false, mcperrors.Wrap(mcperrors.KindInternal, err, "trim rate limit window")
	}

	count, err := l.client.Do(ctx, l.client.B().Zcard().Key(key).Build()).ToInt64()
	if err != nil {
		return false, mcperrors.Wrap(mcperrors.KindInternal, err, "count rate limit window")
	}
	if count >= int64(limit) {
		return false, nil
	}

	add := l.client.B().Zadd().Key(key).ScoreMember().ScoreMember(float64(now.UnixNano()), member).Build()
	if err := l.client.Do(ctx, add).Error(); err != nil {
		return false, mcperrors.Wrap(mcperrors.KindInternal, err, "record rate limit hit")
	}

	expire := l.client.B().Expire().Key(key).Seconds(int64(window.Seconds()) + 1).Build()
	_ = l.client.Do(ctx, expire).Error()

	return true, nil
}
