// Package ratelimit implements mcpd's component M: a sliding-window
// per-source-IP request limiter, backed by Valkey with an in-process
// fallback, and the HTTP middleware enforcing spec.md §5's quotas.
package ratelimit
