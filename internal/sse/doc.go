// Package sse implements mcpd's component I: the SSE fanout and replay
// manager (bounded per-client queues, per-user subscription sets, broadcast
// / unicast / per-user multicast, a bounded replay history, and the
// per-connection writer loop with heartbeats), per spec.md §4.I.
package sse
