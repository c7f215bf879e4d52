// Package server is mcpd's component N: it holds the subsystems it serves
// (config cache and store, dispatch engine, SSE manager, rate limiter, auth
// verifiers and minter) as fields and exposes them over the HTTP surface of
// spec.md §6; the module loader, blob store and call recorder are reached
// only through the dispatch engine. It mirrors the teacher's AggregatorServer
// in internal/aggregator/server.go (ctx/cancelFunc/WaitGroup lifecycle,
// createStandardMux's health-then-catch-all layering).
package server
