// Package mcperrors defines mcpd's error taxonomy. Each error type carries
// both an HTTP status (for the plain REST surface: /auth/token, /health,
// admin cache routes) and a JSON-RPC error code (for the MCP method table),
// so a single error value can be rendered correctly by either transport.
package mcperrors
