// Package auth implements mcpd's component K: Bearer verification behind a
// single Verifier interface (static admin token, local HS256, remote JWKS),
// the request-context claims attachment, and the /auth/token mint endpoint,
// per spec.md §4.K.
package auth
