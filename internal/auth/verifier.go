package auth

import "context"

// Verifier authenticates a bearer token and returns the caller's claims.
// mcpd wires up to three implementations depending on auth_provider:
// StaticVerifier, LocalVerifier, and JWKSVerifier.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Claims, error)
}
