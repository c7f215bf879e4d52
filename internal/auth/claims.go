package auth

import "context"

// Claims is the verified identity attached to a request's context on
// successful authentication, per spec.md §4.K.
type Claims struct {
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
	Subject  string   `json:"subject,omitempty"`
}

type claimsContextKey struct{}

// WithClaims returns a context carrying claims for downstream handlers.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey{}, claims)
}

// ClaimsFromContext retrieves the claims attached by the auth middleware.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsContextKey{}).(*Claims)
	return c, ok
}
