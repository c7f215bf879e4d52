package auth

import (
	"context"
	"crypto/subtle"

	"mcpd/internal/mcperrors"
)

// StaticVerifier accepts exactly one pre-shared admin token, per spec.md
// §4.K's "(a) static admin token equal-match". Comparison is constant-time
// since the whole point of a static token is resisting timing attacks that
// a plain == would permit.
type StaticVerifier struct {
	Token    string
	Username string
}

func (v StaticVerifier) Verify(_ context.Context, token string) (*Claims, error) {
	if v.Token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(v.Token)) != 1 {
		return nil, mcperrors.Unauthenticated("invalid static token")
	}
	return &Claims{Username: v.Username, Roles: []string{"admin"}, Subject: v.Username}, nil
}
