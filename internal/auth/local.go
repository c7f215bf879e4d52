package auth

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"mcpd/internal/mcperrors"
)

// localClaims is the claim set mcpd signs for locally issued tokens. Perm
// marks a non-expiring token, per spec.md §4.K's "rejecting tokens past exp
// unless they carry perm:true".
type localClaims struct {
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
	Perm     bool     `json:"perm,omitempty"`
	jwt.RegisteredClaims
}

// LocalVerifier verifies and mints HS256 tokens signed with a shared
// secret, per spec.md §4.K's "(b) locally signed token".
type LocalVerifier struct {
	Secret []byte
}

func NewLocalVerifier(secret string) *LocalVerifier {
	return &LocalVerifier{Secret: []byte(secret)}
}

func (v *LocalVerifier) Verify(_ context.Context, token string) (*Claims, error) {
	var claims localClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, mcperrors.Unauthenticated("unexpected signing method")
		}
		return v.Secret, nil
	}, jwt.WithoutClaimsValidation())
	if err != nil || !parsed.Valid {
		return nil, mcperrors.Unauthenticated("invalid local token")
	}

	if !claims.Perm {
		if claims.ExpiresAt == nil || claims.ExpiresAt.Before(time.Now()) {
			return nil, mcperrors.Unauthenticated("local token expired")
		}
	}

	return &Claims{Username: claims.Username, Roles: claims.Roles, Subject: claims.Subject}, nil
}

// Mint signs a new access token for username/roles, valid for ttl unless
// permanent is set.
func (v *LocalVerifier) Mint(username string, roles []string, ttl time.Duration, permanent bool) (string, error) {
	now := time.Now()
	claims := localClaims{
		Username: username,
		Roles:    roles,
		Perm:     permanent,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.Secret)
	if err != nil {
		return "", mcperrors.Wrap(mcperrors.KindInternal, err, "sign local token")
	}
	return signed, nil
}
