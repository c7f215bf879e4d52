package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, _ := ClaimsFromContext(r.Context())
		if claims != nil {
			w.Header().Set("X-Claims-Username", claims.Username)
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestMiddlewareAllowsPublicPathsWithoutToken(t *testing.T) {
	handler := Middleware([]Verifier{StaticVerifier{Token: "secret", Username: "admin"}}, echoHandler())

	for _, path := range []string{"/auth/token", "/health", "/metrics"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, "path %s should be public", path)
	}
}

func TestMiddlewareRejectsMissingToken(t *testing.T) {
	handler := Middleware([]Verifier{StaticVerifier{Token: "secret", Username: "admin"}}, echoHandler())

	req := httptest.NewRequest(http.MethodGet, "/x/mcp", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))
}

func TestMiddlewareRejectsTokenNoVerifierAccepts(t *testing.T) {
	handler := Middleware([]Verifier{StaticVerifier{Token: "secret", Username: "admin"}}, echoHandler())

	req := httptest.NewRequest(http.MethodGet, "/x/mcp", nil)
	req.Header.Set("Authorization", "Bearer wrong-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMiddlewareAttachesClaimsOnSuccess(t *testing.T) {
	handler := Middleware([]Verifier{StaticVerifier{Token: "secret", Username: "admin"}}, echoHandler())

	req := httptest.NewRequest(http.MethodGet, "/x/mcp", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "admin", rec.Header().Get("X-Claims-Username"))
}

func TestMiddlewareTriesVerifiersInOrder(t *testing.T) {
	local := NewLocalVerifier("local-secret")
	token, err := local.Mint("alice", []string{"user"}, 0, true)
	require.NoError(t, err)

	handler := Middleware([]Verifier{
		StaticVerifier{Token: "secret", Username: "admin"},
		local,
	}, echoHandler())

	req := httptest.NewRequest(http.MethodGet, "/x/mcp", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice", rec.Header().Get("X-Claims-Username"))
}
