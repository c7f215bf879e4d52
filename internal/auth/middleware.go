package auth

import (
	"net/http"
	"strings"

	"mcpd/pkg/logging"
)

// publicPrefixes lists the path prefixes spec.md §4.K exempts from Bearer
// authentication: /auth/* (the mint endpoint itself), /health, /metrics.
var publicPrefixes = []string{"/auth/", "/health", "/metrics"}

func isPublic(path string) bool {
	for _, p := range publicPrefixes {
		if path == strings.TrimSuffix(p, "/") || strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// Middleware enforces Bearer authentication on every request not covered by
// isPublic. Verifiers are tried in order; the first one to succeed attaches
// its Claims to the request context. A missing token, or a token every
// verifier rejects, gets a 401 with WWW-Authenticate: Bearer, per spec.md
// §4.K.
func Middleware(verifiers []Verifier, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isPublic(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok {
			unauthorized(w)
			return
		}

		var claims *Claims
		var err error
		for _, v := range verifiers {
			claims, err = v.Verify(r.Context(), token)
			if err == nil {
				break
			}
		}
		if claims == nil {
			reason := "no verifier configured"
			if err != nil {
				reason = err.Error()
			}
			logging.Warn("Auth", "rejected request to %s: %s", r.URL.Path, reason)
			logging.Audit(logging.AuditEvent{
				Action:  "auth_verify",
				Outcome: "failure",
				Target:  r.URL.Path,
				Error:   reason,
			})
			unauthorized(w)
			return
		}

		logging.Audit(logging.AuditEvent{
			Action:  "auth_verify",
			Outcome: "success",
			UserID:  claims.Username,
			Target:  r.URL.Path,
		})
		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}

func bearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	if token == "" {
		return "", false
	}
	return token, true
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.WriteHeader(http.StatusUnauthorized)
}
