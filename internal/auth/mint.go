package auth

import (
	"encoding/json"
	"net/http"
	"time"

	"mcpd/internal/mcperrors"
	"mcpd/pkg/logging"
)

// PasswordVerifier checks a username/password pair against whatever backs
// local auth (admin_username/admin_password, or local_user_file) and
// reports the roles to mint into the token on success.
type PasswordVerifier interface {
	VerifyPassword(username, password string) (roles []string, ok bool)
}

// Minter issues access tokens for POST /auth/token, per spec.md §4.K and
// §6's request/response shape.
type Minter struct {
	passwords PasswordVerifier
	local     *LocalVerifier
	static    *StaticVerifier
	tokenTTL  time.Duration
}

func NewMinter(passwords PasswordVerifier, local *LocalVerifier, static *StaticVerifier, tokenTTL time.Duration) *Minter {
	return &Minter{passwords: passwords, local: local, static: static, tokenTTL: tokenTTL}
}

// Mint verifies username/password and returns an access token: the static
// admin token when username matches the configured admin user and one is
// configured, otherwise a freshly signed local token.
func (m *Minter) Mint(username, password string) (string, error) {
	roles, ok := m.passwords.VerifyPassword(username, password)
	if !ok {
		return "", mcperrors.Unauthenticated("invalid username or password")
	}

	if m.static != nil && username == m.static.Username {
		return m.static.Token, nil
	}
	if m.local == nil {
		return "", mcperrors.New(mcperrors.KindInternal, "no local token signer configured")
	}
	return m.local.Mint(username, roles, m.tokenTTL, false)
}

// TokenHandler serves POST /auth/token: form fields username/password in,
// {access_token, token_type:"bearer"} JSON out.
func (m *Minter) TokenHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "malformed form body", http.StatusBadRequest)
			return
		}

		username := r.FormValue("username")
		token, err := m.Mint(username, r.FormValue("password"))
		if err != nil {
			logging.Warn("Auth", "token mint failed for user %s: %v", username, err)
			logging.Audit(logging.AuditEvent{
				Action: "token_mint", Outcome: "failure", UserID: username, Error: err.Error(),
			})
			w.Header().Set("WWW-Authenticate", "Bearer")
			http.Error(w, "invalid username or password", http.StatusUnauthorized)
			return
		}
		logging.Audit(logging.AuditEvent{Action: "token_mint", Outcome: "success", UserID: username})

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": token,
			"token_type":   "bearer",
		})
	}
}

// MeHandler serves GET /me: the authenticated request's claims as JSON.
func MeHandler(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		w.Header().Set("WWW-Authenticate", "Bearer")
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(claims)
}
