package serverconfig

import (
	"os"

	"gopkg.in/yaml.v3"

	"mcpd/internal/mcperrors"
)

// localUser is one entry of local_user_file, a flat YAML list mapping
// usernames to a bcrypt-free plaintext password and role set. mcpd's local
// auth provider is meant for development and small deployments (the
// production path is Cognito/API Gateway), so this mirrors the teacher's
// own local-dev-only admin_username/admin_password pair rather than adding
// a password-hashing dependency this spec never calls for.
type localUser struct {
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
	Roles    []string `yaml:"roles"`
}

// LocalUserStore is an auth.PasswordVerifier backed by admin_username /
// admin_password plus an optional local_user_file of additional accounts.
type LocalUserStore struct {
	users map[string]localUser
}

// NewLocalUserStore loads localUserFile (if non-empty) and seeds the admin
// account from adminUsername/adminPassword when both are set.
func NewLocalUserStore(localUserFile, adminUsername, adminPassword string) (*LocalUserStore, error) {
	store := &LocalUserStore{users: make(map[string]localUser)}

	if localUserFile != "" {
		data, err := os.ReadFile(localUserFile)
		if err != nil {
			return nil, mcperrors.Wrap(mcperrors.KindInternal, err, "read local_user_file")
		}
		var entries []localUser
		if err := yaml.Unmarshal(data, &entries); err != nil {
			return nil, mcperrors.Wrap(mcperrors.KindInternal, err, "parse local_user_file")
		}
		for _, u := range entries {
			store.users[u.Username] = u
		}
	}

	if adminUsername != "" && adminPassword != "" {
		store.users[adminUsername] = localUser{
			Username: adminUsername,
			Password: adminPassword,
			Roles:    []string{"admin"},
		}
	}

	return store, nil
}

// VerifyPassword implements auth.PasswordVerifier.
func (s *LocalUserStore) VerifyPassword(username, password string) ([]string, bool) {
	u, ok := s.users[username]
	if !ok || u.Password != password {
		return nil, false
	}
	return u.Roles, true
}
