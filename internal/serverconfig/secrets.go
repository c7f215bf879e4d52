package serverconfig

import (
	"fmt"
	"os"
	"strings"

	"mcpd/pkg/logging"
)

// resolveSecretFiles reads secrets from file paths given via MCPD_*_FILE
// environment variables, the same convention the teacher's
// resolveSecretFiles uses for OAuth client secrets: a *_FILE variable wins
// over its plain counterpart only when the plain value is still empty, so
// an explicit MCPD_JWT_SECRET always takes precedence over
// MCPD_JWT_SECRET_FILE.
func resolveSecretFiles(cfg *Config) error {
	if err := resolveOne(&cfg.JWTSecret, "JWT_SECRET_FILE"); err != nil {
		return err
	}
	if err := resolveOne(&cfg.AdminPassword, "ADMIN_PASSWORD_FILE"); err != nil {
		return err
	}
	if err := resolveOne(&cfg.AdminStaticToken, "ADMIN_STATIC_TOKEN_FILE"); err != nil {
		return err
	}
	if err := resolveOne(&cfg.CognitoAppSecret, "COGNITO_APP_SECRET_FILE"); err != nil {
		return err
	}
	if err := resolveOne(&cfg.BlobCredentials, "BLOB_CREDENTIALS_FILE"); err != nil {
		return err
	}
	return nil
}

func resolveOne(dst *string, envName string) error {
	if *dst != "" {
		return nil
	}
	path, ok := os.LookupEnv(envPrefix + envName)
	if !ok || path == "" {
		return nil
	}
	secret, err := readSecretFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s%s from %s: %w", envPrefix, envName, path, err)
	}
	*dst = secret
	logging.Info("ServerConfig", "loaded secret from %s%s", envPrefix, envName)
	return nil
}

// readSecretFile reads a secret from a file, trimming trailing whitespace
// the way mounted Kubernetes secrets commonly carry it.
func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
