package serverconfig

import (
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"mcpd/pkg/logging"
)

// Config is mcpd's full set of environment-style options, per spec.md §6's
// config-inputs table. Field names and YAML tags mirror the table's option
// names verbatim.
type Config struct {
	Transport         string `yaml:"transport"`
	Port              int    `yaml:"port"`
	MCPConfiguration  string `yaml:"mcp_configuration"`
	AuthProvider      string `yaml:"auth_provider"`
	JWTSecret         string `yaml:"jwt_secret"`
	JWTAlgorithm      string `yaml:"jwt_algorithm"`
	AccessTokenExpMin int    `yaml:"access_token_exp_minutes"`
	LocalUserFile     string `yaml:"local_user_file"`
	AdminUsername     string `yaml:"admin_username"`
	AdminPassword     string `yaml:"admin_password"`
	AdminStaticToken  string `yaml:"admin_static_token"`

	CognitoUserPoolID   string `yaml:"cognito_user_pool_id"`
	CognitoAppClientID  string `yaml:"cognito_app_client_id"`
	CognitoAppSecret    string `yaml:"cognito_app_secret"`
	CognitoJWKSURL      string `yaml:"cognito_jwks_url"`
	JWKSCacheTTLSeconds int    `yaml:"jwks_cache_ttl_seconds"`
	Region              string `yaml:"region"`

	BlobCredentials   string `yaml:"blob_credentials"`
	FunctBucketName   string `yaml:"funct_bucket_name"`
	FunctZipPath      string `yaml:"funct_zip_path"`
	FunctExtractPath  string `yaml:"funct_extract_path"`
	InitializeTables  bool   `yaml:"initialize_tables"`

	ConfigStoreEndpoint string `yaml:"config_store_endpoint"`
	ValkeyAddr          string `yaml:"valkey_addr"`
}

// Defaults returns a Config with every field spec.md implies a sane default
// for, mirroring the teacher's GetDefaultConfigWithRoles.
func Defaults() Config {
	return Config{
		Transport:           "sse",
		Port:                8080,
		AuthProvider:        "local",
		JWTAlgorithm:        "HS256",
		AccessTokenExpMin:   60,
		JWKSCacheTTLSeconds: 300,
		FunctZipPath:        "/var/lib/mcpd/modules/zip",
		FunctExtractPath:    "/var/lib/mcpd/modules/extracted",
	}
}

// envPrefix is every MCPD_* environment variable's prefix.
const envPrefix = "MCPD_"

// Load builds a Config by layering, in order: Defaults(), an optional YAML
// file at configPath (empty means skip), then MCPD_* environment
// variables, then *_FILE secret resolution for the fields that carry
// credentials, mirroring the teacher's LoadConfig + resolveSecretFiles
// two-stage shape.
func Load(configPath string) (Config, error) {
	cfg := Defaults()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			if !os.IsNotExist(err) {
				return Config{}, err
			}
			logging.Info("ServerConfig", "no config file found at %s, using defaults and environment", configPath)
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, err
		} else {
			logging.Info("ServerConfig", "loaded base configuration from %s", configPath)
		}
	}

	applyEnvOverrides(&cfg)

	if err := resolveSecretFiles(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.Transport, "TRANSPORT")
	overrideInt(&cfg.Port, "PORT")
	overrideString(&cfg.MCPConfiguration, "MCP_CONFIGURATION")
	overrideString(&cfg.AuthProvider, "AUTH_PROVIDER")
	overrideString(&cfg.JWTSecret, "JWT_SECRET")
	overrideString(&cfg.JWTAlgorithm, "JWT_ALGORITHM")
	overrideInt(&cfg.AccessTokenExpMin, "ACCESS_TOKEN_EXP_MINUTES")
	overrideString(&cfg.LocalUserFile, "LOCAL_USER_FILE")
	overrideString(&cfg.AdminUsername, "ADMIN_USERNAME")
	overrideString(&cfg.AdminPassword, "ADMIN_PASSWORD")
	overrideString(&cfg.AdminStaticToken, "ADMIN_STATIC_TOKEN")
	overrideString(&cfg.CognitoUserPoolID, "COGNITO_USER_POOL_ID")
	overrideString(&cfg.CognitoAppClientID, "COGNITO_APP_CLIENT_ID")
	overrideString(&cfg.CognitoAppSecret, "COGNITO_APP_SECRET")
	overrideString(&cfg.CognitoJWKSURL, "COGNITO_JWKS_URL")
	overrideInt(&cfg.JWKSCacheTTLSeconds, "JWKS_CACHE_TTL_SECONDS")
	overrideString(&cfg.Region, "REGION")
	overrideString(&cfg.BlobCredentials, "BLOB_CREDENTIALS")
	overrideString(&cfg.FunctBucketName, "FUNCT_BUCKET_NAME")
	overrideString(&cfg.FunctZipPath, "FUNCT_ZIP_PATH")
	overrideString(&cfg.FunctExtractPath, "FUNCT_EXTRACT_PATH")
	overrideBool(&cfg.InitializeTables, "INITIALIZE_TABLES")
	overrideString(&cfg.ConfigStoreEndpoint, "CONFIG_STORE_ENDPOINT")
	overrideString(&cfg.ValkeyAddr, "VALKEY_ADDR")
}

func overrideString(dst *string, name string) {
	if v, ok := os.LookupEnv(envPrefix + name); ok {
		*dst = v
	}
}

func overrideInt(dst *int, name string) {
	if v, ok := os.LookupEnv(envPrefix + name); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		} else {
			logging.Warn("ServerConfig", "ignoring malformed integer env var %s%s=%q", envPrefix, name, v)
		}
	}
}

func overrideBool(dst *bool, name string) {
	if v, ok := os.LookupEnv(envPrefix + name); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		} else {
			logging.Warn("ServerConfig", "ignoring malformed boolean env var %s%s=%q", envPrefix, name, v)
		}
	}
}
