package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"mcpd/internal/auth"
	"mcpd/internal/blob"
	"mcpd/internal/callrecord"
	"mcpd/internal/configcache"
	"mcpd/internal/configstore"
	"mcpd/internal/dispatch"
	"mcpd/internal/mcperrors"
	"mcpd/internal/modloader"
	"mcpd/internal/ratelimit"
	"mcpd/internal/server"
	"mcpd/internal/serverconfig"
	"mcpd/internal/sse"
	"mcpd/pkg/logging"
)

var (
	serveDebug      bool
	serveConfigPath string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the mcpd daemon",
	Long: `Starts mcpd: the HTTP surface for every configured partition's tools,
resources, and prompts, serving JSON-RPC over plain POST and Server-Sent
Events.

Configuration is environment-style (MCPD_* variables); --config optionally
overlays a YAML file of the same shape for local development.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().BoolVar(&serveDebug, "debug", false, "enable debug logging")
	serveCmd.Flags().StringVar(&serveConfigPath, "config", "", "optional YAML config file overlaying defaults and environment")
}

func runServe(cmd *cobra.Command, args []string) error {
	logLevel := logging.LevelInfo
	if serveDebug {
		logLevel = logging.LevelDebug
	}
	logging.InitForCLI(logLevel, cmd.OutOrStdout())

	cfg, err := serverconfig.Load(serveConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	srv, err := buildServer(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize server: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(ctx) }()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server exited: %w", err)
		}
		return nil
	case <-ctx.Done():
		logging.Info("Server", "shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 35*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// buildServer is mcpd's composition root: it turns a loaded
// serverconfig.Config into a fully wired server.Server, grounded on the
// teacher's app.NewApplication bootstrap phase (load config, then
// construct every service in dependency order).
func buildServer(ctx context.Context, cfg serverconfig.Config) (*server.Server, error) {
	if cfg.ConfigStoreEndpoint == "" {
		return nil, mcperrors.InvalidArgument("MCPD_CONFIG_STORE_ENDPOINT is required")
	}
	store := configstore.NewClient(cfg.ConfigStoreEndpoint)

	blobStore, err := buildBlobStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	registry := modloader.NewRegistry()
	loader := modloader.New(registry, blobStore, cfg.FunctZipPath, cfg.FunctExtractPath)
	cache := configcache.New(store)
	records := callrecord.New(store, blobStore)
	engine := dispatch.New(cache, loader, records)

	sseManager := sse.New()

	rateLimiter, err := buildRateLimiter(cfg)
	if err != nil {
		return nil, err
	}

	verifiers, minter, err := buildAuth(cfg)
	if err != nil {
		return nil, err
	}

	return server.New(server.Config{
		Cache:         cache,
		Store:         store,
		Engine:        engine,
		SSEManager:    sseManager,
		RateLimiter:   rateLimiter,
		Verifiers:     verifiers,
		Minter:        minter,
		ServerName:    "mcpd",
		ServerVersion: rootCmd.Version,
		Addr:          fmt.Sprintf(":%d", cfg.Port),
	}), nil
}

func buildBlobStore(ctx context.Context, cfg serverconfig.Config) (blob.Store, error) {
	if cfg.BlobCredentials == "" {
		logging.Warn("Server", "no blob_credentials configured, using an in-memory blob store: module archive fetch will fail and offloaded call content is lost on exit")
		return blob.NewFakeStore(), nil
	}
	return blob.NewS3Store(ctx, blob.Config{
		Region:      cfg.Region,
		Credentials: cfg.BlobCredentials,
		BucketName:  cfg.FunctBucketName,
	})
}

func buildRateLimiter(cfg serverconfig.Config) (ratelimit.Limiter, error) {
	if cfg.ValkeyAddr == "" {
		logging.Info("Server", "no valkey_addr configured, using in-process rate limiter")
		return ratelimit.NewMemoryLimiter(), nil
	}
	limiter, err := ratelimit.NewValkeyLimiter(cfg.ValkeyAddr)
	if err != nil {
		return nil, err
	}
	return limiter, nil
}

// buildAuth assembles the Bearer verifier chain and the /auth/token minter
// for cfg.AuthProvider, per spec.md §4.K's (a)/(b)/(c) verification modes.
func buildAuth(cfg serverconfig.Config) ([]auth.Verifier, *auth.Minter, error) {
	passwords, err := serverconfig.NewLocalUserStore(cfg.LocalUserFile, cfg.AdminUsername, cfg.AdminPassword)
	if err != nil {
		return nil, nil, err
	}

	var static *auth.StaticVerifier
	if cfg.AdminStaticToken != "" {
		s := auth.StaticVerifier{Token: cfg.AdminStaticToken, Username: cfg.AdminUsername}
		static = &s
	}
	local := auth.NewLocalVerifier(cfg.JWTSecret)
	tokenTTL := time.Duration(cfg.AccessTokenExpMin) * time.Minute
	minter := auth.NewMinter(passwords, local, static, tokenTTL)

	var verifiers []auth.Verifier
	if static != nil {
		verifiers = append(verifiers, *static)
	}

	switch cfg.AuthProvider {
	case "cognito":
		issuer := fmt.Sprintf("https://cognito-idp.%s.amazonaws.com/%s", cfg.Region, cfg.CognitoUserPoolID)
		jwksURL := cfg.CognitoJWKSURL
		if jwksURL == "" {
			jwksURL = issuer + "/.well-known/jwks.json"
		}
		jwks, err := auth.NewJWKSVerifier(jwksURL, cfg.CognitoAppClientID, issuer, jwksCacheTTL(cfg))
		if err != nil {
			return nil, nil, err
		}
		verifiers = append(verifiers, jwks)

	case "api_gateway":
		// API Gateway authorizers don't guarantee a fixed issuer/audience
		// convention the way Cognito's user-pool URL does, so both checks
		// are left unset and JWKSVerifier skips them.
		jwks, err := auth.NewJWKSVerifier(cfg.CognitoJWKSURL, "", "", jwksCacheTTL(cfg))
		if err != nil {
			return nil, nil, err
		}
		verifiers = append(verifiers, jwks)

	default:
		verifiers = append(verifiers, local)
	}

	return verifiers, minter, nil
}

func jwksCacheTTL(cfg serverconfig.Config) time.Duration {
	if cfg.JWKSCacheTTLSeconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(cfg.JWKSCacheTTLSeconds) * time.Second
}
