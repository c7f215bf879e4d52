package server

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"mcpd/internal/auth"
	"mcpd/internal/configcache"
	"mcpd/internal/configstore"
	"mcpd/internal/dispatch"
	"mcpd/internal/ratelimit"
	"mcpd/internal/rpc"
	"mcpd/internal/sse"
	"mcpd/pkg/logging"
)

// sseDrainTimeout and shutdownJoinTimeout are spec.md §5's shutdown
// budget: 100ms to let in-flight SSE writers notice the closing context,
// 30s to join every background dispatch task.
const (
	sseDrainTimeout     = 100 * time.Millisecond
	shutdownJoinTimeout = 30 * time.Second
)

// Config wires every already-constructed subsystem into a Server. Building
// each subsystem (picking the auth provider, the rate-limit backend, the
// blob store) is cmd/serve.go's job; Server only assembles what it is
// handed.
type Config struct {
	Cache       *configcache.Cache
	Store       configstore.Client
	Engine      *dispatch.Engine
	SSEManager  *sse.Manager
	RateLimiter ratelimit.Limiter
	Verifiers   []auth.Verifier
	Minter      *auth.Minter

	ServerName    string
	ServerVersion string
	Addr          string
}

// Server is component N: the subsystems it serves as fields of cfg, plus a
// context/cancelFunc pair that every request context derives from and that
// Shutdown cancels. Background dispatch tasks are joined by the dispatch
// engine's own Shutdown; wg is not used.
type Server struct {
	cfg    Config
	router *rpc.Router
	mux    http.Handler
	http   *http.Server

	mu         sync.Mutex
	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// New constructs a Server from cfg. It does not start listening; call
// Start.
func New(cfg Config) *Server {
	s := &Server{cfg: cfg}
	s.router = rpc.New(cfg.Engine, cfg.ServerName, cfg.ServerVersion)
	s.mux = s.buildMux()
	s.http = &http.Server{
		Addr:    cfg.Addr,
		Handler: s.mux,
	}
	// Request contexts derive from the context Start creates, so the cancel
	// in Shutdown reaches every open SSE stream.
	s.http.BaseContext = func(net.Listener) context.Context { return s.ctx }
	return s
}

// buildMux lays out spec.md §6's HTTP surface, mirroring the teacher's
// createStandardMux. Every route sits behind auth.Middleware wrapping
// ratelimit.Middleware; auth.Middleware lets the infrastructure endpoints
// (/health, /metrics, /auth/token) through without a token.
func (s *Server) buildMux() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /metrics", s.handleMetrics)
	mux.HandleFunc("POST /auth/token", s.cfg.Minter.TokenHandler())
	mux.HandleFunc("GET /me", auth.MeHandler)
	mux.HandleFunc("DELETE /admin/cache", s.handleAdminCachePurgeAll)

	mux.HandleFunc("GET /{endpoint}/sse", s.handleSSEGet)
	mux.HandleFunc("POST /{endpoint}/sse", s.handleSSEPost)
	mux.HandleFunc("POST /{endpoint}/mcp", s.handleMCP)
	mux.HandleFunc("POST /{endpoint}/mcp_core_graphql", s.handleGraphQL)
	mux.HandleFunc("GET /{endpoint}/admin/cache/status", s.handleAdminCacheStatus)
	mux.HandleFunc("POST /{endpoint}/admin/cache/refresh", s.handleAdminCacheRefresh)
	mux.HandleFunc("DELETE /{endpoint}/admin/cache", s.handleAdminCacheClear)
	mux.HandleFunc("GET /{endpoint}", s.handleEndpointInfo)

	limited := ratelimit.Middleware(s.cfg.RateLimiter, mux)
	return auth.Middleware(s.cfg.Verifiers, limited)
}

// Start begins serving until ctx is cancelled or Shutdown is called.
// Returns once the listener has stopped.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	s.ctx, s.cancelFunc = context.WithCancel(ctx)
	s.mu.Unlock()

	logging.Info("Server", "listening on %s", s.cfg.Addr)
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains SSE clients, closes the HTTP listener, and joins every
// background dispatch task within a bounded deadline, per spec.md §5.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	cancel := s.cancelFunc
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	time.Sleep(sseDrainTimeout)
	s.cfg.SSEManager.CleanupAll()

	shutdownCtx, cancelShutdown := context.WithTimeout(ctx, shutdownJoinTimeout)
	defer cancelShutdown()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		logging.Error("Server", err, "error shutting down HTTP listener")
	}

	if err := s.cfg.Engine.Shutdown(shutdownCtx); err != nil {
		logging.Error("Server", err, "background dispatch tasks did not join before deadline")
		return err
	}
	return nil
}
