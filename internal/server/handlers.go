package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"mcpd/internal/auth"
	"mcpd/internal/configstore"
	"mcpd/internal/mcperrors"
	"mcpd/internal/partitionkey"
	"mcpd/internal/rpc"
	"mcpd/internal/sse"
	"mcpd/pkg/logging"
)

// partIDHeader carries the optional part_id half of the partition key,
// per spec.md §4.A.
const partIDHeader = "X-Part-Id"

func keyFromRequest(r *http.Request) (partitionkey.Key, error) {
	return partitionkey.Assemble(r.PathValue("endpoint"), r.Header.Get(partIDHeader))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMCPError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var mcpErr *mcperrors.Error
	if errors.As(err, &mcpErr) {
		status = mcpErr.HTTPStatus()
	}
	writeJSON(w, status, map[string]any{"error": err.Error()})
}

// handleMCP serves POST /{endpoint}/mcp: a bare JSON-RPC request/response
// round trip.
func (s *Server) handleMCP(w http.ResponseWriter, r *http.Request) {
	key, err := keyFromRequest(r)
	if err != nil {
		writeMCPError(w, err)
		return
	}

	var req rpc.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "malformed JSON-RPC request"})
		return
	}

	resp := s.router.Handle(r.Context(), key, req)
	writeJSON(w, http.StatusOK, resp)
}

// handleSSEPost serves POST /{endpoint}/sse: the same JSON-RPC round trip
// as handleMCP, plus a fanout of the response to the caller's own SSE
// stream as a "mcp_activity" envelope, per spec.md's SSE fanout example.
func (s *Server) handleSSEPost(w http.ResponseWriter, r *http.Request) {
	key, err := keyFromRequest(r)
	if err != nil {
		writeMCPError(w, err)
		return
	}

	var req rpc.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "malformed JSON-RPC request"})
		return
	}

	resp := s.router.Handle(r.Context(), key, req)

	if claims, ok := auth.ClaimsFromContext(r.Context()); ok {
		s.cfg.SSEManager.SendToUser(claims.Username, map[string]any{
			"type":   "mcp_activity",
			"method": req.Method,
			"result": resp,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleSSEGet serves GET /{endpoint}/sse: registers a client, replays
// anything missed since Last-Event-ID, then relays the live queue until
// the client disconnects or shutdown cancels the request context.
func (s *Server) handleSSEGet(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	username := ""
	if claims, ok := auth.ClaimsFromContext(r.Context()); ok {
		username = claims.Username
	}

	clientID, queue := s.cfg.SSEManager.AddClient(username)
	defer s.cfg.SSEManager.RemoveClient(clientID, username)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	if lastIDHeader := r.Header.Get("Last-Event-ID"); lastIDHeader != "" {
		if lastID, err := strconv.ParseInt(lastIDHeader, 10, 64); err == nil {
			if missed := s.cfg.SSEManager.MissedSince(lastID); len(missed) > 0 {
				if err := sse.WriteReplay(w, missed); err != nil {
					return
				}
				flusher.Flush()
			}
		}
	}

	if err := sse.WriteLoop(r.Context(), w, flusher, clientID, queue); err != nil {
		logging.Warn("Server", "SSE connection for client %d ended: %v", clientID, err)
	}
}

// handleGraphQL serves POST /{endpoint}/mcp_core_graphql: a raw GraphQL
// pass-through to the config store, with cache invalidation triggered when
// the document names a mutation in configstore.MutationTriggersInvalidation.
func (s *Server) handleGraphQL(w http.ResponseWriter, r *http.Request) {
	key, err := keyFromRequest(r)
	if err != nil {
		writeMCPError(w, err)
		return
	}

	var body struct {
		Query     string         `json:"query"`
		Variables map[string]any `json:"variables"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "malformed graphql request"})
		return
	}

	result, err := s.cfg.Store.Raw(r.Context(), key.PartitionKey, body.Query, body.Variables)
	if err != nil {
		writeMCPError(w, err)
		return
	}

	if mutation := mutationNameIn(body.Query); mutation != "" {
		s.cfg.Cache.InvalidateFromMutation(key.PartitionKey, mutation)
	}

	writeJSON(w, http.StatusOK, map[string]any{"data": result})
}

// mutationNameIn returns the first cache-invalidating mutation name whose
// field appears in document, or "" if none does. mcp_core_graphql's
// documents are caller-authored text, not one of configstore's named
// documents, so this is the only way to recognise a mutating call.
func mutationNameIn(document string) string {
	for name := range configstore.MutationTriggersInvalidation {
		if strings.Contains(document, name+"(") {
			return name
		}
	}
	return ""
}

// handleEndpointInfo serves GET /{endpoint}: a snapshot of what that
// partition can see.
func (s *Server) handleEndpointInfo(w http.ResponseWriter, r *http.Request) {
	key, err := keyFromRequest(r)
	if err != nil {
		writeMCPError(w, err)
		return
	}

	tools, err := s.cfg.Engine.ListTools(r.Context(), key.PartitionKey)
	if err != nil {
		writeMCPError(w, err)
		return
	}
	resources, err := s.cfg.Engine.ListResources(r.Context(), key.PartitionKey)
	if err != nil {
		writeMCPError(w, err)
		return
	}
	prompts, err := s.cfg.Engine.ListPrompts(r.Context(), key.PartitionKey)
	if err != nil {
		writeMCPError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"server":        s.cfg.ServerName,
		"version":       s.cfg.ServerVersion,
		"partition_key": key.PartitionKey,
		"sse_stats":     s.cfg.SSEManager.Stats(),
		"tools":         tools,
		"resources":     resources,
		"prompts":       prompts,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"sse_stats": s.cfg.SSEManager.Stats(),
	})
}

// statsProvider is satisfied by ratelimit.MemoryLimiter and
// ratelimit.ValkeyLimiter; it is declared here rather than widening
// ratelimit.Limiter's interface, since Allow is the only method every
// limiter implementation must have.
type statsProvider interface {
	Stats() map[string]any
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	rateLimitStats := map[string]any{"backend": "unknown"}
	if sp, ok := s.cfg.RateLimiter.(statsProvider); ok {
		rateLimitStats = sp.Stats()
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"timestamp":     time.Now().UTC().Format(time.RFC3339),
		"sse_manager":   s.cfg.SSEManager.Stats(),
		"rate_limiting": rateLimitStats,
		"mcp_cache":     s.cfg.Cache.Stats(),
	})
}

func (s *Server) handleAdminCacheStatus(w http.ResponseWriter, r *http.Request) {
	key, err := keyFromRequest(r)
	if err != nil {
		writeMCPError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"partition_key": key.PartitionKey,
		"cached":        s.cfg.Cache.Cached(key.PartitionKey),
	})
}

func (s *Server) handleAdminCacheRefresh(w http.ResponseWriter, r *http.Request) {
	key, err := keyFromRequest(r)
	if err != nil {
		writeMCPError(w, err)
		return
	}
	if _, err := s.cfg.Cache.Refresh(r.Context(), key.PartitionKey); err != nil {
		writeMCPError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"partition_key": key.PartitionKey, "refreshed": true})
}

func (s *Server) handleAdminCacheClear(w http.ResponseWriter, r *http.Request) {
	key, err := keyFromRequest(r)
	if err != nil {
		writeMCPError(w, err)
		return
	}
	s.cfg.Cache.Clear(key.PartitionKey)
	logging.Audit(logging.AuditEvent{Action: "cache_purge", Outcome: "success", UserID: auditUsername(r), Target: key.PartitionKey})
	writeJSON(w, http.StatusOK, map[string]any{"partition_key": key.PartitionKey, "cleared": true})
}

func (s *Server) handleAdminCachePurgeAll(w http.ResponseWriter, r *http.Request) {
	s.cfg.Cache.Clear("")
	logging.Audit(logging.AuditEvent{Action: "cache_purge", Outcome: "success", UserID: auditUsername(r), Target: "*"})
	writeJSON(w, http.StatusOK, map[string]any{"cleared": "all"})
}

func auditUsername(r *http.Request) string {
	if claims, ok := auth.ClaimsFromContext(r.Context()); ok {
		return claims.Username
	}
	return ""
}
