package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcpd/internal/auth"
	"mcpd/internal/blob"
	"mcpd/internal/callrecord"
	"mcpd/internal/configcache"
	"mcpd/internal/configstore"
	"mcpd/internal/dispatch"
	"mcpd/internal/modloader"
	"mcpd/internal/ratelimit"
	"mcpd/internal/rpc"
	"mcpd/internal/sse"
)

type fakePasswords struct{}

func (fakePasswords) VerifyPassword(username, password string) ([]string, bool) {
	if username == "admin" && password == "secret" {
		return []string{"admin"}, true
	}
	return nil, false
}

func newTestServer(t *testing.T) (*Server, *configstore.FakeClient, string) {
	t.Helper()
	store := configstore.NewFakeClient()
	registry := modloader.NewRegistry()
	loader := modloader.New(registry, blob.NewFakeStore(), t.TempDir(), t.TempDir())
	cache := configcache.New(store)
	records := callrecord.New(store, blob.NewFakeStore())
	engine := dispatch.New(cache, loader, records)

	local := auth.NewLocalVerifier("test-secret")
	static := auth.StaticVerifier{Token: "static-token", Username: "admin"}
	minter := auth.NewMinter(fakePasswords{}, local, &static, time.Hour)

	cfg := Config{
		Cache:         cache,
		Store:         store,
		Engine:        engine,
		SSEManager:    sse.New(),
		RateLimiter:   ratelimit.NewMemoryLimiter(),
		Verifiers:     []auth.Verifier{static, local},
		Minter:        minter,
		ServerName:    "mcpd",
		ServerVersion: "test",
	}
	s := New(cfg)
	return s, store, "static-token"
}

func authedRequest(method, path, token string, body []byte) *http.Request {
	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func TestHealthIsUnauthenticated(t *testing.T) {
	s, _, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestMCPEndpointRejectsMissingToken(t *testing.T) {
	s, _, _ := newTestServer(t)
	req := authedRequest(http.MethodPost, "/acme/mcp", "", []byte(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMCPEndpointListsConfiguredTools(t *testing.T) {
	s, store, token := newTestServer(t)

	store.Functions["acme"] = []configstore.FunctionRecord{
		{Name: "echo", MCPType: "tool", Description: "echoes input"},
	}

	req := authedRequest(http.MethodPost, "/acme/mcp", token, []byte(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp rpc.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Nil(t, resp.Error)

	result, ok := resp.Result.(map[string]any)
	require.True(t, ok)
	tools, ok := result["tools"].([]any)
	require.True(t, ok)
	require.Len(t, tools, 1)
}

func TestAdminCachePurgeAllRequiresAuth(t *testing.T) {
	s, _, token := newTestServer(t)

	req := authedRequest(http.MethodDelete, "/admin/cache", "", nil)
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = authedRequest(http.MethodDelete, "/admin/cache", token, nil)
	rec = httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminCacheStatusReportsUncachedPartition(t *testing.T) {
	s, _, token := newTestServer(t)

	req := authedRequest(http.MethodGet, "/acme/admin/cache/status", token, nil)
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, false, body["cached"])
}

func TestAdminCacheRefreshThenStatusReportsCached(t *testing.T) {
	s, _, token := newTestServer(t)

	refreshReq := authedRequest(http.MethodPost, "/acme/admin/cache/refresh", token, nil)
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, refreshReq)
	require.Equal(t, http.StatusOK, rec.Code)

	statusReq := authedRequest(http.MethodGet, "/acme/admin/cache/status", token, nil)
	rec = httptest.NewRecorder()
	s.mux.ServeHTTP(rec, statusReq)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["cached"])
}

func TestEndpointInfoReturnsServerSnapshot(t *testing.T) {
	s, _, token := newTestServer(t)

	req := authedRequest(http.MethodGet, "/acme", token, nil)
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "mcpd", body["server"])
	assert.Equal(t, "acme", body["partition_key"])
}

func TestGraphQLPassthroughTriggersCacheInvalidation(t *testing.T) {
	s, _, token := newTestServer(t)

	// Warm the cache so invalidation has something to purge.
	warm := authedRequest(http.MethodPost, "/acme/admin/cache/refresh", token, nil)
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, warm)
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := json.Marshal(map[string]any{
		"query":     "mutation { insertUpdateMcpFunction(partitionKey: \"acme\", name: \"x\") { name } }",
		"variables": map[string]any{},
	})
	require.NoError(t, err)

	req := authedRequest(http.MethodPost, "/acme/mcp_core_graphql", token, body)
	rec = httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	statusReq := authedRequest(http.MethodGet, "/acme/admin/cache/status", token, nil)
	rec = httptest.NewRecorder()
	s.mux.ServeHTTP(rec, statusReq)

	var statusBody map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &statusBody))
	assert.Equal(t, false, statusBody["cached"], "mutation should have purged the partition's cache entry")
}

func TestAuthTokenMintRoundTrip(t *testing.T) {
	s, _, _ := newTestServer(t)

	form := bytes.NewBufferString("username=admin&password=secret")
	req := httptest.NewRequest(http.MethodPost, "/auth/token", form)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "static-token", body["access_token"])
	assert.Equal(t, "bearer", body["token_type"])
}
