package dispatch

import (
	"context"
	"errors"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcpd/internal/blob"
	"mcpd/internal/callrecord"
	"mcpd/internal/configcache"
	"mcpd/internal/configstore"
	"mcpd/internal/mcperrors"
	"mcpd/internal/modloader"
	"mcpd/internal/partitionkey"
)

type funcHandler struct {
	fn func(ctx context.Context, functionName string, args map[string]any) (any, error)
}

func (h *funcHandler) Invoke(ctx context.Context, functionName string, args map[string]any) (any, error) {
	return h.fn(ctx, functionName, args)
}

func newTestEngine(t *testing.T) (*Engine, *configstore.FakeClient, *modloader.Registry) {
	t.Helper()
	store := configstore.NewFakeClient()
	registry := modloader.NewRegistry()
	loader := modloader.New(registry, blob.NewFakeStore(), t.TempDir(), t.TempDir())
	cache := configcache.New(store)
	records := callrecord.New(store, blob.NewFakeStore())
	return New(cache, loader, records), store, registry
}

func seedModule(store *configstore.FakeClient, partitionKey, packageName, moduleName, className string) {
	if store.Modules[partitionKey] == nil {
		store.Modules[partitionKey] = map[string]configstore.ModuleRecord{}
	}
	store.Modules[partitionKey][moduleName] = configstore.ModuleRecord{
		ModuleName:  moduleName,
		PackageName: packageName,
		Classes:     []configstore.ModuleClass{{ClassName: className}},
	}
}

func TestListToolsReturnsConfiguredTools(t *testing.T) {
	engine, store, _ := newTestEngine(t)
	key, err := partitionkey.Assemble("acme", "")
	require.NoError(t, err)

	store.Functions[key.PartitionKey] = []configstore.FunctionRecord{
		{Name: "echo", MCPType: "tool", Description: "echoes input"},
	}

	tools, err := engine.ListTools(context.Background(), key.PartitionKey)
	require.NoError(t, err)
	require.Len(t, tools, 1)
	assert.Equal(t, "echo", tools[0].Name)
	assert.Equal(t, "object", tools[0].InputSchema.Type)
}

func TestCallToolUnknownNameReturnsUnknownTool(t *testing.T) {
	engine, store, _ := newTestEngine(t)
	key, _ := partitionkey.Assemble("acme", "")
	store.Functions[key.PartitionKey] = nil

	_, err := engine.CallTool(context.Background(), key, "missing", nil)
	require.Error(t, err)
	assert.True(t, mcperrors.Is(err, mcperrors.KindUnknownTool))
}

func TestCallToolMissingRequiredArgumentFails(t *testing.T) {
	engine, store, registry := newTestEngine(t)
	key, _ := partitionkey.Assemble("acme", "")

	store.Functions[key.PartitionKey] = []configstore.FunctionRecord{
		{
			Name: "echo", MCPType: "tool", ModuleName: "mod_echo", ClassName: "Echo",
			FunctionName: "run", ReturnType: "text",
			Data: map[string]any{
				"inputSchema": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"msg": map[string]any{"type": "string"},
					},
					"required": []any{"msg"},
				},
			},
		},
	}
	seedModule(store, key.PartitionKey, "pkg_echo", "mod_echo", "Echo")
	registry.Register("pkg_echo", "mod_echo", "Echo", func(logger modloader.Logger, setting map[string]any) (modloader.Handler, error) {
		return &funcHandler{fn: func(ctx context.Context, fn string, args map[string]any) (any, error) {
			return args["msg"], nil
		}}, nil
	})

	_, err := engine.CallTool(context.Background(), key, "echo", map[string]any{})
	require.Error(t, err)
	assert.True(t, mcperrors.Is(err, mcperrors.KindInvalidArgument))
	assert.Contains(t, err.Error(), "msg")
}

func TestCallToolSyncReturnsTextContentAndRecordsCall(t *testing.T) {
	engine, store, registry := newTestEngine(t)
	key, _ := partitionkey.Assemble("acme", "")

	store.Functions[key.PartitionKey] = []configstore.FunctionRecord{
		{
			Name: "echo", MCPType: "tool", ModuleName: "mod_echo", ClassName: "Echo",
			FunctionName: "run", ReturnType: "text",
			Data: map[string]any{
				"inputSchema": map[string]any{
					"type":       "object",
					"properties": map[string]any{"msg": map[string]any{"type": "string"}},
					"required":   []any{"msg"},
				},
			},
		},
	}
	seedModule(store, key.PartitionKey, "pkg_echo", "mod_echo", "Echo")
	registry.Register("pkg_echo", "mod_echo", "Echo", func(logger modloader.Logger, setting map[string]any) (modloader.Handler, error) {
		return &funcHandler{fn: func(ctx context.Context, fn string, args map[string]any) (any, error) {
			return args["msg"], nil
		}}, nil
	})

	content, err := engine.CallTool(context.Background(), key, "echo", map[string]any{"msg": "hello"})
	require.NoError(t, err)
	require.Len(t, content, 1)
	text, ok := mcp.AsTextContent(content[0])
	require.True(t, ok)
	assert.Equal(t, "hello", text.Text)

	assert.Len(t, store.Calls[key.PartitionKey], 1)
	for _, rec := range store.Calls[key.PartitionKey] {
		assert.Equal(t, configstore.CallStatusCompleted, rec.Status)
	}
}

func TestCallToolHandlerErrorMarksCallFailed(t *testing.T) {
	engine, store, registry := newTestEngine(t)
	key, _ := partitionkey.Assemble("acme", "")

	store.Functions[key.PartitionKey] = []configstore.FunctionRecord{
		{Name: "boom", MCPType: "tool", ModuleName: "mod_boom", ClassName: "Boom", FunctionName: "run", ReturnType: "text"},
	}
	seedModule(store, key.PartitionKey, "pkg_boom", "mod_boom", "Boom")
	registry.Register("pkg_boom", "mod_boom", "Boom", func(logger modloader.Logger, setting map[string]any) (modloader.Handler, error) {
		return &funcHandler{fn: func(ctx context.Context, fn string, args map[string]any) (any, error) {
			return nil, errors.New("handler exploded")
		}}, nil
	})

	_, err := engine.CallTool(context.Background(), key, "boom", map[string]any{})
	require.Error(t, err)

	require.Len(t, store.Calls[key.PartitionKey], 1)
	for _, rec := range store.Calls[key.PartitionKey] {
		assert.Equal(t, configstore.CallStatusFailed, rec.Status)
		assert.Contains(t, rec.Notes, "handler exploded")
	}
}

func TestCallToolOnDefaultPartitionSkipsCallRecordPersistence(t *testing.T) {
	engine, store, registry := newTestEngine(t)
	key, _ := partitionkey.Assemble(partitionkey.DefaultPartition, "")

	store.Functions[key.PartitionKey] = []configstore.FunctionRecord{
		{Name: "echo", MCPType: "tool", ModuleName: "mod_echo", ClassName: "Echo", FunctionName: "run", ReturnType: "text"},
	}
	seedModule(store, key.PartitionKey, "pkg_echo", "mod_echo", "Echo")
	registry.Register("pkg_echo", "mod_echo", "Echo", func(logger modloader.Logger, setting map[string]any) (modloader.Handler, error) {
		return &funcHandler{fn: func(ctx context.Context, fn string, args map[string]any) (any, error) {
			return "ok", nil
		}}, nil
	})

	_, err := engine.CallTool(context.Background(), key, "echo", map[string]any{})
	require.NoError(t, err)
	assert.Empty(t, store.Calls[key.PartitionKey])
}

func TestCallToolAsyncOnDefaultPartitionRejected(t *testing.T) {
	engine, store, _ := newTestEngine(t)
	key, _ := partitionkey.Assemble(partitionkey.DefaultPartition, "")

	store.Functions[key.PartitionKey] = []configstore.FunctionRecord{
		{Name: "slow", MCPType: "tool", ModuleName: "mod_slow", ClassName: "Slow", FunctionName: "run", ReturnType: "text", IsAsync: true},
	}

	_, err := engine.CallTool(context.Background(), key, "slow", map[string]any{})
	require.Error(t, err)
	assert.True(t, mcperrors.Is(err, mcperrors.KindInvalidArgument))
}

func TestReadResourceInvokesHandlerWithURI(t *testing.T) {
	engine, store, registry := newTestEngine(t)
	key, _ := partitionkey.Assemble("acme", "")

	store.Functions[key.PartitionKey] = []configstore.FunctionRecord{
		{
			Name: "weather", MCPType: "resource", ModuleName: "mod_weather", ClassName: "Weather",
			FunctionName: "read", ReturnType: "text",
			Data: map[string]any{"uri": "weather://today", "mimeType": "text/plain"},
		},
	}
	seedModule(store, key.PartitionKey, "pkg_weather", "mod_weather", "Weather")
	registry.Register("pkg_weather", "mod_weather", "Weather", func(logger modloader.Logger, setting map[string]any) (modloader.Handler, error) {
		return &funcHandler{fn: func(ctx context.Context, fn string, args map[string]any) (any, error) {
			assert.Equal(t, "weather://today", args["uri"])
			return "sunny", nil
		}}, nil
	})

	result, err := engine.ReadResource(context.Background(), key, "weather://today")
	require.NoError(t, err)
	require.Len(t, result.Contents, 1)
	tc, ok := result.Contents[0].(mcp.TextResourceContents)
	require.True(t, ok)
	assert.Equal(t, "sunny", tc.Text)
}

func TestGetPromptMissingRequiredArgumentFails(t *testing.T) {
	engine, store, _ := newTestEngine(t)
	key, _ := partitionkey.Assemble("acme", "")

	store.Functions[key.PartitionKey] = []configstore.FunctionRecord{
		{
			Name: "greeting", MCPType: "prompt", ModuleName: "mod_greeting", ClassName: "Greeting", FunctionName: "render",
			Data: map[string]any{"arguments": []any{map[string]any{"name": "name", "required": true}}},
		},
	}

	_, err := engine.GetPrompt(context.Background(), key, "greeting", map[string]any{})
	require.Error(t, err)
	assert.True(t, mcperrors.Is(err, mcperrors.KindInvalidArgument))
}
