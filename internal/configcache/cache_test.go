package configcache

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcpd/internal/configstore"
)

func TestFetchIsIdempotentWithoutMutation(t *testing.T) {
	fc := configstore.NewFakeClient()
	fc.Functions["acme"] = []configstore.FunctionRecord{
		{Name: "echo", MCPType: "tool", Description: "echoes input"},
	}
	cache := New(fc)

	v1, err := cache.Fetch(context.Background(), "acme", false)
	require.NoError(t, err)
	v2, err := cache.Fetch(context.Background(), "acme", false)
	require.NoError(t, err)

	assert.Same(t, v1, v2, "two fetches without refresh must return the same cached object")
}

func TestCascadingPurgeTriggersRebuild(t *testing.T) {
	fc := configstore.NewFakeClient()
	fc.Functions["acme"] = []configstore.FunctionRecord{{Name: "echo", MCPType: "tool"}}
	cache := New(fc)

	v1, err := cache.Fetch(context.Background(), "acme", false)
	require.NoError(t, err)

	triggered := cache.InvalidateFromMutation("acme", "insertUpdateMcpFunction")
	assert.True(t, triggered)

	fc.Functions["acme"] = append(fc.Functions["acme"], configstore.FunctionRecord{Name: "weather", MCPType: "tool"})

	v2, err := cache.Fetch(context.Background(), "acme", false)
	require.NoError(t, err)

	assert.NotSame(t, v1, v2)
	assert.Len(t, v2.Tools, 2)
}

func TestNonTriggeringMutationLeavesCacheIntact(t *testing.T) {
	fc := configstore.NewFakeClient()
	fc.Functions["acme"] = []configstore.FunctionRecord{{Name: "echo", MCPType: "tool"}}
	cache := New(fc)

	v1, _ := cache.Fetch(context.Background(), "acme", false)
	triggered := cache.InvalidateFromMutation("acme", "insertUpdateMcpFunctionCall")
	assert.False(t, triggered)

	v2, _ := cache.Fetch(context.Background(), "acme", false)
	assert.Same(t, v1, v2)
}

func TestConcurrentColdFetchProducesFullyBuiltView(t *testing.T) {
	fc := configstore.NewFakeClient()
	fc.Functions["acme"] = []configstore.FunctionRecord{
		{Name: "echo", MCPType: "tool", ModuleName: "mod_echo", ClassName: "Echo"},
	}
	fc.Modules["acme"] = map[string]configstore.ModuleRecord{
		"mod_echo": {ModuleName: "mod_echo", PackageName: "pkg_echo", Classes: []configstore.ModuleClass{{ClassName: "Echo", SettingID: "s1"}}},
	}
	fc.Settings["acme"] = map[string]configstore.SettingRecord{
		"s1": {SettingID: "s1", Setting: map[string]any{"greeting": "hi"}},
	}
	cache := New(fc)

	const n = 20
	var wg sync.WaitGroup
	views := make([]*View, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := cache.Fetch(context.Background(), "acme", false)
			require.NoError(t, err)
			views[i] = v
		}(i)
	}
	wg.Wait()

	for _, v := range views {
		require.NotNil(t, v)
		require.Len(t, v.Modules, 1)
		assert.Equal(t, "hi", v.Modules[0].Setting["greeting"])
	}
}

func TestBuildMergesModuleLinksAndSettings(t *testing.T) {
	fc := configstore.NewFakeClient()
	fc.Functions["acme"] = []configstore.FunctionRecord{
		{Name: "echo", MCPType: "tool", Description: "d", Data: map[string]any{"inputSchema": map[string]any{}},
			ModuleName: "mod_echo", ClassName: "Echo", FunctionName: "run", ReturnType: "", IsAsync: false},
	}
	fc.Modules["acme"] = map[string]configstore.ModuleRecord{
		"mod_echo": {ModuleName: "mod_echo", PackageName: "pkg_echo", Classes: []configstore.ModuleClass{{ClassName: "Echo", SettingID: "s1"}}},
	}
	fc.Settings["acme"] = map[string]configstore.SettingRecord{
		"s1": {SettingID: "s1", Setting: map[string]any{"k": "v"}},
	}

	cache := New(fc)
	view, err := cache.Fetch(context.Background(), "acme", false)
	require.NoError(t, err)

	require.Len(t, view.Tools, 1)
	assert.Equal(t, "echo", view.Tools[0]["name"])
	assert.Contains(t, view.Tools[0], "inputSchema")

	link, ok := view.FindModuleLink("echo", "tool")
	require.True(t, ok)
	assert.Equal(t, "text", link.ReturnType, "return_type defaults to text")

	mod, ok := view.FindModule("mod_echo", "Echo")
	require.True(t, ok)
	assert.Equal(t, "v", mod.Setting["k"])
}

func TestModuleFailureDegradesGracefully(t *testing.T) {
	fc := configstore.NewFakeClient()
	fc.Functions["acme"] = []configstore.FunctionRecord{
		{Name: "echo", MCPType: "tool", ModuleName: "mod_missing", ClassName: "Echo"},
	}
	// No module record seeded: c.store.Module returns nil, nil - module skipped.
	cache := New(fc)

	view, err := cache.Fetch(context.Background(), "acme", false)
	require.NoError(t, err)
	assert.Empty(t, view.Modules)
	assert.Len(t, view.ModuleLinks, 1, "module_links still recorded even if module record is missing")
}
