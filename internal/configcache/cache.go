package configcache

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	"mcpd/internal/configstore"
	"mcpd/pkg/logging"
)

// Cache is the component H configuration cache: a per-partition
// materialised view with explicit refresh and cascading invalidation.
//
// Concurrency: views is guarded by mu; cold builds for the same partition
// are coalesced by a singleflight.Group so "at most one concurrent build
// per partition" holds even though spec.md §5 only requires it as a MAY.
type Cache struct {
	mu    sync.RWMutex
	views map[string]*View

	store configstore.Client
	group singleflight.Group
}

// New constructs an empty Cache backed by store.
func New(store configstore.Client) *Cache {
	return &Cache{
		views: make(map[string]*View),
		store: store,
	}
}

// Fetch returns the materialised view for partitionKey, building it on a
// cold cache or when forceRefresh is set.
func (c *Cache) Fetch(ctx context.Context, partitionKey string, forceRefresh bool) (*View, error) {
	if !forceRefresh {
		c.mu.RLock()
		v, ok := c.views[partitionKey]
		c.mu.RUnlock()
		if ok {
			return v, nil
		}
	}

	result, err, _ := c.group.Do(partitionKey, func() (any, error) {
		v, err := c.build(ctx, partitionKey)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.views[partitionKey] = v
		c.mu.Unlock()
		return v, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*View), nil
}

// Refresh forces a rebuild of partitionKey's view.
func (c *Cache) Refresh(ctx context.Context, partitionKey string) (*View, error) {
	return c.Fetch(ctx, partitionKey, true)
}

// Clear removes one partition's view, or every view if partitionKey is "".
func (c *Cache) Clear(partitionKey string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if partitionKey == "" {
		c.views = make(map[string]*View)
		return
	}
	delete(c.views, partitionKey)
}

// Cached reports whether partitionKey currently has a materialised view,
// without triggering a build.
func (c *Cache) Cached(partitionKey string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.views[partitionKey]
	return ok
}

// Stats reports the number of cached partitions, for /metrics.
func (c *Cache) Stats() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return map[string]any{"cached_partitions": len(c.views)}
}

func (c *Cache) build(ctx context.Context, partitionKey string) (*View, error) {
	functions, err := c.store.FunctionList(ctx, partitionKey)
	if err != nil {
		return nil, err
	}

	view := &View{}
	for _, fn := range functions {
		entry := map[string]any{
			"name":        fn.Name,
			"description": fn.Description,
			"annotations": fn.Annotations,
		}
		for k, v := range fn.Data {
			entry[k] = v
		}

		switch fn.MCPType {
		case "tool":
			view.Tools = append(view.Tools, entry)
		case "resource":
			view.Resources = append(view.Resources, entry)
		case "prompt":
			view.Prompts = append(view.Prompts, entry)
		default:
			logging.Warn("Cache", "function %s has unknown mcp_type %q, skipping", fn.Name, fn.MCPType)
			continue
		}

		if fn.ModuleName != "" && fn.ClassName != "" {
			view.ModuleLinks = append(view.ModuleLinks, ModuleLink{
				Type:         fn.MCPType,
				Name:         fn.Name,
				ModuleName:   fn.ModuleName,
				ClassName:    fn.ClassName,
				FunctionName: fn.FunctionName,
				ReturnType:   returnTypeOrDefault(fn.ReturnType),
				IsAsync:      fn.IsAsync,
			})
		}
	}

	modulesByName := groupLinksByModule(view.ModuleLinks)
	for moduleName, classNames := range modulesByName {
		mod, err := c.store.Module(ctx, partitionKey, moduleName)
		if err != nil || mod == nil {
			logging.Warn("Cache", "module %s unavailable for partition %s, skipping", moduleName, partitionKey)
			continue
		}

		settingByID := map[string]ModuleClass{}
		for _, cl := range mod.Classes {
			settingByID[cl.ClassName] = cl
		}

		for className := range classNames {
			setting := map[string]any{}
			if cl, ok := settingByID[className]; ok && cl.SettingID != "" {
				rec, err := c.store.Setting(ctx, partitionKey, cl.SettingID)
				if err != nil || rec == nil {
					logging.Warn("Cache", "setting for %s.%s unavailable, using empty setting map", moduleName, className)
				} else {
					setting = rec.Setting
				}
			}
			view.Modules = append(view.Modules, ModuleEntry{
				ModuleName:  mod.ModuleName,
				PackageName: mod.PackageName,
				ClassName:   className,
				Setting:     setting,
				Source:      mod.Source,
			})
		}
	}

	return view, nil
}

func returnTypeOrDefault(rt string) string {
	if rt == "" {
		return "text"
	}
	return rt
}

func groupLinksByModule(links []ModuleLink) map[string]map[string]bool {
	out := map[string]map[string]bool{}
	for _, l := range links {
		if out[l.ModuleName] == nil {
			out[l.ModuleName] = map[string]bool{}
		}
		out[l.ModuleName][l.ClassName] = true
	}
	return out
}
