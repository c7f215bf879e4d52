package configcache

import "mcpd/internal/configstore"

// CascadeDepth bounds the cascading-invalidation traversal described in
// spec.md §4.H / §9: the dependency DAG is
// mcp_setting -> mcp_module -> mcp_function -> mcp_function_call, and a
// single mutation never needs to walk further than this many hops to reach
// every dependent entity kind.
const CascadeDepth = 3

// entityOrder is the DAG's topological order, setting first.
var entityOrder = []string{"mcp_setting", "mcp_module", "mcp_function", "mcp_function_call"}

// mutationEntityKind maps a GraphQL mutation name to the entity kind it
// touches, for cascade bookkeeping.
var mutationEntityKind = map[string]string{
	"insertUpdateMcpFunction": "mcp_function",
	"deleteMcpFunction":       "mcp_function",
	"insertUpdateMcpModule":   "mcp_module",
	"deleteMcpModule":         "mcp_module",
	"insertUpdateMcpSetting":  "mcp_setting",
	"deleteMcpSetting":        "mcp_setting",
}

// downstreamKinds returns every entity kind at or after kind in entityOrder,
// bounded by CascadeDepth hops.
func downstreamKinds(kind string) []string {
	start := -1
	for i, k := range entityOrder {
		if k == kind {
			start = i
			break
		}
	}
	if start == -1 {
		return nil
	}
	end := start + CascadeDepth + 1
	if end > len(entityOrder) {
		end = len(entityOrder)
	}
	return entityOrder[start:end]
}

// InvalidateFromMutation purges partitionKey's cached view if mutationName
// is one of the entity-mutating operations in
// configstore.MutationTriggersInvalidation. It reports whether a purge
// happened. Because mcpd's cache has a single materialised-view layer (no
// separate per-entity row/list memos), every downstream kind the DAG names
// collapses to the same purge; downstreamKinds is retained to make the
// cascade's bound explicit and testable rather than folding it away.
func (c *Cache) InvalidateFromMutation(partitionKey, mutationName string) bool {
	kind, ok := mutationEntityKind[mutationName]
	if !ok || !configstore.MutationTriggersInvalidation[mutationName] {
		return false
	}
	if len(downstreamKinds(kind)) == 0 {
		return false
	}
	c.Clear(partitionKey)
	return true
}
