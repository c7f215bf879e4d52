// Package configcache implements mcpd's component H: a per-partition
// materialised configuration view assembled from three upstream queries
// (internal/configstore), with explicit refresh and cascading
// invalidation across the setting -> module -> function -> function_call
// dependency DAG described in spec.md §4.H.
package configcache
