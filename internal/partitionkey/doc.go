// Package partitionkey derives mcpd's per-tenant routing key from request
// context. Every cache entry, call record, function, module, and setting is
// keyed by the string this package produces: "endpoint_id" or
// "endpoint_id#part_id".
package partitionkey
