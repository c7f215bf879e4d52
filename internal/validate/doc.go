// Package validate implements mcpd's component D: a recursive JSON-Schema
// required-field and default-fill walker over inputSchema.properties (and
// any nested object/array children), per spec.md §4.D. It walks a generic
// JSON tree (map[string]any / []any), never host-language reflection, per
// the REDESIGN note in spec.md §9.
package validate
