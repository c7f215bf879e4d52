// Package serverconfig loads mcpd's environment-style configuration, per
// spec.md §6's config-inputs table, following the teacher's
// internal/config loader shape (defaults, then a YAML overlay, then secret
// resolution from *_FILE-suffixed paths) adapted to env vars instead of a
// config directory tree.
package serverconfig
