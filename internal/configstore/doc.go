// Package configstore is the client for mcpd's upstream metadata store: a
// GraphQL service backed by a key/value table store (external collaborator,
// specified only at its interface boundary per spec.md §1). It issues the
// three fixed queries the configuration cache (internal/configcache) needs
// (mcp_function_list, mcp_module, mcp_setting) plus the mutation operations
// the call recorder (internal/callrecord) needs to persist function-call
// records, all against a single GraphQL endpoint per partition key.
package configstore
