// Package callrecord implements mcpd's component E: the function-call
// recorder. It creates and updates mcp_function_call records against the
// configuration store (internal/configstore), offloading oversized content
// to the blob store (internal/blob) when the metadata store reports
// mcperrors.KindItemTooLarge, per spec.md §4.E.
package callrecord
