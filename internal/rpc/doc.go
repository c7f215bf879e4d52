// Package rpc implements mcpd's component J: the MCP JSON-RPC 2.0 request
// processor, dispatching initialize/tools/resources/prompts methods against
// the dispatch engine and serialising MCP content into wire objects, per
// spec.md §4.J.
package rpc
