// Package dispatch implements mcpd's components F and G: the dispatch
// engine (list/call/read/get operations against the cached configuration)
// and the async dispatcher (background execution with a poll-for-completion
// contract), per spec.md §4.F-G.
package dispatch
