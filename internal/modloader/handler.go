package modloader

import "context"

// Handler is the capability set every tool/resource/prompt module exposes
// once constructed, per the REDESIGN note in spec.md §9: a registered
// constructor in place of the source language's dynamic
// `getattr(__import__(module), function)`.
type Handler interface {
	// Invoke calls functionName on the handler with args and returns the
	// raw result value: a string, a map[string]any, or any other
	// JSON-compatible value, for the dispatch engine (internal/dispatch) to
	// classify per spec.md §4.F.
	Invoke(ctx context.Context, functionName string, args map[string]any) (any, error)
}

// PartitionKeySetter is implemented by handlers that need to know the
// partition key of the request that constructed them. spec.md §4.C: "if the
// resulting object has a writable partition_key field, set it" — modelled
// here as an interface rather than reflection, per §9's reflection note.
type PartitionKeySetter interface {
	SetPartitionKey(partitionKey string)
}

// Logger is the logging capability passed to a handler constructor, per
// spec.md §4.C's "instantiate the class with a logger and the setting map".
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(err error, format string, args ...any)
}

// Constructor builds a Handler from a logger and the class's setting map.
type Constructor func(logger Logger, setting map[string]any) (Handler, error)
