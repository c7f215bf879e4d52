package mcperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// JSON-RPC error codes used across the MCP method table.
const (
	RPCMethodNotFound = -32601
	RPCInternalError  = -32603
)

// Kind classifies an mcpd error for transport-agnostic handling.
type Kind int

const (
	KindInvalidArgument Kind = iota
	KindUnauthenticated
	KindRateLimited
	KindUnknownTool
	KindUnknownResource
	KindUnknownPrompt
	KindHandlerConstructionFailed
	KindModuleUnavailable
	KindUpstreamFailure
	KindUpstreamSemanticError
	KindItemTooLarge
	KindMethodNotFound
	KindInternal
)

// Error is the single error type mcpd raises across its components. Callers
// build one with New, Wrap or the constructors below (e.g. MissingArgument
// for the missing-argument path) and test for a kind with Is, which uses
// errors.As and so also sees an Error wrapped with fmt.Errorf("%w").
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// HTTPStatus maps the error's Kind to the status code used by the plain REST
// surface (auth, health, admin cache). MCP JSON-RPC responses never surface
// a raw HTTP status for method errors; they always respond 200 with a
// JSON-RPC error envelope, per spec.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindInvalidArgument:
		return http.StatusBadRequest
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindUpstreamFailure, KindUpstreamSemanticError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// RPCCode maps the error's Kind to a JSON-RPC error code. Most kinds surface
// as -32603 (Internal error) per spec §7; only KindMethodNotFound, which the
// RPC router raises for an unrecognized method (see internal/rpc), maps to
// -32601.
func (e *Error) RPCCode() int {
	if e.Kind == KindMethodNotFound {
		return RPCMethodNotFound
	}
	return RPCInternalError
}

// New constructs an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap constructs an Error of the given kind around a cause.
func Wrap(kind Kind, cause error, message string) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Is reports whether err (or anything it wraps) is an mcperrors.Error of the
// given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}

// Convenience constructors mirroring spec.md §7's taxonomy, in the style of
// the teacher's per-resource NotFoundError constructor table.

func InvalidArgument(format string, args ...interface{}) *Error {
	return New(KindInvalidArgument, fmt.Sprintf(format, args...))
}

func MissingArgument(path string) *Error {
	return New(KindInvalidArgument, fmt.Sprintf("Missing required argument: %s", path))
}

func Unauthenticated(message string) *Error {
	return New(KindUnauthenticated, message)
}

func RateLimited(message string) *Error {
	return New(KindRateLimited, message)
}

func UnknownTool(name string) *Error {
	return New(KindUnknownTool, fmt.Sprintf("unknown tool: %s", name))
}

func UnknownResource(uri string) *Error {
	return New(KindUnknownResource, fmt.Sprintf("unknown resource: %s", uri))
}

func UnknownPrompt(name string) *Error {
	return New(KindUnknownPrompt, fmt.Sprintf("unknown prompt: %s", name))
}

func HandlerConstructionFailed(cause error, module, class string) *Error {
	return Wrap(KindHandlerConstructionFailed, cause, fmt.Sprintf("failed to construct handler %s.%s", module, class))
}

func ModuleUnavailable(module string) *Error {
	return New(KindModuleUnavailable, fmt.Sprintf("module not resolvable in-process: %s", module))
}

func UpstreamFailure(cause error) *Error {
	return Wrap(KindUpstreamFailure, cause, "upstream metadata store transport error")
}

func UpstreamSemanticError(message string) *Error {
	return New(KindUpstreamSemanticError, message)
}

func ItemTooLarge(message string) *Error {
	return New(KindItemTooLarge, message)
}

func MethodNotFound(method string) *Error {
	return New(KindMethodNotFound, fmt.Sprintf("Method not found: %s", method))
}

func Internal(cause error) *Error {
	return Wrap(KindInternal, cause, "internal error")
}
