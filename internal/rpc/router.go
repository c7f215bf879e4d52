package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"mcpd/internal/mcperrors"
	"mcpd/internal/partitionkey"
)

// Dispatcher is the subset of *dispatch.Engine the router needs, extracted
// so Router can be tested against a stub rather than a fully wired engine.
type Dispatcher interface {
	ListTools(ctx context.Context, partitionKey string) ([]mcp.Tool, error)
	ListResources(ctx context.Context, partitionKey string) ([]mcp.Resource, error)
	ListPrompts(ctx context.Context, partitionKey string) ([]mcp.Prompt, error)
	ReadResource(ctx context.Context, key partitionkey.Key, uri string) (*mcp.ReadResourceResult, error)
	GetPrompt(ctx context.Context, key partitionkey.Key, name string, arguments map[string]any) (*mcp.GetPromptResult, error)
	CallTool(ctx context.Context, key partitionkey.Key, name string, arguments map[string]any) ([]mcp.Content, error)
}

// Router is component J: the MCP JSON-RPC method table, per spec.md §4.J.
type Router struct {
	engine        Dispatcher
	serverName    string
	serverVersion string
}

// New constructs a Router over engine. serverName/serverVersion are echoed
// back from the initialize method's serverInfo field.
func New(engine Dispatcher, serverName, serverVersion string) *Router {
	return &Router{engine: engine, serverName: serverName, serverVersion: serverVersion}
}

// Handle dispatches req against key's configuration and always returns a
// well-formed Response, even on failure.
func (r *Router) Handle(ctx context.Context, key partitionkey.Key, req Request) Response {
	resp := Response{JSONRPC: "2.0", ID: req.ID}

	result, err := r.dispatch(ctx, key, req.Method, req.Params)
	if err != nil {
		resp.Error = toRPCError(err)
		return resp
	}
	resp.Result = result
	return resp
}

func (r *Router) dispatch(ctx context.Context, key partitionkey.Key, method string, params json.RawMessage) (any, error) {
	switch method {
	case "initialize":
		return r.initialize(), nil
	case "tools/list":
		return r.toolsList(ctx, key)
	case "tools/call":
		return r.toolsCall(ctx, key, params)
	case "resources/list":
		return r.resourcesList(ctx, key)
	case "resources/templates/list":
		return map[string]any{"resourceTemplates": []any{}}, nil
	case "resources/read":
		return r.resourcesRead(ctx, key, params)
	case "prompts/list":
		return r.promptsList(ctx, key)
	case "prompts/get":
		return r.promptsGet(ctx, key, params)
	default:
		return nil, mcperrors.MethodNotFound(method)
	}
}

func (r *Router) initialize() map[string]any {
	return map[string]any{
		"protocolVersion": ProtocolVersion,
		"capabilities": map[string]any{
			"tools":     map[string]any{"listChanged": false},
			"resources": map[string]any{"subscribe": false, "listChanged": false},
			"prompts":   map[string]any{"listChanged": false},
		},
		"serverInfo": map[string]any{
			"name":    r.serverName,
			"version": r.serverVersion,
		},
	}
}

func (r *Router) toolsList(ctx context.Context, key partitionkey.Key) (any, error) {
	tools, err := r.engine.ListTools(ctx, key.PartitionKey)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(tools))
	for _, t := range tools {
		out = append(out, serializeTool(t))
	}
	return map[string]any{"tools": out}, nil
}

func serializeTool(t mcp.Tool) map[string]any {
	schema := map[string]any{"type": t.InputSchema.Type}
	if t.InputSchema.Properties != nil {
		schema["properties"] = t.InputSchema.Properties
	}
	if len(t.InputSchema.Required) > 0 {
		schema["required"] = t.InputSchema.Required
	}
	return map[string]any{
		"name":        t.Name,
		"description": t.Description,
		"inputSchema": schema,
	}
}

type toolCallParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

func (r *Router) toolsCall(ctx context.Context, key partitionkey.Key, raw json.RawMessage) (any, error) {
	var p toolCallParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, mcperrors.InvalidArgument("malformed tools/call params: %v", err)
	}
	content, err := r.engine.CallTool(ctx, key, p.Name, p.Arguments)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"content": serializeContentList(content),
		"isError": false,
	}, nil
}

func (r *Router) resourcesList(ctx context.Context, key partitionkey.Key) (any, error) {
	resources, err := r.engine.ListResources(ctx, key.PartitionKey)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(resources))
	for _, res := range resources {
		out = append(out, map[string]any{
			"uri":         res.URI,
			"name":        res.Name,
			"description": res.Description,
			"mimeType":    res.MIMEType,
		})
	}
	return map[string]any{"resources": out}, nil
}

type resourceReadParams struct {
	URI string `json:"uri"`
}

func (r *Router) resourcesRead(ctx context.Context, key partitionkey.Key, raw json.RawMessage) (any, error) {
	var p resourceReadParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, mcperrors.InvalidArgument("malformed resources/read params: %v", err)
	}
	result, err := r.engine.ReadResource(ctx, key, p.URI)
	if err != nil {
		return nil, err
	}
	contents := make([]map[string]any, 0, len(result.Contents))
	for _, c := range result.Contents {
		if tc, ok := c.(mcp.TextResourceContents); ok {
			contents = append(contents, map[string]any{
				"uri":      tc.URI,
				"mimeType": tc.MIMEType,
				"text":     tc.Text,
				"_meta":    map[string]any{},
			})
		}
	}
	return map[string]any{"contents": contents}, nil
}

func (r *Router) promptsList(ctx context.Context, key partitionkey.Key) (any, error) {
	prompts, err := r.engine.ListPrompts(ctx, key.PartitionKey)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(prompts))
	for _, p := range prompts {
		args := make([]map[string]any, 0, len(p.Arguments))
		for _, a := range p.Arguments {
			args = append(args, map[string]any{
				"name":        a.Name,
				"description": a.Description,
				"required":    a.Required,
			})
		}
		out = append(out, map[string]any{
			"name":        p.Name,
			"description": p.Description,
			"arguments":   args,
		})
	}
	return map[string]any{"prompts": out}, nil
}

type promptGetParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

func (r *Router) promptsGet(ctx context.Context, key partitionkey.Key, raw json.RawMessage) (any, error) {
	var p promptGetParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, mcperrors.InvalidArgument("malformed prompts/get params: %v", err)
	}
	result, err := r.engine.GetPrompt(ctx, key, p.Name, p.Arguments)
	if err != nil {
		return nil, err
	}
	messages := make([]map[string]any, 0, len(result.Messages))
	for _, m := range result.Messages {
		text, ok := mcp.AsTextContent(m.Content)
		if !ok {
			continue
		}
		messages = append(messages, map[string]any{
			"role": string(m.Role),
			"content": map[string]any{
				"type": "text",
				"text": text.Text,
			},
		})
	}
	return map[string]any{
		"description": result.Description,
		"messages":    messages,
	}, nil
}

// toRPCError maps a dispatch-layer error to a JSON-RPC error envelope, per
// spec.md §7: -32601 for an unrecognized method, -32603 with the stringified
// cause in Data for everything else.
func toRPCError(err error) *RPCError {
	var mcpErr *mcperrors.Error
	if errors.As(err, &mcpErr) {
		if mcpErr.Kind == mcperrors.KindMethodNotFound {
			return &RPCError{Code: mcpErr.RPCCode(), Message: mcpErr.Message}
		}
		return &RPCError{Code: mcpErr.RPCCode(), Message: "Internal error", Data: mcpErr.Error()}
	}
	return &RPCError{Code: mcperrors.RPCInternalError, Message: "Internal error", Data: fmt.Sprint(err)}
}
