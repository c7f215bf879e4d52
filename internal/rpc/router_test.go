package rpc

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcpd/internal/mcperrors"
	"mcpd/internal/partitionkey"
)

type stubEngine struct {
	tools     []mcp.Tool
	resources []mcp.Resource
	prompts   []mcp.Prompt

	readResult  *mcp.ReadResourceResult
	promptResult *mcp.GetPromptResult
	callContent []mcp.Content

	err error

	lastCallName string
	lastCallArgs map[string]any
}

func (s *stubEngine) ListTools(ctx context.Context, partitionKey string) ([]mcp.Tool, error) {
	return s.tools, s.err
}

func (s *stubEngine) ListResources(ctx context.Context, partitionKey string) ([]mcp.Resource, error) {
	return s.resources, s.err
}

func (s *stubEngine) ListPrompts(ctx context.Context, partitionKey string) ([]mcp.Prompt, error) {
	return s.prompts, s.err
}

func (s *stubEngine) ReadResource(ctx context.Context, key partitionkey.Key, uri string) (*mcp.ReadResourceResult, error) {
	return s.readResult, s.err
}

func (s *stubEngine) GetPrompt(ctx context.Context, key partitionkey.Key, name string, arguments map[string]any) (*mcp.GetPromptResult, error) {
	return s.promptResult, s.err
}

func (s *stubEngine) CallTool(ctx context.Context, key partitionkey.Key, name string, arguments map[string]any) ([]mcp.Content, error) {
	s.lastCallName = name
	s.lastCallArgs = arguments
	return s.callContent, s.err
}

func testKey() partitionkey.Key {
	k, _ := partitionkey.Assemble("acme", "")
	return k
}

func TestInitializeReturnsStaticCapabilities(t *testing.T) {
	r := New(&stubEngine{}, "mcpd", "1.0.0")
	resp := r.Handle(context.Background(), testKey(), Request{JSONRPC: "2.0", ID: 1, Method: "initialize"})

	require.Nil(t, resp.Error)
	result := resp.Result.(map[string]any)
	assert.Equal(t, ProtocolVersion, result["protocolVersion"])
	info := result["serverInfo"].(map[string]any)
	assert.Equal(t, "mcpd", info["name"])
}

func TestToolsListSerializesInputSchema(t *testing.T) {
	engine := &stubEngine{tools: []mcp.Tool{
		{
			Name:        "echo",
			Description: "echoes input",
			InputSchema: mcp.ToolInputSchema{
				Type:       "object",
				Properties: map[string]any{"text": map[string]any{"type": "string"}},
				Required:   []string{"text"},
			},
		},
	}}
	r := New(engine, "mcpd", "1.0.0")
	resp := r.Handle(context.Background(), testKey(), Request{Method: "tools/list"})

	require.Nil(t, resp.Error)
	result := resp.Result.(map[string]any)
	tools := result["tools"].([]map[string]any)
	require.Len(t, tools, 1)
	schema := tools[0]["inputSchema"].(map[string]any)
	assert.Equal(t, []string{"text"}, schema["required"])
}

func TestToolsCallSerializesTextContent(t *testing.T) {
	engine := &stubEngine{callContent: []mcp.Content{mcp.TextContent{Type: "text", Text: "hello"}}}
	r := New(engine, "mcpd", "1.0.0")

	params, _ := json.Marshal(map[string]any{"name": "echo", "arguments": map[string]any{"text": "hi"}})
	resp := r.Handle(context.Background(), testKey(), Request{Method: "tools/call", Params: params})

	require.Nil(t, resp.Error)
	assert.Equal(t, "echo", engine.lastCallName)
	result := resp.Result.(map[string]any)
	content := result["content"].([]map[string]any)
	require.Len(t, content, 1)
	assert.Equal(t, "text", content[0]["type"])
	assert.Equal(t, "hello", content[0]["text"])
	assert.Equal(t, map[string]any{}, content[0]["_meta"])
}

func TestToolsCallMalformedParamsReturnsInvalidArgument(t *testing.T) {
	r := New(&stubEngine{}, "mcpd", "1.0.0")
	resp := r.Handle(context.Background(), testKey(), Request{Method: "tools/call", Params: json.RawMessage(`not json`)})

	require.NotNil(t, resp.Error)
	assert.Equal(t, mcperrors.RPCInternalError, resp.Error.Code)
}

func TestResourcesReadWrapsTextResourceContents(t *testing.T) {
	engine := &stubEngine{readResult: &mcp.ReadResourceResult{
		Contents: []mcp.ResourceContents{mcp.TextResourceContents{URI: "file:///a", MIMEType: "text/plain", Text: "body"}},
	}}
	r := New(engine, "mcpd", "1.0.0")

	params, _ := json.Marshal(map[string]any{"uri": "file:///a"})
	resp := r.Handle(context.Background(), testKey(), Request{Method: "resources/read", Params: params})

	require.Nil(t, resp.Error)
	result := resp.Result.(map[string]any)
	contents := result["contents"].([]map[string]any)
	require.Len(t, contents, 1)
	assert.Equal(t, "body", contents[0]["text"])
}

func TestPromptsGetSerializesMessages(t *testing.T) {
	engine := &stubEngine{promptResult: &mcp.GetPromptResult{
		Description: "greets",
		Messages: []mcp.PromptMessage{
			{Role: mcp.RoleUser, Content: mcp.TextContent{Type: "text", Text: "hi there"}},
		},
	}}
	r := New(engine, "mcpd", "1.0.0")

	params, _ := json.Marshal(map[string]any{"name": "greeting", "arguments": map[string]any{}})
	resp := r.Handle(context.Background(), testKey(), Request{Method: "prompts/get", Params: params})

	require.Nil(t, resp.Error)
	result := resp.Result.(map[string]any)
	messages := result["messages"].([]map[string]any)
	require.Len(t, messages, 1)
	assert.Equal(t, "user", messages[0]["role"])
}

func TestResourceTemplatesListReturnsEmptyStatic(t *testing.T) {
	r := New(&stubEngine{}, "mcpd", "1.0.0")
	resp := r.Handle(context.Background(), testKey(), Request{Method: "resources/templates/list"})

	require.Nil(t, resp.Error)
	result := resp.Result.(map[string]any)
	assert.Equal(t, []any{}, result["resourceTemplates"])
}

func TestUnknownMethodReturnsMethodNotFound(t *testing.T) {
	r := New(&stubEngine{}, "mcpd", "1.0.0")
	resp := r.Handle(context.Background(), testKey(), Request{Method: "bogus/method"})

	require.NotNil(t, resp.Error)
	assert.Equal(t, mcperrors.RPCMethodNotFound, resp.Error.Code)
	assert.Equal(t, "Method not found: bogus/method", resp.Error.Message)
}

func TestDispatchEngineFailureMapsToInternalErrorWithData(t *testing.T) {
	engine := &stubEngine{err: mcperrors.UnknownTool("ghost")}
	r := New(engine, "mcpd", "1.0.0")

	params, _ := json.Marshal(map[string]any{"name": "ghost", "arguments": map[string]any{}})
	resp := r.Handle(context.Background(), testKey(), Request{Method: "tools/call", Params: params})

	require.NotNil(t, resp.Error)
	assert.Equal(t, mcperrors.RPCInternalError, resp.Error.Code)
	assert.Equal(t, "Internal error", resp.Error.Message)
	assert.Contains(t, resp.Error.Data, "unknown tool: ghost")
}

func TestResponsePreservesRequestID(t *testing.T) {
	r := New(&stubEngine{}, "mcpd", "1.0.0")
	resp := r.Handle(context.Background(), testKey(), Request{ID: "req-7", Method: "initialize"})
	assert.Equal(t, "req-7", resp.ID)
}
