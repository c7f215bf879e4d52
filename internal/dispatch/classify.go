package dispatch

import (
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"mcpd/internal/mcperrors"
)

// classifyContent wraps a handler's return value as MCP content according
// to the module_link's return_type ("text" | "image" | "embedded_resource"),
// per spec.md §4.F step 6.
func classifyContent(returnType string, result any) ([]mcp.Content, error) {
	switch returnType {
	case "image":
		return classifyImage(result)
	case "embedded_resource":
		return classifyEmbeddedResource(result)
	default:
		return classifyText(result)
	}
}

func classifyText(result any) ([]mcp.Content, error) {
	return []mcp.Content{mcp.TextContent{Type: "text", Text: toText(result)}}, nil
}

func classifyImage(result any) ([]mcp.Content, error) {
	if s, ok := result.(string); ok {
		return []mcp.Content{mcp.ImageContent{Type: "image", Data: s, MIMEType: "image/png"}}, nil
	}
	m, ok := result.(map[string]any)
	if !ok {
		return nil, mcperrors.InvalidArgument("image handler returned %T, expected a base64 string or an object with data/mimeType", result)
	}
	data, _ := m["data"].(string)
	mimeType := stringFieldDefault(m, "mimeType", "image/png")
	return []mcp.Content{mcp.ImageContent{Type: "image", Data: data, MIMEType: mimeType}}, nil
}

func classifyEmbeddedResource(result any) ([]mcp.Content, error) {
	var uri, text, mimeType string
	switch v := result.(type) {
	case map[string]any:
		uri = stringField(v, "uri")
		text = stringField(v, "text")
		mimeType = stringField(v, "mimeType")
	case string:
		text = v
	}
	if mimeType == "" {
		mimeType = inferMIMEType(text)
	}
	return []mcp.Content{
		mcp.EmbeddedResource{
			Type:     "resource",
			Resource: mcp.TextResourceContents{URI: uri, MIMEType: mimeType, Text: text},
		},
	}, nil
}

func toText(result any) string {
	switch v := result.(type) {
	case string:
		return v
	case map[string]any, []any:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func inferMIMEType(text string) string {
	if text != "" && json.Valid([]byte(text)) {
		return "application/json"
	}
	return "text/plain"
}
