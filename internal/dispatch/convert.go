package dispatch

import "github.com/mark3labs/mcp-go/mcp"

func toMCPTool(entry map[string]any) mcp.Tool {
	tool := mcp.Tool{
		Name:        stringField(entry, "name"),
		Description: stringField(entry, "description"),
	}
	if schema, ok := entry["inputSchema"].(map[string]any); ok {
		tool.InputSchema = mcp.ToolInputSchema{
			Type:       stringFieldDefault(schema, "type", "object"),
			Properties: mapField(schema, "properties"),
			Required:   stringSliceField(schema, "required"),
		}
	} else {
		tool.InputSchema = mcp.ToolInputSchema{Type: "object"}
	}
	return tool
}

func toMCPResource(entry map[string]any) mcp.Resource {
	return mcp.Resource{
		URI:         stringField(entry, "uri"),
		Name:        stringField(entry, "name"),
		Description: stringField(entry, "description"),
		MIMEType:    stringField(entry, "mimeType"),
	}
}

func toMCPPrompt(entry map[string]any) mcp.Prompt {
	prompt := mcp.Prompt{
		Name:        stringField(entry, "name"),
		Description: stringField(entry, "description"),
	}
	for _, raw := range sliceField(entry, "arguments") {
		arg, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		required, _ := arg["required"].(bool)
		prompt.Arguments = append(prompt.Arguments, mcp.PromptArgument{
			Name:        stringField(arg, "name"),
			Description: stringField(arg, "description"),
			Required:    required,
		})
	}
	return prompt
}

func requiredPromptArgs(entry map[string]any) []string {
	var out []string
	for _, raw := range sliceField(entry, "arguments") {
		arg, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		if required, _ := arg["required"].(bool); required {
			out = append(out, stringField(arg, "name"))
		}
	}
	return out
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func stringFieldDefault(m map[string]any, key, def string) string {
	if s, ok := m[key].(string); ok && s != "" {
		return s
	}
	return def
}

func mapField(m map[string]any, key string) map[string]any {
	v, _ := m[key].(map[string]any)
	return v
}

func sliceField(m map[string]any, key string) []any {
	v, _ := m[key].([]any)
	return v
}

func stringSliceField(m map[string]any, key string) []string {
	raw, _ := m[key].([]any)
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
