package rpc

import "github.com/mark3labs/mcp-go/mcp"

// serializeContentList turns dispatch engine content into the wire shape
// spec.md §4.J requires: each item is a canonical object carrying its own
// "_meta" placeholder, grounded on the teacher's serializePromptContent in
// internal/metatools/handlers.go.
func serializeContentList(items []mcp.Content) []map[string]any {
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		out = append(out, serializeContent(item))
	}
	return out
}

func serializeContent(item mcp.Content) map[string]any {
	if text, ok := mcp.AsTextContent(item); ok {
		return map[string]any{
			"type":  "text",
			"text":  text.Text,
			"_meta": map[string]any{},
		}
	}
	if image, ok := mcp.AsImageContent(item); ok {
		return map[string]any{
			"type":     "image",
			"data":     image.Data,
			"mimeType": image.MIMEType,
			"_meta":    map[string]any{},
		}
	}
	if audio, ok := mcp.AsAudioContent(item); ok {
		return map[string]any{
			"type":     "audio",
			"data":     audio.Data,
			"mimeType": audio.MIMEType,
			"_meta":    map[string]any{},
		}
	}
	if resource, ok := mcp.AsEmbeddedResource(item); ok {
		return map[string]any{
			"type":     "resource",
			"resource": resource.Resource,
			"_meta":    map[string]any{},
		}
	}
	return map[string]any{"_meta": map[string]any{}}
}
