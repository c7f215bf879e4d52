package validate

import (
	"fmt"

	"mcpd/internal/mcperrors"
)

// Validate walks schema's "properties" (and any nested object/array
// children) against args, filling defaults and failing on missing required
// fields, per spec.md §4.D. args is mutated in place. A nil schema, or a
// schema with no properties, performs no validation.
func Validate(schema map[string]any, args map[string]any) error {
	if schema == nil {
		return nil
	}
	properties, _ := schema["properties"].(map[string]any)
	if len(properties) == 0 {
		return nil
	}
	if args == nil {
		args = map[string]any{}
	}
	return validateObject("", schema, args)
}

func validateObject(path string, schema map[string]any, target map[string]any) error {
	properties, _ := schema["properties"].(map[string]any)
	required := toStringSlice(schema["required"])

	for key, propSchemaRaw := range properties {
		propSchema, _ := propSchemaRaw.(map[string]any)
		fieldPath := joinPath(path, key)

		val, present := target[key]
		if !present {
			if def, ok := propSchema["default"]; ok {
				val = deepCopy(def)
				target[key] = val
				present = true
			} else if contains(required, key) {
				return mcperrors.MissingArgument(fieldPath)
			} else {
				continue
			}
		}

		if propSchema == nil {
			continue
		}

		switch propSchema["type"] {
		case "object":
			if childMap, ok := val.(map[string]any); ok {
				if err := validateObject(fieldPath, propSchema, childMap); err != nil {
					return err
				}
			}
		case "array":
			itemsSchema, _ := propSchema["items"].(map[string]any)
			if itemsSchema == nil {
				continue
			}
			arr, ok := val.([]any)
			if !ok {
				continue
			}
			for i, elem := range arr {
				idxPath := fmt.Sprintf("%s[%d]", fieldPath, i)
				if itemsSchema["type"] == "object" {
					if elemMap, ok := elem.(map[string]any); ok {
						if err := validateObject(idxPath, itemsSchema, elemMap); err != nil {
							return err
						}
					}
				}
			}
		}
	}

	return nil
}

func joinPath(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

func toStringSlice(v any) []string {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// deepCopy recursively copies maps and slices so a filled-in default never
// aliases the schema literal it came from.
func deepCopy(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, v := range val {
			out[k] = deepCopy(v)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, v := range val {
			out[i] = deepCopy(v)
		}
		return out
	default:
		return val
	}
}
