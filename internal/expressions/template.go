package expressions

import (
	"encoding/json"
	"fmt"
	"strings"
)

// RenderTemplate substitutes {{key}} tokens in a string against the provided
// data. Keys may be dotted paths navigating nested maps ("user.name").
// Scalars are stringified, maps and slices are JSON-encoded inline, and a
// token whose key is absent from the data is left verbatim.
func RenderTemplate(template string, data map[string]any) string {
	if !strings.Contains(template, "{{") {
		return template
	}

	var result strings.Builder
	result.Grow(len(template))

	i := 0
	for i < len(template) {
		idx := strings.Index(template[i:], "{{")
		if idx == -1 {
			result.WriteString(template[i:])
			break
		}

		// Write everything before the marker.
		result.WriteString(template[i : i+idx])
		start := i + idx + 2 // skip "{{".

		end := strings.Index(template[start:], "}}")
		if end == -1 {
			// Unclosed token: keep the rest verbatim.
			result.WriteString(template[i+idx:])
			break
		}
		end += start

		key := strings.TrimSpace(template[start:end])

		val, ok := lookupPath(data, key)
		if !ok {
			// Unknown key: keep the original token.
			result.WriteString(template[i+idx : end+2])
		} else {
			result.WriteString(stringify(val))
		}

		i = end + 2 // skip "}}".
	}

	return result.String()
}

// RenderTemplates walks a parameter map and renders every string value in
// place, recursing into nested maps and slices. Returns a new map; the input
// is not mutated.
func RenderTemplates(params map[string]any, data map[string]any) map[string]any {
	if params == nil {
		return nil
	}
	out := make(map[string]any, len(params))
	for k, v := range params {
		out[k] = renderValue(v, data)
	}
	return out
}

func renderValue(v any, data map[string]any) any {
	switch val := v.(type) {
	case string:
		return RenderTemplate(val, data)
	case map[string]any:
		return RenderTemplates(val, data)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = renderValue(item, data)
		}
		return out
	default:
		return v
	}
}

// lookupPath resolves a dotted key path from a map. Direct key lookup is
// tried first so keys containing dots still resolve.
func lookupPath(data map[string]any, key string) (any, bool) {
	if data == nil || key == "" {
		return nil, false
	}

	if val, ok := data[key]; ok {
		return val, true
	}

	segments := strings.Split(key, ".")
	var current any = data
	for _, seg := range segments {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// stringify converts a resolved value into its inline string representation.
// Complex types are JSON-encoded so they survive embedding in URLs and bodies.
func stringify(val any) string {
	switch v := val.(type) {
	case string:
		return v
	case nil:
		return "null"
	case bool:
		if v {
			return "true"
		}
		return "false"
	case float64:
		return fmt.Sprintf("%v", v)
	case int:
		return fmt.Sprintf("%d", v)
	case int64:
		return fmt.Sprintf("%d", v)
	case json.RawMessage:
		return string(v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(b)
	}
}
