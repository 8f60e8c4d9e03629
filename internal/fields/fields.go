// Package fields works with the loosely typed JSON objects that make up conda
// repository and channel metadata. Records carry fields this module never
// interprets, so values stay in their decoded form and are deep-copied rather
// than mapped onto structs.
package fields

import "encoding/json"

// Clone deep-copies a decoded JSON object. Scalars are shared; maps and
// slices are copied recursively.
func Clone(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch v := v.(type) {
	case map[string]any:
		return Clone(v)
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

// String returns the named field as a string, or "" when absent or not
// textual.
func String(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	default:
		return ""
	}
}

// Int64 returns the named field as an integer, accepting the numeric forms
// a JSON decoder may produce. Absent or non-numeric fields yield zero.
func Int64(m map[string]any, key string) int64 {
	switch v := m[key].(type) {
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n
		}
		if f, err := v.Float64(); err == nil {
			return int64(f)
		}
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	}
	return 0
}

// Strings returns the named field as a string slice. Non-string elements are
// skipped.
func Strings(m map[string]any, key string) []string {
	switch v := m[key].(type) {
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case []string:
		out := make([]string, len(v))
		copy(out, v)
		return out
	default:
		return nil
	}
}

// Object returns the named field as a nested JSON object, or nil when absent
// or of another type.
func Object(m map[string]any, key string) map[string]any {
	v, _ := m[key].(map[string]any)
	return v
}
