// Where: internal/domain/value/value.go
// What: Value helpers for the loosely typed service document.
// Why: Keep navigation and coercion of map[string]any data concise.
package value

import (
	"fmt"
	"strconv"
	"strings"
)

// AsMap converts a value to map form when possible.
func AsMap(value any) map[string]any {
	switch typed := value.(type) {
	case map[string]any:
		return typed
	case map[any]any:
		out := make(map[string]any, len(typed))
		for k, v := range typed {
			out[fmt.Sprint(k)] = v
		}
		return out
	}
	return nil
}

// AsSlice converts a value to slice form, wrapping scalars when needed.
func AsSlice(value any) []any {
	switch typed := value.(type) {
	case nil:
		return nil
	case []any:
		return typed
	case []string:
		out := make([]any, 0, len(typed))
		for _, item := range typed {
			out = append(out, item)
		}
		return out
	}
	return []any{value}
}

// AsString returns the string representation of a value.
func AsString(value any) string {
	if value == nil {
		return ""
	}
	if s, ok := value.(string); ok {
		return s
	}
	return fmt.Sprint(value)
}

// AsStringDefault returns a string representation or the fallback.
func AsStringDefault(value any, fallback string) string {
	if out := AsString(value); out != "" {
		return out
	}
	return fallback
}

// AsIntPointer attempts to coerce a value into an int pointer.
func AsIntPointer(value any) (*int, bool) {
	switch typed := value.(type) {
	case int:
		return &typed, true
	case int64:
		intVal := int(typed)
		return &intVal, true
	case float64:
		intVal := int(typed)
		return &intVal, true
	case string:
		if parsed, err := strconv.Atoi(strings.TrimSpace(typed)); err == nil {
			return &parsed, true
		}
	}
	return nil, false
}

// AsIntDefault converts a value to int or returns the fallback.
func AsIntDefault(value any, fallback int) int {
	if val, ok := AsIntPointer(value); ok {
		return *val
	}
	return fallback
}

// IsSet reports whether a string option carries a value. Unresolved
// variables come back as the literal "null" and count as unset.
func IsSet(s string) bool {
	return s != "" && s != "null"
}

// Truthy mirrors the emptiness checks applied to provider environment values.
func Truthy(value any) bool {
	switch typed := value.(type) {
	case nil:
		return false
	case string:
		return typed != ""
	case bool:
		return typed
	case int:
		return typed != 0
	case int64:
		return typed != 0
	case float64:
		return typed != 0
	}
	return true
}

// Lookup walks a dotted path through nested maps.
func Lookup(root map[string]any, path string) (any, bool) {
	var current any = root
	for _, part := range strings.Split(path, ".") {
		m := AsMap(current)
		if m == nil {
			return nil, false
		}
		next, ok := m[part]
		if !ok {
			return nil, false
		}
		current = next
	}
	return current, true
}

// DeepCopy clones maps and slices; scalars are shared.
func DeepCopy(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(typed))
		for k, v := range typed {
			out[k] = DeepCopy(v)
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for i, v := range typed {
			out[i] = DeepCopy(v)
		}
		return out
	}
	return value
}

// CopyMap returns a deep copy of m, or an empty map when m is nil.
func CopyMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return DeepCopy(m).(map[string]any)
}
