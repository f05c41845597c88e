// Package normalize maps raw remote payloads onto the canonical data held by a result.
package normalize

import (
	"fmt"
	"strings"

	json "github.com/goccy/go-json"
)

// Shape declares how canonical data is extracted from a raw payload.
type Shape string

// Supported shapes.
const (
	OrganicList  Shape = "organic-list"
	OpaqueRecord Shape = "opaque-record"
	OpaqueList   Shape = "opaque-list"
	RawText      Shape = "raw-text"
)

// OrganicKey is the payload key holding ranked search entries.
const OrganicKey = "organic"

const htmlDetectionWindow = 200

// ParseShape resolves a shape name.
func ParseShape(name string) (Shape, error) {
	switch s := Shape(strings.ToLower(strings.TrimSpace(name))); s {
	case OrganicList, OpaqueRecord, OpaqueList, RawText:
		return s, nil
	default:
		return "", fmt.Errorf("unknown response shape %q", name)
	}
}

// Normalize extracts canonical data from raw according to shape. It never
// panics and always returns the container kind the shape promises: []any for
// list shapes, map[string]any for records, string for raw text.
func Normalize(raw any, shape Shape) any {
	switch shape {
	case OrganicList:
		return organic(raw)
	case OpaqueRecord:
		return record(raw)
	case OpaqueList:
		return list(raw)
	case RawText:
		return text(raw)
	default:
		return raw
	}
}

// Empty returns the zero container for shape.
func Empty(shape Shape) any {
	switch shape {
	case OrganicList, OpaqueList:
		return []any{}
	case OpaqueRecord:
		return map[string]any{}
	case RawText:
		return ""
	default:
		return nil
	}
}

func organic(raw any) []any {
	m, ok := raw.(map[string]any)
	if !ok {
		return []any{}
	}
	entries, ok := asList(m[OrganicKey])
	if !ok {
		return []any{}
	}
	return entries
}

func record(raw any) map[string]any {
	if m, ok := raw.(map[string]any); ok {
		return m
	}
	return marker("record", raw)
}

func list(raw any) []any {
	if raw == nil {
		return []any{}
	}
	if entries, ok := asList(raw); ok {
		return entries
	}
	return []any{marker("list", raw)}
}

func text(raw any) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(encoded)
	}
}

func asList(v any) ([]any, bool) {
	switch entries := v.(type) {
	case []any:
		return entries, true
	case []map[string]any:
		out := make([]any, len(entries))
		for i, e := range entries {
			out[i] = e
		}
		return out, true
	default:
		return nil, false
	}
}

func marker(expected string, raw any) map[string]any {
	return map[string]any{
		"error": fmt.Sprintf("expected %s payload, got %T", expected, raw),
		"raw":   raw,
	}
}

// Rows reports the record count of normalized data, used for per-record cost.
// Only list data has a row count.
func Rows(data any) (int, bool) {
	entries, ok := asList(data)
	if !ok {
		return 0, false
	}
	return len(entries), true
}

// IsHTML reports whether body looks like an HTML document.
func IsHTML(body string) bool {
	lower := strings.ToLower(strings.TrimSpace(body))
	if strings.HasPrefix(lower, "<html") || strings.HasPrefix(lower, "<!doctype") {
		return true
	}
	if len(lower) > htmlDetectionWindow {
		lower = lower[:htmlDetectionWindow]
	}
	return strings.Contains(lower, "<html")
}
