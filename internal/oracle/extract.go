package oracle

import (
	"encoding/json"
	"strconv"
	"strings"
)

// ExtractObject pulls a JSON object out of raw completion text. It tries a
// direct parse first; when the model wrapped the object in prose or a code
// fence, it falls back to the outermost brace-delimited substring. Returns nil
// when no object can be recovered; callers resolve every field independently
// against their fallbacks, so nil simply means "all fallbacks".
func ExtractObject(text string) map[string]any {
	if text == "" {
		return nil
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(text), &obj); err == nil {
		return obj
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil
	}

	if err := json.Unmarshal([]byte(text[start:end+1]), &obj); err != nil {
		return nil
	}
	return obj
}

// StringField returns the named field as a trimmed non-empty string, or ""
// when the field is absent, empty, or not a string.
func StringField(obj map[string]any, key string) string {
	if obj == nil {
		return ""
	}
	s, _ := obj[key].(string)
	return strings.TrimSpace(s)
}

// IntField coerces the named field to an int. JSON numbers and numeric
// strings resolve; anything else yields the default.
func IntField(obj map[string]any, key string, def int) int {
	if obj == nil {
		return def
	}
	switch v := obj[key].(type) {
	case float64:
		return int(v)
	case string:
		s := strings.TrimSpace(v)
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return int(f)
		}
		return def
	default:
		return def
	}
}

// StringListField returns the named field as a string slice, dropping
// non-string elements. Returns nil when absent or not an array.
func StringListField(obj map[string]any, key string) []string {
	if obj == nil {
		return nil
	}
	raw, ok := obj[key].([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, item := range raw {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}
