package llm

import (
	"encoding/json"
	"regexp"
	"strings"
)

// wrapperKeys are object keys providers commonly wrap result arrays in.
var wrapperKeys = []string{"results", "data", "categorizations", "items"}

var fencedBlock = regexp.MustCompile("(?i)```(?:json)?\\s*([\\s\\S]*?)\\s*```")

// ExtractJSON pulls an array of JSON objects out of a provider response.
// It tries a direct parse (unwrapping a known wrapper key), then the first
// fenced code block, then the span from the first '[' to the last ']'.
// Anything unparseable yields nil. Array elements that are not objects are
// dropped.
func ExtractJSON(response string) []map[string]any {
	response = strings.TrimSpace(response)
	if response == "" {
		return nil
	}

	if items, ok := parseArray(response, true); ok {
		return items
	}

	if m := fencedBlock.FindStringSubmatch(response); m != nil {
		if items, ok := parseArray(m[1], false); ok {
			return items
		}
	}

	start := strings.Index(response, "[")
	end := strings.LastIndex(response, "]")
	if start < 0 || end <= start {
		return nil
	}
	items, _ := parseArray(response[start:end+1], false)
	return items
}

func parseArray(s string, unwrap bool) ([]map[string]any, bool) {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, false
	}

	switch t := v.(type) {
	case []any:
		return objects(t), true
	case map[string]any:
		if !unwrap {
			return nil, false
		}
		for _, key := range wrapperKeys {
			if arr, ok := t[key].([]any); ok {
				return objects(arr), true
			}
		}
	}
	return nil, false
}

func objects(arr []any) []map[string]any {
	items := make([]map[string]any, 0, len(arr))
	for _, el := range arr {
		if m, ok := el.(map[string]any); ok {
			items = append(items, m)
		}
	}
	return items
}
