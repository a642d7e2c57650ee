// Package canonical turns raw generation output and uploaded rows into
// validated firm records.
package canonical

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/sells-group/investor-cli/internal/apperr"
)

// stripFences removes a leading ```/```json fence and its closing fence.
func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	if idx := strings.LastIndex(text, "```"); idx >= 0 {
		text = text[:idx]
	}
	return strings.TrimSpace(text)
}

// ExtractArray parses the substring between the first '[' and the last ']'
// of text as a JSON array, tolerating surrounding prose and code fences.
func ExtractArray(text string) ([]json.RawMessage, error) {
	body, err := between(stripFences(text), '[', ']')
	if err != nil {
		return nil, err
	}
	var out []json.RawMessage
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, apperr.Malformed(err, "generation output was not a valid JSON array")
	}
	return out, nil
}

// ExtractObject parses the substring between the first '{' and the last '}'
// of text as a JSON object.
func ExtractObject(text string) (json.RawMessage, error) {
	body, err := between(stripFences(text), '{', '}')
	if err != nil {
		return nil, err
	}
	if !json.Valid(body) {
		return nil, apperr.Malformed(nil, "generation output was not a valid JSON object")
	}
	return json.RawMessage(body), nil
}

func between(text string, open, closing byte) ([]byte, error) {
	start := strings.IndexByte(text, open)
	end := strings.LastIndexByte(text, closing)
	if start < 0 || end <= start {
		kind := "array"
		if open == '{' {
			kind = "object"
		}
		return nil, apperr.Malformed(nil, "generation output contained no JSON %s", kind)
	}
	return bytes.TrimSpace([]byte(text[start : end+1])), nil
}
