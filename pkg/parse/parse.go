// Package parse recovers a JSON object from free-form model output.
package parse

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseError reports that no JSON object could be recovered from the text.
type ParseError struct {
	// Snippet is the start of the offending text, for logs.
	Snippet string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("no JSON object in model output %q: %v", e.Snippet, e.Err)
	}
	return fmt.Sprintf("no JSON object in model output %q", e.Snippet)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

const snippetLen = 80

// Parse decodes text as a JSON object. When the whole text is not an object it
// retries on the span from the first '{' to the last '}', which covers code
// fences and prose around a single object. Text holding several objects fails.
func Parse(text string) (map[string]any, error) {
	trimmed := strings.TrimSpace(text)

	obj, err := decodeObject(trimmed)
	if err == nil {
		return obj, nil
	}

	start := strings.IndexByte(trimmed, '{')
	end := strings.LastIndexByte(trimmed, '}')
	if start < 0 || end <= start {
		return nil, &ParseError{Snippet: snippet(trimmed), Err: err}
	}

	obj, err = decodeObject(trimmed[start : end+1])
	if err != nil {
		return nil, &ParseError{Snippet: snippet(trimmed), Err: err}
	}
	return obj, nil
}

func decodeObject(s string) (map[string]any, error) {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, err
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("top-level value is %T, not an object", v)
	}
	return obj, nil
}

func snippet(s string) string {
	r := []rune(s)
	if len(r) <= snippetLen {
		return s
	}
	return string(r[:snippetLen]) + "..."
}

// PatchDetection returns a copy of a detection payload in which every
// candidate object without a "bbox" key has "bbox": nil. Models often drop the
// key instead of sending null. The input is not modified.
func PatchDetection(payload map[string]any) map[string]any {
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		out[k] = v
	}

	cands, ok := payload["candidates"].([]any)
	if !ok {
		return out
	}

	patched := make([]any, len(cands))
	for i, c := range cands {
		obj, ok := c.(map[string]any)
		if !ok {
			patched[i] = c
			continue
		}
		if _, has := obj["bbox"]; has {
			patched[i] = obj
			continue
		}
		cp := make(map[string]any, len(obj)+1)
		for k, v := range obj {
			cp[k] = v
		}
		cp["bbox"] = nil
		patched[i] = cp
	}
	out["candidates"] = patched
	return out
}

// DetectionPayload parses model text and patches missing bbox keys.
func DetectionPayload(text string) (map[string]any, error) {
	obj, err := Parse(text)
	if err != nil {
		return nil, err
	}
	return PatchDetection(obj), nil
}
