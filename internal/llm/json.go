package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractObject parses a JSON object out of a model response, tolerating
// markdown code fences and surrounding prose. A literal "null" or an empty
// response yields nil with no error, which callers treat as "nothing found".
func ExtractObject(text string) (map[string]any, error) {
	text = strings.TrimSpace(text)
	if text == "" || text == "null" {
		return nil, nil
	}

	text = stripFences(text)
	if text == "" || text == "null" {
		return nil, nil
	}

	span := sliceSpan(text, '{', '}')
	if span == "" {
		return nil, fmt.Errorf("no JSON object in response")
	}

	var result map[string]any
	if err := json.Unmarshal([]byte(span), &result); err != nil {
		return nil, fmt.Errorf("parsing JSON object: %w", err)
	}
	return result, nil
}

// ExtractArray parses a JSON array out of a model response under the same
// recovery rules as ExtractObject. Elements are returned raw so callers can
// decode them into their own types.
func ExtractArray(text string) ([]json.RawMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" || text == "null" {
		return nil, nil
	}

	text = stripFences(text)
	if text == "" || text == "null" {
		return nil, nil
	}

	span := sliceSpan(text, '[', ']')
	if span == "" {
		return nil, fmt.Errorf("no JSON array in response")
	}

	var result []json.RawMessage
	if err := json.Unmarshal([]byte(span), &result); err != nil {
		return nil, fmt.Errorf("parsing JSON array: %w", err)
	}
	return result, nil
}

// stripFences removes markdown code fences. A "```json" fence may appear
// anywhere in the response; a bare "```" fence only counts when the whole
// response is wrapped in it.
func stripFences(text string) string {
	if idx := strings.Index(text, "```json"); idx >= 0 {
		text = text[idx+len("```json"):]
		if end := strings.Index(text, "```"); end >= 0 {
			text = text[:end]
		}
		return strings.TrimSpace(text)
	}

	if strings.HasPrefix(text, "```") {
		lines := strings.Split(text, "\n")
		endIdx := len(lines) - 1
		for i := len(lines) - 1; i > 0; i-- {
			if strings.TrimSpace(lines[i]) == "```" {
				endIdx = i
				break
			}
		}
		return strings.TrimSpace(strings.Join(lines[1:endIdx], "\n"))
	}

	return text
}

// sliceSpan cuts text down to the region between the first open byte and the
// last close byte, dropping any prose the model wrapped around the JSON.
func sliceSpan(text string, open, close byte) string {
	start := strings.IndexByte(text, open)
	end := strings.LastIndexByte(text, close)
	if start < 0 || end < start {
		return ""
	}
	return text[start : end+1]
}
