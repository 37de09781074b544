// Package jsonutil finds JSON objects embedded in free-form process output,
// such as a test runner's JSON reporter printed between console lines.
package jsonutil

import (
	"encoding/json"
	"fmt"

	"github.com/AbdelazizMoustafa10m/testsmith/internal/textutil"
)

// Objects returns every top-level JSON object in text, in order of
// appearance. An object nested inside an earlier match is part of that
// match and is not returned separately. ANSI codes and a leading BOM are
// stripped first.
func Objects(text string) ([]json.RawMessage, error) {
	clean, err := textutil.Sanitize(text)
	if err != nil {
		return nil, fmt.Errorf("jsonutil: %w", err)
	}

	var out []json.RawMessage
	for i := 0; i < len(clean); i++ {
		if clean[i] != '{' {
			continue
		}
		end := matchingBrace(clean, i)
		if end < 0 {
			continue
		}
		candidate := clean[i : end+1]
		if !json.Valid([]byte(candidate)) {
			continue
		}
		out = append(out, json.RawMessage(candidate))
		i = end
	}
	return out, nil
}

// First decodes the objects in text into T in order and returns the first
// one accept approves. Objects that do not decode into T are skipped.
func First[T any](text string, accept func(*T) bool) (*T, bool) {
	objs, err := Objects(text)
	if err != nil {
		return nil, false
	}
	for _, raw := range objs {
		v := new(T)
		if err := json.Unmarshal(raw, v); err != nil {
			continue
		}
		if accept == nil || accept(v) {
			return v, true
		}
	}
	return nil, false
}

// matchingBrace returns the index of the '}' closing the '{' at start, or
// -1. Braces inside double-quoted strings are ignored and backslash escapes
// are honoured.
func matchingBrace(text string, start int) int {
	depth := 0
	inString := false
	for i := start; i < len(text); i++ {
		ch := text[i]
		if inString {
			switch ch {
			case '\\':
				i++
			case '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
