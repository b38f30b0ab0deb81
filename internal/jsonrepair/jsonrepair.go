// Package jsonrepair extracts JSON values from free-form reasoning-provider
// output. Providers are never assumed to emit clean JSON: responses may carry
// preambles, markdown fences or trailing commas. The extraction chain is:
//
//  1. strip surrounding whitespace and try a direct parse
//  2. locate the first balanced {...} or [...] block and parse that
//  3. strip trailing commas from the block and parse again
//
// On total failure the zero value and false are returned; callers decide
// whether that means "retry", "drop entry" or "fail goal".
package jsonrepair

import (
	"encoding/json"
	"regexp"
	"strings"
)

var trailingComma = regexp.MustCompile(`,\s*([\]}])`)

// Parse extracts the first JSON value (object or array) from text.
// The boolean reports whether anything parseable was found.
func Parse(text string) (any, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, false
	}

	var v any
	if err := json.Unmarshal([]byte(text), &v); err == nil {
		return v, true
	}

	block, ok := firstBlock(text)
	if !ok {
		return nil, false
	}

	if err := json.Unmarshal([]byte(block), &v); err == nil {
		return v, true
	}

	cleaned := trailingComma.ReplaceAllString(block, "$1")
	if err := json.Unmarshal([]byte(cleaned), &v); err == nil {
		return v, true
	}

	return nil, false
}

// ParseObject extracts the first JSON object from text.
func ParseObject(text string) (map[string]any, bool) {
	v, ok := Parse(text)
	if !ok {
		return nil, false
	}
	obj, ok := v.(map[string]any)
	return obj, ok
}

// ParseArray extracts the first JSON array from text. A bare object is
// coerced to a one-element array, matching decomposition tolerance.
func ParseArray(text string) ([]any, bool) {
	v, ok := Parse(text)
	if !ok {
		return nil, false
	}
	switch t := v.(type) {
	case []any:
		return t, true
	case map[string]any:
		return []any{t}, true
	default:
		return nil, false
	}
}

// firstBlock scans for the first '{' or '[' and returns the substring up to
// its balanced closing bracket, honoring JSON string literals and escapes.
// A regex over the whole text would be quadratic on pathological inputs and
// cannot balance nesting, so this is a small hand scan.
func firstBlock(text string) (string, bool) {
	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return "", false
	}

	open := text[start]
	var close byte = '}'
	if open == '[' {
		close = ']'
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}

	return "", false
}
