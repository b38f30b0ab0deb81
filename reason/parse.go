package reason

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/hupe1980/taskpilot/internal/jsonrepair"
)

// Call is one tool invocation extracted from provider output.
type Call struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Params map[string]any `json:"params"`
}

// ParseFunc attempts to extract tool calls from raw provider text. It returns
// ok=false when the text contains nothing this parser recognizes.
type ParseFunc func(text string) ([]Call, bool)

// Extractor scans provider text through an ordered list of parsers; the first
// parser that recognizes anything wins. Parsers are pluggable so callers can
// prepend a provider-native structured parser without touching the loop.
type Extractor struct {
	parsers []ParseFunc
}

// NewExtractor builds an extractor. With no arguments it uses the default
// chain: fenced JSON block, then legacy marker lines.
func NewExtractor(parsers ...ParseFunc) *Extractor {
	if len(parsers) == 0 {
		parsers = []ParseFunc{ParseFencedBlock, ParseLegacyMarker}
	}
	return &Extractor{parsers: parsers}
}

// Extract returns the tool calls found in text, or nil when no parser
// recognizes any.
func (e *Extractor) Extract(text string) []Call {
	for _, parse := range e.parsers {
		if calls, ok := parse(text); ok {
			return calls
		}
	}
	return nil
}

var fencedBlockRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

// ParseFencedBlock extracts calls from the first fenced code block containing
// a JSON object or array. A bare object yields one call.
func ParseFencedBlock(text string) ([]Call, bool) {
	m := fencedBlockRe.FindStringSubmatch(text)
	if m == nil {
		return nil, false
	}
	items, ok := jsonrepair.ParseArray(m[1])
	if !ok {
		return nil, false
	}
	calls := make([]Call, 0, len(items))
	for _, item := range items {
		if call, ok := coerceCall(item); ok {
			calls = append(calls, call)
		}
	}
	if len(calls) == 0 {
		return nil, false
	}
	return calls, true
}

var legacyMarkerRe = regexp.MustCompile(`(?i)^\s*(?:tool|call|execute):\s*([\w.-]+)\s*(.*)$`)

// ParseLegacyMarker extracts calls from marker lines of the form
// "tool: name {json args}" (also "call:" and "execute:"). Missing or
// unparseable args yield an empty params map.
func ParseLegacyMarker(text string) ([]Call, bool) {
	var calls []Call
	for _, line := range strings.Split(text, "\n") {
		m := legacyMarkerRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		params := map[string]any{}
		if rest := strings.TrimSpace(m[2]); rest != "" {
			if obj, ok := jsonrepair.ParseObject(rest); ok {
				params = obj
			}
		}
		calls = append(calls, Call{ID: uuid.NewString(), Name: m[1], Params: params})
	}
	if len(calls) == 0 {
		return nil, false
	}
	return calls, true
}

// coerceCall converts one decoded JSON value into a Call. Accepts "task",
// "tool" or "name" for the tool name and "params" or "args" for arguments.
func coerceCall(item any) (Call, bool) {
	obj, ok := item.(map[string]any)
	if !ok {
		return Call{}, false
	}
	var name string
	for _, key := range []string{"task", "tool", "name"} {
		if v, ok := obj[key].(string); ok && v != "" {
			name = v
			break
		}
	}
	if name == "" {
		return Call{}, false
	}
	params, _ := obj["params"].(map[string]any)
	if params == nil {
		params, _ = obj["args"].(map[string]any)
	}
	if params == nil {
		params = map[string]any{}
	}
	id, _ := obj["id"].(string)
	if id == "" {
		id = uuid.NewString()
	}
	return Call{ID: id, Name: name, Params: params}, true
}
