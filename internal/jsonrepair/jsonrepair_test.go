package jsonrepair

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse_Direct(t *testing.T) {
	v, ok := Parse(`  {"a": 1}  `)
	assert.True(t, ok)
	obj := v.(map[string]any)
	assert.Equal(t, float64(1), obj["a"])
}

func TestParse_FencedBlock(t *testing.T) {
	text := "Plan: ```json\n{\"task\":\"x\",\"params\":{}}\n```"
	obj, ok := ParseObject(text)
	assert.True(t, ok)
	assert.Equal(t, "x", obj["task"])
	assert.Equal(t, map[string]any{}, obj["params"])
}

func TestParse_PreambleAndTrailingText(t *testing.T) {
	text := `Here is the plan you asked for: [{"task": "a", "params": {}}] hope that helps!`
	items, ok := ParseArray(text)
	assert.True(t, ok)
	assert.Len(t, items, 1)
}

func TestParse_TrailingComma(t *testing.T) {
	obj, ok := ParseObject(`{"a": 1, "b": [1, 2,],}`)
	assert.True(t, ok)
	assert.Equal(t, float64(1), obj["a"])
	assert.Len(t, obj["b"], 2)
}

func TestParse_NestedBrackets(t *testing.T) {
	// The block scanner must balance nesting, not stop at the first '}'.
	text := `noise {"outer": {"inner": {"deep": true}}} more noise`
	obj, ok := ParseObject(text)
	assert.True(t, ok)
	outer := obj["outer"].(map[string]any)
	inner := outer["inner"].(map[string]any)
	assert.Equal(t, true, inner["deep"])
}

func TestParse_BracketsInsideStrings(t *testing.T) {
	obj, ok := ParseObject(`{"text": "a } tricky ] string"}`)
	assert.True(t, ok)
	assert.Equal(t, "a } tricky ] string", obj["text"])
}

func TestParse_Garbage(t *testing.T) {
	_, ok := Parse("no json here at all")
	assert.False(t, ok)

	_, ok = Parse("")
	assert.False(t, ok)

	_, ok = Parse("{unclosed")
	assert.False(t, ok)
}

func TestParseArray_BareObjectCoerced(t *testing.T) {
	items, ok := ParseArray(`{"task": "single", "params": {"k": "v"}}`)
	assert.True(t, ok)
	assert.Len(t, items, 1)
	obj := items[0].(map[string]any)
	assert.Equal(t, "single", obj["task"])
}

func TestParseArray_EmptyArray(t *testing.T) {
	items, ok := ParseArray("[]")
	assert.True(t, ok)
	assert.Empty(t, items)
}

func TestParseObject_ArrayRejected(t *testing.T) {
	_, ok := ParseObject(`[{"a": 1}]`)
	assert.False(t, ok)
}
