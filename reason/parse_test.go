package reason

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseFencedBlock_SingleObject(t *testing.T) {
	text := "Let me look that up.\n```json\n{\"tool\": \"search\", \"params\": {\"q\": \"go\"}}\n```"
	calls, ok := ParseFencedBlock(text)
	assert.True(t, ok)
	assert.Len(t, calls, 1)
	assert.Equal(t, "search", calls[0].Name)
	assert.Equal(t, "go", calls[0].Params["q"])
	assert.NotEmpty(t, calls[0].ID)
}

func TestParseFencedBlock_Array(t *testing.T) {
	text := "```\n[{\"task\": \"a\", \"params\": {}}, {\"name\": \"b\", \"args\": {\"x\": 1}}]\n```"
	calls, ok := ParseFencedBlock(text)
	assert.True(t, ok)
	assert.Len(t, calls, 2)
	assert.Equal(t, "a", calls[0].Name)
	assert.Equal(t, "b", calls[1].Name)
	assert.Equal(t, float64(1), calls[1].Params["x"])
}

func TestParseFencedBlock_NoBlock(t *testing.T) {
	_, ok := ParseFencedBlock("just prose, no fences")
	assert.False(t, ok)

	// A fenced block without a recognizable call is not a match either.
	_, ok = ParseFencedBlock("```\nplain code\n```")
	assert.False(t, ok)
}

func TestParseLegacyMarker(t *testing.T) {
	text := "I will use a tool now.\ntool: search {\"q\": \"golang\"}\nsome more prose"
	calls, ok := ParseLegacyMarker(text)
	assert.True(t, ok)
	assert.Len(t, calls, 1)
	assert.Equal(t, "search", calls[0].Name)
	assert.Equal(t, "golang", calls[0].Params["q"])
}

func TestParseLegacyMarker_Variants(t *testing.T) {
	text := "call: fetch\nEXECUTE: render {\"style\": \"brief\"}"
	calls, ok := ParseLegacyMarker(text)
	assert.True(t, ok)
	assert.Len(t, calls, 2)
	assert.Equal(t, "fetch", calls[0].Name)
	assert.Empty(t, calls[0].Params)
	assert.Equal(t, "render", calls[1].Name)
	assert.Equal(t, "brief", calls[1].Params["style"])
}

func TestExtractor_OrderedChain(t *testing.T) {
	e := NewExtractor()

	// The fenced block wins over a legacy marker in the same text.
	text := "```json\n{\"tool\": \"fenced\", \"params\": {}}\n```\ntool: legacy {}"
	calls := e.Extract(text)
	assert.Len(t, calls, 1)
	assert.Equal(t, "fenced", calls[0].Name)

	// Fallback to the marker parser when no block parses.
	calls = e.Extract("tool: legacy {}")
	assert.Len(t, calls, 1)
	assert.Equal(t, "legacy", calls[0].Name)

	// Nothing recognizable.
	assert.Nil(t, e.Extract("plain text answer"))
}

func TestExtractor_PluggableParser(t *testing.T) {
	custom := func(text string) ([]Call, bool) {
		if text == "magic" {
			return []Call{{ID: "1", Name: "custom", Params: map[string]any{}}}, true
		}
		return nil, false
	}
	e := NewExtractor(custom, ParseFencedBlock)

	calls := e.Extract("magic")
	assert.Equal(t, "custom", calls[0].Name)
}
