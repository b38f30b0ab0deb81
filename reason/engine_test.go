package reason

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hupe1980/taskpilot/provider"
	"github.com/hupe1980/taskpilot/tool"
	"github.com/stretchr/testify/assert"
)

func TestEngine_ThinkWithToolCall(t *testing.T) {
	p := provider.NewMockProvider()
	p.Enqueue("Checking.\n```json\n{\"tool\": \"lookup\", \"params\": {\"topic\": \"x\"}}\n```")

	registry := tool.NewRegistry()
	registry.Register(tool.NewFunctionTool("lookup", "Look things up",
		map[string]any{"type": "object", "properties": map[string]any{}},
		func(_ context.Context, _ map[string]any) (any, error) { return "found", nil }))

	e := NewEngine(p)
	thought, err := e.Think(context.Background(), "find x", "", nil, nil, registry)
	assert.NoError(t, err)
	assert.False(t, thought.IsFinal)
	assert.Len(t, thought.Calls, 1)
	assert.Equal(t, "lookup", thought.Calls[0].Name)

	// The prompt carried the tool catalog.
	prompts := p.Prompts()
	assert.Contains(t, prompts[0], "lookup: Look things up")
}

func TestEngine_ThinkFinalAnswer(t *testing.T) {
	p := provider.NewMockProvider()
	p.Enqueue("The answer is 42.")

	e := NewEngine(p)
	thought, err := e.Think(context.Background(), "what is the answer", "", nil, nil, nil)
	assert.NoError(t, err)
	assert.True(t, thought.IsFinal)
	assert.Empty(t, thought.Calls)
	assert.Equal(t, "The answer is 42.", thought.Content)
}

func TestEngine_ThinkProviderError(t *testing.T) {
	p := provider.NewMockProvider()
	p.Err = errors.New("provider down")

	e := NewEngine(p)
	_, err := e.Think(context.Background(), "goal", "", nil, nil, nil)
	assert.Error(t, err)
	assert.Empty(t, e.Trace())
}

func TestEngine_TraceAndWorkingMemory(t *testing.T) {
	p := provider.NewMockProvider()
	p.Enqueue("First thought.", "Final answer.")

	e := NewEngine(p)
	wm := NewWorkingMemory()

	_, err := e.Think(context.Background(), "goal", "", nil, wm, nil)
	assert.NoError(t, err)
	_, err = e.Think(context.Background(), "goal", "", nil, wm, nil)
	assert.NoError(t, err)

	trace := e.Trace()
	assert.Len(t, trace, 2)
	assert.Equal(t, "First thought.", trace[0].Content)

	summary := e.TraceSummary()
	assert.Contains(t, summary, "1. [final] First thought.")
	assert.Contains(t, summary, "2. [final] Final answer.")

	// Each think step fed working memory.
	assert.Equal(t, 2, wm.ThoughtCount())

	// The second prompt carried the first thought.
	assert.Contains(t, p.Prompts()[1], "First thought.")

	e.ClearTrace()
	assert.Empty(t, e.Trace())
}

func TestWorkingMemory(t *testing.T) {
	wm := NewWorkingMemory()
	assert.Equal(t, "", wm.FormatForPrompt())
	assert.Equal(t, "no thoughts recorded", wm.Summary())

	wm.SetFact("user", "alex")
	wm.AddThought("thinking about it")
	wm.SetScratchpad("draft plan")

	section := wm.FormatForPrompt()
	assert.Contains(t, section, "user: alex")
	assert.Contains(t, section, "thinking about it")
	assert.Contains(t, section, "draft plan")

	v, ok := wm.Fact("user")
	assert.True(t, ok)
	assert.Equal(t, "alex", v)

	wm.Clear()
	assert.Equal(t, "", wm.FormatForPrompt())
	_, ok = wm.Fact("user")
	assert.False(t, ok)
}

func TestWorkingMemory_PromptWindowBounded(t *testing.T) {
	wm := NewWorkingMemory()
	for i := 0; i < 20; i++ {
		wm.AddThought("thought")
	}

	// Only the most recent thoughts appear in the prompt section.
	section := wm.FormatForPrompt()
	assert.Equal(t, promptThoughts, strings.Count(section, "- thought"))
}
