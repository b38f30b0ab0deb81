package agent

import (
	"encoding/json"
	"fmt"

	"github.com/hupe1980/taskpilot/core"
	"github.com/hupe1980/taskpilot/internal/util"
)

// Prompt size caps. Memory context and result previews are truncated so
// repeated self-correction rounds cannot grow prompts without bound.
const (
	maxContextChars  = 1000
	maxResultPreview = 2000
)

const decomposePromptTemplate = `You are an autonomous task-execution assistant. Decompose this goal into specific, executable tasks.

Goal: {{.Goal}}
Stage: {{.Stage}}

Available tools:
{{.Catalog}}

Relevant memory context:
{{.MemoryContext}}
{{if .Extra}}
Additional context: {{.Extra}}
{{end}}
Output format (JSON array only, no explanation):
[
  {"task": "tool_name", "params": {"param1": "value1", "param2": "value2"}},
  {"task": "another_tool", "params": {"query": "..."}}
]

Requirements:
1. Tasks must use only the available tools listed above
2. Each task must have a "task" field with the exact tool name
3. Each task must have a "params" field with appropriate parameters
4. Return ONLY the JSON array, no other text`

const validatePromptTemplate = `Validate if this result fulfills the task requirements.

Task: {{.Task}}
Result: {{.Result}}
Stage: {{.Stage}}

Evaluate based on:
1. Does the result match the task's intended outcome?
2. Is the data complete and meaningful?
3. Are there any obvious errors or missing information?

Respond with either:
- VALID
- INVALID: [brief reason]

Response must start with VALID or INVALID.`

const adjustPromptTemplate = `The task produced suboptimal results. Suggest better parameters.

Original Task: {{.Task}}
Result: {{.Result}}
Stage: {{.Stage}}

Available tools:
{{.Catalog}}

Provide an adjusted task as JSON only:
{"task": "tool_name", "params": {"param1": "value1"}}

Guidelines:
1. Keep the same task name unless it's fundamentally wrong
2. Adjust parameters to improve the result quality
3. Consider alternative approaches based on the suboptimal result
4. Return ONLY the JSON, no explanation`

const alternativePromptTemplate = `Task failed. Suggest an alternative approach.

Failed Task: {{.Task}}
Error: {{.Error}}
Stage: {{.Stage}}

Available tools:
{{.Catalog}}

Provide an alternative task as JSON only:
{"task": "tool_name", "params": {"param1": "value1"}}

Guidelines:
1. Choose an alternative tool or different parameters
2. Address the specific error that occurred
3. If possible, provide a workaround approach
4. Return ONLY the JSON, no explanation`

// renderPrompt renders one of the prompt templates, falling back to a plain
// concatenation if template execution fails (prompts must never be the
// reason a goal dies).
func renderPrompt(tmpl string, state map[string]any) string {
	out, err := util.RenderTemplate(tmpl, state)
	if err != nil {
		return fmt.Sprintf("%s\n\n%v", tmpl, state)
	}
	return out
}

// taskJSON renders a task for prompt embedding.
func taskJSON(task core.Task) string {
	data, err := json.MarshalIndent(task, "", "  ")
	if err != nil {
		return fmt.Sprintf("{\"task\": %q}", task.Name)
	}
	return string(data)
}

// resultPreview serializes an arbitrary tool result, truncated for prompts.
func resultPreview(result any) string {
	if result == nil {
		return "No result"
	}
	preview := fmt.Sprintf("%v", result)
	if data, err := json.Marshal(result); err == nil {
		preview = string(data)
	}
	return truncate(preview, maxResultPreview)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
