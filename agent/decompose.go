package agent

import (
	"context"
	"fmt"

	"github.com/hupe1980/taskpilot/core"
	"github.com/hupe1980/taskpilot/internal/jsonrepair"
	"github.com/hupe1980/taskpilot/logging"
	"github.com/hupe1980/taskpilot/memory"
	"github.com/hupe1980/taskpilot/provider"
	"github.com/hupe1980/taskpilot/tool"
)

const decomposeMaxTokens = 2000

// Decomposer turns a free-form goal into an ordered list of tool-scoped
// tasks using the reasoning provider. It consults memory for stage-relevant
// context and the registry for the tool catalog, but never executes anything.
type Decomposer struct {
	provider provider.Provider
	registry *tool.Registry
	memory   *memory.Store
	limiter  *core.CallLimiter
	logger   logging.Logger
}

// NewDecomposer constructs a decomposer. Memory may be nil, in which case the
// prompt carries no recall context.
func NewDecomposer(p provider.Provider, registry *tool.Registry, mem *memory.Store, limiter *core.CallLimiter, logger logging.Logger) *Decomposer {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Decomposer{
		provider: p,
		registry: registry,
		memory:   mem,
		limiter:  limiter,
		logger:   logger,
	}
}

// Decompose asks the provider for a JSON task list and parses it leniently.
// Malformed entries are dropped with a warning; an unparseable response or an
// empty list yields core.ErrDecompositionEmpty.
func (d *Decomposer) Decompose(ctx context.Context, goal, stage string, extra map[string]any) ([]core.Task, error) {
	memoryContext := ""
	if d.memory != nil {
		memoryContext = truncate(d.memory.Context(stage, 20, true), maxContextChars)
	}

	prompt := renderPrompt(decomposePromptTemplate, map[string]any{
		"Goal":          goal,
		"Stage":         stage,
		"Catalog":       d.registry.Catalog(),
		"MemoryContext": memoryContext,
		"Extra":         extra,
	})

	if err := d.limiter.Increment(); err != nil {
		return nil, err
	}

	raw, err := d.provider.Generate(ctx, prompt, provider.WithMaxTokens(decomposeMaxTokens))
	if err != nil {
		return nil, fmt.Errorf("decomposition call failed: %w", err)
	}

	items, ok := jsonrepair.ParseArray(raw)
	if !ok {
		d.logger.Warn("decompose.unparseable_response", "goal", goal, "response_len", len(raw))
		return nil, core.ErrDecompositionEmpty
	}

	tasks := make([]core.Task, 0, len(items))
	for i, item := range items {
		task, ok := coerceTask(item)
		if !ok {
			d.logger.Warn("decompose.malformed_entry", "goal", goal, "index", i)
			continue
		}
		tasks = append(tasks, task)
	}
	if len(tasks) == 0 {
		return nil, core.ErrDecompositionEmpty
	}

	d.logger.Debug("decompose.done", "goal", goal, "stage", stage, "tasks", len(tasks))
	return tasks, nil
}

// coerceTask converts one decoded JSON value into a Task. The entry must be
// an object with a non-empty string "task"; "params" defaults to empty when
// missing or not an object.
func coerceTask(item any) (core.Task, bool) {
	obj, ok := item.(map[string]any)
	if !ok {
		return core.Task{}, false
	}
	name, ok := obj["task"].(string)
	if !ok || name == "" {
		return core.Task{}, false
	}
	params, _ := obj["params"].(map[string]any)
	if params == nil {
		params = map[string]any{}
	}
	return core.Task{Name: name, Params: params}, true
}
