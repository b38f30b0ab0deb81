// Package reason implements the lightweight single-request reasoning loop: a
// think-and-act cycle over the same reasoning provider as the orchestrator,
// with tool-call extraction from free-form text and a transient working
// memory. Unlike the task executor it never retries; retry is the caller's
// responsibility.
package reason

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/taskpilot/logging"
	"github.com/hupe1980/taskpilot/provider"
	"github.com/hupe1980/taskpilot/tool"
)

const thinkMaxTokens = 2000

// Thought is the outcome of one Think call. IsFinal is true when the provider
// produced content without any tool call, i.e. the loop has an answer.
type Thought struct {
	Content   string    `json:"content"`
	Calls     []Call    `json:"calls,omitempty"`
	IsFinal   bool      `json:"is_final"`
	Timestamp time.Time `json:"timestamp"`
}

// EngineOptions configures an Engine.
type EngineOptions struct {
	// Extractor overrides the default tool-call parser chain.
	Extractor *Extractor
	// Logger defaults to NoOp.
	Logger logging.Logger
}

// Engine drives the reasoning loop. It keeps an append-only thought trace for
// audit; the trace is never consulted for control flow.
type Engine struct {
	provider  provider.Provider
	extractor *Extractor
	logger    logging.Logger

	mu    sync.Mutex
	trace []Thought
}

// NewEngine constructs a reasoning engine around a provider.
func NewEngine(p provider.Provider, optFns ...func(o *EngineOptions)) *Engine {
	opts := EngineOptions{
		Extractor: NewExtractor(),
		Logger:    logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Extractor == nil {
		opts.Extractor = NewExtractor()
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Engine{provider: p, extractor: opts.Extractor, logger: opts.Logger}
}

// Think performs one reasoning step: a single provider call over the goal,
// history and working memory, then tool-call extraction from the raw text.
// No tool call plus non-empty content marks the thought final.
func (e *Engine) Think(ctx context.Context, goal, systemPrompt string, history []string, wm *WorkingMemory, tools *tool.Registry) (*Thought, error) {
	prompt := e.buildPrompt(goal, systemPrompt, history, wm, tools)

	started := time.Now()
	raw, err := e.provider.Generate(ctx, prompt, provider.WithMaxTokens(thinkMaxTokens))
	if err != nil {
		e.logger.Error("reason.think_failed", "goal", goal, "error", err)
		return nil, fmt.Errorf("reasoning call failed: %w", err)
	}
	e.logger.Debug("reason.think_done", "goal", goal, "duration", time.Since(started))

	content := strings.TrimSpace(raw)
	calls := e.extractor.Extract(content)

	thought := Thought{
		Content:   content,
		Calls:     calls,
		IsFinal:   len(calls) == 0 && content != "",
		Timestamp: time.Now(),
	}

	e.mu.Lock()
	e.trace = append(e.trace, thought)
	e.mu.Unlock()

	if wm != nil {
		wm.AddThought(truncateThought(content))
	}
	return &thought, nil
}

func (e *Engine) buildPrompt(goal, systemPrompt string, history []string, wm *WorkingMemory, tools *tool.Registry) string {
	var b strings.Builder
	if systemPrompt != "" {
		b.WriteString(systemPrompt)
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "Goal: %s\n\n", goal)
	if tools != nil && tools.Len() > 0 {
		b.WriteString("Available tools:\n")
		b.WriteString(tools.Catalog())
		b.WriteString("\n\nTo call a tool, output a fenced json block: ```json\n{\"tool\": \"name\", \"params\": {...}}\n```\n\n")
	}
	if wm != nil {
		if section := wm.FormatForPrompt(); section != "" {
			b.WriteString(section)
			b.WriteString("\n")
		}
	}
	if len(history) > 0 {
		b.WriteString("Conversation so far:\n")
		for _, line := range history {
			b.WriteString(line)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	b.WriteString("Respond with either a tool call or a final answer.")
	return b.String()
}

// Trace returns a copy of the thought trace.
func (e *Engine) Trace() []Thought {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Thought, len(e.trace))
	copy(out, e.trace)
	return out
}

// TraceSummary renders the trace as one line per thought for inspection.
func (e *Engine) TraceSummary() string {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.trace) == 0 {
		return "no thoughts recorded"
	}
	var b strings.Builder
	for i, t := range e.trace {
		kind := "thought"
		switch {
		case t.IsFinal:
			kind = "final"
		case len(t.Calls) > 0:
			kind = fmt.Sprintf("calls=%d", len(t.Calls))
		}
		fmt.Fprintf(&b, "%d. [%s] %s\n", i+1, kind, truncateThought(t.Content))
	}
	return b.String()
}

// ClearTrace drops the thought trace.
func (e *Engine) ClearTrace() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.trace = nil
}

func truncateThought(s string) string {
	const max = 200
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
