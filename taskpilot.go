// Package taskpilot provides a high-level façade over the agent core
// (goal orchestration, tool execution, memory and ledger services) enabling
// rapid construction of autonomous task-execution agents. Most applications
// interact with this package by:
//  1. Creating a TaskPilot via New() (optionally overriding default services)
//  2. Registering one or more tools
//  3. Executing goals via ExecuteGoal
//
// The façade delegates orchestration to agent.Orchestrator while keeping
// setup and usage ergonomics concise. All defaults are safe for local
// development and testing; production deployments typically supply a durable
// ledger, a persistent memory directory and a structured logger.
package taskpilot

import (
	"context"
	"fmt"
	"time"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/hupe1980/taskpilot/agent"
	"github.com/hupe1980/taskpilot/breaker"
	"github.com/hupe1980/taskpilot/config"
	"github.com/hupe1980/taskpilot/core"
	"github.com/hupe1980/taskpilot/ledger"
	"github.com/hupe1980/taskpilot/logging"
	"github.com/hupe1980/taskpilot/memory"
	"github.com/hupe1980/taskpilot/provider"
	"github.com/hupe1980/taskpilot/provider/anthropic"
	"github.com/hupe1980/taskpilot/provider/openai"
	"github.com/hupe1980/taskpilot/tool"
)

// Options configures the TaskPilot instance.
type Options struct {
	// MaxRetries is the per-task attempt budget, first try included.
	MaxRetries int

	// ToolTimeout bounds a single tool invocation.
	ToolTimeout time.Duration

	// MaxReasoningCalls caps provider calls per goal. Validation and
	// adjustment calls have no timeout of their own, so this is the backstop
	// against a runaway self-correction loop. 0 means unlimited.
	MaxReasoningCalls int

	// BreakerThreshold is the count of semantic validation failures that
	// opens the circuit. 0 uses the breaker default.
	BreakerThreshold int

	// Memory store (defaults to a persistent store under data/agent_memory).
	// Set to nil explicitly after the option functions ran to disable.
	Memory *memory.Store

	// Ledger (defaults to an in-memory store).
	Ledger ledger.Store

	// Logger (defaults to NoOp logger if nil).
	Logger logging.Logger
}

// TaskPilot is the high-level façade aggregating the orchestrator and its
// services.
type TaskPilot struct {
	opts         Options
	registry     *tool.Registry
	orchestrator *agent.Orchestrator
	memory       *memory.Store
	ledger       ledger.Store
}

// New creates a new TaskPilot around a reasoning provider with optional
// overrides. Any unset service is initialized with a default implementation.
func New(p provider.Provider, optFns ...func(o *Options)) (*TaskPilot, error) {
	opts := Options{
		MaxRetries:  agent.DefaultMaxRetries,
		ToolTimeout: agent.DefaultToolTimeout,
		Ledger:      ledger.NewInMemoryStore(),
		Logger:      logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	if opts.Memory == nil {
		store, err := memory.NewStore(func(o *memory.Options) {
			o.Logger = opts.Logger
		})
		if err != nil {
			return nil, fmt.Errorf("init memory store: %w", err)
		}
		opts.Memory = store
	}

	registry := tool.NewRegistry()
	orchestrator := agent.New(p, registry, func(o *agent.Options) {
		o.MaxRetries = opts.MaxRetries
		o.ToolTimeout = opts.ToolTimeout
		o.MaxReasoningCalls = opts.MaxReasoningCalls
		o.BreakerThreshold = opts.BreakerThreshold
		o.Memory = opts.Memory
		o.Ledger = opts.Ledger
		o.Logger = opts.Logger
	})

	return &TaskPilot{
		opts:         opts,
		registry:     registry,
		orchestrator: orchestrator,
		memory:       opts.Memory,
		ledger:       opts.Ledger,
	}, nil
}

// NewFromConfig builds a TaskPilot from a loaded configuration, constructing
// the provider, memory store and ledger it names.
func NewFromConfig(cfg *config.Config) (*TaskPilot, error) {
	p, err := newProvider(cfg.Provider)
	if err != nil {
		return nil, err
	}

	mem, err := memory.NewStore(func(o *memory.Options) {
		o.Dir = cfg.Memory.Dir
		o.MaxLongTerm = cfg.Memory.MaxLongTerm
		o.MaxShortTerm = cfg.Memory.MaxShortTerm
	})
	if err != nil {
		return nil, fmt.Errorf("init memory store: %w", err)
	}

	var store ledger.Store = ledger.NewInMemoryStore()
	if cfg.Ledger.Path != "" {
		store, err = ledger.NewSQLiteStore(cfg.Ledger.Path)
		if err != nil {
			return nil, fmt.Errorf("init ledger: %w", err)
		}
	}

	logger := loggerFromConfig(cfg.Log)

	return New(p, func(o *Options) {
		o.MaxRetries = cfg.Agent.MaxRetries
		o.ToolTimeout = cfg.Agent.ToolTimeout
		o.MaxReasoningCalls = cfg.Agent.MaxReasoningCalls
		o.BreakerThreshold = cfg.Agent.BreakerThreshold
		o.Memory = mem
		o.Ledger = store
		o.Logger = logger
	})
}

func newProvider(cfg config.ProviderConfig) (provider.Provider, error) {
	switch cfg.Name {
	case "anthropic":
		return anthropic.New(func(o *anthropic.Options) {
			if cfg.Model != "" {
				o.Model = anthropicsdk.Model(cfg.Model)
			}
			o.Temperature = cfg.Temperature
			if cfg.MaxTokens > 0 {
				o.MaxTokens = int64(cfg.MaxTokens)
			}
			o.APIKey = cfg.APIKey
		}), nil
	case "openai":
		return openai.New(func(o *openai.Options) {
			if cfg.Model != "" {
				o.Model = cfg.Model
			}
			o.Temperature = cfg.Temperature
			if cfg.MaxTokens > 0 {
				o.MaxCompletionTokens = int64(cfg.MaxTokens)
			}
			o.APIKey = cfg.APIKey
		}), nil
	case "mock":
		return provider.NewMockProvider(), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Name)
	}
}

func loggerFromConfig(cfg config.LogConfig) logging.Logger {
	level := logging.LogLevelInfo
	switch cfg.Level {
	case "debug":
		level = logging.LogLevelDebug
	case "warn":
		level = logging.LogLevelWarn
	case "error":
		level = logging.LogLevelError
	}
	return logging.NewSlogLogger(level, cfg.Format, cfg.AddSource)
}

// RegisterTool adds a tool to the registry.
func (tp *TaskPilot) RegisterTool(t tool.Tool) { tp.registry.Register(t) }

// Tools returns the underlying tool registry.
func (tp *TaskPilot) Tools() *tool.Registry { return tp.registry }

// ExecuteGoal decomposes and executes a goal. At most one goal runs at a time
// per TaskPilot instance; concurrent calls fail fast with a structured
// already-executing result.
func (tp *TaskPilot) ExecuteGoal(ctx context.Context, goal, stage string, extra map[string]any) core.GoalExecutionResult {
	return tp.orchestrator.ExecuteGoal(ctx, goal, stage, extra)
}

// Memory returns the long-term memory store.
func (tp *TaskPilot) Memory() *memory.Store { return tp.memory }

// Ledger returns the task ledger.
func (tp *TaskPilot) Ledger() ledger.Store { return tp.ledger }

// Breaker returns the process-lifetime circuit breaker.
func (tp *TaskPilot) Breaker() *breaker.CircuitBreaker { return tp.orchestrator.Breaker() }

// Thinking returns the orchestrator's thinking trace of the last goal.
func (tp *TaskPilot) Thinking() []core.ThoughtStep { return tp.orchestrator.Thinking() }

// ExecutionLog returns the per-task attempt logs of the last goal.
func (tp *TaskPilot) ExecutionLog() []core.ExecutionEntry { return tp.orchestrator.ExecutionLog() }

// Reset clears the thinking trace and execution log. The circuit breaker is
// left untouched; reopen it explicitly via Breaker().Reset().
func (tp *TaskPilot) Reset() { tp.orchestrator.Reset() }
