// Package agent implements the goal orchestration core: decomposition of a
// goal into tool-scoped tasks, concurrent task execution with retry and
// self-correction, circuit-breaker gating, memory journaling and durable
// ledger bookkeeping.
package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hupe1980/taskpilot/breaker"
	"github.com/hupe1980/taskpilot/core"
	"github.com/hupe1980/taskpilot/ledger"
	"github.com/hupe1980/taskpilot/logging"
	"github.com/hupe1980/taskpilot/memory"
	"github.com/hupe1980/taskpilot/provider"
	"github.com/hupe1980/taskpilot/tool"
)

// Options configures an Orchestrator.
type Options struct {
	// MaxRetries is the attempt budget per task (first try included).
	MaxRetries int
	// ToolTimeout bounds a single tool invocation.
	ToolTimeout time.Duration
	// MaxReasoningCalls caps provider calls per goal; 0 means unlimited.
	MaxReasoningCalls int
	// BreakerThreshold is the validation-failure count that opens the
	// circuit; 0 uses the breaker default.
	BreakerThreshold int
	// Memory is the long-term memory store. Nil disables memory journaling.
	Memory *memory.Store
	// Ledger is the durable task ledger. Nil disables ledger bookkeeping.
	Ledger ledger.Store
	// Logger defaults to NoOp.
	Logger logging.Logger
}

// Orchestrator executes goals end to end. One orchestrator runs at most one
// goal at a time: a second ExecuteGoal while a goal is in flight fails fast
// with a structured already-executing result instead of queueing.
//
// The breaker is process-lifetime state shared across goals; thinking trace
// and execution log are reset per goal.
type Orchestrator struct {
	provider    provider.Provider
	registry    *tool.Registry
	memory      *memory.Store
	ledger      ledger.Store
	breaker     *breaker.CircuitBreaker
	logger      logging.Logger
	maxRetries  int
	toolTimeout time.Duration
	maxCalls    int

	mu           sync.Mutex
	running      bool
	thinking     []core.ThoughtStep
	executionLog []core.ExecutionEntry
}

// New constructs an orchestrator around a reasoning provider and a tool
// registry.
func New(p provider.Provider, registry *tool.Registry, optFns ...func(o *Options)) *Orchestrator {
	opts := Options{
		MaxRetries:  DefaultMaxRetries,
		ToolTimeout: DefaultToolTimeout,
		Logger:      logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	if opts.ToolTimeout <= 0 {
		opts.ToolTimeout = DefaultToolTimeout
	}

	return &Orchestrator{
		provider:    p,
		registry:    registry,
		memory:      opts.Memory,
		ledger:      opts.Ledger,
		breaker:     breaker.New(opts.BreakerThreshold),
		logger:      opts.Logger,
		maxRetries:  opts.MaxRetries,
		toolTimeout: opts.ToolTimeout,
		maxCalls:    opts.MaxReasoningCalls,
	}
}

// ExecuteGoal decomposes the goal, runs all tasks concurrently and aggregates
// the outcome. Failures are folded into the result; the only way this method
// panics is a bug, and even that is recovered into a failed result.
func (o *Orchestrator) ExecuteGoal(ctx context.Context, goal, stage string, extra map[string]any) (result core.GoalExecutionResult) {
	started := time.Now()

	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return core.GoalExecutionResult{
			Success: false,
			Error:   core.ErrAlreadyExecuting.Error(),
		}
	}
	o.running = true
	o.thinking = nil
	o.executionLog = nil
	o.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("orchestrator.panic", "goal", goal, "panic", r)
			result = core.GoalExecutionResult{
				Success:       false,
				Error:         fmt.Sprintf("fatal error: %v", r),
				Thinking:      o.Thinking(),
				ExecutionTime: time.Since(started),
			}
		}
		o.mu.Lock()
		o.running = false
		o.mu.Unlock()
	}()

	return o.run(ctx, goal, stage, extra, started)
}

func (o *Orchestrator) run(ctx context.Context, goal, stage string, extra map[string]any, started time.Time) core.GoalExecutionResult {
	ledgerID := uuid.NewString()
	if err := o.ledgerCreate(ledgerID, goal); err != nil {
		return o.failGoal(goal, started, 0, err.Error())
	}

	limiter := core.NewCallLimiter(o.maxCalls)
	decomposer := NewDecomposer(o.provider, o.registry, o.memory, limiter, o.logger)

	tasks, err := decomposer.Decompose(ctx, goal, stage, extra)
	if err != nil {
		o.ledgerFinish(ledgerID, false, fmt.Sprintf("decomposition failed: %v", err))
		return o.failGoal(goal, started, 0, err.Error())
	}

	o.appendThought(core.ThoughtStep{
		Step:      "decomposition",
		Goal:      goal,
		Stage:     stage,
		Tasks:     tasks,
		Timestamp: time.Now(),
	})
	if err := o.ledgerProgress(ledgerID, ledger.StatusRunning, 0, fmt.Sprintf("decomposed into %d tasks", len(tasks))); err != nil {
		return o.failGoal(goal, started, len(tasks), err.Error())
	}

	executor := &Executor{
		provider:    o.provider,
		registry:    o.registry,
		breaker:     o.breaker,
		limiter:     limiter,
		logger:      o.logger,
		maxRetries:  o.maxRetries,
		toolTimeout: o.toolTimeout,
		onFailure:   o.appendThought,
	}

	results := make([]core.TaskResult, len(tasks))
	var completed atomic.Int64
	var wg sync.WaitGroup

	for i, task := range tasks {
		wg.Add(1)
		go func(idx int, task core.Task) {
			defer wg.Done()

			res, attempts := executor.Execute(ctx, task, stage)
			results[idx] = res

			finalStatus := "failed"
			if res.Success {
				finalStatus = "success"
			}
			o.appendExecution(core.ExecutionEntry{
				Task:        task,
				Attempts:    attempts,
				FinalStatus: finalStatus,
			})
			o.remember(task, res, goal, stage)

			done := completed.Add(1)
			o.ledgerTaskDone(ledgerID, task.Name, res, int(done), len(tasks))
		}(i, task)
	}
	wg.Wait()

	successful := 0
	for _, r := range results {
		if r.Success {
			successful++
		}
	}
	failed := len(results) - successful
	success := failed == 0

	result := core.GoalExecutionResult{
		Success:         success,
		Results:         results,
		Thinking:        o.Thinking(),
		ExecutionTime:   time.Since(started),
		SuccessfulTasks: successful,
		FailedTasks:     failed,
		TotalTasks:      len(tasks),
	}
	if !success {
		result.Error = fmt.Sprintf("%d of %d tasks failed", failed, len(tasks))
	}

	if err := o.ledgerComplete(ledgerID, result); err != nil {
		result.Success = false
		result.Error = err.Error()
	}

	logGoalExecution(o.logger, goal, len(tasks), result.ExecutionTime, result.Success)
	return result
}

func (o *Orchestrator) failGoal(goal string, started time.Time, total int, msg string) core.GoalExecutionResult {
	res := core.GoalExecutionResult{
		Success:       false,
		Error:         msg,
		Thinking:      o.Thinking(),
		ExecutionTime: time.Since(started),
		FailedTasks:   total,
		TotalTasks:    total,
	}
	logGoalExecution(o.logger, goal, total, res.ExecutionTime, false)
	return res
}

// remember journals one task outcome. Memory persistence failures are logged
// and swallowed: memory is a recall aid, not the source of truth.
func (o *Orchestrator) remember(task core.Task, res core.TaskResult, goal, stage string) {
	if o.memory == nil {
		return
	}
	if _, err := o.memory.Store(memory.Entry{
		Task:   task,
		Result: res,
		Stage:  stage,
		Goal:   goal,
	}); err != nil {
		o.logger.Warn("orchestrator.memory_write_failed", "task", task.Name, "error", err)
	}
}

// Ledger helpers. Ledger write failures propagate (wrapped in
// LedgerWriteError) because the ledger is the resumability source of truth.

func (o *Orchestrator) ledgerCreate(id, goal string) error {
	if o.ledger == nil {
		return nil
	}
	if _, err := o.ledger.Create(id, goal); err != nil {
		return &core.LedgerWriteError{TaskID: id, Op: "create", Err: err}
	}
	return nil
}

func (o *Orchestrator) ledgerProgress(id string, status ledger.Status, progress int, line string) error {
	if o.ledger == nil {
		return nil
	}
	if _, err := o.ledger.Update(id, map[string]any{"status": status, "progress": progress}); err != nil {
		return &core.LedgerWriteError{TaskID: id, Op: "update", Err: err}
	}
	if err := o.ledger.AppendLog(id, line); err != nil {
		return &core.LedgerWriteError{TaskID: id, Op: "append_log", Err: err}
	}
	return nil
}

func (o *Orchestrator) ledgerTaskDone(id, taskName string, res core.TaskResult, done, total int) {
	if o.ledger == nil {
		return
	}
	line := fmt.Sprintf("task %s succeeded after %d attempt(s)", taskName, res.Attempts)
	if !res.Success {
		line = fmt.Sprintf("task %s failed after %d attempt(s): %s", taskName, res.Attempts, res.Error)
	}
	if err := o.ledger.AppendLog(id, line); err != nil {
		o.logger.Error("orchestrator.ledger_append_failed", "ledger_id", id, "error", err)
	}
	if _, err := o.ledger.Update(id, map[string]any{"progress": done * 100 / total}); err != nil {
		o.logger.Error("orchestrator.ledger_update_failed", "ledger_id", id, "error", err)
	}
}

func (o *Orchestrator) ledgerComplete(id string, result core.GoalExecutionResult) error {
	if o.ledger == nil {
		return nil
	}
	status := ledger.StatusCompleted
	if !result.Success {
		status = ledger.StatusFailed
	}
	summary := map[string]any{
		"successful_tasks": result.SuccessfulTasks,
		"failed_tasks":     result.FailedTasks,
		"total_tasks":      result.TotalTasks,
	}
	if _, err := o.ledger.Update(id, map[string]any{
		"status":   status,
		"progress": 100,
		"result":   summary,
	}); err != nil {
		return &core.LedgerWriteError{TaskID: id, Op: "update", Err: err}
	}
	return nil
}

func (o *Orchestrator) ledgerFinish(id string, success bool, line string) {
	if o.ledger == nil {
		return
	}
	status := ledger.StatusCompleted
	if !success {
		status = ledger.StatusFailed
	}
	if _, err := o.ledger.Update(id, map[string]any{"status": status}); err != nil && !errors.Is(err, ledger.ErrNotFound) {
		o.logger.Error("orchestrator.ledger_update_failed", "ledger_id", id, "error", err)
	}
	if err := o.ledger.AppendLog(id, line); err != nil && !errors.Is(err, ledger.ErrNotFound) {
		o.logger.Error("orchestrator.ledger_append_failed", "ledger_id", id, "error", err)
	}
}

func (o *Orchestrator) appendThought(step core.ThoughtStep) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.thinking = append(o.thinking, step)
}

func (o *Orchestrator) appendExecution(entry core.ExecutionEntry) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.executionLog = append(o.executionLog, entry)
}

// Thinking returns a copy of the current thinking trace.
func (o *Orchestrator) Thinking() []core.ThoughtStep {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]core.ThoughtStep, len(o.thinking))
	copy(out, o.thinking)
	return out
}

// ExecutionLog returns a copy of the per-task attempt logs of the last goal.
func (o *Orchestrator) ExecutionLog() []core.ExecutionEntry {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]core.ExecutionEntry, len(o.executionLog))
	copy(out, o.executionLog)
	return out
}

// Breaker exposes the process-lifetime circuit breaker, e.g. for an operator
// reset.
func (o *Orchestrator) Breaker() *breaker.CircuitBreaker { return o.breaker }

// IsRunning reports whether a goal is currently in flight.
func (o *Orchestrator) IsRunning() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.running
}

// Reset clears the thinking trace and execution log. It does not touch the
// breaker; reopening a tripped breaker is a deliberate operator action via
// Breaker().Reset().
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.thinking = nil
	o.executionLog = nil
}
