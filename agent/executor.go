package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/taskpilot/breaker"
	"github.com/hupe1980/taskpilot/core"
	"github.com/hupe1980/taskpilot/internal/jsonrepair"
	"github.com/hupe1980/taskpilot/logging"
	"github.com/hupe1980/taskpilot/provider"
	"github.com/hupe1980/taskpilot/tool"
)

const (
	// DefaultMaxRetries is the attempt budget per task, counting the first try.
	DefaultMaxRetries = 3
	// DefaultToolTimeout bounds a single tool invocation.
	DefaultToolTimeout = 60 * time.Second

	validateMaxTokens = 500
	repairMaxTokens   = 1000
)

// domainLogger is the optional richer logging surface implemented by
// logging.PilotLogger. Plain Logger implementations get key/value fallbacks.
type domainLogger interface {
	LogToolCall(tool string, attempt int, dur time.Duration, success bool, err error)
	LogModelCall(purpose string, dur time.Duration, success bool, err error)
	LogGoalExecution(goal string, tasks int, dur time.Duration, success bool)
}

func logToolCall(l logging.Logger, tool string, attempt int, dur time.Duration, success bool, err error) {
	if dl, ok := l.(domainLogger); ok {
		dl.LogToolCall(tool, attempt, dur, success, err)
		return
	}
	if success {
		l.Debug("tool execution completed", "tool", tool, "attempt", attempt, "duration", dur)
		return
	}
	l.Error("tool execution failed", "tool", tool, "attempt", attempt, "duration", dur, "error", err)
}

func logModelCall(l logging.Logger, purpose string, dur time.Duration, success bool, err error) {
	if dl, ok := l.(domainLogger); ok {
		dl.LogModelCall(purpose, dur, success, err)
		return
	}
	if success {
		l.Debug("reasoning call completed", "purpose", purpose, "duration", dur)
		return
	}
	l.Error("reasoning call failed", "purpose", purpose, "duration", dur, "error", err)
}

func logGoalExecution(l logging.Logger, goal string, tasks int, dur time.Duration, success bool) {
	if dl, ok := l.(domainLogger); ok {
		dl.LogGoalExecution(goal, tasks, dur, success)
		return
	}
	l.Info("goal execution completed", "goal", goal, "tasks", tasks, "duration", dur, "success", success)
}

// Executor runs a single task through the attempt state machine: breaker
// gate, tool resolution, bounded execution, semantic validation, then either
// parameter adjustment (validation failures, which trip the breaker) or an
// alternative-task proposal (tool errors, which do not).
//
// An Executor instance is scoped to one goal; it shares the breaker and
// limiter with its sibling tasks but owns nothing else mutable.
type Executor struct {
	provider    provider.Provider
	registry    *tool.Registry
	breaker     *breaker.CircuitBreaker
	limiter     *core.CallLimiter
	logger      logging.Logger
	maxRetries  int
	toolTimeout time.Duration

	// onFailure receives a trace step for each self-correction round. Nil is
	// allowed.
	onFailure func(step core.ThoughtStep)
}

// Execute drives the task to a terminal TaskResult plus the immutable attempt
// log. One AttemptRecord is appended for every attempt regardless of outcome,
// so TaskResult.Attempts == len(log) always holds.
func (e *Executor) Execute(ctx context.Context, task core.Task, stage string) (core.TaskResult, []core.AttemptRecord) {
	current := task.Clone()
	var log []core.AttemptRecord

	for attempt := 1; attempt <= e.maxRetries; attempt++ {
		if !e.breaker.Allow() {
			e.logger.Warn("executor.circuit_open", "task", current.Name, "attempt", attempt)
			return core.TaskResult{
				Success:  false,
				Error:    core.ErrCircuitOpen.Error(),
				Attempts: len(log),
				TaskName: current.Name,
			}, log
		}

		rec := core.AttemptRecord{
			Attempt:   attempt,
			Task:      current.Clone(),
			StartedAt: time.Now(),
		}

		t, err := e.registry.Get(current.Name)
		if err != nil {
			rec.Status = core.AttemptToolError
			rec.Error = err.Error()
			rec.CompletedAt = time.Now()
			log = append(log, rec)
			logToolCall(e.logger, current.Name, attempt, rec.CompletedAt.Sub(rec.StartedAt), false, err)

			if attempt == e.maxRetries {
				return e.exhausted(current, err.Error(), log), log
			}
			current = e.proposeAlternative(ctx, current, err, stage)
			continue
		}

		started := time.Now()
		result, err := e.executeWithTimeout(ctx, t, current.Params)
		rec.CompletedAt = time.Now()
		logToolCall(e.logger, current.Name, attempt, rec.CompletedAt.Sub(started), err == nil, err)

		if err != nil {
			rec.Status = core.AttemptExecutionError
			rec.Error = err.Error()
			log = append(log, rec)

			if attempt == e.maxRetries {
				return e.exhausted(current, err.Error(), log), log
			}
			current = e.proposeAlternative(ctx, current, err, stage)
			continue
		}

		if e.validateResult(ctx, current, result, stage) {
			rec.Status = core.AttemptExecuted
			log = append(log, rec)
			return core.TaskResult{
				Success:  true,
				Data:     result,
				Attempts: len(log),
				TaskName: current.Name,
			}, log
		}

		// Semantic validation failure: the only path that feeds the breaker.
		rec.Status = core.AttemptValidationFailed
		rec.Error = "result failed validation"
		log = append(log, rec)
		if e.breaker.RecordFailure() {
			e.logger.Error("executor.circuit_opened", "task", current.Name, "failures", e.breaker.Failures())
		}

		if attempt == e.maxRetries {
			return e.exhausted(current, "result failed validation", log), log
		}
		current = e.adjustParams(ctx, current, result, stage)
	}

	// Unreachable: every loop iteration returns or continues, and the last
	// iteration always returns.
	return e.exhausted(current, core.ErrRetriesExhausted.Error(), log), log
}

func (e *Executor) exhausted(task core.Task, lastErr string, log []core.AttemptRecord) core.TaskResult {
	return core.TaskResult{
		Success:  false,
		Error:    fmt.Sprintf("%s: %s", core.ErrRetriesExhausted.Error(), lastErr),
		Attempts: len(log),
		TaskName: task.Name,
	}
}

// executeWithTimeout runs the tool in a goroutine and races it against the
// timeout. On timeout the goroutine is abandoned (its context is cancelled,
// cooperative tools stop promptly) and a ToolTimeoutError is returned.
func (e *Executor) executeWithTimeout(ctx context.Context, t tool.Tool, params map[string]any) (any, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.toolTimeout)
	defer cancel()

	type outcome struct {
		result any
		err    error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("tool %q panicked: %v", t.Name(), r)}
			}
		}()
		result, err := t.Execute(callCtx, params)
		done <- outcome{result: result, err: err}
	}()

	select {
	case o := <-done:
		return o.result, o.err
	case <-callCtx.Done():
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &core.ToolTimeoutError{Tool: t.Name(), Timeout: e.toolTimeout}
	}
}

// validateResult asks the provider whether the result semantically satisfies
// the task. Any infrastructure failure on the validation path (limiter
// exhausted, provider error, unexpected response) defaults to valid: a broken
// validator must not be able to fail healthy work.
func (e *Executor) validateResult(ctx context.Context, task core.Task, result any, stage string) bool {
	prompt := renderPrompt(validatePromptTemplate, map[string]any{
		"Task":   taskJSON(task),
		"Result": resultPreview(result),
		"Stage":  stage,
	})

	if err := e.limiter.Increment(); err != nil {
		e.logger.Warn("executor.validation_skipped", "task", task.Name, "error", err)
		return true
	}

	started := time.Now()
	resp, err := e.provider.Generate(ctx, prompt, provider.WithMaxTokens(validateMaxTokens))
	logModelCall(e.logger, "validation", time.Since(started), err == nil, err)
	if err != nil {
		return true
	}

	verdict := strings.ToUpper(strings.TrimSpace(resp))
	if strings.HasPrefix(verdict, "VALID") {
		return true
	}
	if strings.HasPrefix(verdict, "INVALID") {
		e.logger.Debug("executor.validation_failed", "task", task.Name, "verdict", truncate(resp, 200))
		return false
	}
	// Off-format responses count as valid, same as validator errors.
	return true
}

// adjustParams asks the provider for better parameters after a validation
// failure. Any failure on this path keeps the current task unchanged so the
// retry still happens.
func (e *Executor) adjustParams(ctx context.Context, task core.Task, result any, stage string) core.Task {
	prompt := renderPrompt(adjustPromptTemplate, map[string]any{
		"Task":    taskJSON(task),
		"Result":  resultPreview(result),
		"Stage":   stage,
		"Catalog": e.registry.Catalog(),
	})

	replacement, ok := e.repairTask(ctx, task, prompt, "adjust_params")
	if !ok {
		return task
	}
	e.noteFailure(task, "validation failure, parameters adjusted", stage)
	return replacement
}

// proposeAlternative asks the provider for a different task after a tool
// error. Tool errors do not feed the breaker; the environment, not the
// reasoning output, is suspect.
func (e *Executor) proposeAlternative(ctx context.Context, task core.Task, cause error, stage string) core.Task {
	prompt := renderPrompt(alternativePromptTemplate, map[string]any{
		"Task":    taskJSON(task),
		"Error":   cause.Error(),
		"Stage":   stage,
		"Catalog": e.registry.Catalog(),
	})

	replacement, ok := e.repairTask(ctx, task, prompt, "propose_alternative")
	if !ok {
		return task
	}
	e.noteFailure(task, cause.Error(), stage)
	return replacement
}

// repairTask runs one self-correction provider call and parses the proposed
// task. Returns (task, false) when the call or parse fails.
func (e *Executor) repairTask(ctx context.Context, task core.Task, prompt, purpose string) (core.Task, bool) {
	if err := e.limiter.Increment(); err != nil {
		e.logger.Warn("executor.repair_skipped", "task", task.Name, "purpose", purpose, "error", err)
		return task, false
	}

	started := time.Now()
	resp, err := e.provider.Generate(ctx, prompt, provider.WithMaxTokens(repairMaxTokens))
	logModelCall(e.logger, purpose, time.Since(started), err == nil, err)
	if err != nil {
		return task, false
	}

	obj, ok := jsonrepair.ParseObject(resp)
	if !ok {
		e.logger.Warn("executor.repair_unparseable", "task", task.Name, "purpose", purpose)
		return task, false
	}
	replacement, ok := coerceTask(obj)
	if !ok {
		return task, false
	}
	return replacement, true
}

func (e *Executor) noteFailure(task core.Task, reason, stage string) {
	if e.onFailure == nil {
		return
	}
	failed := task.Clone()
	e.onFailure(core.ThoughtStep{
		Step:      "failure_handling",
		Stage:     stage,
		Task:      &failed,
		Error:     reason,
		Timestamp: time.Now(),
	})
}
