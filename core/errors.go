package core

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for goal-level and task-level failure modes. Task-level
// errors never cross the core boundary as raw errors; they are folded into
// TaskResult / GoalExecutionResult as structured data. The sentinels exist so
// internal layers can branch with errors.Is.
var (
	// ErrAlreadyExecuting is reported when ExecuteGoal is called while a goal
	// is in flight on the same orchestrator instance. Deliberate single-flight
	// policy: callers retry later, they are not queued.
	ErrAlreadyExecuting = errors.New("agent is already executing a goal")

	// ErrCircuitOpen is reported when the circuit breaker gates execution.
	ErrCircuitOpen = errors.New("circuit breaker open")

	// ErrDecompositionEmpty is reported when decomposition yields zero valid tasks.
	ErrDecompositionEmpty = errors.New("no tasks could be generated from the goal")

	// ErrRetriesExhausted is reported when a task fails all retry attempts.
	ErrRetriesExhausted = errors.New("max retries exceeded")
)

// ToolNotFoundError signals that a decomposed task referenced a tool name
// absent from the registry.
type ToolNotFoundError struct {
	Name string
}

func (e *ToolNotFoundError) Error() string {
	return fmt.Sprintf("tool %q not found in registry", e.Name)
}

// ToolTimeoutError signals that a tool call exceeded its execution timeout.
// For retry purposes it is treated like any tool error, but it is reported
// with a distinct kind so callers can tell infrastructure slowness from
// genuine failures.
type ToolTimeoutError struct {
	Tool    string
	Timeout time.Duration
}

func (e *ToolTimeoutError) Error() string {
	return fmt.Sprintf("tool %q timed out after %s", e.Tool, e.Timeout)
}

// LedgerWriteError wraps a failed ledger mutation. Unlike memory persistence
// failures (logged and swallowed), ledger failures propagate: the ledger is
// the resumability source of truth.
type LedgerWriteError struct {
	TaskID string
	Op     string
	Err    error
}

func (e *LedgerWriteError) Error() string {
	return fmt.Sprintf("ledger %s failed for task %q: %v", e.Op, e.TaskID, e.Err)
}

func (e *LedgerWriteError) Unwrap() error { return e.Err }
