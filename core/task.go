package core

import (
	"time"
)

// Task is one decomposed, tool-scoped unit of work derived from a goal.
// Name must match a registered tool; Params carry the tool arguments.
//
// Tasks are never shared across goroutines: the executor owns a private copy
// per attempt and self-correction replaces the copy, not the original.
type Task struct {
	Name   string         `json:"task"`
	Params map[string]any `json:"params"`
}

// Clone returns a deep-enough copy (params map copied one level) so an
// attempt can mutate its task without aliasing the decomposer's slice.
func (t Task) Clone() Task {
	params := make(map[string]any, len(t.Params))
	for k, v := range t.Params {
		params[k] = v
	}
	return Task{Name: t.Name, Params: params}
}

// AttemptStatus categorizes the outcome of a single execution attempt.
type AttemptStatus string

const (
	// AttemptExecuted means the tool ran and the result passed validation.
	AttemptExecuted AttemptStatus = "executed"
	// AttemptValidationFailed means the tool ran but the result was judged
	// semantically inadequate.
	AttemptValidationFailed AttemptStatus = "validation_failed"
	// AttemptToolError means the tool could not be resolved.
	AttemptToolError AttemptStatus = "tool_error"
	// AttemptExecutionError means the tool ran and returned an error
	// (including timeouts).
	AttemptExecutionError AttemptStatus = "execution_error"
)

// AttemptRecord captures one attempt of the executor state machine. Records
// are immutable once appended to the attempt log; the log itself is owned
// exclusively by a single executor invocation.
type AttemptRecord struct {
	Attempt     int           `json:"attempt"`
	Task        Task          `json:"task"`
	Status      AttemptStatus `json:"status"`
	Error       string        `json:"error,omitempty"`
	StartedAt   time.Time     `json:"started_at"`
	CompletedAt time.Time     `json:"completed_at"`
}

// TaskResult is the terminal value of one task execution, returned to the
// orchestrator and never mutated afterwards.
type TaskResult struct {
	Success  bool   `json:"success"`
	Data     any    `json:"data,omitempty"`
	Error    string `json:"error,omitempty"`
	Attempts int    `json:"attempts"`
	TaskName string `json:"task_name"`
}

// GoalExecutionResult aggregates the outcome of one ExecuteGoal call.
// Results are ordered positionally by input task order, not by completion
// order. The value is owned by the caller once returned.
type GoalExecutionResult struct {
	Success         bool          `json:"success"`
	Error           string        `json:"error,omitempty"`
	Results         []TaskResult  `json:"results"`
	Thinking        []ThoughtStep `json:"thinking"`
	ExecutionTime   time.Duration `json:"execution_time"`
	SuccessfulTasks int           `json:"successful_tasks"`
	FailedTasks     int           `json:"failed_tasks"`
	TotalTasks      int           `json:"total_tasks"`
}

// ThoughtStep is one entry of the orchestrator's audit trace. The trace is
// append-only and never consulted for control flow.
type ThoughtStep struct {
	Step      string    `json:"step"` // "decomposition" or "failure_handling"
	Goal      string    `json:"goal,omitempty"`
	Stage     string    `json:"stage,omitempty"`
	Tasks     []Task    `json:"tasks,omitempty"`
	Task      *Task     `json:"task,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ExecutionEntry bundles a task with its full attempt log for the
// orchestrator's execution log.
type ExecutionEntry struct {
	Task        Task            `json:"task"`
	Attempts    []AttemptRecord `json:"attempts"`
	FinalStatus string          `json:"final_status"` // "success" or "failed"
}
