// Package tool implements the tool capability subsystem: named units of work
// the orchestrator invokes on behalf of decomposed tasks, with schema
// validated arguments, consistent error handling and a registry that renders
// the catalog text embedded into decomposition prompts.
package tool

import (
	"context"
	"fmt"

	"github.com/hupe1980/taskpilot/internal/util"
)

// Tool defines the interface for the capabilities an agent can execute.
//
// Tools are supplied by the host application; the core only calls them. A
// tool receives the params chosen by goal decomposition (possibly adjusted by
// self-correction) and returns an arbitrary JSON-serializable result.
//
// Tool implementations should:
//   - Provide clear, descriptive names and descriptions (snake_case names recommended)
//   - Define a proper JSON schema for parameters
//   - Respect context cancellation; the executor wraps calls in a timeout
//   - Be safe for concurrent use, since tasks of one goal fan out in parallel
type Tool interface {
	// Name returns the unique identifier for this tool.
	Name() string

	// Description returns a human-readable description of what this tool does.
	// It is embedded into decomposition prompts so the reasoning provider can
	// choose appropriate tools.
	Description() string

	// Parameters returns a JSON schema describing the expected input format.
	Parameters() map[string]any

	// Execute runs the tool with the given parameters.
	Execute(ctx context.Context, params map[string]any) (any, error)
}

// ValidationError represents parameter validation errors with detailed information.
type ValidationError = util.ValidationError

// ToolError represents errors that occur during tool execution.
type ToolError struct {
	Tool    string `json:"tool"`              // Name of the tool that failed
	Message string `json:"message"`           // Error message
	Code    string `json:"code"`              // Error code for categorization
	Details any    `json:"details,omitempty"` // Additional error details
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{
		Tool:    tool,
		Message: message,
		Code:    code,
	}
}
