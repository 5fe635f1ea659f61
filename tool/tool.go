// Package tool implements the tool calling subsystem: the Tool contract,
// a name-keyed Registry that produces the catalog offered to the model,
// and FunctionTool, an adapter exposing a plain Go function as a tool with
// schema-validated arguments and uniform error codes.
package tool

import (
	"encoding/json"
	"fmt"

	"github.com/hupe1980/agentstream/core"
	"github.com/hupe1980/agentstream/internal/util"
)

// Tool is an external capability the model may invoke by name.
//
// Implementations must be safe for concurrent use: several invocations of
// the same tool can run in parallel within a single turn.
type Tool interface {
	// Name returns the unique identifier for this tool (snake_case recommended).
	Name() string

	// Description is shown to the model to decide when to use the tool.
	Description() string

	// Parameters returns a JSON schema describing the expected arguments.
	Parameters() map[string]any

	// Call executes the tool. Implementations should honour
	// toolCtx.Context() cancellation.
	Call(toolCtx *core.ToolContext, args map[string]any) (any, error)
}

// QueryTool is a Tool whose invocations are search-like: they carry a query
// string and produce results with source urls. The event multiplexer
// surfaces QueryTool invocations as search_start / search_results records.
type QueryTool interface {
	Tool

	// Query extracts the query string from invocation arguments.
	Query(args map[string]any) string

	// URLs extracts the result urls in result order.
	URLs(result any) []string
}

// ValidationError represents parameter validation errors with detailed information.
type ValidationError = util.ValidationError

// Error codes attached to ToolError.
const (
	CodeNotFound   = "NOT_FOUND"
	CodeValidation = "VALIDATION_ERROR"
	CodeExecution  = "EXECUTION_ERROR"
	CodePanic      = "PANIC"
)

// ToolError represents errors that occur during tool execution.
type ToolError struct {
	Tool    string `json:"tool"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
	cause   error
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// Unwrap exposes the underlying cause, if any.
func (e *ToolError) Unwrap() error { return e.cause }

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{Tool: tool, Message: message, Code: code}
}

// WrapError builds a ToolError that unwraps to cause.
func WrapError(tool, code string, cause error) *ToolError {
	return &ToolError{Tool: tool, Message: cause.Error(), Code: code, cause: cause}
}

// FormatResult renders a tool result as the textual content stored in the
// conversation log. Strings pass through; other values are JSON encoded.
func FormatResult(v any) string {
	switch r := v.(type) {
	case nil:
		return ""
	case string:
		return r
	case []byte:
		return string(r)
	case fmt.Stringer:
		return r.String()
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
