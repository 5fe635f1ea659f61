package core

// ExecutionEvent is a transient progress signal produced while a run is in
// flight. Events are never stored in a Session. The set is closed: concrete
// types implement the unexported isExecutionEvent marker.
type ExecutionEvent interface{ isExecutionEvent() }

// PartialContent carries one incremental display fragment of a reasoning turn.
type PartialContent struct {
	Text string
}

func (PartialContent) isExecutionEvent() {}

// ToolInvocationStarted is emitted before a requested tool is invoked.
// Query is set (and IsQuery true) for query-style tools.
type ToolInvocationStarted struct {
	InvocationID string
	ToolName     string
	Arguments    map[string]any
	Query        string
	IsQuery      bool
}

func (ToolInvocationStarted) isExecutionEvent() {}

// ToolInvocationCompleted is emitted once the tool returned (or failed).
type ToolInvocationCompleted struct {
	InvocationID string
	ToolName     string
	Summary      string
	URLs         []string
	IsQuery      bool
	Failed       bool
}

func (ToolInvocationCompleted) isExecutionEvent() {}
