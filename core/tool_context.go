package core

import (
	"context"
	"fmt"

	"github.com/hupe1980/agentstream/logging"
)

// ToolContext is the scoped surface handed to a tool implementation for one
// invocation. It exposes the run's cancellation context, correlation ids and
// a logger already tagged with them.
type ToolContext struct {
	ctx          context.Context
	sessionID    string
	runID        string
	invocationID string
	toolName     string

	*loggerAdapter
}

// NewToolContext binds a tool invocation to its run.
func NewToolContext(ctx context.Context, sessionID, runID, invocationID, toolName string, logger logging.Logger) *ToolContext {
	return &ToolContext{
		ctx:           ctx,
		sessionID:     sessionID,
		runID:         runID,
		invocationID:  invocationID,
		toolName:      toolName,
		loggerAdapter: newLoggerAdapter(logger),
	}
}

// Context returns the context associated with the tool invocation. Tools
// should honour its cancellation and any deadline it carries.
func (tc *ToolContext) Context() context.Context { return tc.ctx }

// SessionID returns the session the invocation belongs to.
func (tc *ToolContext) SessionID() string { return tc.sessionID }

// RunID returns the run the invocation belongs to.
func (tc *ToolContext) RunID() string { return tc.runID }

// InvocationID returns the id of the ToolInvocationRequest being served.
func (tc *ToolContext) InvocationID() string { return tc.invocationID }

// ToolName returns the requested tool name.
func (tc *ToolContext) ToolName() string { return tc.toolName }

// Validate performs a structural sanity check of the context.
func (tc *ToolContext) Validate() error {
	if tc.ctx == nil || tc.sessionID == "" || tc.invocationID == "" {
		return fmt.Errorf("invalid ToolContext")
	}
	return nil
}
