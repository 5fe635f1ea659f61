package testutil

import (
	"github.com/hupe1980/agentstream/core"
)

// HistoryBuilder provides a fluent helper for constructing message histories
// in tests.
// Example:
//
//	h := NewHistoryBuilder().User("hi").Assistant("", Call("c1", "search", `{"query":"x"}`)).ToolResult("c1", "search", "ok").Build()
type HistoryBuilder struct {
	messages []core.Message
}

// NewHistoryBuilder creates an empty builder.
func NewHistoryBuilder() *HistoryBuilder { return &HistoryBuilder{} }

// Call is shorthand for core.NewToolInvocationRequest.
func Call(id, name, rawArgs string) core.ToolInvocationRequest {
	return core.NewToolInvocationRequest(id, name, rawArgs)
}

// User appends a user turn (chainable).
func (b *HistoryBuilder) User(text string) *HistoryBuilder {
	b.messages = append(b.messages, core.UserMessage{Text: text})
	return b
}

// Assistant appends an assistant turn with optional tool calls (chainable).
func (b *HistoryBuilder) Assistant(text string, calls ...core.ToolInvocationRequest) *HistoryBuilder {
	b.messages = append(b.messages, core.AssistantMessage{Text: text, ToolCalls: calls})
	return b
}

// ToolResult appends a successful tool result (chainable).
func (b *HistoryBuilder) ToolResult(invocationID, toolName, content string) *HistoryBuilder {
	b.messages = append(b.messages, core.ToolResultMessage{InvocationID: invocationID, ToolName: toolName, Content: content})
	return b
}

// ToolError appends an error-bearing tool result (chainable).
func (b *HistoryBuilder) ToolError(invocationID, toolName, content string) *HistoryBuilder {
	b.messages = append(b.messages, core.ToolResultMessage{InvocationID: invocationID, ToolName: toolName, Content: content, IsError: true})
	return b
}

// Build returns a copy of the accumulated history.
func (b *HistoryBuilder) Build() []core.Message {
	return append([]core.Message(nil), b.messages...)
}
