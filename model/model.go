package model

import (
	"context"

	"github.com/hupe1980/agentstream/core"
)

// ToolDefinition declaratively exposes a callable function to the model.
type ToolDefinition struct {
	Type     string             `json:"type"` // "function"
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition describes an individual function (tool) exposed to the model.
// Parameters is a JSON Schema object (draft agnostic, minimal subset expected).
type FunctionDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"` // JSON Schema
}

// Request captures the normalized model input produced by the engine.
type Request struct {
	Instructions string           `json:"instructions"`
	Messages     []core.Message   `json:"-"`
	Tools        []ToolDefinition `json:"tools,omitempty"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a partial or final chunk emitted by a streaming model.
//
// Partial responses carry only Text (a fragment). The final response has
// Partial=false and a non-nil Message; its Text is the full text.
type Response struct {
	ID           string                 `json:"id"`
	Partial      bool                   `json:"partial"`
	Text         string                 `json:"text"`
	Message      *core.AssistantMessage `json:"-"`
	FinishReason string                 `json:"finish_reason"` // "stop", "length", "tool_calls", etc.
	Usage        *TokenUsage            `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "openai", "anthropic", "mock", etc.
	SupportsTools bool   `json:"supports_tools"`
}

// Model is the reasoning capability driven by the execution graph.
//
// Implementations close both channels when done. The error channel is
// buffered with capacity one and receives at most one error; a stream that
// closes without a final response and without an error is incomplete.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	// Info returns information about the model implementation.
	Info() Info
}

// Final returns a final Response wrapping msg.
func Final(msg core.AssistantMessage, finishReason string) Response {
	return Response{Text: msg.Text, Message: &msg, FinishReason: finishReason}
}
