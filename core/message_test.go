package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewToolInvocationRequest(t *testing.T) {
	req := NewToolInvocationRequest("1", "tavily_search", `{"query":"weather in Paris"}`)
	require.NotNil(t, req.Arguments)
	assert.Equal(t, "weather in Paris", req.Arguments["query"])

	empty := NewToolInvocationRequest("2", "t", "")
	assert.Equal(t, map[string]any{}, empty.Arguments)

	bad := NewToolInvocationRequest("3", "t", `{"query":`)
	assert.Nil(t, bad.Arguments)
	assert.Equal(t, `{"query":`, bad.ArgumentsJSON())
}

func TestToolInvocationRequest_ArgumentsJSON(t *testing.T) {
	req := ToolInvocationRequest{ID: "1", Name: "t", Arguments: map[string]any{"q": "x"}}
	assert.JSONEq(t, `{"q":"x"}`, req.ArgumentsJSON())
	assert.Equal(t, "{}", ToolInvocationRequest{}.ArgumentsJSON())
}

func TestToolInvocationResult_Message(t *testing.T) {
	ok := ToolInvocationResult{InvocationID: "1", ToolName: "t", Content: "done"}.Message()
	assert.False(t, ok.IsError)
	assert.Equal(t, "done", ok.Content)

	failed := ToolInvocationResult{InvocationID: "2", ToolName: "t", Err: errors.New("boom")}.Message()
	assert.True(t, failed.IsError)
	assert.Equal(t, "2", failed.InvocationID)
	assert.Contains(t, failed.Content, "boom")
}

func TestLastUserText(t *testing.T) {
	history := []Message{
		UserMessage{Text: "first"},
		AssistantMessage{Text: "reply"},
		UserMessage{Text: "second"},
		AssistantMessage{Text: "reply 2"},
	}
	assert.Equal(t, "second", LastUserText(history))
	assert.Equal(t, "", LastUserText(nil))
}

func TestAssistantMessage_HasToolCalls(t *testing.T) {
	assert.False(t, AssistantMessage{Text: "x"}.HasToolCalls())
	assert.True(t, AssistantMessage{ToolCalls: []ToolInvocationRequest{{ID: "1"}}}.HasToolCalls())
}
