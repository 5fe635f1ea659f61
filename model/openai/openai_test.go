package openai

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentstream/core"
	"github.com/hupe1980/agentstream/model"
)

func newTestModel(t *testing.T, chunks []string) *Model {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		w.Header().Set("Content-Type", "text/event-stream")
		for _, c := range chunks {
			fmt.Fprintf(w, "data: %s\n\n", c)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	t.Cleanup(srv.Close)

	client := openai.NewClient(
		option.WithAPIKey("test"),
		option.WithBaseURL(srv.URL+"/"),
		option.WithMaxRetries(0),
	)
	return NewModelFromClient(&client)
}

func collect(respCh <-chan model.Response, errCh <-chan error) ([]model.Response, error) {
	var out []model.Response
	for r := range respCh {
		out = append(out, r)
	}
	return out, <-errCh
}

func TestGenerate_TextStream(t *testing.T) {
	m := newTestModel(t, []string{
		`{"id":"c1","object":"chat.completion.chunk","created":1,"model":"m","choices":[{"index":0,"delta":{"content":"Hel"}}]}`,
		`{"id":"c1","object":"chat.completion.chunk","created":1,"model":"m","choices":[{"index":0,"delta":{"content":"lo"}}]}`,
		`{"id":"c1","object":"chat.completion.chunk","created":1,"model":"m","choices":[{"index":0,"delta":{},"finish_reason":"stop"}]}`,
	})

	resps, err := collect(m.Generate(context.Background(), model.Request{
		Messages: []core.Message{core.UserMessage{Text: "hi"}},
	}))
	require.NoError(t, err)
	require.Len(t, resps, 3)
	assert.Equal(t, "Hel", resps[0].Text)
	assert.True(t, resps[1].Partial)
	final := resps[2]
	assert.False(t, final.Partial)
	require.NotNil(t, final.Message)
	assert.Equal(t, "Hello", final.Message.Text)
	assert.False(t, final.Message.HasToolCalls())
}

func TestGenerate_ToolCallsOrderedByIndex(t *testing.T) {
	m := newTestModel(t, []string{
		`{"id":"c2","object":"chat.completion.chunk","created":1,"model":"m","choices":[{"index":0,"delta":{"tool_calls":[{"index":1,"id":"call_b","type":"function","function":{"name":"tavily_search","arguments":"{\"query\":"}}]}}]}`,
		`{"id":"c2","object":"chat.completion.chunk","created":1,"model":"m","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"id":"call_a","type":"function","function":{"name":"tavily_search","arguments":"{\"query\":\"a\"}"}}]}}]}`,
		`{"id":"c2","object":"chat.completion.chunk","created":1,"model":"m","choices":[{"index":0,"delta":{"tool_calls":[{"index":1,"function":{"arguments":"\"b\"}"}}]}}]}`,
		`{"id":"c2","object":"chat.completion.chunk","created":1,"model":"m","choices":[{"index":0,"delta":{},"finish_reason":"tool_calls"}]}`,
	})

	resps, err := collect(m.Generate(context.Background(), model.Request{
		Messages: []core.Message{core.UserMessage{Text: "compare a and b"}},
	}))
	require.NoError(t, err)
	require.Len(t, resps, 1)
	calls := resps[0].Message.ToolCalls
	require.Len(t, calls, 2)
	assert.Equal(t, "call_a", calls[0].ID)
	assert.Equal(t, map[string]any{"query": "a"}, calls[0].Arguments)
	assert.Equal(t, "call_b", calls[1].ID)
	assert.Equal(t, map[string]any{"query": "b"}, calls[1].Arguments)
	assert.Equal(t, "tool_calls", resps[0].FinishReason)
}

func TestGenerate_IncompleteStream(t *testing.T) {
	m := newTestModel(t, []string{
		`{"id":"c3","object":"chat.completion.chunk","created":1,"model":"m","choices":[{"index":0,"delta":{"content":"cut"}}]}`,
	})

	resps, err := collect(m.Generate(context.Background(), model.Request{
		Messages: []core.Message{core.UserMessage{Text: "hi"}},
	}))
	require.NoError(t, err)
	require.Len(t, resps, 1)
	assert.True(t, resps[0].Partial)
}

func TestBuildMessages(t *testing.T) {
	call := core.NewToolInvocationRequest("c1", "tavily_search", `{"query":"x"}`)
	msgs := buildMessages(model.Request{
		Instructions: "be helpful",
		Messages: []core.Message{
			core.UserMessage{Text: "q"},
			core.AssistantMessage{ToolCalls: []core.ToolInvocationRequest{call}},
			core.ToolResultMessage{InvocationID: "c1", ToolName: "tavily_search", Content: "[]"},
			core.AssistantMessage{Text: "done"},
		},
	})
	require.Len(t, msgs, 5)
	assert.NotNil(t, msgs[0].OfSystem)
	assert.NotNil(t, msgs[1].OfUser)
	require.NotNil(t, msgs[2].OfAssistant)
	require.Len(t, msgs[2].OfAssistant.ToolCalls, 1)
	assert.Equal(t, "c1", msgs[2].OfAssistant.ToolCalls[0].ID)
	require.NotNil(t, msgs[3].OfTool)
	assert.Equal(t, "c1", msgs[3].OfTool.ToolCallID)
	assert.NotNil(t, msgs[4].OfAssistant)
}
