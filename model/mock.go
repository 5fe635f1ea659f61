package model

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/hupe1980/agentstream/core"
)

// MockTurn scripts one reasoning step of a MockModel.
type MockTurn struct {
	Text  string
	Calls []core.ToolInvocationRequest
	// Err is sent after the text fragments instead of a final response.
	Err error
	// Incomplete closes the stream after the fragments with no final response.
	Incomplete bool
}

// MockHandler computes a reply from a request. It may block on ctx.
type MockHandler func(ctx context.Context, req Request) (MockTurn, error)

// MockModel is a lightweight in-memory Model useful for tests & examples.
// Scripted turns are consumed in order; once exhausted it echoes the last
// user message.
type MockModel struct {
	info Info

	mu       sync.Mutex
	turns    []MockTurn
	handler  MockHandler
	requests []Request
}

// NewMockModel constructs a MockModel with basic tool support enabled.
func NewMockModel(name, provider string) *MockModel {
	return &MockModel{
		info: Info{
			Name:          name,
			Provider:      provider,
			SupportsTools: true,
		},
	}
}

// AddTurn scripts a reply with optional tool invocation requests.
func (m *MockModel) AddTurn(text string, calls ...core.ToolInvocationRequest) *MockModel {
	return m.Script(MockTurn{Text: text, Calls: calls})
}

// AddError scripts a failing step.
func (m *MockModel) AddError(err error) *MockModel {
	return m.Script(MockTurn{Err: err})
}

// Script appends raw turns.
func (m *MockModel) Script(turns ...MockTurn) *MockModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = append(m.turns, turns...)
	return m
}

// WithHandler replaces scripted turns with a dynamic handler.
func (m *MockModel) WithHandler(h MockHandler) *MockModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handler = h
	return m
}

// Requests returns the requests observed so far.
func (m *MockModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.requests))
	copy(out, m.requests)
	return out
}

// Generate implements Model; emits word fragments then the final response.
func (m *MockModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 16)
	errCh := make(chan error, 1)

	go func() {
		defer close(respCh)
		defer close(errCh)

		turn, err := m.next(ctx, req)
		if err != nil {
			errCh <- err
			return
		}

		if turn.Text != "" {
			for _, frag := range strings.SplitAfter(turn.Text, " ") {
				if frag == "" {
					continue
				}
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				case respCh <- Response{Partial: true, Text: frag}:
				}
			}
		}

		switch {
		case turn.Err != nil:
			errCh <- turn.Err
			return
		case turn.Incomplete:
			return
		}

		finish := "stop"
		if len(turn.Calls) > 0 {
			finish = "tool_calls"
		}
		select {
		case <-ctx.Done():
			errCh <- ctx.Err()
		case respCh <- Final(core.AssistantMessage{Text: turn.Text, ToolCalls: turn.Calls}, finish):
		}
	}()
	return respCh, errCh
}

func (m *MockModel) next(ctx context.Context, req Request) (MockTurn, error) {
	m.mu.Lock()
	snapshot := req
	snapshot.Messages = append([]core.Message(nil), req.Messages...)
	m.requests = append(m.requests, snapshot)
	handler := m.handler
	var turn MockTurn
	scripted := false
	if handler == nil && len(m.turns) > 0 {
		turn, m.turns = m.turns[0], m.turns[1:]
		scripted = true
	}
	m.mu.Unlock()

	if handler != nil {
		return handler(ctx, req)
	}
	if scripted {
		return turn, nil
	}
	if len(req.Messages) == 0 {
		return MockTurn{}, fmt.Errorf("no messages provided")
	}
	return MockTurn{Text: fmt.Sprintf("Mock response to: %s", core.LastUserText(req.Messages))}, nil
}

// Info implements Model interface.
func (m *MockModel) Info() Info { return m.info }
