package core

import (
	"encoding/json"
	"fmt"
)

// Role identifies the author of a Message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is a closed tagged variant over the three turn kinds stored in a
// session. Concrete types implement the unexported isMessage marker.
type Message interface {
	Role() Role
	isMessage()
}

// UserMessage is a turn authored by the client. Text is forwarded as-is,
// including the empty string.
type UserMessage struct {
	Text string `json:"text"`
}

// Role implements Message.
func (UserMessage) Role() Role { return RoleUser }

func (UserMessage) isMessage() {}

// AssistantMessage is a complete reasoning turn. ToolCalls is always present
// (possibly empty); an empty list ends the run.
type AssistantMessage struct {
	Text      string                  `json:"text"`
	ToolCalls []ToolInvocationRequest `json:"tool_calls"`
}

// Role implements Message.
func (AssistantMessage) Role() Role { return RoleAssistant }

func (AssistantMessage) isMessage() {}

// HasToolCalls reports whether the turn requests at least one tool invocation.
func (m AssistantMessage) HasToolCalls() bool { return len(m.ToolCalls) > 0 }

// ToolResultMessage answers exactly one ToolInvocationRequest of the
// immediately preceding AssistantMessage.
type ToolResultMessage struct {
	InvocationID string `json:"invocation_id"`
	ToolName     string `json:"tool_name"`
	Content      string `json:"content"`
	IsError      bool   `json:"is_error,omitempty"`
}

// Role implements Message.
func (ToolResultMessage) Role() Role { return RoleTool }

func (ToolResultMessage) isMessage() {}

// ToolInvocationRequest is a single tool call requested by the model.
//
// RawArguments holds the provider supplied argument text. Arguments is the
// decoded mapping; it is nil when RawArguments could not be decoded.
type ToolInvocationRequest struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Arguments    map[string]any `json:"arguments,omitempty"`
	RawArguments string         `json:"raw_arguments,omitempty"`
}

// NewToolInvocationRequest decodes raw JSON arguments into a request. Decoding
// failures are kept on the request (nil Arguments) and reported when the tool
// is executed, so the turn stays well-formed.
func NewToolInvocationRequest(id, name, raw string) ToolInvocationRequest {
	req := ToolInvocationRequest{ID: id, Name: name, RawArguments: raw}
	if args, err := ParseArguments(raw); err == nil {
		req.Arguments = args
	}
	return req
}

// ArgumentsJSON returns the arguments as a JSON object string.
func (r ToolInvocationRequest) ArgumentsJSON() string {
	if r.Arguments == nil {
		if r.RawArguments != "" {
			return r.RawArguments
		}
		return "{}"
	}
	b, err := json.Marshal(r.Arguments)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// ParseArguments decodes a JSON object. The empty string yields an empty map.
func ParseArguments(raw string) (map[string]any, error) {
	if raw == "" {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, fmt.Errorf("failed to unmarshal args: %w", err)
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}

// ToolInvocationResult is the outcome of one tool invocation. InvocationID is
// a back-reference to the originating request.
type ToolInvocationResult struct {
	InvocationID string
	ToolName     string
	Content      string
	URLs         []string
	Err          error
}

// Message converts the result into the history entry that answers the request.
func (r ToolInvocationResult) Message() ToolResultMessage {
	msg := ToolResultMessage{InvocationID: r.InvocationID, ToolName: r.ToolName, Content: r.Content}
	if r.Err != nil {
		msg.IsError = true
		if msg.Content == "" {
			msg.Content = fmt.Sprintf("error: %s", r.Err.Error())
		}
	}
	return msg
}

// LastUserText returns the text of the most recent UserMessage in history.
func LastUserText(history []Message) string {
	for i := len(history) - 1; i >= 0; i-- {
		if um, ok := history[i].(UserMessage); ok {
			return um.Text
		}
	}
	return ""
}
