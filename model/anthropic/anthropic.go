// Package anthropic provides a streaming model.Model backed by the Anthropic
// Messages API.
package anthropic

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"

	"github.com/hupe1980/agentstream/core"
	"github.com/hupe1980/agentstream/model"
)

// Options configures the Anthropic model adapter (temperature, model id,
// max tokens, API key).
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
	BaseURL     string
}

// Model wraps the Anthropic Messages API behind the generic model.Model interface.
type Model struct {
	client *anthropic.Client
	opts   Options
}

func defaultOptions() Options {
	return Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   4096,
	}
}

// NewModel creates a new Anthropic model using the official client.
func NewModel(optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(opts.BaseURL))
	}
	client := anthropic.NewClient(clientOpts...)

	return &Model{client: &client, opts: opts}
}

// NewModelFromClient creates a new Anthropic model from an existing client.
func NewModelFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Model{client: client, opts: opts}
}

// Generate streams text deltas and emits the accumulated message as the final response.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		params := anthropic.MessageNewParams{
			Model:       m.opts.Model,
			Messages:    buildMessages(req.Messages),
			MaxTokens:   m.opts.MaxTokens,
			Temperature: anthropic.Float(m.opts.Temperature),
		}
		if req.Instructions != "" {
			params.System = []anthropic.TextBlockParam{{Text: req.Instructions}}
		}
		if len(req.Tools) > 0 {
			params.Tools = buildTools(req.Tools)
		}

		if err := m.stream(ctx, params, out); err != nil {
			errCh <- err
		}
	}()

	return out, errCh
}

func (m *Model) stream(ctx context.Context, params anthropic.MessageNewParams, out chan<- model.Response) error {
	stream := m.client.Messages.NewStreaming(ctx, params)
	defer stream.Close()

	message := anthropic.Message{}
	for stream.Next() {
		event := stream.Current()
		if err := message.Accumulate(event); err != nil {
			return &core.CapabilityError{Provider: "anthropic", Err: err}
		}
		delta, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent)
		if !ok {
			continue
		}
		if td, ok := delta.Delta.AsAny().(anthropic.TextDelta); ok && td.Text != "" {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case out <- model.Response{ID: message.ID, Partial: true, Text: td.Text}:
			}
		}
	}
	if err := stream.Err(); err != nil {
		return &core.CapabilityError{Provider: "anthropic", Err: err}
	}
	if message.StopReason == "" {
		return nil
	}

	final := model.Final(toAssistantMessage(message), string(message.StopReason))
	final.ID = message.ID
	final.Usage = &model.TokenUsage{
		PromptTokens:     int(message.Usage.InputTokens),
		CompletionTokens: int(message.Usage.OutputTokens),
		TotalTokens:      int(message.Usage.InputTokens + message.Usage.OutputTokens),
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case out <- final:
		return nil
	}
}

func toAssistantMessage(message anthropic.Message) core.AssistantMessage {
	var msg core.AssistantMessage
	for _, block := range message.Content {
		switch block.Type {
		case "text":
			msg.Text += block.AsText().Text
		case "tool_use":
			tu := block.AsToolUse()
			raw := "{}"
			if b, err := json.Marshal(tu.Input); err == nil && len(b) > 0 && string(b) != "null" {
				raw = string(b)
			}
			msg.ToolCalls = append(msg.ToolCalls, core.NewToolInvocationRequest(tu.ID, tu.Name, raw))
		}
	}
	return msg
}

// emptyUserText stands in for a blank user turn. The API rejects empty text
// blocks, and dropping the turn would leave two assistant turns adjacent.
const emptyUserText = "(empty message)"

// buildMessages converts the history to Anthropic messages. Consecutive tool
// results are grouped into a single user message following the assistant
// turn that requested them.
func buildMessages(history []core.Message) []anthropic.MessageParam {
	var (
		messages []anthropic.MessageParam
		results  []anthropic.ContentBlockParamUnion
	)
	flush := func() {
		if len(results) > 0 {
			messages = append(messages, anthropic.NewUserMessage(results...))
			results = nil
		}
	}

	for _, msg := range history {
		switch m := msg.(type) {
		case core.UserMessage:
			flush()
			text := m.Text
			if strings.TrimSpace(text) == "" {
				text = emptyUserText
			}
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(text)))
		case core.AssistantMessage:
			flush()
			var content []anthropic.ContentBlockParamUnion
			if m.Text != "" {
				content = append(content, anthropic.NewTextBlock(m.Text))
			}
			for _, call := range m.ToolCalls {
				var input any = map[string]any{}
				if call.Arguments != nil {
					input = call.Arguments
				}
				content = append(content, anthropic.NewToolUseBlock(call.ID, input, call.Name))
			}
			if len(content) > 0 {
				messages = append(messages, anthropic.NewAssistantMessage(content...))
			}
		case core.ToolResultMessage:
			results = append(results, anthropic.NewToolResultBlock(m.InvocationID, m.Content, m.IsError))
		}
	}
	flush()
	return messages
}

// buildTools converts tool definitions to Anthropic tool format.
func buildTools(tools []model.ToolDefinition) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, len(tools))
	for i, tool := range tools {
		inputSchema := anthropic.ToolInputSchemaParam{Type: constant.Object("object")}
		if params := tool.Function.Parameters; params != nil {
			if properties, ok := params["properties"]; ok {
				inputSchema.Properties = properties
			}
			inputSchema.Required = requiredFields(params["required"])
		}
		out[i] = anthropic.ToolUnionParamOfTool(inputSchema, tool.Function.Name)
		if out[i].OfTool != nil && tool.Function.Description != "" {
			out[i].OfTool.Description = anthropic.String(tool.Function.Description)
		}
	}
	return out
}

func requiredFields(v any) []string {
	switch req := v.(type) {
	case []string:
		return req
	case []any:
		out := make([]string, 0, len(req))
		for _, r := range req {
			if s, ok := r.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// Info returns metadata describing this Anthropic model implementation.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:          string(m.opts.Model),
		Provider:      "anthropic",
		SupportsTools: true,
	}
}

var _ model.Model = (*Model)(nil)
