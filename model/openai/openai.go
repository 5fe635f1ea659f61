// Package openai provides an implementation of model.Model using the OpenAI
// Chat Completions streaming API with function/tool calling. It adapts the
// conversation history into the SDK's message format and reassembles
// streamed deltas into a final assistant message.
package openai

import (
	"context"
	"sort"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/hupe1980/agentstream/core"
	"github.com/hupe1980/agentstream/model"
)

// aggCall aggregates partial tool call streaming deltas (id, name, arguments)
// keyed by the choice-local index.
type aggCall struct {
	index          int64
	id, name, args string
}

// Options configure the OpenAI model adapter.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
	APIKey              string
	BaseURL             string
}

// Model wraps the OpenAI Chat Completions API behind the generic model.Model interface.
type Model struct {
	client *openai.Client
	opts   Options
}

// NewModel creates a new OpenAI model using the official client. The API key
// falls back to OPENAI_API_KEY when Options.APIKey is empty.
func NewModel(optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	var reqOpts []option.RequestOption
	if opts.APIKey != "" {
		reqOpts = append(reqOpts, option.WithAPIKey(opts.APIKey))
	}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	client := openai.NewClient(reqOpts...)
	return &Model{client: &client, opts: opts}
}

// NewModelFromClient creates a new OpenAI model from an existing client.
func NewModelFromClient(client *openai.Client, optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Model{client: client, opts: opts}
}

func defaultOptions() Options {
	return Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.7,
		MaxCompletionTokens: 4096,
	}
}

// Generate streams a chat completion as model.Response values.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 32)
	errCh := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errCh)
		params := m.buildParams(req, buildMessages(req))
		if err := m.stream(ctx, params, out); err != nil {
			errCh <- err
		}
	}()
	return out, errCh
}

// buildMessages converts the history into OpenAI chat messages. Tool results
// become tool role messages keyed by invocation id.
func buildMessages(req model.Request) []openai.ChatCompletionMessageParamUnion {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.Instructions != "" {
		messages = append(messages, openai.SystemMessage(req.Instructions))
	}
	for _, msg := range req.Messages {
		switch m := msg.(type) {
		case core.UserMessage:
			messages = append(messages, openai.UserMessage(m.Text))
		case core.AssistantMessage:
			if !m.HasToolCalls() {
				messages = append(messages, openai.AssistantMessage(m.Text))
				continue
			}
			param := &openai.ChatCompletionAssistantMessageParam{
				Role:      "assistant",
				ToolCalls: toToolCallParams(m.ToolCalls),
			}
			if m.Text != "" {
				param.Content.OfString = openai.String(m.Text)
			}
			messages = append(messages, openai.ChatCompletionMessageParamUnion{OfAssistant: param})
		case core.ToolResultMessage:
			messages = append(messages, openai.ToolMessage(m.Content, m.InvocationID))
		}
	}
	return messages
}

func toToolCallParams(calls []core.ToolInvocationRequest) []openai.ChatCompletionMessageToolCallParam {
	out := make([]openai.ChatCompletionMessageToolCallParam, len(calls))
	for i, c := range calls {
		out[i] = openai.ChatCompletionMessageToolCallParam{
			ID:   c.ID,
			Type: "function",
			Function: openai.ChatCompletionMessageToolCallFunctionParam{
				Name:      c.Name,
				Arguments: c.ArgumentsJSON(),
			},
		}
	}
	return out
}

// buildParams assembles the OpenAI request parameters including tool definitions.
func (m *Model) buildParams(
	req model.Request,
	messages []openai.ChatCompletionMessageParamUnion,
) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Messages:            messages,
		Model:               m.opts.Model,
		Temperature:         openai.Float(m.opts.Temperature),
		MaxCompletionTokens: openai.Int(m.opts.MaxCompletionTokens),
		StreamOptions:       openai.ChatCompletionStreamOptionsParam{IncludeUsage: openai.Bool(true)},
	}
	if len(req.Tools) == 0 {
		return params
	}
	tools := make([]openai.ChatCompletionToolParam, len(req.Tools))
	for i, tdef := range req.Tools {
		tools[i] = openai.ChatCompletionToolParam{
			Type: "function",
			Function: openai.FunctionDefinitionParam{
				Name:        tdef.Function.Name,
				Description: openai.String(tdef.Function.Description),
				Parameters:  tdef.Function.Parameters,
			},
		}
	}
	params.Tools = tools
	return params
}

// stream forwards text deltas and emits the final response once the
// provider stream is exhausted.
func (m *Model) stream(ctx context.Context, params openai.ChatCompletionNewParams, out chan<- model.Response) error {
	stream := m.client.Chat.Completions.NewStreaming(ctx, params)
	defer stream.Close()

	var (
		text   strings.Builder
		agg    = map[int64]*aggCall{}
		finish string
		usage  *model.TokenUsage
		id     string
	)
	for stream.Next() {
		ck := stream.Current()
		if ck.ID != "" {
			id = ck.ID
		}
		if ck.Usage.TotalTokens > 0 {
			usage = &model.TokenUsage{
				PromptTokens:     int(ck.Usage.PromptTokens),
				CompletionTokens: int(ck.Usage.CompletionTokens),
				TotalTokens:      int(ck.Usage.TotalTokens),
			}
		}
		for _, ch := range ck.Choices {
			if ch.Index != 0 {
				continue
			}
			if ch.Delta.Content != "" {
				text.WriteString(ch.Delta.Content)
				if err := send(ctx, out, model.Response{ID: id, Partial: true, Text: ch.Delta.Content}); err != nil {
					return err
				}
			}
			accumulateToolCalls(agg, ch.Delta.ToolCalls)
			if ch.FinishReason != "" {
				finish = ch.FinishReason
			}
		}
	}
	if err := stream.Err(); err != nil {
		return &core.CapabilityError{Provider: "openai", Err: err}
	}
	if finish == "" {
		return nil
	}
	final := model.Final(core.AssistantMessage{Text: text.String(), ToolCalls: finalizeToolCalls(agg)}, finish)
	final.ID = id
	final.Usage = usage
	return send(ctx, out, final)
}

func accumulateToolCalls(agg map[int64]*aggCall, deltas []openai.ChatCompletionChunkChoiceDeltaToolCall) {
	for _, tc := range deltas {
		ac, ok := agg[tc.Index]
		if !ok {
			ac = &aggCall{index: tc.Index}
			agg[tc.Index] = ac
		}
		if tc.ID != "" {
			ac.id = tc.ID
		}
		if tc.Function.Name != "" {
			ac.name = tc.Function.Name
		}
		ac.args += tc.Function.Arguments
	}
}

// finalizeToolCalls orders aggregated calls by stream index.
func finalizeToolCalls(agg map[int64]*aggCall) []core.ToolInvocationRequest {
	if len(agg) == 0 {
		return nil
	}
	calls := make([]*aggCall, 0, len(agg))
	for _, ac := range agg {
		calls = append(calls, ac)
	}
	sort.Slice(calls, func(i, j int) bool { return calls[i].index < calls[j].index })
	out := make([]core.ToolInvocationRequest, len(calls))
	for i, ac := range calls {
		out[i] = core.NewToolInvocationRequest(ac.id, ac.name, ac.args)
	}
	return out
}

func send(ctx context.Context, out chan<- model.Response, r model.Response) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case out <- r:
		return nil
	}
}

// Info returns metadata describing this OpenAI model implementation.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:          m.opts.Model,
		Provider:      "openai",
		SupportsTools: true,
	}
}

var _ model.Model = (*Model)(nil)
