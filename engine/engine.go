package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hupe1980/agentstream/core"
	"github.com/hupe1980/agentstream/internal/util"
	"github.com/hupe1980/agentstream/logging"
	"github.com/hupe1980/agentstream/model"
	"github.com/hupe1980/agentstream/tool"
)

const tracerName = "github.com/hupe1980/agentstream/engine"

// DefaultMaxSteps bounds reasoning steps per run when Options.MaxSteps is zero.
const DefaultMaxSteps = 25

// cancelledResult is the tool result content recorded for requests that
// were never executed because the run was abandoned.
const cancelledResult = "error: cancelled"

// Options configures a Graph using the functional options pattern.
//
// Example:
//
//	g := engine.New(store, m, registry, func(o *engine.Options) {
//	    o.Instructions = "You are a helpful assistant. Today is {{.date}}."
//	    o.MaxParallelTools = 4
//	    o.Logger = logger
//	})
type Options struct {
	// Instructions is an optional system instruction template rendered per
	// reasoning step with {{.date}}. It is never stored in the session.
	Instructions string

	// MaxSteps bounds reasoning steps per run. Zero means DefaultMaxSteps,
	// a negative value disables the bound.
	MaxSteps int

	// MaxParallelTools bounds concurrent tool invocations within one turn.
	// Zero or negative runs every invocation of the turn at once.
	MaxParallelTools int

	// Logger defaults to logging.NoOpLogger.
	Logger logging.Logger

	// Tracer defaults to the global otel tracer provider.
	Tracer trace.Tracer

	// Now is the clock used for instruction rendering.
	Now func() time.Time
}

// Graph drives runs of the execution state machine. A Graph is stateless
// between runs and safe for concurrent use across sessions; the caller
// ensures at most one run per session at a time.
type Graph struct {
	store core.SessionStore
	model model.Model
	tools *tool.Registry
	exec  *executor
	opts  Options
}

// New creates a Graph. tools may be nil when no tools are registered.
func New(store core.SessionStore, m model.Model, tools *tool.Registry, optFns ...func(o *Options)) *Graph {
	opts := Options{
		MaxSteps: DefaultMaxSteps,
		Logger:   logging.NoOpLogger{},
		Now:      time.Now,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxSteps == 0 {
		opts.MaxSteps = DefaultMaxSteps
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer(tracerName)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if tools == nil {
		tools, _ = tool.NewRegistry()
	}

	return &Graph{
		store: store,
		model: m,
		tools: tools,
		exec:  &executor{tools: tools, maxParallel: opts.MaxParallelTools, tracer: opts.Tracer},
		opts:  opts,
	}
}

// Tools returns the registry offered to the model.
func (g *Graph) Tools() *tool.Registry { return g.tools }

// Run drives the state machine for sessionID until Halted. The session must
// already hold the user message that starts the turn. obs may be nil.
func (g *Graph) Run(ctx context.Context, sessionID, runID string, obs Observer) (err error) {
	if obs == nil {
		obs = NopObserver{}
	}
	logger := logging.With(g.opts.Logger, "session_id", sessionID, "run_id", runID)

	ctx, span := g.opts.Tracer.Start(ctx, "graph.run", trace.WithAttributes(
		attribute.String("session.id", sessionID),
		attribute.String("run.id", runID),
	))
	start := time.Now()
	budget := g.newBudget()
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			logger.Warn("engine.run.failed", "error", err.Error(), "steps", budget.Spent())
		} else {
			logger.Info("engine.run.halted", "steps", budget.Spent(), "duration_ms", time.Since(start).Milliseconds())
		}
		span.SetAttributes(attribute.Int("run.steps", budget.Spent()))
		span.End()
	}()

	var (
		state = core.StateReasoning
		turn  core.AssistantMessage
	)
	for !state.IsTerminal() {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if state != core.StateReasoning && turn.HasToolCalls() {
				g.abandon(sessionID, turn.ToolCalls, logger)
			}
			return ctxErr
		}

		var next core.State
		switch state {
		case core.StateReasoning:
			if err := budget.Spend(); err != nil {
				return err
			}
			turn, err = g.reason(ctx, sessionID, runID, obs, logger)
			if err != nil {
				return err
			}
			next = core.StateRouting
		case core.StateRouting:
			next = core.StateHalted
			if turn.HasToolCalls() {
				next = core.StateActing
			}
		case core.StateActing:
			if err := g.act(ctx, sessionID, runID, turn.ToolCalls, obs, logger); err != nil {
				return err
			}
			next = core.StateReasoning
		default:
			return fmt.Errorf("engine: unexpected state %s", state)
		}

		if !core.CanTransition(state, next) {
			return fmt.Errorf("engine: invalid transition %s -> %s", state, next)
		}
		logger.Debug("engine.transition", "from", state.String(), "to", next.String())
		if err := obs.OnTransition(ctx, state, next); err != nil {
			if next != core.StateReasoning && turn.HasToolCalls() {
				g.abandon(sessionID, turn.ToolCalls, logger)
			}
			return err
		}
		state = next
	}
	return nil
}

func (g *Graph) newBudget() *core.StepBudget {
	if g.opts.MaxSteps < 0 {
		return core.NewStepBudget(0)
	}
	return core.NewStepBudget(g.opts.MaxSteps)
}

// reason performs one Reasoning step and appends the final assistant turn.
func (g *Graph) reason(ctx context.Context, sessionID, runID string, obs Observer, logger logging.Logger) (core.AssistantMessage, error) {
	ctx, span := g.opts.Tracer.Start(ctx, "graph.reason")
	defer span.End()

	history, err := g.store.History(sessionID)
	if err != nil {
		return core.AssistantMessage{}, err
	}

	req := model.Request{
		Instructions: g.instructions(logger),
		Messages:     history,
		Tools:        g.tools.Definitions(),
	}
	logger.Debug("engine.reason.start", "messages", len(history), "tools", len(req.Tools))

	callCtx, cancel := detach(ctx)
	defer cancel()
	respCh, errCh := g.model.Generate(callCtx, req)

	var (
		final     *core.AssistantMessage
		obsErr    error
		fragments int
	)
	for resp := range respCh {
		if resp.Partial {
			if resp.Text == "" || obsErr != nil {
				continue
			}
			fragments++
			obsErr = obs.OnFragment(ctx, resp.Text)
			continue
		}
		if resp.Message != nil && final == nil {
			msg := *resp.Message
			final = &msg
		}
	}
	modelErr := <-errCh

	if modelErr != nil {
		span.RecordError(modelErr)
		span.SetStatus(codes.Error, modelErr.Error())
		if ctxErr := ctx.Err(); ctxErr != nil {
			return core.AssistantMessage{}, ctxErr
		}
		var capErr *core.CapabilityError
		if errors.As(modelErr, &capErr) {
			return core.AssistantMessage{}, modelErr
		}
		return core.AssistantMessage{}, &core.CapabilityError{Provider: g.model.Info().Provider, Err: modelErr}
	}
	if final == nil {
		if obsErr != nil {
			return core.AssistantMessage{}, obsErr
		}
		return core.AssistantMessage{}, &core.CapabilityError{Provider: g.model.Info().Provider, Err: core.ErrIncompleteResponse}
	}

	turn := normalizeTurn(*final)
	if err := g.store.Append(sessionID, turn); err != nil {
		return core.AssistantMessage{}, err
	}
	span.SetAttributes(
		attribute.Int("reason.fragments", fragments),
		attribute.Int("reason.tool_calls", len(turn.ToolCalls)),
	)
	logger.Debug("engine.reason.done", "fragments", fragments, "tool_calls", len(turn.ToolCalls))

	if obsErr != nil {
		if turn.HasToolCalls() {
			g.abandon(sessionID, turn.ToolCalls, logger)
		}
		return core.AssistantMessage{}, obsErr
	}
	return turn, nil
}

// act performs the Acting step: started signals, concurrent execution,
// ordered result appends, completed signals.
func (g *Graph) act(ctx context.Context, sessionID, runID string, calls []core.ToolInvocationRequest, obs Observer, logger logging.Logger) error {
	for _, call := range calls {
		if err := obs.OnToolStarted(ctx, g.exec.startedEvent(call)); err != nil {
			g.abandon(sessionID, calls, logger)
			return err
		}
	}

	if err := ctx.Err(); err != nil {
		g.abandon(sessionID, calls, logger)
		return err
	}

	callCtx, cancel := detach(ctx)
	results := g.exec.execute(callCtx, sessionID, runID, calls, logger)
	cancel()
	for _, res := range results {
		if err := g.store.Append(sessionID, res.Message()); err != nil {
			return err
		}
	}

	for _, res := range results {
		if err := obs.OnToolCompleted(ctx, g.exec.completedEvent(res)); err != nil {
			return err
		}
	}
	return nil
}

// detach returns the context handed to external capability calls. It keeps
// the values and any deadline of ctx but drops its cancellation: a client
// going away is only observed at suspension points, never inside a call.
func detach(ctx context.Context) (context.Context, context.CancelFunc) {
	out := context.WithoutCancel(ctx)
	if deadline, ok := ctx.Deadline(); ok {
		return context.WithDeadline(out, deadline)
	}
	return out, func() {}
}

// abandon answers every outstanding request with a cancelled result.
func (g *Graph) abandon(sessionID string, calls []core.ToolInvocationRequest, logger logging.Logger) {
	for _, call := range calls {
		msg := core.ToolResultMessage{InvocationID: call.ID, ToolName: call.Name, Content: cancelledResult, IsError: true}
		if err := g.store.Append(sessionID, msg); err != nil {
			logger.Error("engine.abandon.append_failed", "invocation_id", call.ID, "error", err.Error())
			return
		}
	}
	logger.Info("engine.run.abandoned", "pending_tool_calls", len(calls))
}

func (g *Graph) instructions(logger logging.Logger) string {
	if g.opts.Instructions == "" {
		return ""
	}
	out, err := util.RenderTemplate(g.opts.Instructions, map[string]any{
		"date": g.opts.Now().Format("2006-01-02"),
	})
	if err != nil {
		logger.Warn("engine.instructions.render_failed", "error", err.Error())
		return g.opts.Instructions
	}
	return out
}

// normalizeTurn assigns ids to tool requests that lack one or collide, so
// every result can be paired with exactly one request.
func normalizeTurn(turn core.AssistantMessage) core.AssistantMessage {
	if len(turn.ToolCalls) == 0 {
		turn.ToolCalls = nil
		return turn
	}
	calls := make([]core.ToolInvocationRequest, len(turn.ToolCalls))
	seen := make(map[string]struct{}, len(calls))
	for i, call := range turn.ToolCalls {
		if _, dup := seen[call.ID]; call.ID == "" || dup {
			call.ID = core.NewID()
		}
		seen[call.ID] = struct{}{}
		calls[i] = call
	}
	turn.ToolCalls = calls
	return turn
}
