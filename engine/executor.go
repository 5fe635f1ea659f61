package engine

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/agentstream/core"
	"github.com/hupe1980/agentstream/logging"
	"github.com/hupe1980/agentstream/tool"
)

// executor runs the tool invocations of one assistant turn.
type executor struct {
	tools       *tool.Registry
	maxParallel int
	tracer      trace.Tracer
}

// execute runs calls concurrently and returns one result per call, in call
// order. A failure is captured into its own result and never cancels
// siblings, so the group always waits for every invocation.
func (e *executor) execute(ctx context.Context, sessionID, runID string, calls []core.ToolInvocationRequest, logger logging.Logger) []core.ToolInvocationResult {
	results := make([]core.ToolInvocationResult, len(calls))
	if len(calls) == 0 {
		return results
	}

	start := time.Now()
	if len(calls) == 1 {
		results[0] = e.invoke(ctx, sessionID, runID, calls[0], logger)
	} else {
		var g errgroup.Group
		if e.maxParallel > 0 {
			g.SetLimit(e.maxParallel)
		}
		for i, call := range calls {
			i, call := i, call
			g.Go(func() error {
				results[i] = e.invoke(ctx, sessionID, runID, call, logger)
				return nil
			})
		}
		_ = g.Wait()
	}

	logger.Debug("engine.tools.batch.complete",
		"count", len(calls),
		"parallelism", e.maxParallel,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return results
}

func (e *executor) invoke(ctx context.Context, sessionID, runID string, call core.ToolInvocationRequest, logger logging.Logger) (res core.ToolInvocationResult) {
	res = core.ToolInvocationResult{InvocationID: call.ID, ToolName: call.Name}

	ctx, span := e.tracer.Start(ctx, "graph.tool", trace.WithAttributes(
		attribute.String("tool.name", call.Name),
		attribute.String("tool.invocation_id", call.ID),
	))
	start := time.Now()
	defer func() {
		if res.Err != nil {
			span.RecordError(res.Err)
			span.SetStatus(codes.Error, res.Err.Error())
		}
		span.End()
		logger.Info("engine.tool.executed",
			"tool", call.Name,
			"invocation_id", call.ID,
			"duration_ms", time.Since(start).Milliseconds(),
			"error", res.Err != nil,
		)
	}()

	t, ok := e.tools.Lookup(call.Name)
	if !ok {
		res.Err = tool.WrapError(call.Name, tool.CodeNotFound, fmt.Errorf("%w: %q", core.ErrToolNotFound, call.Name))
		return res
	}

	args := call.Arguments
	if args == nil {
		parsed, err := core.ParseArguments(call.RawArguments)
		if err != nil {
			res.Err = tool.WrapError(call.Name, tool.CodeValidation, err)
			return res
		}
		args = parsed
	}

	defer func() {
		if r := recover(); r != nil {
			res.Content = ""
			res.URLs = nil
			res.Err = tool.NewToolError(call.Name, fmt.Sprintf("panic: %v", r), tool.CodePanic)
			logger.Error("engine.tool.panic", "tool", call.Name, "recover", r, "stack", string(debug.Stack()))
		}
	}()

	toolCtx := core.NewToolContext(ctx, sessionID, runID, call.ID, call.Name, logger)
	out, err := t.Call(toolCtx, args)
	if err != nil {
		res.Err = err
		return res
	}
	res.Content = tool.FormatResult(out)
	if qt, ok := t.(tool.QueryTool); ok {
		res.URLs = qt.URLs(out)
	}
	return res
}

// startedEvent describes call before it runs.
func (e *executor) startedEvent(call core.ToolInvocationRequest) core.ToolInvocationStarted {
	ev := core.ToolInvocationStarted{InvocationID: call.ID, ToolName: call.Name, Arguments: call.Arguments}
	if t, ok := e.tools.Lookup(call.Name); ok {
		if qt, ok := t.(tool.QueryTool); ok {
			ev.IsQuery = true
			if call.Arguments != nil {
				ev.Query = qt.Query(call.Arguments)
			}
		}
	}
	return ev
}

const maxSummaryLen = 200

// completedEvent describes a finished invocation.
func (e *executor) completedEvent(res core.ToolInvocationResult) core.ToolInvocationCompleted {
	ev := core.ToolInvocationCompleted{
		InvocationID: res.InvocationID,
		ToolName:     res.ToolName,
		URLs:         res.URLs,
		Failed:       res.Err != nil,
	}
	if t, ok := e.tools.Lookup(res.ToolName); ok {
		_, ev.IsQuery = t.(tool.QueryTool)
	}
	summary := res.Message().Content
	if utf8.RuneCountInString(summary) > maxSummaryLen {
		summary = string([]rune(summary)[:maxSummaryLen]) + "..."
	}
	ev.Summary = summary
	return ev
}
