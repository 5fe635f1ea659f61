// Package agentstream provides a high-level façade over the execution graph,
// the session store and the runner. Most applications interact with this
// package by:
//  1. Creating an AgentStream via New() with a reasoning model and tools
//  2. Calling Chat to receive a live record stream, or ChatSync to collect
//     a whole reply
//
// Transports (HTTP server, CLI) are built on the same Runner exposed here.
package agentstream

import (
	"context"
	"strings"

	"github.com/hupe1980/agentstream/core"
	"github.com/hupe1980/agentstream/engine"
	"github.com/hupe1980/agentstream/logging"
	"github.com/hupe1980/agentstream/model"
	"github.com/hupe1980/agentstream/runner"
	"github.com/hupe1980/agentstream/session"
	"github.com/hupe1980/agentstream/stream"
	"github.com/hupe1980/agentstream/tool"
)

// Options configures the AgentStream instance.
type Options struct {
	// Tools available to the model. Names must be unique.
	Tools []tool.Tool

	// Instructions is the system instruction template ({{.date}} is set).
	Instructions string

	// MaxSteps bounds reasoning steps per run; zero uses the engine default.
	MaxSteps int

	// MaxParallelTools bounds concurrent tool calls within one turn.
	MaxParallelTools int

	// EventBufferSize and EmitTerminalRecords are passed to the runner.
	EventBufferSize     int
	EmitTerminalRecords bool

	// Observers receive every graph signal of every run.
	Observers []engine.Observer

	// SessionStore defaults to an in-memory store.
	SessionStore core.SessionStore

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// AgentStream aggregates the graph and runner for one model.
type AgentStream struct {
	opts   Options
	graph  *engine.Graph
	runner *runner.Runner
}

// New creates an AgentStream. It fails only when two tools share a name.
func New(m model.Model, optFns ...func(o *Options)) (*AgentStream, error) {
	opts := Options{
		SessionStore: session.NewInMemoryStore(),
		Logger:       logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	registry, err := tool.NewRegistry(opts.Tools...)
	if err != nil {
		return nil, err
	}

	g := engine.New(opts.SessionStore, m, registry, func(o *engine.Options) {
		o.Instructions = opts.Instructions
		o.MaxSteps = opts.MaxSteps
		o.MaxParallelTools = opts.MaxParallelTools
		o.Logger = opts.Logger
	})
	r := runner.New(g, opts.SessionStore, func(o *runner.Options) {
		o.EventBufferSize = opts.EventBufferSize
		o.EmitTerminalRecords = opts.EmitTerminalRecords
		o.Observers = opts.Observers
		o.Logger = opts.Logger
	})

	return &AgentStream{opts: opts, graph: g, runner: r}, nil
}

// Runner returns the underlying runner for transports.
func (a *AgentStream) Runner() *runner.Runner { return a.runner }

// Chat starts a run and returns its live record stream. An empty sessionID
// starts a new session.
func (a *AgentStream) Chat(ctx context.Context, message, sessionID string) (*runner.Stream, error) {
	return a.runner.Run(ctx, message, sessionID)
}

// Search is one query-style tool invocation seen on the stream.
type Search struct {
	Query string
	URLs  []string
}

// Result is the collected output of ChatSync.
type Result struct {
	SessionID string
	IsNew     bool
	Content   string
	Searches  []Search
	Records   []stream.Record
}

// ChatSync is a synchronous helper that drains the stream and returns the
// concatenated content with the searches in emission order.
func (a *AgentStream) ChatSync(ctx context.Context, message, sessionID string) (*Result, error) {
	s, err := a.runner.Run(ctx, message, sessionID)
	if err != nil {
		return nil, err
	}

	res := &Result{SessionID: s.SessionID, IsNew: s.IsNew}
	var content strings.Builder
	for rec := range s.Records() {
		res.Records = append(res.Records, rec)
		switch rec.Type {
		case stream.TypeContent:
			content.WriteString(rec.Content)
		case stream.TypeSearchStart:
			res.Searches = append(res.Searches, Search{Query: rec.Query})
		case stream.TypeSearchResults:
			// Results follow their start once all of the turn's calls join.
			for i := range res.Searches {
				if res.Searches[i].URLs == nil {
					res.Searches[i].URLs = rec.URLs
					break
				}
			}
		}
	}
	res.Content = content.String()
	return res, s.Err()
}
