package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/agentstream/core"
	"github.com/hupe1980/agentstream/engine"
	"github.com/hupe1980/agentstream/logging"
	"github.com/hupe1980/agentstream/stream"
)

// Options holds configuration overrides passed to New().
type Options struct {
	// EventBufferSize sets how many events the multiplexer may hold ahead of
	// the record pump. Zero keeps the stream a strict pass-through.
	EventBufferSize int

	// EmitTerminalRecords appends an end record on halt, or an error record
	// on a failed run, before the stream closes.
	EmitTerminalRecords bool

	// Observers receive every graph signal alongside the multiplexer.
	Observers []engine.Observer

	// Logger defaults to logging.NoOpLogger.
	Logger logging.Logger
}

// Runner coordinates runs of the execution graph. Public methods are safe
// for concurrent use.
type Runner struct {
	graph *engine.Graph
	store core.SessionStore
	opts  Options

	mu         sync.Mutex
	activeRuns map[string]context.CancelFunc // by run id
	busy       map[string]string             // session id -> run id
}

// New constructs a Runner. store must be the store the graph was built with.
func New(graph *engine.Graph, store core.SessionStore, optFns ...func(o *Options)) *Runner {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Runner{
		graph:      graph,
		store:      store,
		opts:       opts,
		activeRuns: make(map[string]context.CancelFunc),
		busy:       make(map[string]string),
	}
}

// Stream is the record stream of one run.
type Stream struct {
	SessionID string
	IsNew     bool
	RunID     string

	records chan stream.Record
	err     error
}

// Records returns the ordered records. The channel closes when the run ends.
func (s *Stream) Records() <-chan stream.Record { return s.records }

// Err returns the run's terminal error. It is only meaningful after the
// record channel is closed; nil means the run halted normally.
func (s *Stream) Err() error { return s.err }

// Run starts a run for message on sessionID. An empty sessionID creates a
// new session.
func (r *Runner) Run(ctx context.Context, message, sessionID string) (*Stream, error) {
	id, isNew, err := r.store.GetOrCreate(sessionID)
	if err != nil {
		return nil, err
	}
	if isNew {
		r.opts.Logger.Info("runner.session.created", "session_id", id)
	}

	runID := core.NewID()
	ctx, cancel := context.WithCancel(ctx)
	if err := r.acquire(id, runID, cancel); err != nil {
		cancel()
		return nil, err
	}

	if err := r.store.Append(id, core.UserMessage{Text: message}); err != nil {
		r.release(id, runID)
		cancel()
		return nil, fmt.Errorf("failed to append user message: %w", err)
	}

	s := &Stream{SessionID: id, IsNew: isNew, RunID: runID, records: make(chan stream.Record)}
	mux := stream.NewMultiplexer(r.opts.EventBufferSize)
	observers := append(engine.Observers{mux}, r.opts.Observers...)
	logger := logging.With(r.opts.Logger, "session_id", id, "run_id", runID)
	runErr := make(chan error, 1)

	go func() {
		err := r.graph.Run(ctx, id, runID, observers)
		mux.Close()
		runErr <- err
	}()

	go func() {
		start := time.Now()
		defer close(s.records)
		defer cancel()

		delivering := true
		if isNew {
			delivering = send(ctx, s.records, stream.Checkpoint(id))
		}
		for ev := range mux.Events() {
			if !delivering {
				continue
			}
			rec, ok := stream.ToRecord(ev)
			if !ok {
				continue
			}
			delivering = send(ctx, s.records, rec)
		}

		err := <-runErr
		if delivering && r.opts.EmitTerminalRecords && ctx.Err() == nil {
			if err == nil {
				send(ctx, s.records, stream.End())
			} else {
				send(ctx, s.records, stream.Error(err.Error()))
			}
		}

		r.release(id, runID)
		s.err = err
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("runner.run.failed", "error", err.Error(), "duration_ms", time.Since(start).Milliseconds())
		} else {
			logger.Info("runner.run.finished", "cancelled", err != nil, "duration_ms", time.Since(start).Milliseconds())
		}
	}()

	logger.Debug("runner.run.started", "is_new", isNew)
	return s, nil
}

// Cancel cancels a running run by ID. The run stops at its next suspension
// point; an in-flight model or tool call is allowed to finish first.
func (r *Runner) Cancel(runID string) error {
	r.mu.Lock()
	cancel, exists := r.activeRuns[runID]
	r.mu.Unlock()

	if !exists {
		return fmt.Errorf("run %s not found", runID)
	}
	cancel()
	return nil
}

// Active returns the number of runs in flight.
func (r *Runner) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.activeRuns)
}

func (r *Runner) acquire(sessionID, runID string, cancel context.CancelFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if active, ok := r.busy[sessionID]; ok {
		return fmt.Errorf("%w: session %s run %s", core.ErrSessionBusy, sessionID, active)
	}
	r.busy[sessionID] = runID
	r.activeRuns[runID] = cancel
	return nil
}

func (r *Runner) release(sessionID, runID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.activeRuns, runID)
	if r.busy[sessionID] == runID {
		delete(r.busy, sessionID)
	}
}

func send(ctx context.Context, out chan<- stream.Record, rec stream.Record) bool {
	select {
	case <-ctx.Done():
		return false
	case out <- rec:
		return true
	}
}
