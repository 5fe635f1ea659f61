package stream

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hupe1980/agentstream/core"
)

// ErrOutOfOrder reports a signal that contradicts the graph ordering.
var ErrOutOfOrder = errors.New("stream: out of order signal")

// Multiplexer converts graph signals into ExecutionEvents.
//
// All Observer methods must be called from the goroutine driving the run,
// and Close must be called by that goroutine once the run has returned.
type Multiplexer struct {
	events  chan core.ExecutionEvent
	state   core.State
	started map[string]struct{}
	once    sync.Once
}

// NewMultiplexer creates a multiplexer whose channel holds up to buffer
// undelivered events. A zero buffer makes every emit wait for the reader.
func NewMultiplexer(buffer int) *Multiplexer {
	if buffer < 0 {
		buffer = 0
	}
	return &Multiplexer{
		events:  make(chan core.ExecutionEvent, buffer),
		state:   core.StateReasoning,
		started: make(map[string]struct{}),
	}
}

// Events returns the ordered event channel. It is closed by Close.
func (m *Multiplexer) Events() <-chan core.ExecutionEvent { return m.events }

// Close closes the event channel. Safe to call more than once.
func (m *Multiplexer) Close() {
	m.once.Do(func() { close(m.events) })
}

// State returns the last observed graph state.
func (m *Multiplexer) State() core.State { return m.state }

// OnTransition implements engine.Observer. Transitions produce no event;
// they are validated and tracked.
func (m *Multiplexer) OnTransition(_ context.Context, from, to core.State) error {
	if from != m.state || !core.CanTransition(from, to) {
		return fmt.Errorf("%w: transition %s -> %s in state %s", ErrOutOfOrder, from, to, m.state)
	}
	m.state = to
	if to == core.StateReasoning {
		clear(m.started)
	}
	return nil
}

// OnFragment implements engine.Observer.
func (m *Multiplexer) OnFragment(ctx context.Context, text string) error {
	if m.state != core.StateReasoning {
		return fmt.Errorf("%w: fragment in state %s", ErrOutOfOrder, m.state)
	}
	return m.emit(ctx, core.PartialContent{Text: text})
}

// OnToolStarted implements engine.Observer.
func (m *Multiplexer) OnToolStarted(ctx context.Context, ev core.ToolInvocationStarted) error {
	if m.state != core.StateActing {
		return fmt.Errorf("%w: tool start in state %s", ErrOutOfOrder, m.state)
	}
	m.started[ev.InvocationID] = struct{}{}
	return m.emit(ctx, ev)
}

// OnToolCompleted implements engine.Observer.
func (m *Multiplexer) OnToolCompleted(ctx context.Context, ev core.ToolInvocationCompleted) error {
	if _, ok := m.started[ev.InvocationID]; !ok {
		return fmt.Errorf("%w: completion of %q before start", ErrOutOfOrder, ev.InvocationID)
	}
	delete(m.started, ev.InvocationID)
	return m.emit(ctx, ev)
}

func (m *Multiplexer) emit(ctx context.Context, ev core.ExecutionEvent) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case m.events <- ev:
		return nil
	}
}
