package engine

import (
	"context"

	"github.com/hupe1980/agentstream/core"
)

// Observer receives the lifecycle signals of a run. Calls are made from the
// run goroutine, one at a time, in the order the facts become true.
// Returning an error abandons the run.
type Observer interface {
	OnTransition(ctx context.Context, from, to core.State) error
	OnFragment(ctx context.Context, text string) error
	OnToolStarted(ctx context.Context, ev core.ToolInvocationStarted) error
	OnToolCompleted(ctx context.Context, ev core.ToolInvocationCompleted) error
}

// Observers fans every signal out to each element in order, stopping at the
// first error. Nil elements are skipped.
type Observers []Observer

// OnTransition implements Observer.
func (os Observers) OnTransition(ctx context.Context, from, to core.State) error {
	for _, o := range os {
		if o == nil {
			continue
		}
		if err := o.OnTransition(ctx, from, to); err != nil {
			return err
		}
	}
	return nil
}

// OnFragment implements Observer.
func (os Observers) OnFragment(ctx context.Context, text string) error {
	for _, o := range os {
		if o == nil {
			continue
		}
		if err := o.OnFragment(ctx, text); err != nil {
			return err
		}
	}
	return nil
}

// OnToolStarted implements Observer.
func (os Observers) OnToolStarted(ctx context.Context, ev core.ToolInvocationStarted) error {
	for _, o := range os {
		if o == nil {
			continue
		}
		if err := o.OnToolStarted(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}

// OnToolCompleted implements Observer.
func (os Observers) OnToolCompleted(ctx context.Context, ev core.ToolInvocationCompleted) error {
	for _, o := range os {
		if o == nil {
			continue
		}
		if err := o.OnToolCompleted(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}

// NopObserver ignores every signal.
type NopObserver struct{}

// OnTransition implements Observer.
func (NopObserver) OnTransition(context.Context, core.State, core.State) error { return nil }

// OnFragment implements Observer.
func (NopObserver) OnFragment(context.Context, string) error { return nil }

// OnToolStarted implements Observer.
func (NopObserver) OnToolStarted(context.Context, core.ToolInvocationStarted) error { return nil }

// OnToolCompleted implements Observer.
func (NopObserver) OnToolCompleted(context.Context, core.ToolInvocationCompleted) error { return nil }
