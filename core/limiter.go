package core

import (
	"fmt"
	"sync"
)

// StepBudget bounds the number of reasoning steps a single run may take.
// A zero budget is unlimited.
type StepBudget struct {
	mu    sync.Mutex
	max   int
	spent int
}

// NewStepBudget returns a budget allowing max reasoning steps.
func NewStepBudget(max int) *StepBudget {
	return &StepBudget{max: max}
}

// Spend records one step. It fails with ErrMaxStepsExceeded once the budget
// is exhausted; the failed step is still counted.
func (b *StepBudget) Spend() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.spent++
	if b.max > 0 && b.spent > b.max {
		return fmt.Errorf("%w: %d", ErrMaxStepsExceeded, b.max)
	}
	return nil
}

// Spent returns the number of recorded steps.
func (b *StepBudget) Spent() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.spent
}

// Remaining returns the steps left, or -1 for an unlimited budget.
func (b *StepBudget) Remaining() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.max == 0 {
		return -1
	}
	if b.spent >= b.max {
		return 0
	}
	return b.max - b.spent
}
