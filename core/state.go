package core

// State is a node of the execution graph.
type State int

const (
	// StateReasoning asks the model for the next assistant turn.
	StateReasoning State = iota
	// StateRouting inspects the final assistant turn for tool requests.
	StateRouting
	// StateActing executes the requested tools and appends their results.
	StateActing
	// StateHalted is terminal.
	StateHalted
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateReasoning:
		return "reasoning"
	case StateRouting:
		return "routing"
	case StateActing:
		return "acting"
	case StateHalted:
		return "halted"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether no transition leaves s.
func (s State) IsTerminal() bool { return s == StateHalted }

// CanTransition reports whether from -> to is an edge of the graph.
func CanTransition(from, to State) bool {
	switch from {
	case StateReasoning:
		return to == StateRouting
	case StateRouting:
		return to == StateActing || to == StateHalted
	case StateActing:
		return to == StateReasoning
	default:
		return false
	}
}
