// Package engine implements the execution graph: the state machine that
// drives one run of a conversation turn between the reasoning capability
// and the registered tools.
//
// # States
//
//	Reasoning ──► Routing ──► Acting ──► Reasoning
//	                 │
//	                 └──────► Halted
//
// Reasoning sends the full session history to the model and forwards every
// partial text fragment to the Observer as it arrives. The final response
// is the only source of tool invocation requests; fragments are display
// text and are never parsed.
//
// Routing inspects the final assistant turn. A non-empty tool call list
// moves the run to Acting, an empty one halts it.
//
// Acting executes every requested tool concurrently (bounded by
// MaxParallelTools), then appends one ToolResultMessage per request in the
// original request order. A failing, panicking or unregistered tool yields
// an error-bearing result; it never aborts the run or its sibling
// invocations.
//
// # Observers
//
// An Observer receives transitions, fragments and tool lifecycle signals
// synchronously, in the order they become true. The stream package turns
// them into wire records; observability counts them. An Observer error
// abandons the run at the next suspension point.
//
// # Cancellation
//
// Cancellation is cooperative. The run checks its context between states
// and before tools are invoked. In-flight model and tool calls receive a
// context without the run's cancellation (its deadline, if any, is kept), so
// a disconnect lets them finish and their results are recorded before the run
// stops. If a run is abandoned with tool requests outstanding, each
// request is answered with a "cancelled" error result so the history stays
// well-formed.
//
// # Failures
//
// Model failures surface as *core.CapabilityError and end the run. A model
// stream that closes without a final response wraps core.ErrIncompleteResponse.
// Exceeding the step budget returns core.ErrMaxStepsExceeded.
package engine
