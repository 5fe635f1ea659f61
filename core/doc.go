// Package core provides the foundational domain types and contracts used by
// agentstream. It defines:
//
//   - Messages (the closed set of user, assistant and tool result turns)
//   - Sessions (append-only conversation logs keyed by an opaque id)
//   - ExecutionEvents (transient progress signals produced during a run)
//   - States of the execution graph and their legal transitions
//   - ToolContext (the scoped surface handed to tool implementations)
//
// The package intentionally keeps implementation concerns (persistence, model
// providers, transports) out of scope, exposing small interfaces so backends
// can be swapped without touching the execution graph.
package core
