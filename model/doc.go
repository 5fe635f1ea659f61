// Package model defines the provider-agnostic reasoning capability used by
// the execution graph.
//
// A Model consumes the ordered conversation history plus the tool catalog
// and yields a stream of partial text fragments followed by exactly one
// final Response carrying the complete AssistantMessage (text and any tool
// invocation requests). Providers (OpenAI, Anthropic) implement Model in
// sub-packages so the engine stays decoupled from vendor SDKs.
//
// MockModel is a scripted in-memory implementation for tests and demos.
package model
