// Package stream turns execution graph signals into the client-facing
// event stream.
//
// Multiplexer is an engine.Observer that forwards each signal as a
// core.ExecutionEvent on a channel, in the order received. It validates
// that transitions follow the graph and that a tool completion is never
// seen before its start.
//
// Record is the typed wire record. Records are serialized with
// encoding/json, one per SSE "data:" line, so text fields are always
// escaped:
//
//	data: {"type":"checkpoint","checkpoint_id":"..."}
//	data: {"type":"content","content":"Hel"}
//	data: {"type":"search_start","query":"weather in Paris"}
//	data: {"type":"search_results","urls":["https://..."]}
//
// Only query-style tool invocations produce search records.
package stream
