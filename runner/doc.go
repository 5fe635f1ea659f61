// Package runner implements the session protocol endpoint independent of
// any transport.
//
// A Runner accepts a user message plus an optional session id, resolves or
// creates the session, appends the message, starts one execution graph run
// and relays its events as ordered wire records. A newly created session's
// stream starts with a single checkpoint record carrying the id; continuing
// sessions never receive another one. The record channel closes exactly
// when the run ends.
//
// Request-level failures (unknown session, session busy) are returned by
// Run before any record is produced. Run failures are reported by
// Stream.Err once the record channel is closed and, when enabled, by a
// trailing error record.
package runner
