// Package logging provides a minimal logging interface and adapters for agentstream.
//
// The Logger interface defines the standard logging methods (Debug, Info, Warn, Error)
// that the execution graph, runner and transports use for observability. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - ZapAdapter wrapping a zap SugaredLogger
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger, err := logging.New(logging.Config{Backend: "zap", Level: "debug"})
//	graph := engine.New(store, model, func(o *engine.Options) { o.Logger = logger })
//
// Arguments after the message are alternating key/value pairs.
package logging
