package observability

import "github.com/hupe1980/agentstream/engine"

var _ engine.Observer = (*Metrics)(nil)
