// Package observability wires Prometheus metrics and OpenTelemetry tracing
// into the run lifecycle.
package observability

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/hupe1980/agentstream/core"
)

const namespace = "agentstream"

// Metrics holds the stream and run instruments. It implements
// engine.Observer so it can be attached to every run.
//
// Thread Safety: Safe for concurrent use.
type Metrics struct {
	StreamRequests  *prometheus.CounterVec
	StreamActive    *prometheus.GaugeVec
	StreamDuration  *prometheus.HistogramVec
	ToolInvocations *prometheus.CounterVec
	ReasoningSteps  prometheus.Counter
}

// NewMetrics registers all instruments with reg.
//
// Example:
//
//	reg := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(reg)
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		StreamRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_requests_total",
			Help:      "Chat stream requests by transport and outcome.",
		}, []string{"transport", "status"}),
		StreamActive: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stream_active",
			Help:      "Chat streams currently open.",
		}, []string{"transport"}),
		StreamDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stream_duration_seconds",
			Help:      "Time from stream open to close.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"transport"}),
		ToolInvocations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_invocations_total",
			Help:      "Tool invocations by tool and outcome.",
		}, []string{"tool", "status"}),
		ReasoningSteps: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reasoning_steps_total",
			Help:      "Completed reasoning steps across all runs.",
		}),
	}
}

// StreamStarted records an opened stream and returns the function that
// records its close with the given status ("ok", "error", "cancelled", ...).
func (m *Metrics) StreamStarted(transport string) func(status string) {
	start := time.Now()
	m.StreamActive.WithLabelValues(transport).Inc()
	return func(status string) {
		m.StreamActive.WithLabelValues(transport).Dec()
		m.StreamDuration.WithLabelValues(transport).Observe(time.Since(start).Seconds())
		m.StreamRequests.WithLabelValues(transport, status).Inc()
	}
}

// RequestRejected counts a request that failed before streaming began.
func (m *Metrics) RequestRejected(transport, status string) {
	m.StreamRequests.WithLabelValues(transport, status).Inc()
}

// OnTransition counts finished reasoning steps.
func (m *Metrics) OnTransition(_ context.Context, from, _ core.State) error {
	if from == core.StateReasoning {
		m.ReasoningSteps.Inc()
	}
	return nil
}

// OnFragment is a no-op.
func (m *Metrics) OnFragment(context.Context, string) error { return nil }

// OnToolStarted is a no-op.
func (m *Metrics) OnToolStarted(context.Context, core.ToolInvocationStarted) error { return nil }

// OnToolCompleted counts tool outcomes.
func (m *Metrics) OnToolCompleted(_ context.Context, ev core.ToolInvocationCompleted) error {
	status := "ok"
	if ev.Failed {
		status = "error"
	}
	m.ToolInvocations.WithLabelValues(ev.ToolName, status).Inc()
	return nil
}
