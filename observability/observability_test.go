package observability

import (
	"bytes"
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"github.com/hupe1980/agentstream/core"
)

func TestMetrics_Observer(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	ctx := context.Background()

	require.NoError(t, m.OnTransition(ctx, core.StateReasoning, core.StateRouting))
	require.NoError(t, m.OnTransition(ctx, core.StateRouting, core.StateActing))
	require.NoError(t, m.OnToolCompleted(ctx, core.ToolInvocationCompleted{ToolName: "tavily_search"}))
	require.NoError(t, m.OnToolCompleted(ctx, core.ToolInvocationCompleted{ToolName: "tavily_search", Failed: true}))
	require.NoError(t, m.OnToolCompleted(ctx, core.ToolInvocationCompleted{ToolName: "tavily_search"}))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReasoningSteps))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ToolInvocations.WithLabelValues("tavily_search", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ToolInvocations.WithLabelValues("tavily_search", "error")))
}

func TestMetrics_StreamLifecycle(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	done := m.StreamStarted("sse")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StreamActive.WithLabelValues("sse")))
	done("ok")
	assert.Equal(t, 0.0, testutil.ToFloat64(m.StreamActive.WithLabelValues("sse")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StreamRequests.WithLabelValues("sse", "ok")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.StreamDuration))

	m.RequestRejected("ws", "not_found")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StreamRequests.WithLabelValues("ws", "not_found")))
}

func TestInitTracer(t *testing.T) {
	shutdown, err := InitTracer(TracingConfig{Enabled: false})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))

	_, err = InitTracer(TracingConfig{Enabled: true, Exporter: "zipkin"})
	assert.ErrorIs(t, err, ErrUnknownExporter)

	prev := otel.GetTracerProvider()
	defer otel.SetTracerProvider(prev)

	var buf bytes.Buffer
	shutdown, err = InitTracer(TracingConfig{Enabled: true, Output: &buf, ServiceName: "test"})
	require.NoError(t, err)

	_, span := otel.Tracer("test").Start(context.Background(), "graph.run")
	span.End()
	require.NoError(t, shutdown(context.Background()))
	assert.Contains(t, buf.String(), "graph.run")
}
