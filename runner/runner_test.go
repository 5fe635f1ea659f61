package runner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/hupe1980/agentstream/core"
	"github.com/hupe1980/agentstream/engine"
	"github.com/hupe1980/agentstream/model"
	"github.com/hupe1980/agentstream/session"
	"github.com/hupe1980/agentstream/stream"
	"github.com/hupe1980/agentstream/tool"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fixture struct {
	store  *session.InMemoryStore
	model  *model.MockModel
	runner *Runner
}

func newFixture(t *testing.T, tools []tool.Tool, optFns ...func(o *Options)) *fixture {
	t.Helper()
	store := session.NewInMemoryStore()
	m := model.NewMockModel("mock", "mock")
	reg, err := tool.NewRegistry(tools...)
	require.NoError(t, err)
	g := engine.New(store, m, reg)
	return &fixture{store: store, model: m, runner: New(g, store, optFns...)}
}

func collect(t *testing.T, s *Stream) []stream.Record {
	t.Helper()
	var out []stream.Record
	timeout := time.After(5 * time.Second)
	for {
		select {
		case rec, ok := <-s.Records():
			if !ok {
				return out
			}
			out = append(out, rec)
		case <-timeout:
			t.Fatal("stream did not close")
		}
	}
}

func types(records []stream.Record) []stream.RecordType {
	out := make([]stream.RecordType, len(records))
	for i, r := range records {
		out[i] = r.Type
	}
	return out
}

func TestRun_NewSessionStartsWithCheckpoint(t *testing.T) {
	f := newFixture(t, nil)
	f.model.AddTurn("Hello! How can I help?")

	s, err := f.runner.Run(context.Background(), "Hello", "")
	require.NoError(t, err)
	assert.True(t, s.IsNew)

	records := collect(t, s)
	require.NoError(t, s.Err())
	require.NotEmpty(t, records)
	assert.Equal(t, stream.Checkpoint(s.SessionID), records[0])
	for _, r := range records[1:] {
		assert.Equal(t, stream.TypeContent, r.Type)
	}
	assert.Greater(t, len(records), 1)
	assert.Equal(t, 0, f.runner.Active())
}

func TestRun_ContinuingSessionHasNoCheckpoint(t *testing.T) {
	f := newFixture(t, nil)
	f.model.AddTurn("Hi.").AddTurn("Still here.")

	first, err := f.runner.Run(context.Background(), "Hello", "")
	require.NoError(t, err)
	collect(t, first)

	second, err := f.runner.Run(context.Background(), "Are you there?", first.SessionID)
	require.NoError(t, err)
	assert.False(t, second.IsNew)
	records := collect(t, second)
	require.NoError(t, second.Err())
	assert.NotContains(t, types(records), stream.TypeCheckpoint)

	reqs := f.model.Requests()
	require.Len(t, reqs, 2)
	want := []core.Message{
		core.UserMessage{Text: "Hello"},
		core.AssistantMessage{Text: "Hi."},
		core.UserMessage{Text: "Are you there?"},
	}
	if diff := cmp.Diff(want, reqs[1].Messages); diff != "" {
		t.Fatalf("history mismatch (-want +got):\n%s", diff)
	}
}

func TestRun_SearchRecordsFollowContent(t *testing.T) {
	search := tool.NewFunctionTool("tavily_search", "search", map[string]any{"type": "object"}, func(*core.ToolContext, map[string]any) (any, error) {
		return "no results", nil
	})
	f := newFixture(t, []tool.Tool{querySearch{search}})
	f.model.
		AddTurn("Let me look that up.", core.NewToolInvocationRequest("c1", "tavily_search", `{"query":"weather Paris"}`)).
		AddTurn("It is sunny.")

	s, err := f.runner.Run(context.Background(), "What's the weather in Paris?", "")
	require.NoError(t, err)
	records := collect(t, s)
	require.NoError(t, s.Err())

	got := types(records)
	start := indexOf(got, stream.TypeSearchStart)
	results := indexOf(got, stream.TypeSearchResults)
	require.GreaterOrEqual(t, start, 0)
	assert.Greater(t, results, start)
	for i := 1; i < start; i++ {
		assert.Equal(t, stream.TypeContent, got[i])
	}
	assert.Equal(t, stream.TypeContent, got[len(got)-1])
	assert.Equal(t, "weather Paris", records[start].Query)
	assert.Equal(t, []string{"https://example.com/weather"}, records[results].URLs)
}

// querySearch turns a FunctionTool into a query-style tool with a fixed url.
type querySearch struct{ *tool.FunctionTool }

func (querySearch) Query(args map[string]any) string { q, _ := args["query"].(string); return q }
func (querySearch) URLs(any) []string                { return []string{"https://example.com/weather"} }

func indexOf(ts []stream.RecordType, want stream.RecordType) int {
	for i, t := range ts {
		if t == want {
			return i
		}
	}
	return -1
}

func TestRun_UnknownSession(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.runner.Run(context.Background(), "hi", "not-a-session")
	assert.ErrorIs(t, err, core.ErrSessionNotFound)
}

func TestRun_SessionBusy(t *testing.T) {
	f := newFixture(t, nil)
	release := make(chan struct{})
	f.model.WithHandler(func(ctx context.Context, _ model.Request) (model.MockTurn, error) {
		select {
		case <-release:
			return model.MockTurn{Text: "done"}, nil
		case <-ctx.Done():
			return model.MockTurn{}, ctx.Err()
		}
	})

	first, err := f.runner.Run(context.Background(), "one", "")
	require.NoError(t, err)
	<-first.Records() // checkpoint

	_, err = f.runner.Run(context.Background(), "two", first.SessionID)
	assert.ErrorIs(t, err, core.ErrSessionBusy)

	other, err := f.runner.Run(context.Background(), "independent", "")
	require.NoError(t, err)

	close(release)
	collect(t, first)
	collect(t, other)
	require.NoError(t, first.Err())

	third, err := f.runner.Run(context.Background(), "three", first.SessionID)
	require.NoError(t, err)
	collect(t, third)
}

func TestRun_TerminalRecords(t *testing.T) {
	f := newFixture(t, nil, func(o *Options) { o.EmitTerminalRecords = true })
	f.model.AddTurn("ok").AddError(errors.New("quota"))

	s, err := f.runner.Run(context.Background(), "hi", "")
	require.NoError(t, err)
	records := collect(t, s)
	assert.Equal(t, stream.End(), records[len(records)-1])

	s, err = f.runner.Run(context.Background(), "again", s.SessionID)
	require.NoError(t, err)
	records = collect(t, s)
	var capErr *core.CapabilityError
	require.ErrorAs(t, s.Err(), &capErr)
	last := records[len(records)-1]
	assert.Equal(t, stream.TypeError, last.Type)
	assert.Contains(t, last.Message, "quota")
}

func TestRun_FailureClosesStreamWithoutTerminalRecords(t *testing.T) {
	f := newFixture(t, nil)
	f.model.AddError(errors.New("unauthorized"))

	s, err := f.runner.Run(context.Background(), "hi", "")
	require.NoError(t, err)
	records := collect(t, s)
	assert.Equal(t, []stream.RecordType{stream.TypeCheckpoint}, types(records))
	assert.Error(t, s.Err())
}

func TestRun_ClientDisconnect(t *testing.T) {
	f := newFixture(t, nil)
	entered := make(chan struct{})
	release := make(chan struct{})
	f.model.WithHandler(func(ctx context.Context, _ model.Request) (model.MockTurn, error) {
		close(entered)
		<-release
		return model.MockTurn{Text: "late answer"}, ctx.Err()
	})

	ctx, cancel := context.WithCancel(context.Background())
	s, err := f.runner.Run(ctx, "hi", "")
	require.NoError(t, err)
	<-s.Records()
	<-entered
	cancel()
	close(release)

	collect(t, s)
	assert.ErrorIs(t, s.Err(), context.Canceled)
	assert.Equal(t, 0, f.runner.Active())
	assert.Len(t, f.model.Requests(), 1)

	hist, err := f.store.History(s.SessionID)
	require.NoError(t, err)
	assert.Equal(t, []core.Message{
		core.UserMessage{Text: "hi"},
		core.AssistantMessage{Text: "late answer"},
	}, hist)
}

func TestRun_ClientDisconnectDuringTool(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	callErr := make(chan error, 1)
	slow := tool.NewFunctionTool("slow", "", map[string]any{"type": "object"}, func(tc *core.ToolContext, _ map[string]any) (any, error) {
		close(entered)
		<-release
		callErr <- tc.Context().Err()
		return "fresh result", nil
	})
	f := newFixture(t, []tool.Tool{slow})
	f.model.
		AddTurn("", core.NewToolInvocationRequest("c1", "slow", `{}`)).
		AddTurn("not requested")

	ctx, cancel := context.WithCancel(context.Background())
	s, err := f.runner.Run(ctx, "go slow", "")
	require.NoError(t, err)
	<-s.Records()
	<-entered
	cancel()
	close(release)

	collect(t, s)
	assert.ErrorIs(t, s.Err(), context.Canceled)
	assert.NoError(t, <-callErr)
	assert.Len(t, f.model.Requests(), 1)

	hist, err := f.store.History(s.SessionID)
	require.NoError(t, err)
	require.Len(t, hist, 3)
	assert.Equal(t, core.ToolResultMessage{InvocationID: "c1", ToolName: "slow", Content: "fresh result"}, hist[2])
}

func TestCancel(t *testing.T) {
	f := newFixture(t, nil)
	entered := make(chan struct{})
	release := make(chan struct{})
	f.model.WithHandler(func(context.Context, model.Request) (model.MockTurn, error) {
		close(entered)
		<-release
		return model.MockTurn{Text: "ok"}, nil
	})

	s, err := f.runner.Run(context.Background(), "hi", "")
	require.NoError(t, err)
	<-entered
	require.NoError(t, f.runner.Cancel(s.RunID))
	close(release)
	collect(t, s)
	assert.ErrorIs(t, s.Err(), context.Canceled)

	assert.Error(t, f.runner.Cancel("unknown"))
}

func TestRun_EmptyMessageAccepted(t *testing.T) {
	f := newFixture(t, nil)
	s, err := f.runner.Run(context.Background(), "", "")
	require.NoError(t, err)
	collect(t, s)
	require.NoError(t, s.Err())

	hist, _ := f.store.History(s.SessionID)
	assert.Equal(t, core.UserMessage{Text: ""}, hist[0])
}

func TestRun_CheckpointOnlyOnce(t *testing.T) {
	f := newFixture(t, nil)
	var sessionID string
	checkpoints := 0
	for i := 0; i < 3; i++ {
		s, err := f.runner.Run(context.Background(), "turn", sessionID)
		require.NoError(t, err)
		for _, r := range collect(t, s) {
			if r.Type == stream.TypeCheckpoint {
				checkpoints++
			}
		}
		sessionID = s.SessionID
	}
	assert.Equal(t, 1, checkpoints)
}
