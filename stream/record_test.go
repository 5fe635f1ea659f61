package stream

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentstream/core"
)

func TestEncode_Records(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)

	require.NoError(t, enc.Encode(Checkpoint("abc")))
	require.NoError(t, enc.Encode(Content("Hi")))
	require.NoError(t, enc.Encode(SearchStart("weather in Paris")))
	require.NoError(t, enc.Encode(SearchResults(nil)))
	require.NoError(t, enc.Encode(End()))
	require.NoError(t, enc.Encode(Error("boom")))

	assert.Equal(t,
		`data: {"type":"checkpoint","checkpoint_id":"abc"}`+"\n\n"+
			`data: {"type":"content","content":"Hi"}`+"\n\n"+
			`data: {"type":"search_start","query":"weather in Paris"}`+"\n\n"+
			`data: {"type":"search_results","urls":[]}`+"\n\n"+
			`data: {"type":"end"}`+"\n\n"+
			`data: {"type":"error","message":"boom"}`+"\n\n",
		buf.String())
}

func TestEncode_EscapesDelimiters(t *testing.T) {
	var buf bytes.Buffer
	nasty := "line one\n\ndata: {\"type\":\"checkpoint\"}\r\n\"quoted\" \\ back\x00"
	require.NoError(t, NewEncoder(&buf).Encode(Content(nasty)))

	frame := buf.String()
	assert.True(t, strings.HasSuffix(frame, "\n\n"))
	body := strings.TrimSuffix(frame, "\n\n")
	assert.NotContains(t, body, "\n")
	assert.NotContains(t, body, "\r")

	var got []Record
	require.NoError(t, Decode(strings.NewReader(frame), func(r Record) error {
		got = append(got, r)
		return nil
	}))
	require.Len(t, got, 1)
	assert.Equal(t, nasty, got[0].Content)
}

func TestMarshal_UnknownType(t *testing.T) {
	_, err := json.Marshal(Record{Type: "bogus"})
	assert.Error(t, err)
}

func TestDecode_SkipsNonDataLines(t *testing.T) {
	in := ": keepalive\n\nevent: x\ndata: {\"type\":\"search_results\",\"urls\":[\"https://a\",\"https://b\"]}\n\n"
	var got []Record
	require.NoError(t, Decode(strings.NewReader(in), func(r Record) error {
		got = append(got, r)
		return nil
	}))
	require.Len(t, got, 1)
	assert.Equal(t, SearchResults([]string{"https://a", "https://b"}), got[0])

	err := Decode(strings.NewReader("data: {oops\n\n"), func(Record) error { return nil })
	assert.Error(t, err)
}

func TestToRecord(t *testing.T) {
	rec, ok := ToRecord(core.PartialContent{Text: "x"})
	assert.True(t, ok)
	assert.Equal(t, Content("x"), rec)

	rec, ok = ToRecord(core.ToolInvocationStarted{ToolName: "tavily_search", Query: "q", IsQuery: true})
	assert.True(t, ok)
	assert.Equal(t, SearchStart("q"), rec)

	rec, ok = ToRecord(core.ToolInvocationCompleted{ToolName: "tavily_search", IsQuery: true, Failed: true})
	assert.True(t, ok)
	assert.Equal(t, []string{}, rec.URLs)

	_, ok = ToRecord(core.ToolInvocationStarted{ToolName: "clock"})
	assert.False(t, ok)
	_, ok = ToRecord(core.ToolInvocationCompleted{ToolName: "clock"})
	assert.False(t, ok)
}
