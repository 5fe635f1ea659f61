package stream

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/hupe1980/agentstream/core"
)

// RecordType discriminates wire records.
type RecordType string

const (
	TypeCheckpoint    RecordType = "checkpoint"
	TypeContent       RecordType = "content"
	TypeSearchStart   RecordType = "search_start"
	TypeSearchResults RecordType = "search_results"
	TypeEnd           RecordType = "end"
	TypeError         RecordType = "error"
)

// Record is one self-contained client event.
type Record struct {
	Type         RecordType
	CheckpointID string
	Content      string
	Query        string
	URLs         []string
	Message      string
}

// Checkpoint announces a newly created session.
func Checkpoint(id string) Record { return Record{Type: TypeCheckpoint, CheckpointID: id} }

// Content carries one reasoning fragment.
func Content(text string) Record { return Record{Type: TypeContent, Content: text} }

// SearchStart announces a query-style tool invocation.
func SearchStart(query string) Record { return Record{Type: TypeSearchStart, Query: query} }

// SearchResults reports the urls of a completed query-style invocation.
func SearchResults(urls []string) Record {
	if urls == nil {
		urls = []string{}
	}
	return Record{Type: TypeSearchResults, URLs: urls}
}

// End marks normal termination.
func End() Record { return Record{Type: TypeEnd} }

// Error reports a fatal run failure.
func Error(msg string) Record { return Record{Type: TypeError, Message: msg} }

// MarshalJSON emits only the fields belonging to the record type.
func (r Record) MarshalJSON() ([]byte, error) {
	switch r.Type {
	case TypeCheckpoint:
		return json.Marshal(struct {
			Type         RecordType `json:"type"`
			CheckpointID string     `json:"checkpoint_id"`
		}{r.Type, r.CheckpointID})
	case TypeContent:
		return json.Marshal(struct {
			Type    RecordType `json:"type"`
			Content string     `json:"content"`
		}{r.Type, r.Content})
	case TypeSearchStart:
		return json.Marshal(struct {
			Type  RecordType `json:"type"`
			Query string     `json:"query"`
		}{r.Type, r.Query})
	case TypeSearchResults:
		urls := r.URLs
		if urls == nil {
			urls = []string{}
		}
		return json.Marshal(struct {
			Type RecordType `json:"type"`
			URLs []string   `json:"urls"`
		}{r.Type, urls})
	case TypeEnd:
		return json.Marshal(struct {
			Type RecordType `json:"type"`
		}{r.Type})
	case TypeError:
		return json.Marshal(struct {
			Type    RecordType `json:"type"`
			Message string     `json:"message"`
		}{r.Type, r.Message})
	default:
		return nil, fmt.Errorf("stream: unknown record type %q", r.Type)
	}
}

// UnmarshalJSON decodes any record type.
func (r *Record) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type         RecordType `json:"type"`
		CheckpointID string     `json:"checkpoint_id"`
		Content      string     `json:"content"`
		Query        string     `json:"query"`
		URLs         []string   `json:"urls"`
		Message      string     `json:"message"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = Record(raw)
	return nil
}

// ToRecord maps an execution event to its wire record. Events without a
// wire form (non-query tool activity) report false.
func ToRecord(ev core.ExecutionEvent) (Record, bool) {
	switch e := ev.(type) {
	case core.PartialContent:
		return Content(e.Text), true
	case core.ToolInvocationStarted:
		if e.IsQuery {
			return SearchStart(e.Query), true
		}
	case core.ToolInvocationCompleted:
		if e.IsQuery {
			return SearchResults(e.URLs), true
		}
	}
	return Record{}, false
}

// Encoder writes records as server-sent events.
type Encoder struct {
	w io.Writer
}

// NewEncoder returns an Encoder writing to w.
func NewEncoder(w io.Writer) *Encoder { return &Encoder{w: w} }

// Encode writes one "data: <json>\n\n" frame.
func (e *Encoder) Encode(r Record) error {
	b, err := json.Marshal(r)
	if err != nil {
		return err
	}
	buf := make([]byte, 0, len(b)+8)
	buf = append(buf, "data: "...)
	buf = append(buf, b...)
	buf = append(buf, '\n', '\n')
	_, err = e.w.Write(buf)
	return err
}

// Decode reads SSE frames from r and calls fn for each record until EOF or
// fn returns an error. Lines other than "data:" lines are ignored.
func Decode(r io.Reader, fn func(Record) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	prefix := []byte("data:")
	for scanner.Scan() {
		line := scanner.Bytes()
		if !bytes.HasPrefix(line, prefix) {
			continue
		}
		payload := bytes.TrimSpace(line[len(prefix):])
		var rec Record
		if err := json.Unmarshal(payload, &rec); err != nil {
			return fmt.Errorf("stream: decode record: %w", err)
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return scanner.Err()
}
