package session

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentstream/core"
)

// Interface compliance (compile-time assertion)
var _ core.SessionStore = (*InMemoryStore)(nil)

func TestInMemoryStore_GetOrCreate(t *testing.T) {
	s := NewInMemoryStore()

	id, isNew, err := s.GetOrCreate("")
	require.NoError(t, err)
	assert.True(t, isNew)
	assert.True(t, core.IsValidID(id))

	again, isNew, err := s.GetOrCreate(id)
	require.NoError(t, err)
	assert.False(t, isNew)
	assert.Equal(t, id, again)

	_, _, err = s.GetOrCreate("does-not-exist")
	assert.ErrorIs(t, err, core.ErrSessionNotFound)
	assert.Equal(t, 1, s.Len())
}

func TestInMemoryStore_GetOrCreateRetriesCollision(t *testing.T) {
	s := NewInMemoryStore()
	ids := []string{"a", "a", "b"}
	s.newID = func() string {
		id := ids[0]
		ids = ids[1:]
		return id
	}

	first, _, err := s.GetOrCreate("")
	require.NoError(t, err)
	second, _, err := s.GetOrCreate("")
	require.NoError(t, err)
	assert.Equal(t, "a", first)
	assert.Equal(t, "b", second)
}

func TestInMemoryStore_AppendHistory(t *testing.T) {
	s := NewInMemoryStore()
	id, _, err := s.GetOrCreate("")
	require.NoError(t, err)

	require.NoError(t, s.Append(id, core.UserMessage{Text: "hi"}))
	require.NoError(t, s.Append(id, core.AssistantMessage{Text: "hello"}))

	hist, err := s.History(id)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, core.UserMessage{Text: "hi"}, hist[0])

	hist[0] = core.UserMessage{Text: "mutated"}
	again, err := s.History(id)
	require.NoError(t, err)
	assert.Equal(t, core.UserMessage{Text: "hi"}, again[0])

	assert.ErrorIs(t, s.Append("missing", core.UserMessage{}), core.ErrSessionNotFound)
	_, err = s.History("missing")
	assert.ErrorIs(t, err, core.ErrSessionNotFound)
}

func TestInMemoryStore_Delete(t *testing.T) {
	s := NewInMemoryStore()
	id, _, _ := s.GetOrCreate("")
	s.Delete(id)
	_, err := s.Get(id)
	assert.ErrorIs(t, err, core.ErrSessionNotFound)
}

func TestInMemoryStore_ConcurrentSessionsIsolated(t *testing.T) {
	s := NewInMemoryStore()
	a, _, _ := s.GetOrCreate("")
	b, _, _ := s.GetOrCreate("")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() { defer wg.Done(); _ = s.Append(a, core.UserMessage{Text: "a"}) }()
		go func() { defer wg.Done(); _ = s.Append(b, core.UserMessage{Text: "b"}) }()
	}
	wg.Wait()

	ha, _ := s.History(a)
	hb, _ := s.History(b)
	assert.Len(t, ha, 50)
	assert.Len(t, hb, 50)
	for _, m := range hb {
		assert.Equal(t, core.UserMessage{Text: "b"}, m)
	}
}
