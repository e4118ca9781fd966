package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deepsearch-labs/deepquery/internal/search/types"
)

func reduceAll(s *SearchSession, events ...*types.Event) *SearchSession {
	for _, ev := range events {
		s = Reduce(s, ev)
	}
	return s
}

func TestReduce_Scenario(t *testing.T) {
	// search_start, one sub-query, the same web source twice.
	s := reduceAll(NewSession("t1", "X"),
		&types.Event{Type: types.EventSearchStart, Query: "X"},
		&types.Event{Type: types.EventQueryGenerated, Query: "Y", QueryType: types.QueryTypeSubQuery},
		&types.Event{Type: types.EventSourceFound, Source: &types.SourcePayload{URL: "https://a.com"}},
		&types.Event{Type: types.EventSourceFound, Source: &types.SourcePayload{URL: "https://a.com"}},
	)

	assert.Equal(t, "X", s.OriginalQuery)
	assert.Equal(t, []string{"Y"}, s.SubQueries)
	assert.Equal(t, 1, s.Registry.Len())
	assert.True(t, s.HasStage(StageSearching))
	assert.False(t, s.HasStage(StageDone))
}

func TestReduce_Determinism(t *testing.T) {
	events := []*types.Event{
		{Type: types.EventCheckpoint, CheckpointID: "cp-1"},
		{Type: types.EventSearchStart, Query: "quantum computing"},
		{Type: types.EventQueryGenerated, Query: "quantum computing basics", QueryType: types.QueryTypeSubQuery},
		{Type: types.EventReadingStart},
		{Type: types.EventSourceFound, Source: &types.SourcePayload{URL: "https://a.com", Score: 0.8}},
		{Type: types.EventModelSelected, Model: "llama-3.3-70b-versatile", DisplayName: "Llama 3.3 70B"},
		{Type: types.EventWritingStart},
		{Type: types.EventContent, Content: "Quantum computers use qubits [1]."},
		{Type: types.EventEnd},
	}

	a := reduceAll(NewSession("t1", "quantum computing"), events...)
	b := reduceAll(NewSession("t1", "quantum computing"), events...)

	assert.Equal(t, a.Stages, b.Stages)
	assert.Equal(t, a.RawAnswerText, b.RawAnswerText)
	assert.Equal(t, a.SubQueries, b.SubQueries)
	assert.Equal(t, a.Registry.All(), b.Registry.All())
	assert.Equal(t, a.Checkpoint, b.Checkpoint)
	assert.Equal(t, a.Model, b.Model)
}

func TestReduce_Purity(t *testing.T) {
	s0 := NewSession("t1", "q")
	s1 := Reduce(s0, &types.Event{Type: types.EventContent, Content: "hello"})
	s2 := Reduce(s1, &types.Event{Type: types.EventContent, Content: " world"})

	// Earlier snapshots are untouched by later reductions.
	assert.Equal(t, "", s0.RawAnswerText)
	assert.Equal(t, "hello", s1.RawAnswerText)
	assert.Equal(t, "hello world", s2.RawAnswerText)
}

func TestReduce_StageIdempotence(t *testing.T) {
	s := reduceAll(NewSession("t1", "q"),
		&types.Event{Type: types.EventWritingStart},
		&types.Event{Type: types.EventWritingStart},
		&types.Event{Type: types.EventWritingStart},
	)

	count := 0
	for _, st := range s.Stages {
		if st == StageWriting {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestReduce_SubQueryDeduplication(t *testing.T) {
	s := reduceAll(NewSession("t1", "q"),
		&types.Event{Type: types.EventQueryGenerated, Query: "alpha", QueryType: types.QueryTypeSubQuery},
		&types.Event{Type: types.EventQueryGenerated, Query: "beta", QueryType: types.QueryTypeSubQuery},
		&types.Event{Type: types.EventQueryGenerated, Query: "alpha", QueryType: types.QueryTypeSubQuery},
	)
	assert.Equal(t, []string{"alpha", "beta"}, s.SubQueries)
}

func TestReduce_OriginalQueryType(t *testing.T) {
	s := Reduce(NewSession("t1", "raw"), &types.Event{
		Type:      types.EventQueryGenerated,
		Query:     "cleaned up query",
		QueryType: types.QueryTypeOriginal,
	})
	assert.Equal(t, "cleaned up query", s.OriginalQuery)
	assert.Empty(t, s.SubQueries)
}

func TestReduce_UnknownEventDropped(t *testing.T) {
	base := reduceAll(NewSession("t1", "q"),
		&types.Event{Type: types.EventSearchStart, Query: "q"},
		&types.Event{Type: types.EventContent, Content: "partial"},
	)

	next := Reduce(base, &types.Event{Type: "bogus"})
	assert.Same(t, base, next)
}

func TestReduce_MalformedEventDropped(t *testing.T) {
	base := NewSession("t1", "q")
	next := Reduce(base, &types.Event{Type: types.EventContent}) // missing content
	assert.Same(t, base, next)
}

func TestReduce_ErrorPreservesAnswerText(t *testing.T) {
	s := reduceAll(NewSession("t1", "q"),
		&types.Event{Type: types.EventWritingStart},
		&types.Event{Type: types.EventContent, Content: "Partial answer so far."},
		&types.Event{Type: types.EventSearchError, Error: "backend exploded"},
	)

	assert.True(t, s.HasStage(StageErrored))
	assert.True(t, s.Terminal())
	assert.Equal(t, "backend exploded", s.Err)
	assert.Equal(t, "Partial answer so far.", s.RawAnswerText)
}

func TestReduce_End(t *testing.T) {
	s := Reduce(NewSession("t1", "q"), &types.Event{Type: types.EventEnd})
	assert.True(t, s.HasStage(StageDone))
	assert.True(t, s.Terminal())
}

func TestReduce_ContentSequenceNumbers(t *testing.T) {
	s := reduceAll(NewSession("t1", "q"),
		&types.Event{Type: types.EventContent, Content: "a", Seq: 1},
		&types.Event{Type: types.EventContent, Content: "b", Seq: 2},
		&types.Event{Type: types.EventContent, Content: "b", Seq: 2}, // duplicate delta
		&types.Event{Type: types.EventContent, Content: "a", Seq: 1}, // stale delta
		&types.Event{Type: types.EventContent, Content: "c", Seq: 3},
	)
	assert.Equal(t, "abc", s.RawAnswerText)
}

func TestReduce_UnnumberedContentAppends(t *testing.T) {
	s := reduceAll(NewSession("t1", "q"),
		&types.Event{Type: types.EventContent, Content: "one "},
		&types.Event{Type: types.EventContent, Content: "two"},
	)
	assert.Equal(t, "one two", s.RawAnswerText)
}

func TestReduce_CheckpointAndModel(t *testing.T) {
	s := reduceAll(NewSession("t1", "q"),
		&types.Event{Type: types.EventCheckpoint, CheckpointID: "cp-9"},
		&types.Event{Type: types.EventModelSelected, Model: "llama-3.1-8b-instant", DisplayName: "Llama 3.1 8B"},
		&types.Event{Type: types.EventRAGFallback, Reason: "document index unavailable, using web only"},
	)

	assert.Equal(t, "cp-9", s.Checkpoint)
	assert.Equal(t, "llama-3.1-8b-instant", s.Model)
	assert.Equal(t, "Llama 3.1 8B", s.ModelName)
	assert.Equal(t, "document index unavailable, using web only", s.Advisory)
	// rag_fallback is advisory, not an error
	assert.False(t, s.HasStage(StageErrored))
}

func TestNewSession_InitialStage(t *testing.T) {
	s := NewSession("t1", "what is rust")
	require.Len(t, s.Stages, 1)
	assert.Equal(t, StageQueryUnderstanding, s.Stages[0])
	assert.Equal(t, "what is rust", s.OriginalQuery)
	assert.False(t, s.Terminal())
}
