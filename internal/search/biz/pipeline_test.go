package biz

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deepsearch-labs/deepquery/internal/conversation"
	doctypes "github.com/deepsearch-labs/deepquery/internal/document/types"
	"github.com/deepsearch-labs/deepquery/internal/search/analyzer"
	"github.com/deepsearch-labs/deepquery/internal/search/types"
	wstypes "github.com/deepsearch-labs/deepquery/internal/websearch/types"
)

type stubAnalyzer struct {
	analysis *analyzer.Analysis
}

func (s *stubAnalyzer) ProcessQuery(_ context.Context, _ string, _, _ bool) *analyzer.Analysis {
	return s.analysis
}

type stubDocuments struct {
	hasDocs   bool
	relevance *doctypes.RelevanceResult
}

func (s *stubDocuments) HasDocuments(_ context.Context, _ string) (bool, error) {
	return s.hasDocs, nil
}

func (s *stubDocuments) EvaluateRelevance(_ context.Context, _, _ string) (*doctypes.RelevanceResult, error) {
	return s.relevance, nil
}

type stubWeb struct {
	results   []*wstypes.SearchResult
	err       error
	lastTerms []string
	realTime  bool
}

func (s *stubWeb) SearchMultiple(_ context.Context, terms []string, realTime bool) ([]*wstypes.SearchResult, error) {
	s.lastTerms = terms
	s.realTime = realTime
	return s.results, s.err
}

type stubGenerator struct {
	tokens  []string
	err     error
	lastReq *GenerationRequest
}

func (s *stubGenerator) Stream(_ context.Context, req *GenerationRequest, onToken func(string) error) error {
	s.lastReq = req
	for _, token := range s.tokens {
		if err := onToken(token); err != nil {
			return err
		}
	}
	return s.err
}

type memHistory struct {
	messages map[string][]conversation.Message
}

func newMemHistory() *memHistory {
	return &memHistory{messages: make(map[string][]conversation.Message)}
}

func (m *memHistory) ContextForLLM(_ context.Context, sessionID string) ([]conversation.Message, error) {
	return m.messages[sessionID], nil
}

func (m *memHistory) AddUserMessage(_ context.Context, sessionID, content string) error {
	m.messages[sessionID] = append(m.messages[sessionID], conversation.Message{Role: conversation.RoleUser, Content: content})
	return nil
}

func (m *memHistory) AddAssistantMessage(_ context.Context, sessionID, content string) error {
	m.messages[sessionID] = append(m.messages[sessionID], conversation.Message{Role: conversation.RoleAssistant, Content: content})
	return nil
}

type eventSink struct {
	events []*types.Event
}

func (s *eventSink) emit(ev *types.Event) error {
	s.events = append(s.events, ev)
	return nil
}

func (s *eventSink) ofType(t types.EventType) []*types.Event {
	var out []*types.Event
	for _, ev := range s.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func webAnalysis() *analyzer.Analysis {
	return &analyzer.Analysis{
		QueryType:         analyzer.TypeFactual,
		SuggestedSearches: []string{"go context cancellation", "go context timeout"},
	}
}

func TestPipeline_WebPath(t *testing.T) {
	web := &stubWeb{results: []*wstypes.SearchResult{
		{Title: "Context package", URL: "https://go.dev/blog/context", Content: "long article", Score: 0.9},
		{Title: "Timeouts", URL: "https://www.example.com/timeouts", Content: "short", Score: 0.5},
	}}
	gen := &stubGenerator{tokens: []string{"Context cancels work ", "[1]."}}
	hist := newMemHistory()
	p := NewPipeline(&stubAnalyzer{analysis: webAnalysis()}, nil, web, gen, hist, nil, WithoutPacing())

	sink := &eventSink{}
	err := p.Run(context.Background(), &RunInput{SessionID: "s1", Query: "how does context work?"}, sink.emit)
	require.NoError(t, err)

	require.NotEmpty(t, sink.events)
	assert.Equal(t, types.EventCheckpoint, sink.events[0].Type)
	assert.Equal(t, types.EventEnd, sink.events[len(sink.events)-1].Type)

	starts := sink.ofType(types.EventSearchStart)
	require.Len(t, starts, 1)
	assert.Equal(t, "how does context work?", starts[0].Query)

	queries := sink.ofType(types.EventQueryGenerated)
	require.Len(t, queries, 3)
	assert.Equal(t, types.QueryTypeOriginal, queries[0].QueryType)
	assert.Equal(t, types.QueryTypeSubQuery, queries[1].QueryType)

	sources := sink.ofType(types.EventSourceFound)
	require.Len(t, sources, 2)
	assert.Equal(t, "go.dev", sources[0].Source.Domain)
	assert.Equal(t, "example.com", sources[1].Source.Domain)

	contents := sink.ofType(types.EventContent)
	require.NotEmpty(t, contents)
	var text strings.Builder
	var lastSeq int64
	for _, ev := range contents {
		assert.Greater(t, ev.Seq, lastSeq)
		lastSeq = ev.Seq
		text.WriteString(ev.Content)
	}
	assert.Equal(t, "Context cancels work [1].", text.String())

	// original query is injected as the first search term
	assert.Equal(t, "how does context work?", web.lastTerms[0])
	assert.False(t, web.realTime)

	// both halves of the exchange are recorded
	require.Len(t, hist.messages["s1"], 2)
	assert.Equal(t, conversation.RoleAssistant, hist.messages["s1"][1].Role)
	assert.Equal(t, "Context cancels work [1].", hist.messages["s1"][1].Content)
}

func TestPipeline_DocumentPath(t *testing.T) {
	docs := &stubDocuments{
		hasDocs: true,
		relevance: &doctypes.RelevanceResult{
			ShouldUseDocuments: true,
			RelevanceScore:     0.74,
			Reason:             "relevant_documents",
			Chunks: []doctypes.ScoredChunk{
				{Content: "revenue table", Filename: "report.pdf", PageNumber: 3, Similarity: 0.74},
			},
		},
	}
	web := &stubWeb{}
	gen := &stubGenerator{tokens: []string{"Revenue grew 20% [1]."}}
	analysis := &analyzer.Analysis{QueryType: analyzer.TypeFactual, SuggestedSearches: []string{"q1"}}
	p := NewPipeline(&stubAnalyzer{analysis: analysis}, docs, web, gen, newMemHistory(), nil, WithoutPacing())

	sink := &eventSink{}
	err := p.Run(context.Background(), &RunInput{SessionID: "s1", Query: "summarize the report"}, sink.emit)
	require.NoError(t, err)

	// the document path never touches the web
	assert.Nil(t, web.lastTerms)

	sources := sink.ofType(types.EventSourceFound)
	require.Len(t, sources, 1)
	assert.Equal(t, "document://report.pdf#page3", sources[0].Source.URL)
	assert.Equal(t, "📄 report.pdf", sources[0].Source.Domain)
	assert.Equal(t, "report.pdf - Page 3", sources[0].Source.Title)

	require.NotNil(t, gen.lastReq)
	assert.Contains(t, gen.lastReq.Prompt, "report.pdf (page 3)")
	assert.Contains(t, gen.lastReq.System, "document analyst")
	assert.Equal(t, 1500, gen.lastReq.MaxTokens)
}

func TestPipeline_HybridPath(t *testing.T) {
	docs := &stubDocuments{
		hasDocs: true,
		relevance: &doctypes.RelevanceResult{
			ShouldUseDocuments: true,
			Reason:             "relevant_documents",
			Chunks: []doctypes.ScoredChunk{
				{Content: "doc text", Filename: "notes.md", PageNumber: 1, Similarity: 0.6},
			},
		},
	}
	web := &stubWeb{results: []*wstypes.SearchResult{
		{Title: "Web result", URL: "https://example.org/a", Content: "web text", Score: 0.8},
	}}
	gen := &stubGenerator{tokens: []string{"Both agree [1][2]."}}
	p := NewPipeline(&stubAnalyzer{analysis: webAnalysis()}, docs, web, gen, newMemHistory(), nil, WithoutPacing())

	sink := &eventSink{}
	err := p.Run(context.Background(), &RunInput{SessionID: "s1", Query: "compare the notes and the news"}, sink.emit)
	require.NoError(t, err)

	// document source first on the stream, then the web source
	sources := sink.ofType(types.EventSourceFound)
	require.Len(t, sources, 2)
	assert.Equal(t, "document://notes.md#page1", sources[0].Source.URL)
	assert.Equal(t, "https://example.org/a", sources[1].Source.URL)

	// prompt numbering is web-first to match client citation ordinals
	require.NotNil(t, gen.lastReq)
	assert.Contains(t, gen.lastReq.Prompt, "[1] WEB: Web result")
	assert.Contains(t, gen.lastReq.Prompt, "[2] DOC: notes.md pg 1")
	assert.Empty(t, gen.lastReq.History)
}

func TestPipeline_LowRelevanceFallsBackToWeb(t *testing.T) {
	docs := &stubDocuments{
		hasDocs: true,
		relevance: &doctypes.RelevanceResult{
			ShouldUseDocuments: false,
			RelevanceScore:     0.04,
			Reason:             "low_relevance",
		},
	}
	web := &stubWeb{results: []*wstypes.SearchResult{
		{Title: "T", URL: "https://example.com/x", Content: "c", Score: 0.7},
	}}
	gen := &stubGenerator{tokens: []string{"answer"}}
	p := NewPipeline(&stubAnalyzer{analysis: webAnalysis()}, docs, web, gen, nil, nil, WithoutPacing())

	sink := &eventSink{}
	err := p.Run(context.Background(), &RunInput{SessionID: "s1", Query: "unrelated question"}, sink.emit)
	require.NoError(t, err)

	fallbacks := sink.ofType(types.EventRAGFallback)
	require.Len(t, fallbacks, 1)
	assert.Contains(t, fallbacks[0].Reason, "below relevance threshold")
	assert.NotNil(t, web.lastTerms)
}

func TestPipeline_RealTimeUsesMoreTerms(t *testing.T) {
	web := &stubWeb{results: nil}
	gen := &stubGenerator{tokens: []string{"no data"}}
	analysis := &analyzer.Analysis{
		QueryType:         analyzer.TypeCurrentEvents,
		RequiresRealTime:  true,
		SuggestedSearches: []string{"a", "b", "c", "d", "e"},
	}
	p := NewPipeline(&stubAnalyzer{analysis: analysis}, nil, web, gen, nil, nil, WithoutPacing())

	err := p.Run(context.Background(), &RunInput{Query: "latest score"}, (&eventSink{}).emit)
	require.NoError(t, err)

	assert.Len(t, web.lastTerms, 4)
	assert.True(t, web.realTime)
	assert.Equal(t, "latest score", web.lastTerms[0])
}

func TestPipeline_SearchFailureEmitsErrorAndEnd(t *testing.T) {
	web := &stubWeb{err: errors.New("provider unreachable")}
	p := NewPipeline(&stubAnalyzer{analysis: webAnalysis()}, nil, web, &stubGenerator{}, nil, nil, WithoutPacing())

	sink := &eventSink{}
	err := p.Run(context.Background(), &RunInput{Query: "anything"}, sink.emit)
	require.NoError(t, err)

	errs := sink.ofType(types.EventSearchError)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error, "provider unreachable")
	assert.Equal(t, types.EventEnd, sink.events[len(sink.events)-1].Type)
}

func TestPipeline_GenerationFailureKeepsPartialText(t *testing.T) {
	web := &stubWeb{results: []*wstypes.SearchResult{{Title: "T", URL: "https://e.com/x", Content: "c"}}}
	gen := &stubGenerator{tokens: []string{"partial "}, err: errors.New("model overloaded")}
	hist := newMemHistory()
	p := NewPipeline(&stubAnalyzer{analysis: webAnalysis()}, nil, web, gen, hist, nil, WithoutPacing())

	sink := &eventSink{}
	err := p.Run(context.Background(), &RunInput{SessionID: "s1", Query: "q"}, sink.emit)
	require.NoError(t, err)

	require.Len(t, sink.ofType(types.EventSearchError), 1)
	// the partial answer is still recorded for follow-up context
	require.Len(t, hist.messages["s1"], 2)
	assert.Equal(t, "partial ", hist.messages["s1"][1].Content)
}

func TestPipeline_EmitFailureAborts(t *testing.T) {
	web := &stubWeb{}
	gen := &stubGenerator{tokens: []string{"x"}}
	p := NewPipeline(&stubAnalyzer{analysis: webAnalysis()}, nil, web, gen, nil, nil, WithoutPacing())

	errGone := errors.New("client gone")
	err := p.Run(context.Background(), &RunInput{Query: "q"}, func(*types.Event) error {
		return errGone
	})
	assert.ErrorIs(t, err, errGone)
}

func TestPipeline_CheckpointIDPreserved(t *testing.T) {
	web := &stubWeb{}
	gen := &stubGenerator{tokens: []string{"x"}}
	p := NewPipeline(&stubAnalyzer{analysis: webAnalysis()}, nil, web, gen, nil, nil, WithoutPacing())

	sink := &eventSink{}
	err := p.Run(context.Background(), &RunInput{Query: "q", CheckpointID: "cp-42"}, sink.emit)
	require.NoError(t, err)

	cps := sink.ofType(types.EventCheckpoint)
	require.Len(t, cps, 1)
	assert.Equal(t, "cp-42", cps[0].CheckpointID)
}
