// Package biz runs the answer pipeline: query analysis, document relevance
// routing, web retrieval and streamed generation, emitted as the typed event
// vocabulary clients fold into a session.
package biz

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/deepsearch-labs/deepquery/internal/conversation"
	doctypes "github.com/deepsearch-labs/deepquery/internal/document/types"
	"github.com/deepsearch-labs/deepquery/internal/pkg/logger"
	"github.com/deepsearch-labs/deepquery/internal/search/analyzer"
	"github.com/deepsearch-labs/deepquery/internal/search/types"
	wstypes "github.com/deepsearch-labs/deepquery/internal/websearch/types"
)

// Search paths a turn can take.
const (
	SourceWeb       = "web"
	SourceDocuments = "documents"
	SourceHybrid    = "hybrid"
)

const relevanceThreshold = 0.10

// QueryAnalyzer classifies a query and proposes sub-searches.
type QueryAnalyzer interface {
	ProcessQuery(ctx context.Context, query string, hasDocuments, hasHistory bool) *analyzer.Analysis
}

// DocumentEvaluator decides whether session documents can answer a query.
type DocumentEvaluator interface {
	HasDocuments(ctx context.Context, sessionID string) (bool, error)
	EvaluateRelevance(ctx context.Context, sessionID, query string) (*doctypes.RelevanceResult, error)
}

// WebSearcher fans a set of terms out to a search provider.
type WebSearcher interface {
	SearchMultiple(ctx context.Context, terms []string, realTime bool) ([]*wstypes.SearchResult, error)
}

// HistoryStore keeps rolling conversation context per session.
type HistoryStore interface {
	ContextForLLM(ctx context.Context, sessionID string) ([]conversation.Message, error)
	AddUserMessage(ctx context.Context, sessionID, content string) error
	AddAssistantMessage(ctx context.Context, sessionID, content string) error
}

// EmitFunc delivers one pipeline event to the client stream. A non-nil error
// aborts the turn, typically because the client disconnected.
type EmitFunc func(ev *types.Event) error

// Pipeline orchestrates one answer turn.
type Pipeline struct {
	analyzer  QueryAnalyzer
	documents DocumentEvaluator
	web       WebSearcher
	generator Generator
	history   HistoryStore

	model       string
	displayName string
	logger      *logger.Logger

	now   func() time.Time
	pause func(ctx context.Context, d time.Duration)
}

// PipelineOption tweaks pipeline construction.
type PipelineOption func(*Pipeline)

// WithModelName sets the model identity announced on each turn.
func WithModelName(model, displayName string) PipelineOption {
	return func(p *Pipeline) {
		p.model = model
		p.displayName = displayName
	}
}

// WithoutPacing disables the inter-event delays. Used in tests.
func WithoutPacing() PipelineOption {
	return func(p *Pipeline) {
		p.pause = func(context.Context, time.Duration) {}
	}
}

// NewPipeline wires a pipeline. documents and history may be nil when the
// deployment runs without uploads or session memory.
func NewPipeline(qa QueryAnalyzer, docs DocumentEvaluator, web WebSearcher, gen Generator, hist HistoryStore, log *logger.Logger, opts ...PipelineOption) *Pipeline {
	if log == nil {
		log = logger.L()
	}
	p := &Pipeline{
		analyzer:    qa,
		documents:   docs,
		web:         web,
		generator:   gen,
		history:     hist,
		model:       DefaultGenerationModel,
		displayName: "Llama 3.3 70B",
		logger:      log,
		now:         time.Now,
		pause:       pause,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func pause(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// RunInput is one turn request.
type RunInput struct {
	SessionID    string
	Query        string
	CheckpointID string
}

// Run executes one turn, emitting events until the terminal end event. A
// pipeline failure surfaces as search_error followed by end; only emit
// failures (client gone) abort without a terminal event.
func (p *Pipeline) Run(ctx context.Context, in *RunInput, emit EmitFunc) error {
	streamed, err := p.run(ctx, in, emit)
	if err != nil {
		p.logger.Error("turn failed",
			zap.String("session_id", in.SessionID),
			zap.String("query", in.Query),
			zap.Error(err))
		if emitErr := emit(&types.Event{Type: types.EventSearchError, Error: err.Error()}); emitErr != nil {
			return emitErr
		}
	}
	p.persistTurn(ctx, in, streamed)
	return emit(&types.Event{Type: types.EventEnd})
}

func (p *Pipeline) run(ctx context.Context, in *RunInput, emit EmitFunc) (string, error) {
	checkpointID := in.CheckpointID
	if checkpointID == "" {
		checkpointID = uuid.New().String()
	}
	if err := emit(&types.Event{Type: types.EventCheckpoint, CheckpointID: checkpointID}); err != nil {
		return "", err
	}

	history := p.loadHistory(ctx, in.SessionID)
	hasDocs := p.hasDocuments(ctx, in.SessionID)

	analysis := p.analyzer.ProcessQuery(ctx, in.Query, hasDocs, len(history) > 0)
	multiPart := isMultiPart(in.Query, analysis)

	relevance := p.evaluateRelevance(ctx, in.SessionID, in.Query, hasDocs)
	hasRelevantDocs := relevance != nil && relevance.ShouldUseDocuments

	source := SourceWeb
	switch {
	case multiPart && hasRelevantDocs:
		source = SourceHybrid
	case hasRelevantDocs:
		source = SourceDocuments
	}
	p.logger.Info("search path selected",
		zap.String("session_id", in.SessionID),
		zap.String("source", source),
		zap.Bool("multi_part", multiPart),
		zap.Bool("real_time", analysis.RequiresRealTime))

	if err := emit(&types.Event{Type: types.EventSearchStart, Query: in.Query}); err != nil {
		return "", err
	}
	if err := emit(&types.Event{Type: types.EventModelSelected, Model: p.model, DisplayName: p.displayName}); err != nil {
		return "", err
	}
	if relevance != nil && !hasRelevantDocs && relevance.Reason == "low_relevance" {
		ev := &types.Event{
			Type:   types.EventRAGFallback,
			Reason: fmt.Sprintf("documents scored %.2f, below relevance threshold %.2f; answering from the web", relevance.RelevanceScore, relevanceThreshold),
		}
		if err := emit(ev); err != nil {
			return "", err
		}
	}
	p.pause(ctx, 300*time.Millisecond)

	if err := p.emitQueries(ctx, in.Query, analysis, emit); err != nil {
		return "", err
	}

	if err := emit(&types.Event{Type: types.EventReadingStart}); err != nil {
		return "", err
	}
	p.pause(ctx, 300*time.Millisecond)

	var chunks []doctypes.ScoredChunk
	if hasRelevantDocs {
		chunks = relevance.Chunks
		if err := p.emitDocumentSources(ctx, chunks, emit); err != nil {
			return "", err
		}
	}

	var webResults []*wstypes.SearchResult
	if source == SourceWeb || source == SourceHybrid {
		var err error
		webResults, err = p.searchWeb(ctx, in.Query, analysis)
		if err != nil {
			return "", err
		}
		if err := p.emitWebSources(ctx, webResults, emit); err != nil {
			return "", err
		}
	}

	if err := emit(&types.Event{Type: types.EventWritingStart}); err != nil {
		return "", err
	}
	p.pause(ctx, 300*time.Millisecond)

	return p.generate(ctx, in.Query, source, history, chunks, webResults, emit)
}

func (p *Pipeline) loadHistory(ctx context.Context, sessionID string) []conversation.Message {
	if p.history == nil || sessionID == "" {
		return nil
	}
	history, err := p.history.ContextForLLM(ctx, sessionID)
	if err != nil {
		p.logger.Warn("failed to load conversation history",
			zap.String("session_id", sessionID),
			zap.Error(err))
		return nil
	}
	return history
}

func (p *Pipeline) hasDocuments(ctx context.Context, sessionID string) bool {
	if p.documents == nil || sessionID == "" {
		return false
	}
	has, err := p.documents.HasDocuments(ctx, sessionID)
	if err != nil {
		p.logger.Warn("failed to check session documents",
			zap.String("session_id", sessionID),
			zap.Error(err))
		return false
	}
	return has
}

func (p *Pipeline) evaluateRelevance(ctx context.Context, sessionID, query string, hasDocs bool) *doctypes.RelevanceResult {
	if !hasDocs {
		return nil
	}
	relevance, err := p.documents.EvaluateRelevance(ctx, sessionID, query)
	if err != nil {
		p.logger.Warn("document relevance evaluation failed, using web",
			zap.String("session_id", sessionID),
			zap.Error(err))
		return nil
	}
	p.logger.Info("relevance evaluated",
		zap.String("reason", relevance.Reason),
		zap.Float64("score", relevance.RelevanceScore))
	return relevance
}

// isMultiPart detects queries that ask several things at once. Those combine
// document and web retrieval when relevant documents exist.
func isMultiPart(query string, analysis *analyzer.Analysis) bool {
	if len(analysis.SuggestedSearches) > 1 {
		return true
	}
	if strings.Contains(strings.ToLower(query), " and ") {
		return true
	}
	trimmed := query
	if len(trimmed) > 0 {
		trimmed = trimmed[:len(trimmed)-1]
	}
	return strings.Contains(trimmed, "?")
}

func (p *Pipeline) emitQueries(ctx context.Context, query string, analysis *analyzer.Analysis, emit EmitFunc) error {
	if err := emit(&types.Event{Type: types.EventQueryGenerated, Query: query, QueryType: types.QueryTypeOriginal}); err != nil {
		return err
	}
	p.pause(ctx, 400*time.Millisecond)

	for _, sub := range analysis.SuggestedSearches {
		if sub == query {
			continue
		}
		if err := emit(&types.Event{Type: types.EventQueryGenerated, Query: sub, QueryType: types.QueryTypeSubQuery}); err != nil {
			return err
		}
		p.pause(ctx, 400*time.Millisecond)
	}
	return nil
}

func (p *Pipeline) emitDocumentSources(ctx context.Context, chunks []doctypes.ScoredChunk, emit EmitFunc) error {
	for _, chunk := range chunks {
		score := chunk.Similarity
		if score < 0 {
			score = -score
		}
		ev := &types.Event{
			Type: types.EventSourceFound,
			Source: &types.SourcePayload{
				URL:    fmt.Sprintf("document://%s#page%d", chunk.Filename, chunk.PageNumber),
				Domain: fmt.Sprintf("📄 %s", chunk.Filename),
				Title:  fmt.Sprintf("%s - Page %d", chunk.Filename, chunk.PageNumber),
				Score:  score,
			},
		}
		if err := emit(ev); err != nil {
			return err
		}
		p.pause(ctx, 300*time.Millisecond)
	}
	return nil
}

func (p *Pipeline) emitWebSources(ctx context.Context, results []*wstypes.SearchResult, emit EmitFunc) error {
	for i, result := range results {
		if i == 5 {
			break
		}
		ev := &types.Event{
			Type: types.EventSourceFound,
			Source: &types.SourcePayload{
				URL:     result.URL,
				Domain:  domainOf(result.URL),
				Title:   result.Title,
				Snippet: truncateRunes(result.Content, 200),
				Score:   result.Score,
			},
		}
		if err := emit(ev); err != nil {
			return err
		}
		p.pause(ctx, 250*time.Millisecond)
	}
	return nil
}

func domainOf(rawURL string) string {
	parts := strings.Split(rawURL, "/")
	if len(parts) < 3 || parts[2] == "" {
		return "unknown"
	}
	return strings.TrimPrefix(parts[2], "www.")
}

// searchWeb fans the analyzer's suggestions out to the provider, always
// including the original query as the first term.
func (p *Pipeline) searchWeb(ctx context.Context, query string, analysis *analyzer.Analysis) ([]*wstypes.SearchResult, error) {
	terms := analysis.SuggestedSearches
	if !containsTerm(terms, query) {
		terms = append([]string{query}, terms...)
	}
	maxTerms := 3
	if analysis.RequiresRealTime {
		maxTerms = 4
	}
	if len(terms) > maxTerms {
		terms = terms[:maxTerms]
	}
	return p.web.SearchMultiple(ctx, terms, analysis.RequiresRealTime)
}

func containsTerm(terms []string, term string) bool {
	for _, t := range terms {
		if t == term {
			return true
		}
	}
	return false
}

func (p *Pipeline) generate(ctx context.Context, query, source string, history []conversation.Message, chunks []doctypes.ScoredChunk, webResults []*wstypes.SearchResult, emit EmitFunc) (string, error) {
	now := p.now()

	var req *GenerationRequest
	switch source {
	case SourceDocuments:
		req = &GenerationRequest{
			System:    documentSystemPrompt(now),
			History:   history,
			Prompt:    buildDocumentPrompt(query, chunks, now),
			MaxTokens: 1500,
		}
	case SourceHybrid:
		// Hybrid keeps the prompt lean and skips history.
		req = &GenerationRequest{
			System:    hybridSystemPrompt,
			Prompt:    buildHybridPrompt(query, chunks, webResults),
			MaxTokens: 2000,
		}
	default:
		req = &GenerationRequest{
			System:    webSystemPrompt(now),
			History:   history,
			Prompt:    buildWebPrompt(query, webResults, now),
			MaxTokens: 2000,
		}
	}

	var streamed strings.Builder
	var seq int64
	var normalizer Normalizer
	send := func(text string) error {
		if text == "" {
			return nil
		}
		seq++
		if err := emit(&types.Event{Type: types.EventContent, Content: text, Seq: seq}); err != nil {
			return err
		}
		streamed.WriteString(text)
		return nil
	}

	err := p.generator.Stream(ctx, req, func(token string) error {
		return send(normalizer.Feed(token))
	})
	if err != nil {
		return streamed.String(), fmt.Errorf("response generation failed: %w", err)
	}
	if err := send(normalizer.Flush()); err != nil {
		return streamed.String(), err
	}
	return streamed.String(), nil
}

// persistTurn records both halves of the exchange so follow-up questions can
// resolve references. A turn that produced no text is not recorded.
func (p *Pipeline) persistTurn(ctx context.Context, in *RunInput, streamed string) {
	if p.history == nil || in.SessionID == "" || streamed == "" {
		return
	}
	if err := p.history.AddUserMessage(ctx, in.SessionID, in.Query); err != nil {
		p.logger.Warn("failed to persist user message", zap.Error(err))
		return
	}
	if err := p.history.AddAssistantMessage(ctx, in.SessionID, streamed); err != nil {
		p.logger.Warn("failed to persist assistant message", zap.Error(err))
	}
}
