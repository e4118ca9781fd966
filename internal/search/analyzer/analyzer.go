// Package analyzer decomposes a user query into search intent and concrete
// web search terms before the pipeline fans out.
package analyzer

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/deepsearch-labs/deepquery/internal/pkg/logger"
)

// Query types the analyzer classifies into.
const (
	TypeFactual       = "factual"
	TypeComparison    = "comparison"
	TypeHowTo         = "how_to"
	TypeCurrentEvents = "current_events"
	TypeOpinion       = "opinion"
	TypeCalculation   = "calculation"
)

// Analysis is the analyzer's verdict on a query.
type Analysis struct {
	QueryType         string   `json:"query_type"`
	SearchIntent      string   `json:"search_intent"`
	KeyEntities       []string `json:"key_entities"`
	SuggestedSearches []string `json:"suggested_searches"`
	RequiresRealTime  bool     `json:"requires_real_time"`
	ComplexityScore   int      `json:"complexity_score"` // 1..10
}

// Config configures the LLM used for full analysis.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
}

// Analyzer resolves a query into an Analysis, preferring a cheap regex fast
// path and falling back to keyword heuristics when the LLM is unavailable.
type Analyzer struct {
	client *openai.Client
	model  string
	log    *logger.Logger
	now    func() time.Time
}

// NewAnalyzer creates an analyzer backed by an OpenAI-compatible endpoint.
func NewAnalyzer(cfg *Config, log *logger.Logger) (*Analyzer, error) {
	if cfg == nil || cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	if log == nil {
		log = logger.L()
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	model := cfg.Model
	if model == "" {
		model = "llama-3.3-70b-versatile"
	}

	return &Analyzer{
		client: openai.NewClientWithConfig(clientCfg),
		model:  model,
		log:    log,
		now:    time.Now,
	}, nil
}

var (
	whitespaceRE = regexp.MustCompile(`\s+`)
	specialsRE   = regexp.MustCompile(`[^\w\s\-\?\.\!]`)

	simplePatterns = []*regexp.Regexp{
		regexp.MustCompile(`^what is \w+\?*$`),
		regexp.MustCompile(`^define \w+$`),
		regexp.MustCompile(`^\w+( \w+){0,2} definition$`),
	}

	realTimeKeywords = []string{
		"today", "now", "live", "current", "latest", "score", "next match",
		"upcoming", "schedule", "standings", "result", "winner", "tonight",
	}
)

// ProcessQuery analyzes the query. The LLM round trip is skipped only for
// simple definition-style queries with no session documents and no history,
// since either may carry reference context the LLM must resolve.
func (a *Analyzer) ProcessQuery(ctx context.Context, query string, hasDocuments, hasHistory bool) *Analysis {
	cleaned := cleanQuery(query)

	if !hasDocuments && !hasHistory && isSimpleQuery(cleaned) {
		return simpleAnalysis(cleaned)
	}

	analysis, err := a.analyzeWithLLM(ctx, cleaned)
	if err != nil {
		a.log.Warn("query analysis fell back to heuristics",
			zap.String("query", cleaned),
			zap.Error(err))
		return a.fallbackAnalysis(cleaned)
	}
	return analysis
}

func cleanQuery(query string) string {
	cleaned := specialsRE.ReplaceAllString(query, "")
	return whitespaceRE.ReplaceAllString(strings.TrimSpace(cleaned), " ")
}

func isSimpleQuery(query string) bool {
	lowered := strings.ToLower(query)
	for _, p := range simplePatterns {
		if p.MatchString(lowered) {
			return true
		}
	}
	return false
}

// simpleAnalysis handles definition-style queries without an LLM round trip.
func simpleAnalysis(query string) *Analysis {
	term := strings.ToLower(query)
	term = strings.TrimPrefix(term, "what is ")
	term = strings.TrimPrefix(term, "define ")
	term = strings.TrimSuffix(term, "?")
	term = strings.TrimSuffix(term, " definition")
	term = strings.TrimSpace(term)

	return &Analysis{
		QueryType:    TypeFactual,
		SearchIntent: fmt.Sprintf("User wants to understand what %s means", term),
		KeyEntities:  []string{term},
		SuggestedSearches: []string{
			term + " definition",
			"what is " + term,
			term + " explanation",
		},
		ComplexityScore:  2,
		RequiresRealTime: false,
	}
}

func (a *Analyzer) analyzeWithLLM(ctx context.Context, query string) (*Analysis, error) {
	now := a.now()
	prompt := buildAnalysisPrompt(query, now)

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleSystem,
				Content: "You are a query analysis expert for a search engine. " +
					"Always respond with valid JSON only. No markdown fences, no extra text.",
			},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: 0.1,
		MaxTokens:   600,
	})
	if err != nil {
		return nil, fmt.Errorf("analysis completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("analysis completion returned no choices")
	}

	analysis, err := parseAnalysis(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}

	a.log.Info("query analyzed",
		zap.String("type", analysis.QueryType),
		zap.Bool("real_time", analysis.RequiresRealTime),
		zap.Strings("searches", analysis.SuggestedSearches))
	return analysis, nil
}

func buildAnalysisPrompt(query string, now time.Time) string {
	today := now.Format("Monday, January 02, 2006")
	currentMonth := now.Format("January 2006")
	currentYear := now.Year()

	return fmt.Sprintf(`Today is %s.

You are an expert query analyzer for a real-time search engine. Analyze the user query below and return a JSON object.

Query: %q

Return ONLY valid JSON in this EXACT format (no markdown, no explanation):
{
    "query_type": "factual|comparison|how_to|current_events|opinion|calculation",
    "search_intent": "Clear 1-sentence description of what the user wants",
    "key_entities": ["entity1", "entity2"],
    "suggested_searches": ["search_term_1", "search_term_2", "search_term_3"],
    "requires_real_time": true or false,
    "complexity_score": 5
}

Rules for suggested_searches:
- Generate exactly 3 highly specific search terms optimized for web search
- For real-time queries (scores, next match, current price, latest news):
  * ALWAYS include the current date or month/year: "%s"
- For factual/historical queries: use precise terminology
- For how-to queries: include "guide", "tutorial", "step by step"

Rules for requires_real_time:
- true: sports scores, live events, stock prices, today's weather, latest news, current standings, "next match", "upcoming"
- false: historical facts, definitions, how-to guides, biographies

Rules for complexity_score (integer 1-10):
- 1-3: simple fact, single answer
- 4-6: moderate research needed
- 7-10: multi-part, comparative, or research-heavy

Current year for reference: %d`, today, query, currentMonth, currentYear)
}

// parseAnalysis extracts the analysis from LLM output, tolerating markdown
// fences and surrounding prose around the JSON object.
func parseAnalysis(raw string) (*Analysis, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSuffix(strings.TrimSpace(raw), "```")
	}

	if !gjson.Valid(raw) {
		// Some models wrap the object in prose. Take the outermost braces.
		start := strings.IndexByte(raw, '{')
		end := strings.LastIndexByte(raw, '}')
		if start < 0 || end <= start {
			return nil, fmt.Errorf("analysis output is not JSON")
		}
		raw = raw[start : end+1]
		if !gjson.Valid(raw) {
			return nil, fmt.Errorf("analysis output is not JSON")
		}
	}

	parsed := gjson.Parse(raw)
	analysis := &Analysis{
		QueryType:        parsed.Get("query_type").String(),
		SearchIntent:     parsed.Get("search_intent").String(),
		RequiresRealTime: parsed.Get("requires_real_time").Bool(),
		ComplexityScore:  clampScore(int(parsed.Get("complexity_score").Int())),
	}
	for _, e := range parsed.Get("key_entities").Array() {
		analysis.KeyEntities = append(analysis.KeyEntities, e.String())
	}
	for _, s := range parsed.Get("suggested_searches").Array() {
		analysis.SuggestedSearches = append(analysis.SuggestedSearches, s.String())
	}

	if analysis.QueryType == "" || len(analysis.SuggestedSearches) == 0 {
		return nil, fmt.Errorf("analysis output missing required fields")
	}
	return analysis, nil
}

func clampScore(score int) int {
	if score < 1 {
		return 1
	}
	if score > 10 {
		return 10
	}
	return score
}

// fallbackAnalysis builds a keyword-heuristic analysis when the LLM fails.
func (a *Analyzer) fallbackAnalysis(query string) *Analysis {
	lowered := strings.ToLower(query)
	month := a.now().Format("January 2006")

	var realTime bool
	for _, kw := range realTimeKeywords {
		if strings.Contains(lowered, kw) {
			realTime = true
			break
		}
	}

	queryType := TypeFactual
	suggested := []string{query, query + " explained", query + " guide"}
	if realTime {
		queryType = TypeCurrentEvents
		suggested = []string{
			query + " " + month,
			query + " latest update",
			query + " today live",
		}
	}

	entity := query
	if len(entity) > 50 {
		entity = entity[:50]
	}

	return &Analysis{
		QueryType:         queryType,
		SearchIntent:      "User wants information about: " + query,
		KeyEntities:       []string{entity},
		SuggestedSearches: suggested,
		ComplexityScore:   5,
		RequiresRealTime:  realTime,
	}
}
