// Package websearch turns a set of decomposed search terms into a single
// deduplicated, relevance-ranked result list.
package websearch

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/deepsearch-labs/deepquery/internal/pkg/logger"
	"github.com/deepsearch-labs/deepquery/internal/websearch/provider"
	"github.com/deepsearch-labs/deepquery/internal/websearch/types"
)

// Domains excluded from every query: video and social platforms whose pages
// carry little extractable text.
var excludedDomains = []string{"youtube.com", "tiktok.com", "instagram.com", "reddit.com"}

// reputableDomains get a small authority bonus during ranking.
var reputableDomains = []string{
	// General knowledge
	"wikipedia.org", "britannica.com",
	// Academia
	"stanford.edu", "mit.edu", "ox.ac.uk", "harvard.edu",
	// Science
	"nature.com", "sciencedirect.com", "arxiv.org", "ncbi.nlm.nih.gov",
	// Tech news
	"techcrunch.com", "theverge.com", "wired.com", "arstechnica.com",
	// News
	"bbc.com", "bbc.co.uk", "reuters.com", "apnews.com",
	"nytimes.com", "theguardian.com", "washingtonpost.com",
	"ndtv.com", "thehindu.com", "hindustantimes.com",
	// Health
	"nih.gov", "who.int", "cdc.gov", "mayoclinic.org",
	// Sports
	"espn.com", "espncricinfo.com", "cricbuzz.com",
	"skysports.com", "icc-cricket.com", "bcci.tv",
	"cbssports.com", "bleacherreport.com", "goal.com",
	// Finance
	"bloomberg.com", "ft.com", "wsj.com", "forbes.com",
}

// Aggregator fans a query's search terms out to one provider in parallel and
// merges the hits into a ranked list.
type Aggregator struct {
	provider provider.Provider
	log      *logger.Logger
	now      func() time.Time
}

// NewAggregator creates an aggregator over the given provider.
func NewAggregator(p provider.Provider, log *logger.Logger) *Aggregator {
	if log == nil {
		log = logger.L()
	}
	return &Aggregator{provider: p, log: log, now: time.Now}
}

// SearchMultiple runs every term concurrently, drops failed terms, removes
// duplicate URLs and returns the remaining hits ordered by composite score.
// Real-time queries use advanced depth on news sources with a short freshness
// window and weight recency much more heavily.
func (a *Aggregator) SearchMultiple(ctx context.Context, terms []string, realTime bool) ([]*types.SearchResult, error) {
	if len(terms) == 0 {
		return nil, types.ErrEmptyQuery
	}

	perTerm := 3
	if realTime {
		perTerm = 5
	}

	a.log.Info("executing parallel searches",
		zap.Int("terms", len(terms)),
		zap.Bool("real_time", realTime),
		zap.Int("results_per_term", perTerm))

	merged := make([][]*types.SearchResult, len(terms))
	var wg sync.WaitGroup
	for i, term := range terms {
		wg.Add(1)
		go func(i int, term string) {
			defer wg.Done()

			req := &types.SearchRequest{
				Query:          term,
				MaxResults:     perTerm,
				SearchDepth:    "basic",
				ExcludeDomains: excludedDomains,
				RawContent:     true,
			}
			if realTime {
				req.SearchDepth = "advanced"
				req.Topic = "news"
				req.Days = 3
			}

			resp, err := a.provider.Search(ctx, req)
			if err != nil {
				// One failed term never fails the whole fan-out.
				a.log.Warn("search term failed",
					zap.String("term", term),
					zap.Error(err))
				return
			}
			merged[i] = resp.Results
		}(i, term)
	}
	wg.Wait()

	var all []*types.SearchResult
	for _, results := range merged {
		all = append(all, results...)
	}

	unique := deduplicate(all)
	a.rank(unique, realTime)

	a.log.Info("search fan-out complete",
		zap.Int("raw_results", len(all)),
		zap.Int("unique_results", len(unique)))
	return unique, nil
}

// deduplicate removes duplicate URLs, keeping the first occurrence. Term
// order is preserved so earlier terms win ties.
func deduplicate(results []*types.SearchResult) []*types.SearchResult {
	seen := make(map[string]struct{}, len(results))
	unique := make([]*types.SearchResult, 0, len(results))
	for _, r := range results {
		if r.URL == "" {
			continue
		}
		if _, ok := seen[r.URL]; ok {
			continue
		}
		seen[r.URL] = struct{}{}
		unique = append(unique, r)
	}
	return unique
}

// rank sorts results by composite score, best first, and writes the computed
// score back into each result.
func (a *Aggregator) rank(results []*types.SearchResult, realTime bool) {
	now := a.now().UTC()
	for _, r := range results {
		r.Score = compositeScore(r, now, realTime)
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
}

// compositeScore layers bonuses on the provider's relevance score: substantial
// content, a reputable domain, and recent publication. Real-time queries make
// the freshness bonus dominant.
func compositeScore(r *types.SearchResult, now time.Time, realTime bool) float64 {
	s := r.Score

	switch length := len(r.Content); {
	case length > 1000:
		s += 1.0
	case length > 400:
		s += 0.5
	}

	lowered := strings.ToLower(r.URL)
	for _, d := range reputableDomains {
		if strings.Contains(lowered, d) {
			s += 0.3
			break
		}
	}

	if published, ok := parsePublishedAt(r.PublishedAt); ok {
		switch age := now.Sub(published); {
		case age <= 24*time.Hour:
			if realTime {
				s += 2.5
			} else {
				s += 0.5
			}
		case age <= 7*24*time.Hour:
			if realTime {
				s += 1.0
			} else {
				s += 0.2
			}
		case age <= 30*24*time.Hour:
			s += 0.3
		}
	}

	return s
}

// parsePublishedAt handles the date formats providers actually emit.
func parsePublishedAt(value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02",
	} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
