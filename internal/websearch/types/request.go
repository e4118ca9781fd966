package types

// SearchRequest is the provider-independent search request.
type SearchRequest struct {
	Query          string   `json:"query"`
	MaxResults     int      `json:"max_results,omitempty"`
	SearchDepth    string   `json:"search_depth,omitempty"` // "basic" or "advanced"
	Topic          string   `json:"topic,omitempty"`        // "news" for real-time queries
	Days           int      `json:"days,omitempty"`         // freshness window for news topics
	IncludeDomains []string `json:"include_domains,omitempty"`
	ExcludeDomains []string `json:"exclude_domains,omitempty"`
	RawContent     bool     `json:"raw_content,omitempty"` // ask for full page content
}
