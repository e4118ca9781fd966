package types

import "strings"

// SourceKind distinguishes web search results from uploaded documents
type SourceKind string

const (
	SourceKindWeb      SourceKind = "web"
	SourceKindDocument SourceKind = "document"
)

// SourcePayload is the wire shape of a source inside a source_found event.
// Document sources either set Filename directly or use a document:// URL.
type SourcePayload struct {
	URL      string  `json:"url,omitempty"`
	Filename string  `json:"filename,omitempty"`
	Domain   string  `json:"domain,omitempty"`
	Title    string  `json:"title,omitempty"`
	Snippet  string  `json:"snippet,omitempty"`
	Score    float64 `json:"score,omitempty"`
}

// Source is a retrieved reference owned by a session's source registry.
// Identity depends on kind: web sources are keyed by URL, document sources by
// filename. Title, Domain, Snippet and Score are enrichable on duplicate
// insertion; the identity fields never change.
type Source struct {
	Kind     SourceKind `json:"kind"`
	URL      string     `json:"url,omitempty"`
	Filename string     `json:"filename,omitempty"`
	Title    string     `json:"title,omitempty"`
	Domain   string     `json:"domain,omitempty"`
	Snippet  string     `json:"snippet,omitempty"`
	Score    float64    `json:"score,omitempty"`
}

// documentURLScheme marks document sources that arrive URL-encoded, e.g.
// "document://report.pdf#page3".
const documentURLScheme = "document://"

// NewSource builds a Source from a wire payload, classifying its kind.
func NewSource(p *SourcePayload) *Source {
	src := &Source{
		Title:   p.Title,
		Domain:  p.Domain,
		Snippet: p.Snippet,
		Score:   p.Score,
	}

	switch {
	case p.Filename != "":
		src.Kind = SourceKindDocument
		src.Filename = p.Filename
	case strings.HasPrefix(p.URL, documentURLScheme):
		src.Kind = SourceKindDocument
		src.Filename = parseDocumentURL(p.URL)
		src.URL = p.URL
	default:
		src.Kind = SourceKindWeb
		src.URL = p.URL
	}

	if src.Title == "" {
		if src.Kind == SourceKindDocument {
			src.Title = src.Filename
		} else {
			src.Title = src.URL
		}
	}

	return src
}

// Key returns the identity key used for registry deduplication.
func (s *Source) Key() string {
	if s.Kind == SourceKindDocument {
		return s.Filename
	}
	return s.URL
}

// Clone returns an independent copy.
func (s *Source) Clone() *Source {
	dup := *s
	return &dup
}

func parseDocumentURL(url string) string {
	name := strings.TrimPrefix(url, documentURLScheme)
	if i := strings.IndexByte(name, '#'); i >= 0 {
		name = name[:i]
	}
	return name
}
