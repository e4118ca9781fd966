package markdown

import (
	"github.com/deepsearch-labs/deepquery/internal/search/types"
)

// BlockType identifies the structural kind of a parsed block
type BlockType string

const (
	BlockParagraph BlockType = "paragraph"
	BlockHeading   BlockType = "heading"
	BlockList      BlockType = "list"
	BlockTable     BlockType = "table"
	BlockCode      BlockType = "code"
)

// SpanType identifies the inline kind of a span
type SpanType string

const (
	SpanText     SpanType = "text"
	SpanBold     SpanType = "bold"
	SpanItalic   SpanType = "italic"
	SpanCode     SpanType = "code"
	SpanLink     SpanType = "link"
	SpanCitation SpanType = "citation"
)

// Span is a run of inline content within a block. For citations, Source is
// the resolved registry entry or nil when the ordinal is not registered yet;
// unresolved citations render as neutral, non-linking markers.
type Span struct {
	Type    SpanType      `json:"type"`
	Text    string        `json:"text,omitempty"`
	Href    string        `json:"href,omitempty"`
	Ordinal int           `json:"ordinal,omitempty"`
	Source  *types.Source `json:"source,omitempty"`
}

// Block is one structural unit of parsed answer text. Only the fields for its
// type are populated: Spans for paragraphs and headings, Items for lists,
// Header/Rows for tables, Language/Code for fenced code.
type Block struct {
	Type     BlockType  `json:"type"`
	Level    int        `json:"level,omitempty"` // heading level 2-4
	Spans    []Span     `json:"spans,omitempty"`
	Items    [][]Span   `json:"items,omitempty"`
	Header   [][]Span   `json:"header,omitempty"`
	Rows     [][][]Span `json:"rows,omitempty"`
	Language string     `json:"language,omitempty"`
	Code     string     `json:"code,omitempty"`
}

// Document is the ordered block sequence produced by one full parse of the
// session's answer text.
type Document struct {
	Blocks []Block `json:"blocks"`
}
