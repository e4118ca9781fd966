package markdown

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deepsearch-labs/deepquery/internal/search/session"
	"github.com/deepsearch-labs/deepquery/internal/search/types"
)

func TestParseInline_Plain(t *testing.T) {
	spans := parseInline("just some words", session.NewRegistry())
	require.Len(t, spans, 1)
	assert.Equal(t, SpanText, spans[0].Type)
	assert.Equal(t, "just some words", spans[0].Text)
}

func TestParseInline_BoldItalicCode(t *testing.T) {
	spans := parseInline("a **bold** and *italic* and `code` mix", session.NewRegistry())

	require.Len(t, spans, 7)
	assert.Equal(t, SpanText, spans[0].Type)
	assert.Equal(t, SpanBold, spans[1].Type)
	assert.Equal(t, "bold", spans[1].Text)
	assert.Equal(t, SpanItalic, spans[3].Type)
	assert.Equal(t, "italic", spans[3].Text)
	assert.Equal(t, SpanCode, spans[5].Type)
	assert.Equal(t, "code", spans[5].Text)
}

func TestParseInline_UnmatchedDelimitersAreLiteral(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"lone asterisk", "a * b"},
		{"unclosed bold", "a **b"},
		{"unclosed backtick", "a `b"},
		{"unclosed bracket", "a [b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spans := parseInline(tt.text, session.NewRegistry())
			require.Len(t, spans, 1)
			assert.Equal(t, SpanText, spans[0].Type)
			assert.Equal(t, tt.text, spans[0].Text)
		})
	}
}

func TestParseInline_NoNesting(t *testing.T) {
	spans := parseInline("**bold *inner* text**", session.NewRegistry())

	// The first closing delimiter wins; inner markers stay literal.
	require.NotEmpty(t, spans)
	assert.Equal(t, SpanBold, spans[0].Type)
	assert.Equal(t, "bold *inner* text", spans[0].Text)
}

func TestParseInline_BareCitationResolved(t *testing.T) {
	reg := registryWith(types.NewSource(&types.SourcePayload{URL: "https://a.com", Title: "A"}))
	spans := parseInline("Markets rallied [1].", reg)

	require.Len(t, spans, 3)
	assert.Equal(t, SpanCitation, spans[1].Type)
	assert.Equal(t, 1, spans[1].Ordinal)
	require.NotNil(t, spans[1].Source)
	assert.Equal(t, "https://a.com", spans[1].Source.URL)
}

func TestParseInline_ForwardReferenceUnresolved(t *testing.T) {
	reg := registryWith(types.NewSource(&types.SourcePayload{URL: "https://a.com"}))

	spans := parseInline("Later fact [2].", reg)
	require.Len(t, spans, 3)
	assert.Equal(t, SpanCitation, spans[1].Type)
	assert.Equal(t, 2, spans[1].Ordinal)
	assert.Nil(t, spans[1].Source)

	// After the second source arrives, a re-parse resolves the same token.
	reg.Insert(types.NewSource(&types.SourcePayload{URL: "https://b.com"}))
	spans = parseInline("Later fact [2].", reg)
	require.NotNil(t, spans[1].Source)
	assert.Equal(t, "https://b.com", spans[1].Source.URL)
}

func TestParseInline_LabelledCitations(t *testing.T) {
	reg := registryWith(
		types.NewSource(&types.SourcePayload{URL: "https://a.com"}),
		types.NewSource(&types.SourcePayload{Filename: "spec.pdf"}),
	)

	tests := []struct {
		text    string
		ordinal int
	}{
		{"see [Source 1]", 1},
		{"see [Web 1]", 1},
		{"see [Document 2]", 2},
		{"see [source 2]", 2},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			spans := parseInline(tt.text, reg)
			require.Len(t, spans, 2)
			assert.Equal(t, SpanCitation, spans[1].Type)
			assert.Equal(t, tt.ordinal, spans[1].Ordinal)
			assert.NotNil(t, spans[1].Source)
		})
	}
}

func TestParseInline_NonCitationBracketsLiteral(t *testing.T) {
	spans := parseInline("array[0] and [TODO] markers", session.NewRegistry())

	var text string
	for _, s := range spans {
		assert.NotEqual(t, SpanCitation, s.Type)
		text += s.Text
	}
	assert.Equal(t, "array[0] and [TODO] markers", text)
}

func TestParseInline_NumericLinkBecomesCitation(t *testing.T) {
	reg := registryWith(types.NewSource(&types.SourcePayload{URL: "https://a.com", Title: "A"}))
	spans := parseInline("fact [1](https://a.com) here", reg)

	require.Len(t, spans, 3)
	assert.Equal(t, SpanCitation, spans[1].Type)
	assert.Equal(t, 1, spans[1].Ordinal)
	assert.NotNil(t, spans[1].Source)
}

func TestParseInline_UnresolvedNumericLinkFallsBackToHyperlink(t *testing.T) {
	spans := parseInline("fact [7](https://somewhere.com) here", session.NewRegistry())

	require.Len(t, spans, 3)
	assert.Equal(t, SpanLink, spans[1].Type)
	assert.Equal(t, "7", spans[1].Text)
	assert.Equal(t, "https://somewhere.com", spans[1].Href)
}

func TestParseInline_NamedLinkStaysLink(t *testing.T) {
	reg := registryWith(types.NewSource(&types.SourcePayload{URL: "https://a.com"}))
	spans := parseInline("read [the docs](https://docs.example.com)", reg)

	require.Len(t, spans, 2)
	assert.Equal(t, SpanLink, spans[1].Type)
	assert.Equal(t, "the docs", spans[1].Text)
	assert.Equal(t, "https://docs.example.com", spans[1].Href)
}

func TestParseInline_AdjacentCitations(t *testing.T) {
	reg := registryWith(
		types.NewSource(&types.SourcePayload{URL: "https://a.com"}),
		types.NewSource(&types.SourcePayload{URL: "https://b.com"}),
	)
	spans := parseInline("both agree [1][2].", reg)

	require.Len(t, spans, 4)
	assert.Equal(t, SpanCitation, spans[1].Type)
	assert.Equal(t, 1, spans[1].Ordinal)
	assert.Equal(t, SpanCitation, spans[2].Type)
	assert.Equal(t, 2, spans[2].Ordinal)
}
