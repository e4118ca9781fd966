package markdown

import (
	"strconv"
	"strings"

	"github.com/deepsearch-labs/deepquery/internal/search/session"
)

// parseInline scans block text left to right and produces its span sequence.
// Match priority at each position: markdown links (numeric labels become
// citations), bare bracketed citations, then bold/italic/code delimiters.
// Spans do not nest; an unmatched opening delimiter passes through as literal
// text.
func parseInline(text string, reg *session.Registry) []Span {
	var spans []Span
	var plain strings.Builder

	flushPlain := func() {
		if plain.Len() > 0 {
			spans = append(spans, Span{Type: SpanText, Text: plain.String()})
			plain.Reset()
		}
	}

	i := 0
	for i < len(text) {
		switch text[i] {
		case '[':
			if span, width, ok := matchBracket(text[i:], reg); ok {
				flushPlain()
				spans = append(spans, span)
				i += width
				continue
			}

		case '*':
			if strings.HasPrefix(text[i:], "**") {
				if end := strings.Index(text[i+2:], "**"); end >= 0 {
					flushPlain()
					spans = append(spans, Span{Type: SpanBold, Text: text[i+2 : i+2+end]})
					i += end + 4
					continue
				}
			} else if end := strings.IndexByte(text[i+1:], '*'); end >= 0 {
				flushPlain()
				spans = append(spans, Span{Type: SpanItalic, Text: text[i+1 : i+1+end]})
				i += end + 2
				continue
			}

		case '`':
			if end := strings.IndexByte(text[i+1:], '`'); end >= 0 {
				flushPlain()
				spans = append(spans, Span{Type: SpanCode, Text: text[i+1 : i+1+end]})
				i += end + 2
				continue
			}
		}

		plain.WriteByte(text[i])
		i++
	}

	flushPlain()
	return spans
}

// matchBracket recognizes the two bracketed forms at the start of s: a
// markdown link "[label](href)" and a bare citation token "[3]" (optionally
// labelled, e.g. "[Source 3]"). It returns the produced span and the number
// of input bytes consumed.
func matchBracket(s string, reg *session.Registry) (Span, int, bool) {
	close := strings.IndexByte(s, ']')
	if close < 0 {
		return Span{}, 0, false
	}
	label := s[1:close]

	// Link form: the backend wraps citations as [N](url) when it has one.
	if close+1 < len(s) && s[close+1] == '(' {
		if end := strings.IndexByte(s[close+1:], ')'); end >= 0 {
			href := s[close+2 : close+1+end]
			width := close + 2 + end

			if ordinal, ok := numericLabel(label); ok {
				if src := session.Resolve(ordinal, reg); src != nil {
					return Span{Type: SpanCitation, Ordinal: ordinal, Source: src}, width, true
				}
			}
			// Non-numeric or unresolved labels stay ordinary hyperlinks.
			return Span{Type: SpanLink, Text: label, Href: href}, width, true
		}
	}

	// Bare citation fallback for backends that emit [N] without a link.
	if ordinal, ok := citationLabel(label); ok {
		return Span{Type: SpanCitation, Ordinal: ordinal, Source: session.Resolve(ordinal, reg)}, close + 1, true
	}

	return Span{}, 0, false
}

func numericLabel(label string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(label))
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// citationLabel accepts "3", "Source 3", "Web 3" and "Document 3".
func citationLabel(label string) (int, bool) {
	trimmed := strings.TrimSpace(label)
	for _, word := range []string{"Source", "Web", "Document"} {
		if rest, ok := cutPrefixFold(trimmed, word); ok {
			rest = strings.TrimSpace(rest)
			if rest != trimmed && rest != "" {
				trimmed = rest
			}
			break
		}
	}
	return numericLabel(trimmed)
}

func cutPrefixFold(s, prefix string) (string, bool) {
	if len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix) {
		return s[len(prefix):], true
	}
	return s, false
}
