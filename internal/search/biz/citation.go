package biz

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Model output occasionally carries CJK-bracket citation variants such as
// 【3†L12-L15】. Everything downstream expects plain [N], so tokens are
// normalized before they reach the stream.
var (
	cjkCitationRE     = regexp.MustCompile(`【(\d+)(?:†[^】]*)?】`)
	cornerCitationRE  = regexp.MustCompile(`《(\d+)(?:†[^》]*)?》`)
	escapedCitationRE = regexp.MustCompile(`\\u3010(\d+)[^\\]*?\\u3011`)
	strayLineRangeRE  = regexp.MustCompile(`†L\d+-L\d+`)
)

// CleanCitation rewrites every citation variant in text to [N] and strips
// leftover line-range artifacts.
func CleanCitation(text string) string {
	text = cjkCitationRE.ReplaceAllString(text, "[$1]")
	text = cornerCitationRE.ReplaceAllString(text, "[$1]")
	text = escapedCitationRE.ReplaceAllString(text, "[$1]")
	return strayLineRangeRE.ReplaceAllString(text, "")
}

// citationMarkers open a bracket that may still be completing in a later
// token.
var citationMarkers = []string{"【", "《"}

// maxHoldRunes bounds how long the normalizer withholds text waiting for a
// bracket to close.
const maxHoldRunes = 40

// Normalizer rewrites citations on a token stream without ever emitting half
// a bracket. Tokens are buffered only while a potential citation is open;
// everything before an opening marker flushes immediately.
type Normalizer struct {
	buf string
}

// Feed appends a token and returns whatever text is safe to emit now.
func (n *Normalizer) Feed(token string) string {
	n.buf += token

	var out strings.Builder
	for n.buf != "" {
		safeEnd := len(n.buf)
		for _, marker := range citationMarkers {
			if idx := strings.Index(n.buf, marker); idx >= 0 && idx < safeEnd {
				safeEnd = idx
			}
		}
		if safeEnd > 0 {
			out.WriteString(CleanCitation(n.buf[:safeEnd]))
			n.buf = n.buf[safeEnd:]
			continue
		}
		if utf8.RuneCountInString(n.buf) > maxHoldRunes {
			// A bracket that never closes must not stall the stream.
			out.WriteString(CleanCitation(n.buf))
			n.buf = ""
			continue
		}
		break
	}
	return out.String()
}

// Flush drains whatever the buffer still holds at end of stream.
func (n *Normalizer) Flush() string {
	out := CleanCitation(n.buf)
	n.buf = ""
	return out
}
