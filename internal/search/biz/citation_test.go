package biz

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanCitation(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain bracket untouched", "growth was 20% [1].", "growth was 20% [1]."},
		{"cjk bracket", "growth was 20% 【1】.", "growth was 20% [1]."},
		{"cjk with line range", "see 【3†L12-L15】 here", "see [3] here"},
		{"corner bracket", "revenue 《2†source》 fell", "revenue [2] fell"},
		{"multiple citations", "a 【1】 b 【2†x】 c", "a [1] b [2] c"},
		{"stray line range", "fact †L1-L5 remains", "fact  remains"},
		{"no citations", "nothing to do", "nothing to do"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanCitation(tt.in))
		})
	}
}

func TestNormalizer_PassThrough(t *testing.T) {
	var n Normalizer
	out := n.Feed("plain text with [1] citations")
	out += n.Flush()
	assert.Equal(t, "plain text with [1] citations", out)
}

func TestNormalizer_CitationSplitAcrossTokens(t *testing.T) {
	var n Normalizer
	var out strings.Builder

	// the bracket opens in one token and closes several tokens later
	for _, token := range []string{"Revenue grew ", "【", "1†report", ".pdf", "】", " last year."} {
		out.WriteString(n.Feed(token))
	}
	out.WriteString(n.Flush())

	assert.Equal(t, "Revenue grew [1] last year.", out.String())
}

func TestNormalizer_HoldsPartialBracket(t *testing.T) {
	var n Normalizer

	out := n.Feed("before 【1†incom")
	// text ahead of the open bracket flushes, the rest is held back
	assert.Equal(t, "before ", out)

	out = n.Feed("plete】 after")
	assert.Equal(t, "[1] after", out+n.Flush())
}

func TestNormalizer_ForceFlushOnRunawayBracket(t *testing.T) {
	var n Normalizer

	out := n.Feed("【" + strings.Repeat("x", maxHoldRunes+5))
	// a bracket that never closes must not stall the stream forever
	assert.NotEmpty(t, out)
}

func TestNormalizer_FlushCleansRemainder(t *testing.T) {
	var n Normalizer
	out := n.Feed("tail 【2】")
	assert.Equal(t, "tail ", out)
	assert.Equal(t, "[2]", n.Flush())
}
