package loader

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/russross/blackfriday/v2"
)

// MarkdownLoader renders markdown and strips the result to plain text, so
// formatting characters never leak into embeddings.
type MarkdownLoader struct{}

func (l *MarkdownLoader) Load(_ context.Context, reader io.Reader) (*Content, error) {
	raw, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read markdown content: %w", err)
	}

	html := blackfriday.Run(raw)
	text := htmlToPlainText(string(html))

	return &Content{Pages: []Page{{Number: 1, Text: text}}}, nil
}

var (
	scriptRE     = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleRE      = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	breakRE      = regexp.MustCompile(`(?i)<br\s*/?>|</p>`)
	headingEndRE = regexp.MustCompile(`(?i)</h[1-6]>`)
	listItemRE   = regexp.MustCompile(`(?i)</li>`)
	tagRE        = regexp.MustCompile(`<[^>]+>`)
	multiLineRE  = regexp.MustCompile(`\n{3,}`)
)

func htmlToPlainText(html string) string {
	html = scriptRE.ReplaceAllString(html, "")
	html = styleRE.ReplaceAllString(html, "")
	html = breakRE.ReplaceAllString(html, "\n")
	html = headingEndRE.ReplaceAllString(html, "\n\n")
	html = listItemRE.ReplaceAllString(html, "\n")
	text := tagRE.ReplaceAllString(html, "")
	text = decodeEntities(text)
	return cleanWhitespace(text)
}

func decodeEntities(text string) string {
	replacer := strings.NewReplacer(
		"&nbsp;", " ",
		"&lt;", "<",
		"&gt;", ">",
		"&amp;", "&",
		"&quot;", `"`,
		"&#39;", "'",
		"&apos;", "'",
	)
	return replacer.Replace(text)
}

func cleanWhitespace(text string) string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	joined := strings.Join(lines, "\n")
	return strings.TrimSpace(multiLineRE.ReplaceAllString(joined, "\n\n"))
}
