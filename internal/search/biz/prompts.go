package biz

import (
	"fmt"
	"strings"
	"time"

	doctypes "github.com/deepsearch-labs/deepquery/internal/document/types"
	wstypes "github.com/deepsearch-labs/deepquery/internal/websearch/types"
)

const (
	answerDateLayout = "Monday, January 02, 2006"

	contextCharsPerSource = 1200
	hybridCharsPerSource  = 500
)

func documentSystemPrompt(now time.Time) string {
	return fmt.Sprintf(
		"You are a precise document analyst. Today is %s. "+
			"Write naturally and append [N] at the end of sentences for citations. "+
			"NEVER refer to sources by name or number in the text (e.g. do not say 'Source 1 says'). "+
			"Use ONLY square bracket citations like [1] or [1][2]. "+
			"If sources conflict on dates, prefer the most recent one.",
		now.Format(answerDateLayout))
}

func webSystemPrompt(now time.Time) string {
	return fmt.Sprintf(
		"You are a research assistant. Today is %s. "+
			"Write naturally and append [N] at the end of sentences for citations. "+
			"NEVER refer to sources by name or number in the text (e.g. do not say 'Source 1 says'). "+
			"For real-time facts (scores, match results, prices), always add 'as of [date from source]'. "+
			"Use ONLY plain square bracket format.",
		now.Format(answerDateLayout))
}

const hybridSystemPrompt = "You are a research assistant for hybrid document+web search. " +
	"Write naturally and append [N] at the end of sentences for citations. " +
	"NEVER refer to sources by name or number in the text (e.g. do not say 'Source 1 says'). " +
	"Use ONLY plain square brackets. Never use other citation formats."

func buildDocumentPrompt(query string, chunks []doctypes.ScoredChunk, now time.Time) string {
	var ctx strings.Builder
	for i, chunk := range chunks {
		if i == 5 {
			break
		}
		fmt.Fprintf(&ctx, "[%d] %s (page %d):\n%s\n\n",
			i+1, chunk.Filename, chunk.PageNumber, truncateRunes(chunk.Content, contextCharsPerSource))
	}

	return fmt.Sprintf(
		"Today is %s.\n\n"+
			"Answer the question using ONLY the numbered document excerpts below.\n\n"+
			"%s\n"+
			"QUESTION: %s\n\n"+
			"RULES:\n"+
			"- Answer naturally in your own words. NEVER say 'Based on source [N]' or 'According to document [N]'.\n"+
			"- Cite every fact by simply appending [N] directly at the end of the relevant sentence. Example: \"Revenue grew 20%% [1].\"\n"+
			"- Multiple sources: [1][2]\n"+
			"- For time-sensitive facts, add 'as of [date from source]'.\n"+
			"- Use ONLY plain square brackets. NEVER use 【】 or any other style.\n"+
			"- Use ## headings, **bold**, - bullets.\n"+
			"- NO References section at the end.",
		now.Format(answerDateLayout), ctx.String(), query)
}

func buildWebPrompt(query string, results []*wstypes.SearchResult, now time.Time) string {
	var ctx strings.Builder
	for i, result := range results {
		if i == 5 {
			break
		}
		dateLine := ""
		if result.PublishedAt != "" {
			dateLine = "Published: " + result.PublishedAt + "\n"
		}
		fmt.Fprintf(&ctx, "[%d] %s\nURL: %s\n%s%s\n\n",
			i+1, result.Title, result.URL, dateLine, truncateRunes(result.Content, contextCharsPerSource))
	}

	return fmt.Sprintf(
		"Today is %s.\n\n"+
			"Answer the question using the numbered web sources below.\n\n"+
			"%s\n"+
			"QUESTION: %s\n\n"+
			"RULES:\n"+
			"- Answer naturally in your own words. NEVER say 'Based on source [N]' or 'According to source [N]'.\n"+
			"- Append the source number in square brackets [N] directly at the end of the sentence containing the fact.\n"+
			"- Example: \"India plays Netherlands on 18 Feb 2026 [1].\"\n"+
			"- For time-sensitive data (scores, schedules), ALWAYS state the date from the source.\n"+
			"- If sources conflict, prefer the most recently published one and say so.\n"+
			"- Use ONLY plain square bracket citations. NEVER use 【】 or other formats.\n"+
			"- Use ## headings, **bold** key terms, - bullet points.\n"+
			"- NO References or Sources section at the end.",
		now.Format(answerDateLayout), ctx.String(), query)
}

// buildHybridPrompt numbers web sources first, then document excerpts.
// Clients assign citation ordinals web-first regardless of arrival order, so
// the prompt numbering has to match or every [N] in a hybrid answer would
// resolve to the wrong source.
func buildHybridPrompt(query string, chunks []doctypes.ScoredChunk, results []*wstypes.SearchResult) string {
	var ctx strings.Builder
	idx := 1
	for i, result := range results {
		if i == 4 {
			break
		}
		fmt.Fprintf(&ctx, "[%d] WEB: %s\nURL: %s\n%s\n\n",
			idx, result.Title, result.URL, truncateRunes(result.Content, hybridCharsPerSource))
		idx++
	}
	for i, chunk := range chunks {
		if i == 3 {
			break
		}
		fmt.Fprintf(&ctx, "[%d] DOC: %s pg %d:\n%s\n\n",
			idx, chunk.Filename, chunk.PageNumber, truncateRunes(chunk.Content, hybridCharsPerSource))
		idx++
	}

	return fmt.Sprintf(
		"Answer using both document excerpts and web sources below.\n\n"+
			"%s\n"+
			"QUESTION: %s\n\n"+
			"RULES:\n"+
			"- Answer naturally in your own words. NEVER say 'Based on source [N]' or 'According to [N]'.\n"+
			"- Cite every fact immediately by appending [N] directly at the end of the sentence.\n"+
			"- Use ONLY plain square bracket format: [1], [2], [1][2].\n"+
			"- NEVER use 【】 or other bracket styles.\n"+
			"- Use ## headings, **bold**, - bullets.\n"+
			"- NO References section at end.",
		ctx.String(), query)
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
