package markdown

import (
	"strings"

	"github.com/deepsearch-labs/deepquery/internal/search/session"
)

// Parse converts raw answer text plus the current source registry into an
// ordered block sequence. It is pure and re-runs over the entire text on every
// invocation: growth can retroactively change how a trailing line classifies
// (a lone backtick fence line later becomes the start of a code block), so
// incremental patching would be incorrect. At chat-message scale a full
// reparse is cheap.
func Parse(text string, reg *session.Registry) *Document {
	p := &parser{reg: reg}
	for _, line := range strings.Split(text, "\n") {
		p.line(line)
	}
	p.finish()
	return &Document{Blocks: p.blocks}
}

// parser carries block state across adjacent lines only; every flush point
// resets it. The source registry is read-only throughout a parse.
type parser struct {
	reg    *session.Registry
	blocks []Block

	inFence    bool
	fenceLang  string
	fenceLines []string

	paraLines  []string
	listItems  []string
	tableLines [][]string // header row first, then body rows
}

func (p *parser) line(raw string) {
	// Rule 1: fenced code captures everything verbatim until the fence
	// toggles closed.
	if p.inFence {
		if strings.HasPrefix(raw, "```") {
			p.flushFence()
			return
		}
		p.fenceLines = append(p.fenceLines, raw)
		return
	}

	if strings.HasPrefix(raw, "```") {
		p.flushAll()
		p.inFence = true
		p.fenceLang = strings.TrimSpace(raw[3:])
		if p.fenceLang == "" {
			p.fenceLang = "text"
		}
		return
	}

	// Rule 2: blank and separator lines flush open blocks and are otherwise
	// ignored.
	if isSeparatorLine(raw) {
		p.flushAll()
		return
	}

	// Rule 3: table rows take priority over headings and list items.
	if cells, ok := tableCells(raw); ok {
		p.flushParagraph()
		p.flushList()
		p.tableLines = append(p.tableLines, cells)
		return
	}
	p.flushTable()

	// Rule 4: headings of level 2-4.
	if level, text, ok := headingLine(raw); ok {
		p.flushAll()
		p.blocks = append(p.blocks, Block{
			Type:  BlockHeading,
			Level: level,
			Spans: parseInline(text, p.reg),
		})
		return
	}

	// Rule 5: consecutive list items accumulate into one list block.
	if item, ok := listItem(raw); ok {
		p.flushParagraph()
		p.listItems = append(p.listItems, item)
		return
	}
	p.flushList()

	// Rule 6: everything else accumulates into a paragraph.
	p.paraLines = append(p.paraLines, strings.TrimSpace(raw))
}

// finish flushes whatever is still open at end of text. An unclosed fence
// still yields a code block so a growing answer renders mid-stream.
func (p *parser) finish() {
	if p.inFence {
		p.flushFence()
		return
	}
	p.flushAll()
}

func (p *parser) flushAll() {
	p.flushParagraph()
	p.flushList()
	p.flushTable()
}

func (p *parser) flushParagraph() {
	if len(p.paraLines) == 0 {
		return
	}
	text := strings.Join(p.paraLines, " ")
	p.paraLines = nil
	p.blocks = append(p.blocks, Block{
		Type:  BlockParagraph,
		Spans: parseInline(text, p.reg),
	})
}

func (p *parser) flushList() {
	if len(p.listItems) == 0 {
		return
	}
	items := make([][]Span, len(p.listItems))
	for i, item := range p.listItems {
		items[i] = parseInline(item, p.reg)
	}
	p.listItems = nil
	p.blocks = append(p.blocks, Block{Type: BlockList, Items: items})
}

func (p *parser) flushTable() {
	if len(p.tableLines) == 0 {
		return
	}
	header := parseCells(p.tableLines[0], p.reg)
	rows := make([][][]Span, 0, len(p.tableLines)-1)
	for _, row := range p.tableLines[1:] {
		rows = append(rows, parseCells(row, p.reg))
	}
	p.tableLines = nil
	p.blocks = append(p.blocks, Block{Type: BlockTable, Header: header, Rows: rows})
}

func (p *parser) flushFence() {
	p.blocks = append(p.blocks, Block{
		Type:     BlockCode,
		Language: p.fenceLang,
		Code:     strings.Join(p.fenceLines, "\n"),
	})
	p.inFence = false
	p.fenceLang = ""
	p.fenceLines = nil
}

func parseCells(cells []string, reg *session.Registry) [][]Span {
	spans := make([][]Span, len(cells))
	for i, cell := range cells {
		spans[i] = parseInline(cell, reg)
	}
	return spans
}

// isSeparatorLine reports whether the line is blank or consists solely of
// dashes, pipes, colons and whitespace (table alignment rows, horizontal
// rules).
func isSeparatorLine(line string) bool {
	for _, r := range line {
		switch r {
		case '-', '|', ':', ' ', '\t':
		default:
			return false
		}
	}
	return true
}

// tableCells splits a pipe-delimited line into trimmed cells. The line
// qualifies as a table row when it has at least two segments with two or more
// non-empty cells.
func tableCells(line string) ([]string, bool) {
	if !strings.Contains(line, "|") {
		return nil, false
	}

	parts := strings.Split(line, "|")
	// Drop the empty outer segments produced by leading/trailing pipes.
	if len(parts) > 0 && strings.TrimSpace(parts[0]) == "" {
		parts = parts[1:]
	}
	if len(parts) > 0 && strings.TrimSpace(parts[len(parts)-1]) == "" {
		parts = parts[:len(parts)-1]
	}
	if len(parts) < 2 {
		return nil, false
	}

	cells := make([]string, len(parts))
	nonEmpty := 0
	for i, part := range parts {
		cells[i] = strings.TrimSpace(part)
		if cells[i] != "" {
			nonEmpty++
		}
	}
	if nonEmpty < 2 {
		return nil, false
	}
	return cells, true
}

func headingLine(line string) (level int, text string, ok bool) {
	switch {
	case strings.HasPrefix(line, "#### "):
		return 4, strings.TrimSpace(line[5:]), true
	case strings.HasPrefix(line, "### "):
		return 3, strings.TrimSpace(line[4:]), true
	case strings.HasPrefix(line, "## "):
		return 2, strings.TrimSpace(line[3:]), true
	}
	return 0, "", false
}

// listItem strips a bullet or ordered-list prefix, reporting whether the line
// is a list item at all.
func listItem(line string) (string, bool) {
	trimmed := strings.TrimLeft(line, " \t")
	for _, prefix := range []string{"* ", "• ", "- "} {
		if strings.HasPrefix(trimmed, prefix) {
			return strings.TrimSpace(trimmed[len(prefix):]), true
		}
	}

	// Ordered item: one or more digits followed by ". ".
	i := 0
	for i < len(trimmed) && trimmed[i] >= '0' && trimmed[i] <= '9' {
		i++
	}
	if i > 0 && strings.HasPrefix(trimmed[i:], ". ") {
		return strings.TrimSpace(trimmed[i+2:]), true
	}

	return "", false
}
