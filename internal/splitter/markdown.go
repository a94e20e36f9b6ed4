package splitter

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// block is one top-level markdown block and its source text.
type block struct {
	text    string
	heading bool
	fenced  bool
}

// splitMarkdown splits markdown at heading boundaries, packing blocks
// into chunks without ever cutting through a fenced code block.
func (s *Splitter) splitMarkdown(src string) []string {
	blocks := parseBlocks(src)
	if len(blocks) == 0 {
		return s.splitRecursive(src)
	}

	var pieces []string
	var current strings.Builder

	flush := func() {
		if strings.TrimSpace(current.String()) != "" {
			pieces = append(pieces, current.String())
		}
		current.Reset()
	}

	for _, b := range blocks {
		// Headings start a new section; oversized accumulations flush too.
		if b.heading || (current.Len() > 0 && current.Len()+len(b.text) > s.ChunkSize) {
			flush()
		}

		if len(b.text) > s.ChunkSize {
			flush()
			if b.fenced {
				pieces = append(pieces, s.splitFence(b.text)...)
			} else {
				pieces = append(pieces, s.splitRecursive(b.text)...)
			}
			continue
		}

		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(b.text)
	}
	flush()
	return pieces
}

// parseBlocks walks the top level of the markdown AST and returns each
// block with its source text. Fenced code blocks are rebuilt with their
// fence markers since the AST tracks only the inner lines.
func parseBlocks(src string) []block {
	source := []byte(src)
	doc := goldmark.New().Parser().Parse(text.NewReader(source))

	var blocks []block
	for node := doc.FirstChild(); node != nil; node = node.NextSibling() {
		if fc, ok := node.(*ast.FencedCodeBlock); ok {
			blocks = append(blocks, block{text: rebuildFence(fc, source), fenced: true})
			continue
		}
		if h, ok := node.(*ast.Heading); ok {
			blocks = append(blocks, block{text: rebuildHeading(h, source), heading: true})
			continue
		}

		start, stop := nodeSpan(node)
		if start < 0 || stop <= start {
			continue
		}
		blocks = append(blocks, block{
			text:    strings.TrimRight(string(source[start:stop]), "\n"),
			heading: node.Kind() == ast.KindHeading,
			fenced:  node.Kind() == ast.KindCodeBlock,
		})
	}
	return blocks
}

// rebuildFence reconstructs a fenced code block with its markers and
// info string.
func rebuildFence(fc *ast.FencedCodeBlock, source []byte) string {
	var sb strings.Builder
	sb.WriteString("```")
	if lang := fc.Language(source); lang != nil {
		sb.Write(lang)
	}
	sb.WriteString("\n")
	lines := fc.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		sb.Write(seg.Value(source))
	}
	sb.WriteString("```")
	return sb.String()
}

// rebuildHeading reconstructs a heading with its ATX markers; the AST
// keeps only the heading text.
func rebuildHeading(h *ast.Heading, source []byte) string {
	var sb strings.Builder
	sb.WriteString(strings.Repeat("#", h.Level))
	sb.WriteString(" ")
	lines := h.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		sb.Write(seg.Value(source))
	}
	return strings.TrimRight(sb.String(), "\n")
}

// nodeSpan returns the byte range of a block node, descending into
// children for container nodes without their own lines.
func nodeSpan(node ast.Node) (int, int) {
	start, stop := -1, -1

	var visit func(n ast.Node)
	visit = func(n ast.Node) {
		// Lines panics on inline nodes.
		if n.Type() != ast.TypeBlock {
			return
		}
		if lines := n.Lines(); lines != nil && lines.Len() > 0 {
			first := lines.At(0)
			last := lines.At(lines.Len() - 1)
			if start < 0 || first.Start < start {
				start = first.Start
			}
			if last.Stop > stop {
				stop = last.Stop
			}
		}
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			visit(c)
		}
	}
	visit(node)
	return start, stop
}

// splitFence splits an oversized code block line by line, repeating the
// opening fence so every chunk remains a valid fenced block.
func (s *Splitter) splitFence(text string) []string {
	lines := strings.Split(text, "\n")
	open := "```"
	if strings.HasPrefix(strings.TrimSpace(lines[0]), "```") {
		open = strings.TrimSpace(lines[0])
		lines = lines[1:]
	}
	if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}

	var pieces []string
	var current []string
	size := len(open) + 4

	flush := func() {
		if len(current) == 0 {
			return
		}
		pieces = append(pieces, open+"\n"+strings.Join(current, "\n")+"\n```")
		current = nil
		size = len(open) + 4
	}

	for _, line := range lines {
		if size+len(line)+1 > s.ChunkSize && len(current) > 0 {
			flush()
		}
		current = append(current, line)
		size += len(line) + 1
	}
	flush()
	return pieces
}
