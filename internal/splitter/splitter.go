// Package splitter cuts extracted document text into retrieval chunks.
// Markdown is split along its block structure so fenced code is never
// broken; plain text with chapter headings is split per chapter; other
// text falls through to recursive separator splitting.
package splitter

import (
	"strings"
)

// DocType selects the splitting strategy for a document.
type DocType string

const (
	DocMarkdown DocType = "markdown"
	DocText     DocType = "text"
	DocPDF      DocType = "pdf"
)

// DocTypeForFile returns the DocType for a file name based on its
// extension.
func DocTypeForFile(name string) DocType {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".md"), strings.HasSuffix(lower, ".markdown"):
		return DocMarkdown
	case strings.HasSuffix(lower, ".pdf"):
		return DocPDF
	default:
		return DocText
	}
}

// Chunk is one piece of a split document.
type Chunk struct {
	Text     string
	Index    int
	Type     string
	Language string
}

// Splitter splits text into chunks of at most ChunkSize characters with
// Overlap characters of context carried between adjacent chunks.
type Splitter struct {
	ChunkSize int
	Overlap   int
}

// New returns a Splitter with the given chunk size and overlap.
func New(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = 0
	}
	return &Splitter{ChunkSize: chunkSize, Overlap: overlap}
}

// separators is the preference order for recursive splitting. Chinese
// sentence punctuation ranks alongside newlines so CJK prose splits at
// sentence boundaries.
var separators = []string{"\n\n", "\n", "。", "！", "？", "；", "，", " ", ""}

// Split cuts text into classified chunks using the strategy for docType.
func (s *Splitter) Split(text string, docType DocType) []Chunk {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var pieces []string
	switch docType {
	case DocMarkdown:
		pieces = s.splitMarkdown(text)
	default:
		if chapters := detectChapters(text); len(chapters) > 1 {
			pieces = s.splitChapters(text, chapters)
		} else {
			pieces = s.splitRecursive(text)
		}
	}

	chunks := make([]Chunk, 0, len(pieces))
	for _, p := range pieces {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		chunks = append(chunks, Chunk{
			Text:     p,
			Index:    len(chunks),
			Type:     classify(p),
			Language: detectLanguage(p),
		})
	}
	return chunks
}

// splitRecursive is the recursive separator splitter: it splits on the
// coarsest separator present, then merges the parts back into chunks of
// at most ChunkSize with Overlap carried forward.
func (s *Splitter) splitRecursive(text string) []string {
	return s.recurse(text, 0)
}

func (s *Splitter) recurse(text string, sepIdx int) []string {
	if len(text) <= s.ChunkSize {
		return []string{text}
	}
	if sepIdx >= len(separators) {
		return s.hardSplit(text)
	}

	sep := separators[sepIdx]
	if sep == "" {
		return s.hardSplit(text)
	}

	parts := strings.Split(text, sep)
	if len(parts) == 1 {
		return s.recurse(text, sepIdx+1)
	}

	// Re-attach the separator to keep sentence punctuation with its text.
	pieces := make([]string, 0, len(parts))
	for i, p := range parts {
		if i < len(parts)-1 {
			p += sep
		}
		if p == "" {
			continue
		}
		if len(p) > s.ChunkSize {
			pieces = append(pieces, s.recurse(p, sepIdx+1)...)
		} else {
			pieces = append(pieces, p)
		}
	}
	return s.merge(pieces)
}

// merge packs pieces into chunks no larger than ChunkSize, carrying
// Overlap characters from the end of each chunk into the next.
func (s *Splitter) merge(pieces []string) []string {
	var chunks []string
	var current strings.Builder

	flush := func() {
		if current.Len() == 0 {
			return
		}
		chunk := current.String()
		chunks = append(chunks, chunk)
		current.Reset()
		if s.Overlap > 0 && len(chunk) > s.Overlap {
			current.WriteString(chunk[len(chunk)-s.Overlap:])
		}
	}

	for _, p := range pieces {
		if current.Len() > 0 && current.Len()+len(p) > s.ChunkSize {
			flush()
		}
		current.WriteString(p)
	}
	if strings.TrimSpace(current.String()) != "" {
		chunks = append(chunks, current.String())
	}
	return chunks
}

// hardSplit cuts text every ChunkSize bytes as a last resort, avoiding
// cutting inside a multi-byte rune.
func (s *Splitter) hardSplit(text string) []string {
	var chunks []string
	runes := []rune(text)
	step := s.ChunkSize - s.Overlap
	if step <= 0 {
		step = s.ChunkSize
	}
	for start := 0; start < len(runes); start += step {
		end := start + s.ChunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}
