package splitter

import (
	"regexp"
	"strings"
)

// chapterPatterns match chapter headings in plain text: Chinese chapter
// markers, English "Chapter N" lines, and numbered section headings.
var chapterPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^第[0-9一二三四五六七八九十百千]+[章节回部篇]`),
	regexp.MustCompile(`(?i)^chapter\s+\d+`),
	regexp.MustCompile(`^\d+(\.\d+)*[、.\s]\s*\S`),
}

// chapter marks the start of one chapter within the line list.
type chapter struct {
	line    int
	heading string
}

// detectChapters scans text line by line for chapter headings.
func detectChapters(text string) []chapter {
	var found []chapter
	for i, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || len(trimmed) > 80 {
			continue
		}
		for _, re := range chapterPatterns {
			if re.MatchString(trimmed) {
				found = append(found, chapter{line: i, heading: trimmed})
				break
			}
		}
	}
	return found
}

// splitChapters splits text by the given chapter boundaries. Chapters
// longer than ChunkSize are split recursively and the extra pieces keep
// the chapter heading with a continuation marker.
func (s *Splitter) splitChapters(text string, chapters []chapter) []string {
	lines := strings.Split(text, "\n")

	var sections []struct {
		heading string
		body    string
	}

	// Text before the first chapter is its own section.
	if chapters[0].line > 0 {
		pre := strings.TrimSpace(strings.Join(lines[:chapters[0].line], "\n"))
		if pre != "" {
			sections = append(sections, struct {
				heading string
				body    string
			}{"", pre})
		}
	}

	for i, ch := range chapters {
		end := len(lines)
		if i+1 < len(chapters) {
			end = chapters[i+1].line
		}
		body := strings.Join(lines[ch.line:end], "\n")
		sections = append(sections, struct {
			heading string
			body    string
		}{ch.heading, body})
	}

	var pieces []string
	for _, sec := range sections {
		if len(sec.body) <= s.ChunkSize {
			pieces = append(pieces, sec.body)
			continue
		}
		parts := s.splitRecursive(sec.body)
		for j, p := range parts {
			if j > 0 && sec.heading != "" {
				p = sec.heading + " (continued)\n" + p
			}
			pieces = append(pieces, p)
		}
	}
	return pieces
}
