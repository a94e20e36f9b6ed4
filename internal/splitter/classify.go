package splitter

import (
	"regexp"
	"strings"
	"unicode"
)

var tableLine = regexp.MustCompile(`^\|.*\|\s*$`)

// classify assigns a coarse content type to a chunk, used as retrieval
// metadata.
func classify(chunk string) string {
	if strings.Contains(chunk, "```") {
		return "code"
	}

	lines := strings.Split(chunk, "\n")
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, "#") {
			return "heading"
		}
		break
	}

	for _, line := range lines {
		if tableLine.MatchString(strings.TrimSpace(line)) {
			return "table"
		}
	}

	if len(lines) > 5 {
		return "paragraph"
	}
	return "short"
}

// detectLanguage reports "zh" when a meaningful share of the chunk is
// CJK, "en" otherwise.
func detectLanguage(chunk string) string {
	var cjk, letters int
	for _, r := range chunk {
		if unicode.Is(unicode.Han, r) {
			cjk++
			letters++
		} else if unicode.IsLetter(r) {
			letters++
		}
	}
	if letters > 0 && float64(cjk)/float64(letters) > 0.3 {
		return "zh"
	}
	return "en"
}
