// Package tokenizer provides token counting for context budgeting.
package tokenizer

import (
	"log"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// Counter counts tokens of text for budget accounting. Counts are
// estimates when the underlying encoding cannot be loaded.
type Counter struct {
	once sync.Once
	enc  *tiktoken.Tiktoken
}

// New returns a Counter backed by the cl100k_base encoding. The encoding
// is loaded lazily on first use.
func New() *Counter {
	return &Counter{}
}

// Count returns the token count of text. If the encoding is unavailable
// it falls back to a length/4 estimate.
func (c *Counter) Count(text string) int {
	c.once.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			log.Printf("tokenizer: cl100k_base unavailable, using estimate: %v", err)
			return
		}
		c.enc = enc
	})

	if c.enc == nil {
		return len(text) / 4
	}
	return len(c.enc.Encode(text, nil, nil))
}

// CountAll returns the summed token count of all texts.
func (c *Counter) CountAll(texts []string) int {
	total := 0
	for _, t := range texts {
		total += c.Count(t)
	}
	return total
}
