package tokenizer

import "testing"

func TestCountNonEmpty(t *testing.T) {
	c := New()
	n := c.Count("hello world, this is a test sentence")
	if n <= 0 {
		t.Errorf("expected positive token count, got %d", n)
	}
}

func TestCountEmpty(t *testing.T) {
	c := New()
	if n := c.Count(""); n != 0 {
		t.Errorf("expected 0 tokens for empty string, got %d", n)
	}
}

func TestCountMonotonic(t *testing.T) {
	c := New()
	short := c.Count("one two three")
	long := c.Count("one two three four five six seven eight nine ten eleven twelve")
	if long <= short {
		t.Errorf("longer text should count more tokens: short=%d long=%d", short, long)
	}
}

func TestCountAll(t *testing.T) {
	c := New()
	texts := []string{"alpha beta", "gamma delta epsilon"}
	sum := c.Count(texts[0]) + c.Count(texts[1])
	if got := c.CountAll(texts); got != sum {
		t.Errorf("CountAll = %d, want %d", got, sum)
	}
}

func TestFallbackEstimate(t *testing.T) {
	// A Counter whose encoding failed to load uses len/4.
	c := &Counter{}
	c.once.Do(func() {})
	text := "abcdefgh"
	if got := c.Count(text); got != 2 {
		t.Errorf("fallback estimate = %d, want 2", got)
	}
}
