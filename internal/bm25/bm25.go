// Package bm25 implements an Okapi BM25 keyword index over knowledge
// base chunks. Indexes are rebuilt whole after any mutation and
// serialized per knowledge base; there is no incremental update path.
package bm25

import (
	"encoding/gob"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// BM25 free parameters.
const (
	k1 = 1.5
	b  = 0.75
)

// Document is one indexed chunk.
type Document struct {
	FileID     string
	ChunkIndex int
	Content    string
}

// Result is one scored search hit.
type Result struct {
	Document Document
	Score    float64
}

// Index is a BM25 index over a fixed document set. Fields are exported
// for gob serialization.
type Index struct {
	Docs      []Document
	TermFreqs []map[string]int
	DocLens   []int
	DocFreq   map[string]int
	AvgLen    float64
}

// tokenize lowercases and splits on whitespace.
func tokenize(text string) []string {
	return strings.Fields(strings.ToLower(text))
}

// Build constructs an index over docs.
func Build(docs []Document) *Index {
	idx := &Index{
		Docs:      docs,
		TermFreqs: make([]map[string]int, len(docs)),
		DocLens:   make([]int, len(docs)),
		DocFreq:   make(map[string]int),
	}

	totalLen := 0
	for i, doc := range docs {
		tokens := tokenize(doc.Content)
		tf := make(map[string]int, len(tokens))
		for _, tok := range tokens {
			tf[tok]++
		}
		idx.TermFreqs[i] = tf
		idx.DocLens[i] = len(tokens)
		totalLen += len(tokens)
		for tok := range tf {
			idx.DocFreq[tok]++
		}
	}
	if len(docs) > 0 {
		idx.AvgLen = float64(totalLen) / float64(len(docs))
	}
	return idx
}

// Len returns the number of indexed documents.
func (idx *Index) Len() int {
	return len(idx.Docs)
}

// Search scores all documents against the query and returns the topK
// hits with positive scores, best first.
func (idx *Index) Search(query string, topK int) []Result {
	if len(idx.Docs) == 0 || topK <= 0 {
		return nil
	}

	terms := tokenize(query)
	if len(terms) == 0 {
		return nil
	}

	n := float64(len(idx.Docs))
	var results []Result
	for i := range idx.Docs {
		score := 0.0
		for _, term := range terms {
			tf := float64(idx.TermFreqs[i][term])
			if tf == 0 {
				continue
			}
			df := float64(idx.DocFreq[term])
			idf := math.Log(1 + (n-df+0.5)/(df+0.5))
			docLen := float64(idx.DocLens[i])
			score += idf * tf * (k1 + 1) / (tf + k1*(1-b+b*docLen/idx.AvgLen))
		}
		if score > 0 {
			results = append(results, Result{Document: idx.Docs[i], Score: score})
		}
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > topK {
		results = results[:topK]
	}
	return results
}

// Save writes the index atomically: gob to a temp file, then rename.
func Save(idx *Index, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating index directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".bm25-*")
	if err != nil {
		return fmt.Errorf("creating temp index file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := gob.NewEncoder(tmp).Encode(idx); err != nil {
		tmp.Close()
		return fmt.Errorf("encoding index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp index file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing index file: %w", err)
	}
	return nil
}

// Load reads an index from disk. A missing file yields an empty index.
func Load(path string) (*Index, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return Build(nil), nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening index file: %w", err)
	}
	defer f.Close()

	var idx Index
	if err := gob.NewDecoder(f).Decode(&idx); err != nil {
		return nil, fmt.Errorf("decoding index %s: %w", path, err)
	}
	return &idx, nil
}

// Delete removes a persisted index. Missing files are not an error.
func Delete(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing index file: %w", err)
	}
	return nil
}
