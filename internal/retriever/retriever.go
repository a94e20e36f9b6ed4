// Package retriever implements hybrid search over knowledge bases:
// vector similarity and BM25 keyword hits fused with reciprocal rank
// fusion, then reranked.
package retriever

import (
	"context"
	"fmt"
	"log"
	"sort"

	"github.com/sagalabs/saga/internal/bm25"
	"github.com/sagalabs/saga/internal/knowledge"
	"github.com/sagalabs/saga/internal/llm"
	"github.com/sagalabs/saga/internal/prompts"
	"github.com/sagalabs/saga/internal/registry"
	"github.com/sagalabs/saga/internal/vectordb"
)

// Gateway is the slice of the model gateway the retriever needs.
type Gateway interface {
	Lightweight(ctx context.Context, system, user string, maxTokens int) (string, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	Rerank(ctx context.Context, query string, documents []string, topN int) []llm.RankedDocument
}

// KeywordSource loads per-knowledge-base keyword indexes.
type KeywordSource interface {
	KeywordIndex(kbID string) (*bm25.Index, error)
}

// FileSource resolves file records for citation labels.
type FileSource interface {
	GetFile(ctx context.Context, id string) (*knowledge.File, error)
}

// Result is one retrieved passage with its citation tag.
type Result struct {
	Tag     string  `json:"tag"`
	Source  string  `json:"source"`
	FileID  string  `json:"file_id"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// Snippet converts the result for prompt assembly. The 1-based index is
// parsed from the tag by the caller; here it is passed explicitly.
func (r Result) Snippet(index int) prompts.Snippet {
	return prompts.Snippet{Index: index, Source: r.Source, Content: r.Content}
}

// Retriever runs hybrid retrieval over one or more knowledge bases.
type Retriever struct {
	reg      *registry.Registry
	gw       Gateway
	vectors  *vectordb.Store
	keywords KeywordSource
	files    FileSource
}

// New creates a Retriever.
func New(reg *registry.Registry, gw Gateway, vectors *vectordb.Store, keywords KeywordSource, files FileSource) *Retriever {
	return &Retriever{reg: reg, gw: gw, vectors: vectors, keywords: keywords, files: files}
}

// candidate is one fused passage before reranking.
type candidate struct {
	content string
	fileID  string
	source  string
	score   float64
}

// Search retrieves passages relevant to the query from the given
// knowledge bases. No knowledge bases selected means no results.
func (r *Retriever) Search(ctx context.Context, query string, kbIDs []string) ([]Result, error) {
	if len(kbIDs) == 0 {
		return nil, nil
	}
	cfg := r.reg.Knowledge()

	embedText := query
	if cfg.HyDE {
		expansion, err := r.gw.Lightweight(ctx, "", prompts.BuildHyDEPrompt(query), 0)
		if err != nil {
			log.Printf("retriever: query expansion failed, using raw query: %v", err)
		} else if expansion != "" {
			embedText = expansion
		}
	}

	vecHits, err := r.vectorSearch(ctx, embedText, kbIDs, cfg.TopK, cfg.RelevanceThreshold)
	if err != nil {
		return nil, err
	}
	kwHits := r.keywordSearch(query, kbIDs, cfg.TopK)

	fused := fuse(vecHits, kwHits, cfg.RRFConstant)
	if len(fused) == 0 {
		return nil, nil
	}

	// The whole fused set goes to the reranker; only it applies the
	// final top-N cutoff.

	docs := make([]string, len(fused))
	for i, c := range fused {
		docs[i] = c.content
	}
	ranked := r.gw.Rerank(ctx, query, docs, cfg.RerankTopN)

	results := make([]Result, 0, len(ranked))
	for i, doc := range ranked {
		c := fused[doc.Index]
		if c.source == "" {
			c.source = r.fileName(ctx, c.fileID)
		}
		results = append(results, Result{
			Tag:     fmt.Sprintf("source-%d", i+1),
			Source:  c.source,
			FileID:  c.fileID,
			Content: c.content,
			Score:   doc.Score,
		})
	}
	return results, nil
}

// vectorSearch runs the similarity leg across all selected knowledge
// bases, keeping only hits under the relevance distance threshold.
func (r *Retriever) vectorSearch(ctx context.Context, text string, kbIDs []string, topK int, threshold float64) ([]candidate, error) {
	modelID, err := r.reg.ActiveEmbeddingModelID()
	if err != nil {
		return nil, err
	}
	embedding, err := r.gw.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	var hits []vectordb.SearchResult
	for _, kbID := range kbIDs {
		res, err := r.vectors.Query(ctx, vectordb.CollectionName(kbID, modelID), embedding, topK)
		if err != nil {
			return nil, err
		}
		for _, h := range res {
			if h.Distance < threshold {
				hits = append(hits, h)
			}
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	if len(hits) > topK {
		hits = hits[:topK]
	}

	out := make([]candidate, len(hits))
	for i, h := range hits {
		out[i] = candidate{
			content: h.Document.Content,
			fileID:  h.Document.Metadata.FileID,
			source:  h.Document.Metadata.Source,
		}
	}
	return out, nil
}

// keywordSearch runs the BM25 leg. A knowledge base without a keyword
// index simply contributes no hits.
func (r *Retriever) keywordSearch(query string, kbIDs []string, topK int) []candidate {
	var hits []bm25.Result
	for _, kbID := range kbIDs {
		idx, err := r.keywords.KeywordIndex(kbID)
		if err != nil {
			log.Printf("retriever: loading keyword index for %s: %v", kbID, err)
			continue
		}
		hits = append(hits, idx.Search(query, topK)...)
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > topK {
		hits = hits[:topK]
	}

	out := make([]candidate, len(hits))
	for i, h := range hits {
		out[i] = candidate{content: h.Document.Content, fileID: h.Document.FileID}
	}
	return out
}

// fuse merges the two ranked lists with reciprocal rank fusion,
// deduplicating passages by exact content. A passage appearing in both
// lists accumulates both rank scores.
func fuse(vecHits, kwHits []candidate, rrfK int) []candidate {
	if rrfK <= 0 {
		rrfK = 60
	}

	byContent := make(map[string]*candidate)
	var order []string
	add := func(list []candidate) {
		for rank, c := range list {
			score := 1.0 / float64(rrfK+rank+1)
			if existing, ok := byContent[c.content]; ok {
				existing.score += score
				if existing.source == "" {
					existing.source = c.source
				}
				continue
			}
			c.score = score
			byContent[c.content] = &c
			order = append(order, c.content)
		}
	}
	add(vecHits)
	add(kwHits)

	out := make([]candidate, 0, len(order))
	for _, content := range order {
		out = append(out, *byContent[content])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].score > out[j].score })
	return out
}

// fileName resolves a file's display name for citation labels.
func (r *Retriever) fileName(ctx context.Context, fileID string) string {
	if r.files == nil || fileID == "" {
		return ""
	}
	f, err := r.files.GetFile(ctx, fileID)
	if err != nil {
		return ""
	}
	return f.FileName
}
