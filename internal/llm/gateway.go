package llm

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"

	"github.com/sagalabs/saga/internal/registry"
)

// slotClient is the full client surface of one provider slot.
type slotClient interface {
	Provider
	Embedder
	Rerank(ctx context.Context, query string, documents []string, topN int) ([]RankedDocument, error)
	ExtractFile(ctx context.Context, path string) (string, error)
}

// Gateway routes model calls to the provider slots resolved by the
// registry. Clients are memoized per slot identity so reconfiguring a
// slot picks up a fresh client.
type Gateway struct {
	reg *registry.Registry

	mu      sync.Mutex
	clients map[string]slotClient

	// newClient builds a client for a slot; replaced in tests.
	newClient func(registry.SlotRef) slotClient
}

// NewGateway creates a Gateway over the given registry.
func NewGateway(reg *registry.Registry) *Gateway {
	return &Gateway{
		reg:       reg,
		clients:   make(map[string]slotClient),
		newClient: func(ref registry.SlotRef) slotClient { return NewClient(ref) },
	}
}

func (g *Gateway) clientFor(ref registry.SlotRef) slotClient {
	key := fmt.Sprintf("%s|%s|%s|%s", ref.ProviderName(), ref.Slot.BaseURL, ref.Slot.APIKey, ref.Slot.ModelName)

	g.mu.Lock()
	defer g.mu.Unlock()
	if c, ok := g.clients[key]; ok {
		return c
	}
	c := g.newClient(ref)
	g.clients[key] = c
	return c
}

// Complete sends a chat completion to the highest-priority configured
// chat slot. There is no fallback between chat slots.
func (g *Gateway) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	ref, err := g.reg.ChatSlot()
	if err != nil {
		return nil, err
	}
	if req.Model == "" {
		req.Model = ref.Slot.ModelName
	}
	return g.clientFor(ref).Complete(ctx, req)
}

// Lightweight runs a small, low-temperature completion on the chat slot.
// Used for auxiliary generation: titles, summaries, query expansion.
func (g *Gateway) Lightweight(ctx context.Context, system, user string, maxTokens int) (string, error) {
	if maxTokens == 0 {
		maxTokens = 512
	}
	messages := []Message{}
	if system != "" {
		messages = append(messages, Message{Role: RoleSystem, Content: system})
	}
	messages = append(messages, Message{Role: RoleUser, Content: user})

	resp, err := g.Complete(ctx, CompletionRequest{
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: 0.3,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(StripThinking(resp.Content)), nil
}

// Embed embeds texts with the active embedding slot, batching requests
// by the configured batch size.
func (g *Gateway) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	ref, err := g.reg.ActiveEmbeddingSlot()
	if err != nil {
		return nil, err
	}
	client := g.clientFor(ref)

	batchSize := g.reg.Knowledge().EmbeddingBatchSize
	if batchSize <= 0 {
		batchSize = 16
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += batchSize {
		end := start + batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := client.Embed(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("embedding batch %d-%d: %w", start, end, err)
		}
		if len(batch) != end-start {
			return nil, fmt.Errorf("embedding batch %d-%d: got %d vectors for %d texts", start, end, len(batch), end-start)
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

// EmbedQuery embeds a single query string.
func (g *Gateway) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := g.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embedding query: no vector returned")
	}
	return vectors[0], nil
}

// Rerank orders documents by relevance to the query using the
// configured reranker slots. With one slot the provider's scores are
// used directly; with two, each slot's ranking is converted to a
// positional score and blended by the slots' weights. Failures degrade
// to the original document order, never to an error.
func (g *Gateway) Rerank(ctx context.Context, query string, documents []string, topN int) []RankedDocument {
	if len(documents) == 0 {
		return nil
	}
	if topN <= 0 || topN > len(documents) {
		topN = len(documents)
	}

	refs := g.reg.RerankerSlots()
	switch len(refs) {
	case 0:
		return identityOrder(documents, topN)
	case 1:
		ranked, err := g.clientFor(refs[0]).Rerank(ctx, query, documents, len(documents))
		if err != nil {
			log.Printf("llm: reranker slot %d failed, keeping original order: %v", refs[0].Number, err)
			return identityOrder(documents, topN)
		}
		if len(ranked) > topN {
			ranked = ranked[:topN]
		}
		return ranked
	}

	// Two slots: blend positional scores by normalized weight.
	w1, w2 := refs[0].Slot.Weight, refs[1].Slot.Weight
	if w1+w2 <= 0 {
		w1, w2 = 0.5, 0.5
	} else {
		total := w1 + w2
		w1, w2 = w1/total, w2/total
	}
	weights := []float64{w1, w2}

	blended := make([]float64, len(documents))
	succeeded := 0
	for i, ref := range refs {
		ranked, err := g.clientFor(ref).Rerank(ctx, query, documents, len(documents))
		if err != nil {
			log.Printf("llm: reranker slot %d failed: %v", ref.Number, err)
			continue
		}
		succeeded++
		for rank, doc := range ranked {
			blended[doc.Index] += weights[i] / (1 + 0.1*float64(rank))
		}
	}
	if succeeded == 0 {
		log.Printf("llm: all reranker slots failed, keeping original order")
		return identityOrder(documents, topN)
	}

	out := make([]RankedDocument, len(documents))
	for i := range documents {
		out[i] = RankedDocument{Index: i, Score: blended[i]}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > topN {
		out = out[:topN]
	}
	return out
}

// identityOrder returns the first topN documents in their original order.
func identityOrder(documents []string, topN int) []RankedDocument {
	if topN > len(documents) {
		topN = len(documents)
	}
	out := make([]RankedDocument, topN)
	for i := 0; i < topN; i++ {
		out[i] = RankedDocument{Index: i}
	}
	return out
}

// StripThinking removes a leading reasoning block terminated by a
// </think> tag, as emitted by some reasoning models.
func StripThinking(s string) string {
	if _, after, found := strings.Cut(s, "</think>"); found {
		return strings.TrimSpace(after)
	}
	return s
}
