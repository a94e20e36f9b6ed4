package vectordb

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	chromem "github.com/philippgille/chromem-go"
)

// AddDocuments writes documents with precomputed embeddings into the
// named collection, creating it on first use.
func (s *Store) AddDocuments(ctx context.Context, collection string, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	col, err := s.db.GetOrCreateCollection(collection, nil, noEmbed(collection))
	if err != nil {
		return fmt.Errorf("creating collection %s: %w", collection, err)
	}

	chromDocs := make([]chromem.Document, len(docs))
	for i, doc := range docs {
		chromDocs[i] = chromem.Document{
			ID:        doc.ID,
			Content:   doc.Content,
			Embedding: doc.Embedding,
			Metadata:  metadataToMap(doc.Metadata),
		}
	}

	return col.AddDocuments(ctx, chromDocs, 1)
}

// Query returns the topK nearest documents to the query embedding,
// ordered by ascending distance. A missing or empty collection yields no
// results.
func (s *Store) Query(ctx context.Context, collection string, embedding []float32, topK int) ([]SearchResult, error) {
	col := s.getCollection(collection)
	if col == nil {
		return nil, nil
	}

	count := col.Count()
	if count == 0 || topK <= 0 {
		return nil, nil
	}
	if topK > count {
		topK = count
	}

	results, err := col.QueryEmbedding(ctx, embedding, topK, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("querying collection %s: %w", collection, err)
	}

	out := make([]SearchResult, len(results))
	for i, r := range results {
		out[i] = SearchResult{
			Document: Document{
				ID:       r.ID,
				Content:  r.Content,
				Metadata: mapToMetadata(r.Metadata),
			},
			Distance: 1 - float64(r.Similarity),
		}
	}
	return out, nil
}

// DeleteByFileID removes all documents of one file from the collection.
// Missing collections are a no-op.
func (s *Store) DeleteByFileID(ctx context.Context, collection, fileID string) error {
	col := s.getCollection(collection)
	if col == nil {
		return nil
	}
	return col.Delete(ctx, map[string]string{"file_id": fileID}, nil)
}

// DeleteCollection drops an entire collection. Missing collections are a
// no-op.
func (s *Store) DeleteCollection(collection string) error {
	return s.db.DeleteCollection(collection)
}

// Count returns the number of documents in a collection, 0 if it does
// not exist.
func (s *Store) Count(collection string) int {
	col := s.getCollection(collection)
	if col == nil {
		return 0
	}
	return col.Count()
}

// CollectionsForKB lists the collection names of one knowledge base
// across all embedding models.
func (s *Store) CollectionsForKB(kbID string) []string {
	prefix := fmt.Sprintf("kb_%s_", kbID)
	var names []string
	for name := range s.db.ListCollections() {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	return names
}

// metadataToMap converts DocumentMetadata to a flat map for chromem.
func metadataToMap(m DocumentMetadata) map[string]string {
	return map[string]string{
		"source":      m.Source,
		"file_id":     m.FileID,
		"chunk_index": strconv.Itoa(m.ChunkIndex),
		"chunk_type":  m.ChunkType,
		"language":    m.Language,
		"doc_type":    m.DocType,
	}
}

// mapToMetadata converts a flat map back to DocumentMetadata.
func mapToMetadata(m map[string]string) DocumentMetadata {
	chunkIndex, _ := strconv.Atoi(m["chunk_index"])
	return DocumentMetadata{
		Source:     m["source"],
		FileID:     m["file_id"],
		ChunkIndex: chunkIndex,
		ChunkType:  m["chunk_type"],
		Language:   m["language"],
		DocType:    m["doc_type"],
	}
}
