// Package vectordb wraps chromem-go with per-knowledge-base collection
// management. Collections are namespaced by knowledge base and embedding
// model so switching the active embedding model never mixes vector
// spaces.
package vectordb

import (
	"context"
	"fmt"

	chromem "github.com/philippgille/chromem-go"
)

// Store manages embedded chunks in per-(knowledge base, model)
// collections.
type Store struct {
	db *chromem.DB
}

// Open creates or opens a persistent store under dir.
func Open(dir string) (*Store, error) {
	db, err := chromem.NewPersistentDB(dir, false)
	if err != nil {
		return nil, fmt.Errorf("opening vector store: %w", err)
	}
	return &Store{db: db}, nil
}

// OpenMemory creates an in-memory store (useful for testing).
func OpenMemory() *Store {
	return &Store{db: chromem.NewDB()}
}

// CollectionName returns the collection namespace for a knowledge base
// and embedding model identity.
func CollectionName(kbID, modelID string) string {
	return fmt.Sprintf("kb_%s_%s", kbID, modelID)
}

// noEmbed guards against documents reaching chromem without a
// precomputed embedding; all embedding happens upstream.
func noEmbed(_ string) chromem.EmbeddingFunc {
	return func(_ context.Context, _ string) ([]float32, error) {
		return nil, fmt.Errorf("vectordb: document without precomputed embedding")
	}
}

// getCollection returns the named collection, or nil if it does not
// exist. A missing collection is never an error.
func (s *Store) getCollection(name string) *chromem.Collection {
	return s.db.GetCollection(name, noEmbed(name))
}
