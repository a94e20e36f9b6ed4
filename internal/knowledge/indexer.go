package knowledge

import (
	"context"
	"fmt"
	"log"
	"path/filepath"

	"github.com/sagalabs/saga/internal/bm25"
	"github.com/sagalabs/saga/internal/llm"
	"github.com/sagalabs/saga/internal/registry"
	"github.com/sagalabs/saga/internal/splitter"
	"github.com/sagalabs/saga/internal/vectordb"
)

// Gateway is the slice of the model gateway the indexer needs.
type Gateway interface {
	ExtractText(ctx context.Context, path string) (*llm.ExtractResult, error)
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Indexer runs the indexing pipeline: extract, split, persist, embed,
// write vectors, rebuild the keyword index.
type Indexer struct {
	store    *Store
	vectors  *vectordb.Store
	gw       Gateway
	reg      *registry.Registry
	split    *splitter.Splitter
	indexDir string
}

// NewIndexer creates an Indexer. Keyword indexes are persisted under
// indexDir, one per knowledge base.
func NewIndexer(store *Store, vectors *vectordb.Store, gw Gateway, reg *registry.Registry, indexDir string) *Indexer {
	k := reg.Knowledge()
	return &Indexer{
		store:    store,
		vectors:  vectors,
		gw:       gw,
		reg:      reg,
		split:    splitter.New(k.ChunkSize, k.ChunkOverlap),
		indexDir: indexDir,
	}
}

// KeywordIndexPath returns the on-disk location of one knowledge base's
// keyword index.
func (ix *Indexer) KeywordIndexPath(kbID string) string {
	return filepath.Join(ix.indexDir, "kb_"+kbID+".bm25")
}

// AddFile registers a file in the knowledge base and runs the full
// indexing pipeline on it.
func (ix *Indexer) AddFile(ctx context.Context, kbID, path string) (*File, error) {
	f, err := ix.store.CreateFile(ctx, kbID, filepath.Base(path), path)
	if err != nil {
		return nil, err
	}
	if err := ix.IndexFile(ctx, f.ID); err != nil {
		return ix.store.GetFile(ctx, f.ID)
	}
	return ix.store.GetFile(ctx, f.ID)
}

// IndexFile runs the pipeline on a registered file. On failure the file
// is marked failed and the keyword index is still rebuilt, so removed or
// broken content never lingers in search results.
func (ix *Indexer) IndexFile(ctx context.Context, fileID string) error {
	f, err := ix.store.GetFile(ctx, fileID)
	if err != nil {
		return err
	}
	if err := ix.store.SetFileStatus(ctx, fileID, StatusProcessing); err != nil {
		return err
	}

	if err := ix.indexFile(ctx, f); err != nil {
		log.Printf("knowledge: indexing %s failed: %v", f.FileName, err)
		if serr := ix.store.SetFileStatus(ctx, fileID, StatusFailed); serr != nil {
			log.Printf("knowledge: marking %s failed: %v", f.FileName, serr)
		}
		if rerr := ix.RebuildKeywordIndex(ctx, f.KBID); rerr != nil {
			log.Printf("knowledge: rebuilding keyword index for %s: %v", f.KBID, rerr)
		}
		return err
	}

	return ix.RebuildKeywordIndex(ctx, f.KBID)
}

func (ix *Indexer) indexFile(ctx context.Context, f *File) error {
	res, err := ix.gw.ExtractText(ctx, f.FilePath)
	if err != nil {
		return fmt.Errorf("extracting text: %w", err)
	}

	chunks := ix.split.Split(res.Text, splitter.DocTypeForFile(f.FileName))
	if len(chunks) == 0 {
		return fmt.Errorf("no text extracted from %s", f.FileName)
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	if err := ix.store.ReplaceChunks(ctx, f.ID, texts); err != nil {
		return err
	}

	ref, err := ix.reg.ActiveEmbeddingSlot()
	if err != nil {
		return err
	}
	modelID := registry.ModelID(ref)

	embeddings, err := ix.gw.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embedding chunks: %w", err)
	}
	if len(embeddings) != len(chunks) {
		return fmt.Errorf("embedding count mismatch: %d vectors for %d chunks", len(embeddings), len(chunks))
	}

	collection := vectordb.CollectionName(f.KBID, modelID)
	// Re-indexing replaces any previous vectors of this file.
	if err := ix.vectors.DeleteByFileID(ctx, collection, f.ID); err != nil {
		return fmt.Errorf("clearing old vectors: %w", err)
	}

	docType := string(splitter.DocTypeForFile(f.FileName))
	docs := make([]vectordb.Document, len(chunks))
	for i, c := range chunks {
		docs[i] = vectordb.Document{
			ID:        fmt.Sprintf("%s_%d", f.ID, c.Index),
			Content:   c.Text,
			Embedding: embeddings[i],
			Metadata: vectordb.DocumentMetadata{
				Source:     f.FileName,
				FileID:     f.ID,
				ChunkIndex: c.Index,
				ChunkType:  c.Type,
				Language:   c.Language,
				DocType:    docType,
			},
		}
	}
	if err := ix.vectors.AddDocuments(ctx, collection, docs); err != nil {
		return fmt.Errorf("writing vectors: %w", err)
	}

	return ix.store.SetFileIndexed(ctx, f.ID, len(docs), modelID, res.ParseSource, res.Warning)
}

// RemoveFile deletes a file's vectors from every collection of its
// knowledge base, drops its records, and rebuilds the keyword index.
func (ix *Indexer) RemoveFile(ctx context.Context, fileID string) error {
	f, err := ix.store.GetFile(ctx, fileID)
	if err != nil {
		return err
	}

	for _, collection := range ix.vectors.CollectionsForKB(f.KBID) {
		if err := ix.vectors.DeleteByFileID(ctx, collection, f.ID); err != nil {
			return fmt.Errorf("deleting vectors from %s: %w", collection, err)
		}
	}
	if err := ix.store.DeleteFile(ctx, fileID); err != nil {
		return err
	}
	return ix.RebuildKeywordIndex(ctx, f.KBID)
}

// RemoveKB deletes a knowledge base with all vectors, keyword index and
// records.
func (ix *Indexer) RemoveKB(ctx context.Context, kbID string) error {
	for _, collection := range ix.vectors.CollectionsForKB(kbID) {
		if err := ix.vectors.DeleteCollection(collection); err != nil {
			return fmt.Errorf("deleting collection %s: %w", collection, err)
		}
	}
	if err := bm25.Delete(ix.KeywordIndexPath(kbID)); err != nil {
		return err
	}
	return ix.store.DeleteKB(ctx, kbID)
}

// RebuildKeywordIndex rebuilds a knowledge base's BM25 index from all
// persisted chunks. The index is always rebuilt whole.
func (ix *Indexer) RebuildKeywordIndex(ctx context.Context, kbID string) error {
	chunks, err := ix.store.ChunksForKB(ctx, kbID)
	if err != nil {
		return err
	}

	docs := make([]bm25.Document, len(chunks))
	for i, c := range chunks {
		docs[i] = bm25.Document{
			FileID:     c.FileID,
			ChunkIndex: c.ChunkIndex,
			Content:    c.Text,
		}
	}
	return bm25.Save(bm25.Build(docs), ix.KeywordIndexPath(kbID))
}

// KeywordIndex loads a knowledge base's BM25 index. A missing index is
// an empty one.
func (ix *Indexer) KeywordIndex(kbID string) (*bm25.Index, error) {
	return bm25.Load(ix.KeywordIndexPath(kbID))
}
