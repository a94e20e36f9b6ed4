package knowledge

import (
	"context"
	"errors"
	"testing"

	"github.com/sagalabs/saga/internal/db"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return NewStore(database)
}

func TestCreateAndGetKB(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	kb, err := s.CreateKB(ctx, "notes", "personal notes", "openai_text-embedding-3-small")
	if err != nil {
		t.Fatalf("CreateKB: %v", err)
	}
	if kb.ID == "" {
		t.Error("expected generated ID")
	}
	if kb.Name != "notes" {
		t.Errorf("name = %q", kb.Name)
	}
	if kb.EmbeddingModel != "openai_text-embedding-3-small" {
		t.Errorf("embedding model = %q", kb.EmbeddingModel)
	}

	got, err := s.GetKB(ctx, kb.ID)
	if err != nil {
		t.Fatalf("GetKB: %v", err)
	}
	if got.Name != kb.Name {
		t.Errorf("round trip name = %q", got.Name)
	}
}

func TestCreateKBDuplicateName(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	if _, err := s.CreateKB(ctx, "notes", "", ""); err != nil {
		t.Fatalf("CreateKB: %v", err)
	}
	_, err := s.CreateKB(ctx, "notes", "", "")
	if !errors.Is(err, ErrExists) {
		t.Errorf("expected ErrExists, got %v", err)
	}
}

func TestGetKBNotFound(t *testing.T) {
	s := setupTestStore(t)
	_, err := s.GetKB(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateKB(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	kb, err := s.CreateKB(ctx, "notes", "", "")
	if err != nil {
		t.Fatalf("CreateKB: %v", err)
	}
	if _, err := s.CreateKB(ctx, "work", "", ""); err != nil {
		t.Fatalf("CreateKB: %v", err)
	}

	if err := s.UpdateKB(ctx, kb.ID, "journal", "daily journal"); err != nil {
		t.Fatalf("UpdateKB: %v", err)
	}
	got, _ := s.GetKB(ctx, kb.ID)
	if got.Name != "journal" || got.Description != "daily journal" {
		t.Errorf("update not applied: %+v", got)
	}

	// Renaming onto an existing name fails.
	if err := s.UpdateKB(ctx, kb.ID, "work", ""); !errors.Is(err, ErrExists) {
		t.Errorf("expected ErrExists, got %v", err)
	}
}

func TestFileLifecycle(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	kb, err := s.CreateKB(ctx, "notes", "", "")
	if err != nil {
		t.Fatalf("CreateKB: %v", err)
	}

	f, err := s.CreateFile(ctx, kb.ID, "a.md", "/data/uploads/a.md")
	if err != nil {
		t.Fatalf("CreateFile: %v", err)
	}
	if f.Status != StatusUploaded {
		t.Errorf("initial status = %q", f.Status)
	}
	if f.ParseSource != "slot_1" {
		t.Errorf("default parse source = %q", f.ParseSource)
	}

	// Duplicate path rejected.
	if _, err := s.CreateFile(ctx, kb.ID, "a.md", "/data/uploads/a.md"); !errors.Is(err, ErrExists) {
		t.Errorf("expected ErrExists for duplicate path, got %v", err)
	}

	if err := s.SetFileStatus(ctx, f.ID, StatusProcessing); err != nil {
		t.Fatalf("SetFileStatus: %v", err)
	}
	if err := s.SetFileIndexed(ctx, f.ID, 7, "openai_small", "slot_2", "primary parser failed"); err != nil {
		t.Fatalf("SetFileIndexed: %v", err)
	}

	got, err := s.GetFile(ctx, f.ID)
	if err != nil {
		t.Fatalf("GetFile: %v", err)
	}
	if got.Status != StatusCompleted {
		t.Errorf("status = %q", got.Status)
	}
	if got.VectorCount != 7 {
		t.Errorf("vector count = %d", got.VectorCount)
	}
	if got.ParseSource != "slot_2" || got.ParseWarning == "" {
		t.Errorf("parse provenance lost: %+v", got)
	}

	if err := s.DeleteFile(ctx, f.ID); err != nil {
		t.Fatalf("DeleteFile: %v", err)
	}
	if _, err := s.GetFile(ctx, f.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestChunks(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	kb, _ := s.CreateKB(ctx, "notes", "", "")
	f1, _ := s.CreateFile(ctx, kb.ID, "a.md", "/a.md")
	f2, _ := s.CreateFile(ctx, kb.ID, "b.md", "/b.md")

	if err := s.ReplaceChunks(ctx, f1.ID, []string{"one", "two"}); err != nil {
		t.Fatalf("ReplaceChunks: %v", err)
	}
	if err := s.ReplaceChunks(ctx, f2.ID, []string{"three"}); err != nil {
		t.Fatalf("ReplaceChunks: %v", err)
	}

	chunks, err := s.ChunksForFile(ctx, f1.ID)
	if err != nil {
		t.Fatalf("ChunksForFile: %v", err)
	}
	if len(chunks) != 2 || chunks[0].Text != "one" || chunks[1].ChunkIndex != 1 {
		t.Errorf("chunks = %+v", chunks)
	}

	all, err := s.ChunksForKB(ctx, kb.ID)
	if err != nil {
		t.Fatalf("ChunksForKB: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("kb chunks = %d, want 3", len(all))
	}

	// Replacing drops previous chunks.
	if err := s.ReplaceChunks(ctx, f1.ID, []string{"only"}); err != nil {
		t.Fatalf("ReplaceChunks: %v", err)
	}
	chunks, _ = s.ChunksForFile(ctx, f1.ID)
	if len(chunks) != 1 || chunks[0].Text != "only" {
		t.Errorf("replace not applied: %+v", chunks)
	}
}

func TestDeleteKBCascades(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	kb, _ := s.CreateKB(ctx, "notes", "", "")
	f, _ := s.CreateFile(ctx, kb.ID, "a.md", "/a.md")
	if err := s.ReplaceChunks(ctx, f.ID, []string{"one"}); err != nil {
		t.Fatalf("ReplaceChunks: %v", err)
	}

	if err := s.DeleteKB(ctx, kb.ID); err != nil {
		t.Fatalf("DeleteKB: %v", err)
	}
	if _, err := s.GetFile(ctx, f.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("file should cascade, got %v", err)
	}

	st, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.KnowledgeBases != 0 || st.Files != 0 || st.Chunks != 0 {
		t.Errorf("stats after cascade = %+v", st)
	}
}

func TestStats(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	kb, _ := s.CreateKB(ctx, "notes", "", "")
	f, _ := s.CreateFile(ctx, kb.ID, "a.md", "/a.md")
	s.ReplaceChunks(ctx, f.ID, []string{"one", "two"})

	st, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.KnowledgeBases != 1 || st.Files != 1 || st.Chunks != 2 {
		t.Errorf("stats = %+v", st)
	}
}
