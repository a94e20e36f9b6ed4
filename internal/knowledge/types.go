// Package knowledge manages knowledge bases: their files, persisted
// chunks, vector collections and keyword indexes.
package knowledge

import (
	"fmt"
	"time"
)

// FileStatus tracks a file through the indexing pipeline.
type FileStatus string

const (
	StatusUploaded   FileStatus = "uploaded"
	StatusProcessing FileStatus = "processing"
	StatusCompleted  FileStatus = "completed"
	StatusFailed     FileStatus = "failed"
)

// KnowledgeBase is one named collection of documents.
type KnowledgeBase struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	EmbeddingModel string    `json:"embedding_model"`
	CreatedAt      time.Time `json:"created_at"`
}

// File is one document registered in a knowledge base.
type File struct {
	ID             string     `json:"id"`
	KBID           string     `json:"kb_id"`
	FileName       string     `json:"file_name"`
	FilePath       string     `json:"file_path"`
	Status         FileStatus `json:"status"`
	VectorCount    int        `json:"vector_count"`
	EmbeddingModel string     `json:"embedding_model"`
	ParseSource    string     `json:"parse_source"`
	ParseWarning   string     `json:"parse_warning,omitempty"`
	UploadedAt     time.Time  `json:"uploaded_at"`
}

// Chunk is one persisted text chunk of a file.
type Chunk struct {
	FileID     string `json:"file_id"`
	ChunkIndex int    `json:"chunk_index"`
	Text       string `json:"text"`
}

var (
	// ErrExists is returned when a name or path collides with an
	// existing record.
	ErrExists = fmt.Errorf("already exists")
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = fmt.Errorf("not found")
)
