package knowledge

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/sagalabs/saga/internal/db"
)

// Store provides CRUD operations for knowledge bases, files and chunks.
type Store struct {
	db *db.DB
}

// NewStore creates a Store backed by the given database.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// CreateKB inserts a knowledge base. Names are unique; a collision
// returns ErrExists.
func (s *Store) CreateKB(ctx context.Context, name, description, embeddingModel string) (*KnowledgeBase, error) {
	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO knowledge_bases (id, name, description, embedding_model)
		VALUES (?, ?, ?, ?)`,
		id, name, description, embeddingModel,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("knowledge base %q: %w", name, ErrExists)
		}
		return nil, fmt.Errorf("inserting knowledge base: %w", err)
	}
	return s.GetKB(ctx, id)
}

// GetKB retrieves one knowledge base.
func (s *Store) GetKB(ctx context.Context, id string) (*KnowledgeBase, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, embedding_model, created_at
		FROM knowledge_bases WHERE id = ?`, id)

	var kb KnowledgeBase
	err := row.Scan(&kb.ID, &kb.Name, &kb.Description, &kb.EmbeddingModel, &kb.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("knowledge base %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying knowledge base: %w", err)
	}
	return &kb, nil
}

// ListKBs returns all knowledge bases, newest first.
func (s *Store) ListKBs(ctx context.Context) ([]KnowledgeBase, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, embedding_model, created_at
		FROM knowledge_bases ORDER BY created_at DESC, name`)
	if err != nil {
		return nil, fmt.Errorf("listing knowledge bases: %w", err)
	}
	defer rows.Close()

	var kbs []KnowledgeBase
	for rows.Next() {
		var kb KnowledgeBase
		if err := rows.Scan(&kb.ID, &kb.Name, &kb.Description, &kb.EmbeddingModel, &kb.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning knowledge base: %w", err)
		}
		kbs = append(kbs, kb)
	}
	return kbs, rows.Err()
}

// UpdateKB updates name and description. Renaming onto an existing name
// returns ErrExists.
func (s *Store) UpdateKB(ctx context.Context, id, name, description string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE knowledge_bases SET name = ?, description = ? WHERE id = ?`,
		name, description, id,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("knowledge base %q: %w", name, ErrExists)
		}
		return fmt.Errorf("updating knowledge base: %w", err)
	}
	return requireRow(res, id)
}

// DeleteKB removes a knowledge base; files and chunks cascade.
func (s *Store) DeleteKB(ctx context.Context, id string) error {
	res, err := s.db.ExecRetry(`DELETE FROM knowledge_bases WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting knowledge base: %w", err)
	}
	return requireRow(res, id)
}

// CreateFile registers a file in a knowledge base with status uploaded.
// File paths are globally unique; a collision returns ErrExists.
func (s *Store) CreateFile(ctx context.Context, kbID, fileName, filePath string) (*File, error) {
	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO knowledge_files (id, kb_id, file_name, file_path)
		VALUES (?, ?, ?, ?)`,
		id, kbID, fileName, filePath,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("file %q: %w", filePath, ErrExists)
		}
		return nil, fmt.Errorf("inserting file: %w", err)
	}
	return s.GetFile(ctx, id)
}

// GetFile retrieves one file.
func (s *Store) GetFile(ctx context.Context, id string) (*File, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, kb_id, file_name, file_path, status, vector_count,
		       embedding_model, parse_source, parse_warning, uploaded_at
		FROM knowledge_files WHERE id = ?`, id)
	return scanFile(row)
}

// ListFiles returns the files of a knowledge base, newest first.
func (s *Store) ListFiles(ctx context.Context, kbID string) ([]File, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kb_id, file_name, file_path, status, vector_count,
		       embedding_model, parse_source, parse_warning, uploaded_at
		FROM knowledge_files WHERE kb_id = ? ORDER BY uploaded_at DESC, file_name`, kbID)
	if err != nil {
		return nil, fmt.Errorf("listing files: %w", err)
	}
	defer rows.Close()

	var files []File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, *f)
	}
	return files, rows.Err()
}

// SetFileStatus updates only the status of a file.
func (s *Store) SetFileStatus(ctx context.Context, id string, status FileStatus) error {
	res, err := s.db.ExecRetry(`UPDATE knowledge_files SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return fmt.Errorf("updating file status: %w", err)
	}
	return requireRow(res, id)
}

// SetFileIndexed records a completed indexing run: status, vector count,
// the embedding model used, and how the file was parsed.
func (s *Store) SetFileIndexed(ctx context.Context, id string, vectorCount int, embeddingModel, parseSource, parseWarning string) error {
	var warning sql.NullString
	if parseWarning != "" {
		warning = sql.NullString{String: parseWarning, Valid: true}
	}
	res, err := s.db.ExecRetry(`
		UPDATE knowledge_files
		SET status = ?, vector_count = ?, embedding_model = ?, parse_source = ?, parse_warning = ?
		WHERE id = ?`,
		string(StatusCompleted), vectorCount, embeddingModel, parseSource, warning, id,
	)
	if err != nil {
		return fmt.Errorf("recording indexed file: %w", err)
	}
	return requireRow(res, id)
}

// DeleteFile removes a file; chunks cascade.
func (s *Store) DeleteFile(ctx context.Context, id string) error {
	res, err := s.db.ExecRetry(`DELETE FROM knowledge_files WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting file: %w", err)
	}
	return requireRow(res, id)
}

// ReplaceChunks replaces all persisted chunks of a file.
func (s *Store) ReplaceChunks(ctx context.Context, fileID string, texts []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting chunk transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM file_chunks WHERE file_id = ?`, fileID); err != nil {
		return fmt.Errorf("clearing chunks: %w", err)
	}
	for i, text := range texts {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO file_chunks (file_id, chunk_index, chunk_text)
			VALUES (?, ?, ?)`, fileID, i, text); err != nil {
			return fmt.Errorf("inserting chunk %d: %w", i, err)
		}
	}
	return tx.Commit()
}

// ChunksForFile returns the persisted chunks of one file in order.
func (s *Store) ChunksForFile(ctx context.Context, fileID string) ([]Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT file_id, chunk_index, chunk_text
		FROM file_chunks WHERE file_id = ? ORDER BY chunk_index`, fileID)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()
	return scanChunks(rows)
}

// ChunksForKB returns all chunks of a knowledge base, grouped by file.
// This is the corpus for keyword index rebuilds.
func (s *Store) ChunksForKB(ctx context.Context, kbID string) ([]Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.file_id, c.chunk_index, c.chunk_text
		FROM file_chunks c
		JOIN knowledge_files f ON f.id = c.file_id
		WHERE f.kb_id = ?
		ORDER BY c.file_id, c.chunk_index`, kbID)
	if err != nil {
		return nil, fmt.Errorf("querying knowledge base chunks: %w", err)
	}
	defer rows.Close()
	return scanChunks(rows)
}

// Stats summarizes the contents of the store.
type Stats struct {
	KnowledgeBases int `json:"knowledge_bases"`
	Files          int `json:"files"`
	Chunks         int `json:"chunks"`
}

// Stats returns store-wide counts.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	var st Stats
	row := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM knowledge_bases),
			(SELECT COUNT(*) FROM knowledge_files),
			(SELECT COUNT(*) FROM file_chunks)`)
	if err := row.Scan(&st.KnowledgeBases, &st.Files, &st.Chunks); err != nil {
		return nil, fmt.Errorf("querying stats: %w", err)
	}
	return &st, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanFile(row scanner) (*File, error) {
	var f File
	var warning sql.NullString
	err := row.Scan(&f.ID, &f.KBID, &f.FileName, &f.FilePath, &f.Status,
		&f.VectorCount, &f.EmbeddingModel, &f.ParseSource, &warning, &f.UploadedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("file: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scanning file: %w", err)
	}
	f.ParseWarning = warning.String
	return &f, nil
}

func scanChunks(rows *sql.Rows) ([]Chunk, error) {
	var chunks []Chunk
	for rows.Next() {
		var c Chunk
		if err := rows.Scan(&c.FileID, &c.ChunkIndex, &c.Text); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

func requireRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("record %s: %w", id, ErrNotFound)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
