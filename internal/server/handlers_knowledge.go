package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"

	"github.com/sagalabs/saga/internal/knowledge"
	"github.com/sagalabs/saga/internal/retriever"
)

// maxUploadBytes caps a single document upload.
const maxUploadBytes = 100 << 20

func (s *Server) handleListKBs(w http.ResponseWriter, r *http.Request) {
	kbs, err := s.deps.Knowledge.ListKBs(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if kbs == nil {
		kbs = []knowledge.KnowledgeBase{}
	}
	respondJSON(w, http.StatusOK, kbs)
}

func (s *Server) handleCreateKB(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := decodeJSON(r, &req); err != nil || req.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}

	model, err := s.deps.Registry.ActiveEmbeddingModelID()
	if err != nil {
		respondError(w, http.StatusConflict, err.Error())
		return
	}
	kb, err := s.deps.Knowledge.CreateKB(r.Context(), req.Name, req.Description, model)
	if err != nil {
		if errors.Is(err, knowledge.ErrExists) {
			respondError(w, http.StatusConflict, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, kb)
}

func (s *Server) handleGetKB(w http.ResponseWriter, r *http.Request) {
	kb, err := s.deps.Knowledge.GetKB(r.Context(), chi.URLParam(r, "kbID"))
	if err != nil {
		respondKnowledgeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, kb)
}

func (s *Server) handleUpdateKB(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := decodeJSON(r, &req); err != nil || req.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}
	if err := s.deps.Knowledge.UpdateKB(r.Context(), chi.URLParam(r, "kbID"), req.Name, req.Description); err != nil {
		respondKnowledgeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (s *Server) handleDeleteKB(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Indexer.RemoveKB(r.Context(), chi.URLParam(r, "kbID")); err != nil {
		respondKnowledgeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	files, err := s.deps.Knowledge.ListFiles(r.Context(), chi.URLParam(r, "kbID"))
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if files == nil {
		files = []knowledge.File{}
	}
	respondJSON(w, http.StatusOK, files)
}

// handleUploadFile stores an uploaded document and indexes it. The file
// record is returned even when indexing fails; its status says what
// happened.
func (s *Server) handleUploadFile(w http.ResponseWriter, r *http.Request) {
	kbID := chi.URLParam(r, "kbID")
	if _, err := s.deps.Knowledge.GetKB(r.Context(), kbID); err != nil {
		respondKnowledgeError(w, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	src, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "multipart field 'file' is required")
		return
	}
	defer src.Close()

	name := filepath.Base(header.Filename)
	destDir := filepath.Join(s.deps.UploadDir, kbID)
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	destPath := filepath.Join(destDir, name)
	dest, err := os.Create(destPath)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if _, err := io.Copy(dest, src); err != nil {
		dest.Close()
		os.Remove(destPath)
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("saving upload: %v", err))
		return
	}
	dest.Close()

	file, err := s.deps.Indexer.AddFile(r.Context(), kbID, destPath)
	if err != nil {
		if errors.Is(err, knowledge.ErrExists) {
			os.Remove(destPath)
			respondError(w, http.StatusConflict, err.Error())
			return
		}
		if file == nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	respondJSON(w, http.StatusCreated, file)
}

func (s *Server) handleGetFile(w http.ResponseWriter, r *http.Request) {
	file, err := s.deps.Knowledge.GetFile(r.Context(), chi.URLParam(r, "fileID"))
	if err != nil {
		respondKnowledgeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, file)
}

func (s *Server) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Indexer.RemoveFile(r.Context(), chi.URLParam(r, "fileID")); err != nil {
		respondKnowledgeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleReindexFile(w http.ResponseWriter, r *http.Request) {
	fileID := chi.URLParam(r, "fileID")
	if err := s.deps.Indexer.IndexFile(r.Context(), fileID); err != nil {
		if errors.Is(err, knowledge.ErrNotFound) {
			respondError(w, http.StatusNotFound, err.Error())
			return
		}
	}
	file, err := s.deps.Knowledge.GetFile(r.Context(), fileID)
	if err != nil {
		respondKnowledgeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, file)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query          string   `json:"query"`
		KnowledgeBases []string `json:"knowledge_bases"`
	}
	if err := decodeJSON(r, &req); err != nil || req.Query == "" {
		respondError(w, http.StatusBadRequest, "query is required")
		return
	}

	results, err := s.deps.Retriever.Search(r.Context(), req.Query, req.KnowledgeBases)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if results == nil {
		results = []retriever.Result{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"results": results})
}

func respondKnowledgeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, knowledge.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, knowledge.ErrExists):
		respondError(w, http.StatusConflict, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}
