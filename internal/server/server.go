// Package server exposes the assistant's HTTP API: knowledge base and
// file management, hybrid search, conversations over REST and WebSocket,
// and provider slot settings.
package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sagalabs/saga/internal/config"
	"github.com/sagalabs/saga/internal/conversation"
	"github.com/sagalabs/saga/internal/knowledge"
	"github.com/sagalabs/saga/internal/prompts"
	"github.com/sagalabs/saga/internal/registry"
	"github.com/sagalabs/saga/internal/retriever"
)

// Gateway is the slice of the model gateway the handlers call directly.
type Gateway interface {
	Lightweight(ctx context.Context, system, user string, maxTokens int) (string, error)
}

// Deps bundles everything the handlers need.
type Deps struct {
	Registry  *registry.Registry
	Gateway   Gateway
	Knowledge *knowledge.Store
	Indexer   *knowledge.Indexer
	Retriever *retriever.Retriever
	Topics    *conversation.Store
	Chat      *conversation.Service
	Prompts   *prompts.Store
	UploadDir string
}

// Server is the HTTP API server.
type Server struct {
	cfg        config.ServerConfig
	deps       Deps
	router     chi.Router
	httpServer *http.Server
}

// New creates a server with all routes registered.
func New(cfg config.ServerConfig, deps Deps) *Server {
	s := &Server{cfg: cfg, deps: deps}
	s.router = s.buildRouter()
	return s
}

// buildRouter creates and configures the chi router with all routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	origins := s.cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:*", "http://127.0.0.1:*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/knowledge-bases", func(r chi.Router) {
			r.Get("/", s.handleListKBs)
			r.Post("/", s.handleCreateKB)
			r.Route("/{kbID}", func(r chi.Router) {
				r.Get("/", s.handleGetKB)
				r.Put("/", s.handleUpdateKB)
				r.Delete("/", s.handleDeleteKB)
				r.Get("/files", s.handleListFiles)
				r.Post("/files", s.handleUploadFile)
			})
		})
		r.Route("/files/{fileID}", func(r chi.Router) {
			r.Get("/", s.handleGetFile)
			r.Delete("/", s.handleDeleteFile)
			r.Post("/reindex", s.handleReindexFile)
		})
		r.Post("/search", s.handleSearch)

		r.Route("/topics", func(r chi.Router) {
			r.Get("/", s.handleListTopics)
			r.Post("/", s.handleCreateTopic)
			r.Route("/{topicID}", func(r chi.Router) {
				r.Get("/", s.handleGetTopic)
				r.Delete("/", s.handleDeleteTopic)
				r.Put("/knowledge-bases", s.handleSetTopicKBs)
				r.Delete("/summary", s.handleClearSummary)
				r.Get("/messages", s.handleListMessages)
				r.Post("/messages", s.handleChatREST)
				r.Get("/stats", s.handleTopicStats)
			})
		})
		r.Get("/chat/ws", s.handleChatWS)
		r.Post("/translate", s.handleTranslate)

		r.Route("/settings", func(r chi.Router) {
			r.Get("/slots", s.handleListSlots)
			r.Put("/slots/{service}/{number}", s.handleUpdateSlot)
			r.Put("/embedding/active", s.handleSetActiveEmbedding)
		})
		r.Route("/prompts", func(r chi.Router) {
			r.Get("/", s.handleListPrompts)
			r.Post("/", s.handleCreatePrompt)
			r.Put("/{name}", s.handleUpdatePrompt)
			r.Delete("/{name}", s.handleDeletePrompt)
			r.Post("/{name}/activate", s.handleActivatePrompt)
		})
		r.Get("/background", s.handleGetBackground)
		r.Put("/background", s.handleSetBackground)
		r.Get("/stats", s.handleStats)
	})

	return r
}

// Router returns the chi router, used directly in tests.
func (s *Server) Router() chi.Router { return s.router }

// Start begins listening on the configured address.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("saga server listening on %s", s.cfg.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("server: encoding response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}
