// Package mcp exposes the assistant's knowledge bases to MCP clients as
// search and question-answering tools.
package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/server"

	"github.com/sagalabs/saga/internal/knowledge"
	"github.com/sagalabs/saga/internal/llm"
	"github.com/sagalabs/saga/internal/prompts"
	"github.com/sagalabs/saga/internal/retriever"
)

// Version is set via ldflags at build time.
var Version = "dev"

// Searcher retrieves knowledge passages for a query.
type Searcher interface {
	Search(ctx context.Context, query string, kbIDs []string) ([]retriever.Result, error)
}

// Completer runs a chat completion.
type Completer interface {
	Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error)
}

// Server wraps an MCP server exposing knowledge search tools.
type Server struct {
	store     *knowledge.Store
	searcher  Searcher
	completer Completer
	prompts   *prompts.Store
	mcp       *server.MCPServer
}

// NewServer creates an MCP server with the given dependencies.
func NewServer(store *knowledge.Store, searcher Searcher, completer Completer, promptStore *prompts.Store) *Server {
	s := &Server{
		store:     store,
		searcher:  searcher,
		completer: completer,
		prompts:   promptStore,
	}

	s.mcp = server.NewMCPServer(
		"saga",
		Version,
		server.WithToolCapabilities(false),
	)

	s.registerTools()

	return s
}

// registerTools adds all tool definitions and their handlers to the MCP server.
func (s *Server) registerTools() {
	s.mcp.AddTool(searchKnowledgeTool, s.handleSearchKnowledge)
	s.mcp.AddTool(askTool, s.handleAsk)
}

// Serve starts the MCP server on stdio. Stdout is used for MCP protocol
// messages; all logging must go to stderr.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcp)
}
