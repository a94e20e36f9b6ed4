package mcp

import (
	"context"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/sagalabs/saga/internal/db"
	"github.com/sagalabs/saga/internal/knowledge"
	"github.com/sagalabs/saga/internal/llm"
	"github.com/sagalabs/saga/internal/prompts"
	"github.com/sagalabs/saga/internal/retriever"
)

type mockSearcher struct {
	results []retriever.Result
	kbIDs   []string
}

func (m *mockSearcher) Search(_ context.Context, _ string, kbIDs []string) ([]retriever.Result, error) {
	m.kbIDs = kbIDs
	return m.results, nil
}

type mockCompleter struct {
	answer string
	last   llm.CompletionRequest
}

func (m *mockCompleter) Complete(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	m.last = req
	return &llm.CompletionResponse{Content: m.answer}, nil
}

type mcpFixture struct {
	store     *knowledge.Store
	searcher  *mockSearcher
	completer *mockCompleter
	srv       *Server
	kbID      string
}

func setupMCP(t *testing.T) *mcpFixture {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { database.Close() })

	store := knowledge.NewStore(database)
	promptStore, err := prompts.NewStore(database)
	if err != nil {
		t.Fatal(err)
	}
	kb, err := store.CreateKB(context.Background(), "notes", "", "openai_test")
	if err != nil {
		t.Fatal(err)
	}

	searcher := &mockSearcher{results: []retriever.Result{
		{Tag: "source-1", Source: "tides.md", FileID: "f1", Content: "Tides follow the moon."},
	}}
	completer := &mockCompleter{answer: "Because of the moon. [source-1]"}
	srv := NewServer(store, searcher, completer, promptStore)
	return &mcpFixture{store: store, searcher: searcher, completer: completer, srv: srv, kbID: kb.ID}
}

func callRequest(name string, args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) == 0 {
		t.Fatal("empty tool result")
	}
	text, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("unexpected content type %T", res.Content[0])
	}
	return text.Text
}

func TestToolDefinitions(t *testing.T) {
	if searchKnowledgeTool.Name != "search_knowledge" {
		t.Errorf("tool name = %q", searchKnowledgeTool.Name)
	}
	if askTool.Name != "ask" {
		t.Errorf("tool name = %q", askTool.Name)
	}
}

func TestSearchKnowledge(t *testing.T) {
	fx := setupMCP(t)

	res, err := fx.srv.handleSearchKnowledge(context.Background(),
		callRequest("search_knowledge", map[string]any{"query": "tides"}))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if res.IsError {
		t.Fatalf("tool error: %s", resultText(t, res))
	}

	text := resultText(t, res)
	if !strings.Contains(text, "source-1") || !strings.Contains(text, "tides.md") {
		t.Errorf("result missing citation: %q", text)
	}
	if !strings.Contains(text, "Tides follow the moon.") {
		t.Errorf("result missing passage: %q", text)
	}
	if len(fx.searcher.kbIDs) != 1 || fx.searcher.kbIDs[0] != fx.kbID {
		t.Errorf("searched bases = %v, want all bases by default", fx.searcher.kbIDs)
	}
}

func TestSearchKnowledgeMissingQuery(t *testing.T) {
	fx := setupMCP(t)
	res, err := fx.srv.handleSearchKnowledge(context.Background(),
		callRequest("search_knowledge", map[string]any{}))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !res.IsError {
		t.Error("expected tool error for missing query")
	}
}

func TestSearchKnowledgeByBaseName(t *testing.T) {
	fx := setupMCP(t)
	res, err := fx.srv.handleSearchKnowledge(context.Background(),
		callRequest("search_knowledge", map[string]any{"query": "tides", "knowledge_base": "NOTES"}))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if res.IsError {
		t.Fatalf("tool error: %s", resultText(t, res))
	}
	if len(fx.searcher.kbIDs) != 1 || fx.searcher.kbIDs[0] != fx.kbID {
		t.Errorf("searched bases = %v", fx.searcher.kbIDs)
	}

	res, err = fx.srv.handleSearchKnowledge(context.Background(),
		callRequest("search_knowledge", map[string]any{"query": "tides", "knowledge_base": "nonexistent"}))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !res.IsError {
		t.Error("expected tool error for unknown knowledge base")
	}
}

func TestSearchKnowledgeNoResults(t *testing.T) {
	fx := setupMCP(t)
	fx.searcher.results = nil
	res, err := fx.srv.handleSearchKnowledge(context.Background(),
		callRequest("search_knowledge", map[string]any{"query": "tides"}))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if res.IsError {
		t.Fatal("no results should not be a tool error")
	}
	if !strings.Contains(resultText(t, res), "No relevant passages") {
		t.Errorf("result = %q", resultText(t, res))
	}
}

func TestAsk(t *testing.T) {
	fx := setupMCP(t)

	res, err := fx.srv.handleAsk(context.Background(),
		callRequest("ask", map[string]any{"question": "why do tides happen?"}))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if res.IsError {
		t.Fatalf("tool error: %s", resultText(t, res))
	}

	text := resultText(t, res)
	if !strings.Contains(text, "Because of the moon.") {
		t.Errorf("answer missing: %q", text)
	}
	if !strings.Contains(text, "Sources:") || !strings.Contains(text, "tides.md") {
		t.Errorf("sources missing: %q", text)
	}

	system := fx.completer.last.Messages[0]
	if system.Role != llm.RoleSystem {
		t.Fatalf("first message role = %q", system.Role)
	}
	if !strings.Contains(system.Content, "[source-1]") || !strings.Contains(system.Content, "Tides follow the moon.") {
		t.Errorf("system prompt missing snippet: %q", system.Content)
	}
	last := fx.completer.last.Messages[len(fx.completer.last.Messages)-1]
	if last.Role != llm.RoleUser || last.Content != "why do tides happen?" {
		t.Errorf("user message = %+v", last)
	}
}
