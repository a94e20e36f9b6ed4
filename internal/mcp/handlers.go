package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/sagalabs/saga/internal/llm"
	"github.com/sagalabs/saga/internal/prompts"
	"github.com/sagalabs/saga/internal/retriever"
)

// resolveKBs turns the optional knowledge_base argument into a list of
// knowledge base ids. Empty means every base.
func (s *Server) resolveKBs(ctx context.Context, arg string) ([]string, error) {
	kbs, err := s.store.ListKBs(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing knowledge bases: %v", err)
	}
	if arg == "" {
		ids := make([]string, len(kbs))
		for i, kb := range kbs {
			ids[i] = kb.ID
		}
		return ids, nil
	}
	for _, kb := range kbs {
		if kb.ID == arg || strings.EqualFold(kb.Name, arg) {
			return []string{kb.ID}, nil
		}
	}
	return nil, fmt.Errorf("knowledge base %q not found", arg)
}

// handleSearchKnowledge performs hybrid search over the knowledge bases.
func (s *Server) handleSearchKnowledge(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: query"), nil
	}

	limit := request.GetInt("limit", 5)
	if limit <= 0 {
		limit = 5
	}

	kbIDs, err := s.resolveKBs(ctx, request.GetString("knowledge_base", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(kbIDs) == 0 {
		return mcp.NewToolResultText("No knowledge bases exist yet. Create one and upload documents first."), nil
	}

	results, err := s.searcher.Search(ctx, query, kbIDs)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}
	if len(results) == 0 {
		return mcp.NewToolResultText("No relevant passages found."), nil
	}
	if len(results) > limit {
		results = results[:limit]
	}

	return mcp.NewToolResultText(formatResults(results)), nil
}

// handleAsk answers a question grounded in retrieved passages.
func (s *Server) handleAsk(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := request.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: question"), nil
	}

	kbIDs, err := s.resolveKBs(ctx, request.GetString("knowledge_base", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(kbIDs) == 0 {
		return mcp.NewToolResultText("No knowledge bases exist yet. Create one and upload documents first."), nil
	}

	results, err := s.searcher.Search(ctx, question, kbIDs)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}

	role, err := s.prompts.Active(prompts.TypeSystem)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("loading role prompt: %v", err)), nil
	}
	snippets := make([]prompts.Snippet, len(results))
	for i, r := range results {
		snippets[i] = r.Snippet(i + 1)
	}

	resp, err := s.completer.Complete(ctx, llm.CompletionRequest{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: prompts.BuildAnswerSystem(role.Render(), snippets, "")},
			{Role: llm.RoleUser, Content: question},
		},
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("completion failed: %v", err)), nil
	}

	answer := strings.TrimSpace(llm.StripThinking(resp.Content))
	if len(results) > 0 {
		answer += "\n\n" + formatSources(results)
	}
	return mcp.NewToolResultText(answer), nil
}

// formatResults renders search hits as text for agent consumption.
func formatResults(results []retriever.Result) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d passage(s):\n", len(results))
	for _, r := range results {
		fmt.Fprintf(&sb, "\n--- %s (%s) ---\n", r.Tag, r.Source)
		sb.WriteString(r.Content)
		sb.WriteString("\n")
	}
	return sb.String()
}

// formatSources renders the citation list appended to answers.
func formatSources(results []retriever.Result) string {
	var sb strings.Builder
	sb.WriteString("Sources:\n")
	for _, r := range results {
		fmt.Fprintf(&sb, "- %s: %s\n", r.Tag, r.Source)
	}
	return sb.String()
}
