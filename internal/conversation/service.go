package conversation

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/sagalabs/saga/internal/llm"
	"github.com/sagalabs/saga/internal/prompts"
	"github.com/sagalabs/saga/internal/retriever"
)

// Gateway is the slice of the model gateway the chat service needs.
type Gateway interface {
	Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error)
	Lightweight(ctx context.Context, system, user string, maxTokens int) (string, error)
}

// Searcher retrieves knowledge passages for a query.
type Searcher interface {
	Search(ctx context.Context, query string, kbIDs []string) ([]retriever.Result, error)
}

// Service orchestrates one chat turn: retrieval, prompt assembly,
// context budgeting, completion, and persistence.
type Service struct {
	store    *Store
	prompts  *prompts.Store
	searcher Searcher
	gw       Gateway
	ctxmgr   *ContextManager
}

// NewService creates a chat Service.
func NewService(store *Store, promptStore *prompts.Store, searcher Searcher, gw Gateway, ctxmgr *ContextManager) *Service {
	return &Service{store: store, prompts: promptStore, searcher: searcher, gw: gw, ctxmgr: ctxmgr}
}

// Reply is the outcome of one chat turn.
type Reply struct {
	Content       string             `json:"content"`
	Citations     []retriever.Result `json:"citations,omitempty"`
	RequestTokens int                `json:"request_tokens"`
	Title         string             `json:"title,omitempty"`
}

// Chat runs one turn of a conversation. When the topic has knowledge
// bases selected the answer is grounded in retrieved passages; otherwise
// it is casual chat.
func (s *Service) Chat(ctx context.Context, topicID, userMessage string) (*Reply, error) {
	topic, err := s.store.GetTopic(ctx, topicID)
	if err != nil {
		return nil, err
	}

	if _, err := s.store.AddMessage(ctx, topicID, string(llm.RoleUser), userMessage); err != nil {
		return nil, err
	}

	system, citations, err := s.buildSystem(ctx, topic, userMessage)
	if err != nil {
		return nil, err
	}

	history, err := s.history(ctx, topicID)
	if err != nil {
		return nil, err
	}

	msgs := append([]llm.Message{{Role: llm.RoleSystem, Content: system}}, history...)
	assembled, err := s.ctxmgr.Assemble(ctx, topic, msgs)
	if err != nil {
		return nil, err
	}

	resp, err := s.gw.Complete(ctx, llm.CompletionRequest{Messages: assembled.Messages})
	if err != nil {
		return nil, fmt.Errorf("completing chat: %w", err)
	}
	content := strings.TrimSpace(llm.StripThinking(resp.Content))

	if _, err := s.store.AddMessage(ctx, topicID, string(llm.RoleAssistant), content); err != nil {
		return nil, err
	}

	reply := &Reply{
		Content:       content,
		Citations:     citations,
		RequestTokens: assembled.RequestTokens,
	}
	if topic.Title == DefaultTitle {
		reply.Title = s.autoTitle(ctx, topicID, userMessage)
	}
	return reply, nil
}

// buildSystem assembles the system prompt for this turn. With knowledge
// bases selected it retrieves passages and instructs citation; without,
// it uses the chitchat role.
func (s *Service) buildSystem(ctx context.Context, topic *Topic, userMessage string) (string, []retriever.Result, error) {
	background, err := s.prompts.BackgroundKnowledge()
	if err != nil {
		return "", nil, err
	}

	if len(topic.KnowledgeBases) == 0 {
		role, err := s.prompts.Active(prompts.TypeChitchat)
		if err != nil {
			return "", nil, err
		}
		return prompts.BuildChitchatSystem(role.Render(), background), nil, nil
	}

	results, err := s.searcher.Search(ctx, userMessage, topic.KnowledgeBases)
	if err != nil {
		return "", nil, fmt.Errorf("retrieving knowledge: %w", err)
	}
	snippets := make([]prompts.Snippet, len(results))
	for i, r := range results {
		snippets[i] = r.Snippet(i + 1)
	}

	role, err := s.prompts.Active(prompts.TypeSystem)
	if err != nil {
		return "", nil, err
	}
	return prompts.BuildAnswerSystem(role.Render(), snippets, background), results, nil
}

// history converts stored dialog turns to model messages.
func (s *Service) history(ctx context.Context, topicID string) ([]llm.Message, error) {
	stored, err := s.store.Messages(ctx, topicID)
	if err != nil {
		return nil, err
	}
	out := make([]llm.Message, 0, len(stored))
	for _, m := range stored {
		if m.Role == string(llm.RoleSystem) {
			continue
		}
		out = append(out, llm.Message{Role: llm.Role(m.Role), Content: m.Content})
	}
	return out, nil
}

// autoTitle names a fresh topic after its first message. Failures leave
// the placeholder title in place.
func (s *Service) autoTitle(ctx context.Context, topicID, firstMessage string) string {
	title, err := s.gw.Lightweight(ctx, "", prompts.BuildTitlePrompt(firstMessage), 64)
	if err != nil {
		log.Printf("conversation: generating title for topic %s: %v", topicID, err)
		return ""
	}
	title = cleanTitle(title)
	if title == "" {
		return ""
	}
	if err := s.store.SetTitle(ctx, topicID, title); err != nil {
		log.Printf("conversation: saving title for topic %s: %v", topicID, err)
		return ""
	}
	return title
}

// cleanTitle strips quoting and label prefixes models tend to add.
func cleanTitle(s string) string {
	s = strings.TrimSpace(s)
	for _, prefix := range []string{"Title:", "title:", "标题："} {
		s = strings.TrimSpace(strings.TrimPrefix(s, prefix))
	}
	s = strings.Trim(s, "\"'“”「」")
	if line, _, found := strings.Cut(s, "\n"); found {
		s = line
	}
	return strings.TrimSpace(s)
}
