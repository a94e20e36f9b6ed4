package conversation

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/sagalabs/saga/internal/llm"
	"github.com/sagalabs/saga/internal/prompts"
	"github.com/sagalabs/saga/internal/tokenizer"
)

// Summarizer is the model call used to compress dropped history.
type Summarizer interface {
	Lightweight(ctx context.Context, system, user string, maxTokens int) (string, error)
}

// ContextManager fits a conversation into the model's token budget.
// History that does not fit is compressed into the topic's rolling
// summary instead of being silently dropped.
type ContextManager struct {
	tok        *tokenizer.Counter
	summarizer Summarizer
	store      *Store

	Budget           int
	SummaryMaxTokens int
}

// NewContextManager creates a ContextManager.
func NewContextManager(tok *tokenizer.Counter, summarizer Summarizer, store *Store, budget, summaryMax int) *ContextManager {
	if budget <= 0 {
		budget = 8192
	}
	if summaryMax <= 0 {
		summaryMax = 512
	}
	return &ContextManager{
		tok:              tok,
		summarizer:       summarizer,
		store:            store,
		Budget:           budget,
		SummaryMaxTokens: summaryMax,
	}
}

// Assembled is the context ready to send to the model.
type Assembled struct {
	Messages      []llm.Message
	RequestTokens int
	Summarized    bool
}

// Assemble builds the message list for one completion. System messages
// are always kept, as is the latest user message. Older dialog turns are
// kept newest-first while they fit the budget; the rest is folded into
// the topic's rolling summary, which rides along inside the first system
// message.
func (m *ContextManager) Assemble(ctx context.Context, topic *Topic, msgs []llm.Message) (*Assembled, error) {
	var system, dialog []llm.Message
	for _, msg := range msgs {
		if msg.Role == llm.RoleSystem {
			system = append(system, msg)
		} else {
			dialog = append(dialog, msg)
		}
	}
	if len(dialog) == 0 {
		return &Assembled{Messages: system, RequestTokens: m.countAll(system)}, nil
	}

	latest := dialog[len(dialog)-1]
	past := dialog[:len(dialog)-1]

	used := m.countAll(system) + m.count(latest)
	kept := make([]llm.Message, 0, len(past))
	cut := len(past)
	for i := len(past) - 1; i >= 0; i-- {
		cost := m.count(past[i])
		if used+cost > m.Budget {
			break
		}
		used += cost
		cut = i
	}
	kept = append(kept, past[cut:]...)
	dropped := past[:cut]

	summary := topic.Summary
	summarized := false
	if len(dropped) > 0 {
		newSummary, err := m.summarize(ctx, summary, dropped)
		if err != nil {
			log.Printf("conversation: summarizing %d dropped turns failed, keeping old summary: %v", len(dropped), err)
		} else {
			summary = newSummary
			summarized = true
			if err := m.store.SetSummary(ctx, topic.ID, summary); err != nil {
				log.Printf("conversation: persisting summary for topic %s: %v", topic.ID, err)
			}
		}
	}

	if summary != "" && len(system) > 0 {
		system[0].Content = prompts.AppendSummary(system[0].Content, summary)
	}

	final := make([]llm.Message, 0, len(system)+len(kept)+1)
	final = append(final, system...)
	final = append(final, kept...)
	final = append(final, latest)
	return &Assembled{
		Messages:      final,
		RequestTokens: m.countAll(final),
		Summarized:    summarized,
	}, nil
}

// summarize folds the dropped turns and any previous summary into one
// fresh summary.
func (m *ContextManager) summarize(ctx context.Context, previous string, dropped []llm.Message) (string, error) {
	var sb strings.Builder
	for _, msg := range dropped {
		fmt.Fprintf(&sb, "%s: %s\n", msg.Role, msg.Content)
	}
	system, user := prompts.BuildSummaryPrompt(previous, sb.String())
	return m.summarizer.Lightweight(ctx, system, user, m.SummaryMaxTokens)
}

func (m *ContextManager) count(msg llm.Message) int {
	return m.tok.Count(string(msg.Role)) + m.tok.Count(msg.Content)
}

func (m *ContextManager) countAll(msgs []llm.Message) int {
	total := 0
	for _, msg := range msgs {
		total += m.count(msg)
	}
	return total
}
