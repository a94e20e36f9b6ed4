package conversation

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sagalabs/saga/internal/llm"
	"github.com/sagalabs/saga/internal/prompts"
	"github.com/sagalabs/saga/internal/tokenizer"
)

type fakeSummarizer struct {
	summary string
	err     error
	calls   []string
}

func (f *fakeSummarizer) Lightweight(_ context.Context, _, user string, _ int) (string, error) {
	f.calls = append(f.calls, user)
	if f.err != nil {
		return "", f.err
	}
	return f.summary, nil
}

type contextFixture struct {
	store *Store
	tok   *tokenizer.Counter
	sum   *fakeSummarizer
	topic *Topic
}

func setupContext(t *testing.T) *contextFixture {
	t.Helper()
	store := setupStore(t)
	topic, err := store.CreateTopic(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	return &contextFixture{
		store: store,
		tok:   tokenizer.New(),
		sum:   &fakeSummarizer{summary: "Earlier the user asked about tides."},
		topic: topic,
	}
}

func (fx *contextFixture) manager(budget int) *ContextManager {
	return NewContextManager(fx.tok, fx.sum, fx.store, budget, 128)
}

// cost mirrors the manager's per-message accounting so budgets in tests
// hold under both the real encoding and the fallback estimate.
func (fx *contextFixture) cost(msgs ...llm.Message) int {
	total := 0
	for _, m := range msgs {
		total += fx.tok.Count(string(m.Role)) + fx.tok.Count(m.Content)
	}
	return total
}

func sys(s string) llm.Message  { return llm.Message{Role: llm.RoleSystem, Content: s} }
func user(s string) llm.Message { return llm.Message{Role: llm.RoleUser, Content: s} }
func asst(s string) llm.Message { return llm.Message{Role: llm.RoleAssistant, Content: s} }

func TestAssembleEmptyDialog(t *testing.T) {
	fx := setupContext(t)
	m := fx.manager(1000)

	got, err := m.Assemble(context.Background(), fx.topic, []llm.Message{sys("You are an assistant.")})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if len(got.Messages) != 1 || got.Messages[0].Role != llm.RoleSystem {
		t.Errorf("messages = %+v, want system only", got.Messages)
	}
	if len(fx.sum.calls) != 0 {
		t.Error("summarizer called with no history")
	}
}

func TestAssembleEverythingFits(t *testing.T) {
	fx := setupContext(t)
	msgs := []llm.Message{
		sys("helper"),
		user("first question"),
		asst("first answer"),
		user("second question"),
	}
	m := fx.manager(fx.cost(msgs...) + 10)

	got, err := m.Assemble(context.Background(), fx.topic, msgs)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if len(got.Messages) != 4 {
		t.Fatalf("message count = %d, want 4", len(got.Messages))
	}
	if got.Summarized {
		t.Error("summarized despite everything fitting")
	}
	if got.Messages[3].Content != "second question" {
		t.Errorf("last message = %q", got.Messages[3].Content)
	}
	if got.RequestTokens != fx.cost(msgs...) {
		t.Errorf("request tokens = %d, want %d", got.RequestTokens, fx.cost(msgs...))
	}
}

func TestAssembleDropsOldestAndSummarizes(t *testing.T) {
	fx := setupContext(t)
	system := sys("helper")
	turn1u, turn1a := user("the oldest question about tides"), asst("the oldest tide answer")
	turn2u, turn2a := user("a newer question"), asst("a newer answer")
	latest := user("the latest question")

	// Exactly fits system, the latest user turn, and the second turn.
	budget := fx.cost(system, latest, turn2u, turn2a)
	m := fx.manager(budget)

	got, err := m.Assemble(context.Background(), fx.topic,
		[]llm.Message{system, turn1u, turn1a, turn2u, turn2a, latest})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	if !got.Summarized {
		t.Fatal("expected the oldest turn to be summarized")
	}
	if len(fx.sum.calls) != 1 {
		t.Fatalf("summarizer calls = %d, want 1", len(fx.sum.calls))
	}
	if !strings.Contains(fx.sum.calls[0], "user: the oldest question about tides") ||
		!strings.Contains(fx.sum.calls[0], "assistant: the oldest tide answer") {
		t.Errorf("summary input missing dropped turns: %q", fx.sum.calls[0])
	}
	if strings.Contains(fx.sum.calls[0], "a newer question") {
		t.Errorf("summary input contains kept turns: %q", fx.sum.calls[0])
	}

	want := []string{"helper", "a newer question", "a newer answer", "the latest question"}
	if len(got.Messages) != len(want) {
		t.Fatalf("message count = %d, want %d", len(got.Messages), len(want))
	}
	for i := 1; i < len(want); i++ {
		if got.Messages[i].Content != want[i] {
			t.Errorf("message[%d] = %q, want %q", i, got.Messages[i].Content, want[i])
		}
	}
	if !strings.Contains(got.Messages[0].Content, prompts.ContextMarker) ||
		!strings.Contains(got.Messages[0].Content, "tides") {
		t.Errorf("system message missing summary block: %q", got.Messages[0].Content)
	}

	saved, err := fx.store.GetTopic(context.Background(), fx.topic.ID)
	if err != nil {
		t.Fatal(err)
	}
	if saved.Summary != fx.sum.summary {
		t.Errorf("persisted summary = %q, want %q", saved.Summary, fx.sum.summary)
	}
}

func TestAssembleFoldsPreviousSummary(t *testing.T) {
	fx := setupContext(t)
	fx.topic.Summary = "The user introduced themselves."
	if err := fx.store.SetSummary(context.Background(), fx.topic.ID, fx.topic.Summary); err != nil {
		t.Fatal(err)
	}

	system := sys("helper")
	old := user("an old question that will be dropped")
	latest := user("latest")
	m := fx.manager(fx.cost(system, latest))

	if _, err := m.Assemble(context.Background(), fx.topic, []llm.Message{system, old, latest}); err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if len(fx.sum.calls) != 1 {
		t.Fatalf("summarizer calls = %d, want 1", len(fx.sum.calls))
	}
	if !strings.Contains(fx.sum.calls[0], "The user introduced themselves.") {
		t.Errorf("previous summary not folded into prompt: %q", fx.sum.calls[0])
	}
}

func TestAssembleSummarizerFailureKeepsOldSummary(t *testing.T) {
	fx := setupContext(t)
	fx.sum.err = errors.New("model offline")
	fx.topic.Summary = "old rolling summary"
	if err := fx.store.SetSummary(context.Background(), fx.topic.ID, fx.topic.Summary); err != nil {
		t.Fatal(err)
	}

	system := sys("helper")
	old := user("dropped question")
	latest := user("latest")
	m := fx.manager(fx.cost(system, latest))

	got, err := m.Assemble(context.Background(), fx.topic, []llm.Message{system, old, latest})
	if err != nil {
		t.Fatalf("Assemble returned error on summarizer failure: %v", err)
	}
	if got.Summarized {
		t.Error("Summarized = true despite failure")
	}
	if !strings.Contains(got.Messages[0].Content, "old rolling summary") {
		t.Errorf("old summary not carried: %q", got.Messages[0].Content)
	}
	saved, err := fx.store.GetTopic(context.Background(), fx.topic.ID)
	if err != nil {
		t.Fatal(err)
	}
	if saved.Summary != "old rolling summary" {
		t.Errorf("persisted summary = %q, want unchanged", saved.Summary)
	}
}

func TestAssembleLatestAlwaysKept(t *testing.T) {
	fx := setupContext(t)
	m := fx.manager(1)

	latest := user("the question that must survive")
	got, err := m.Assemble(context.Background(), fx.topic,
		[]llm.Message{sys("helper"), user("old one"), asst("old answer"), latest})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	last := got.Messages[len(got.Messages)-1]
	if last.Content != "the question that must survive" {
		t.Errorf("last message = %q", last.Content)
	}
	for _, msg := range got.Messages {
		if msg.Content == "old one" || msg.Content == "old answer" {
			t.Errorf("dropped turn still present: %q", msg.Content)
		}
	}
}

func TestAssembleBudgetHonored(t *testing.T) {
	fx := setupContext(t)
	system := sys("helper")
	latest := user("latest")
	turns := []llm.Message{
		user("one"), asst("two"), user("three"), asst("four"),
	}
	budget := fx.cost(system, latest) + fx.cost(turns[2], turns[3])
	m := fx.manager(budget)

	msgs := append(append([]llm.Message{system}, turns...), latest)
	got, err := m.Assemble(context.Background(), fx.topic, msgs)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	kept := fx.cost(got.Messages[1:]...)
	if kept+fx.cost(system) > budget {
		t.Errorf("kept dialog exceeds budget: %d > %d", kept+fx.cost(system), budget)
	}
}
