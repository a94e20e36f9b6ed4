package prompts

import (
	"errors"
	"strings"
	"testing"

	"github.com/sagalabs/saga/internal/db"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	s, err := NewStore(database)
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	return s
}

func TestSeededDefaults(t *testing.T) {
	s := setupStore(t)

	sys, err := s.Get("default_assistant")
	if err != nil {
		t.Fatalf("getting seeded system prompt: %v", err)
	}
	if sys.PromptType != TypeSystem {
		t.Errorf("prompt type = %q, want %q", sys.PromptType, TypeSystem)
	}

	chat, err := s.Get("default_chitchat")
	if err != nil {
		t.Fatalf("getting seeded chitchat prompt: %v", err)
	}
	if chat.PromptType != TypeChitchat {
		t.Errorf("prompt type = %q, want %q", chat.PromptType, TypeChitchat)
	}
}

func TestSeedIdempotent(t *testing.T) {
	s := setupStore(t)
	if err := s.seed(); err != nil {
		t.Fatalf("second seed: %v", err)
	}
	all, err := s.List()
	if err != nil {
		t.Fatalf("listing prompts: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("prompt count = %d, want 2", len(all))
	}
}

func TestCreateUpdateDelete(t *testing.T) {
	s := setupStore(t)

	p := &RolePrompt{
		Name:           "reviewer",
		DisplayName:    "Code Reviewer",
		RoleDefinition: "# Role\nYou review Go code.",
	}
	if err := s.Create(p); err != nil {
		t.Fatalf("creating prompt: %v", err)
	}
	if p.PromptType != TypeCustom {
		t.Errorf("prompt type defaulted to %q, want %q", p.PromptType, TypeCustom)
	}

	if err := s.Create(&RolePrompt{Name: "reviewer"}); !errors.Is(err, ErrExists) {
		t.Errorf("duplicate create error = %v, want ErrExists", err)
	}

	p.Rules = "- Be specific."
	if err := s.Update(p); err != nil {
		t.Fatalf("updating prompt: %v", err)
	}
	got, err := s.Get("reviewer")
	if err != nil {
		t.Fatalf("getting prompt: %v", err)
	}
	if got.Rules != "- Be specific." {
		t.Errorf("rules = %q after update", got.Rules)
	}

	if err := s.Delete("reviewer"); err != nil {
		t.Fatalf("deleting prompt: %v", err)
	}
	if _, err := s.Get("reviewer"); !errors.Is(err, ErrNotFound) {
		t.Errorf("get after delete error = %v, want ErrNotFound", err)
	}
}

func TestSeededPromptsCannotBeDeleted(t *testing.T) {
	s := setupStore(t)
	if err := s.Delete("default_assistant"); !errors.Is(err, ErrNotFound) {
		t.Errorf("deleting seeded prompt error = %v, want ErrNotFound", err)
	}
	if _, err := s.Get("default_assistant"); err != nil {
		t.Errorf("seeded prompt missing after delete attempt: %v", err)
	}
}

func TestSetActiveIsExclusive(t *testing.T) {
	s := setupStore(t)
	if err := s.Create(&RolePrompt{Name: "custom_a", RoleDefinition: "a"}); err != nil {
		t.Fatal(err)
	}
	if err := s.SetActive("custom_a"); err != nil {
		t.Fatalf("activating custom_a: %v", err)
	}
	if err := s.SetActive("default_assistant"); err != nil {
		t.Fatalf("activating default_assistant: %v", err)
	}

	all, err := s.List()
	if err != nil {
		t.Fatal(err)
	}
	var active []string
	for _, p := range all {
		if p.IsActive {
			active = append(active, p.Name)
		}
	}
	if len(active) != 1 || active[0] != "default_assistant" {
		t.Errorf("active prompts = %v, want [default_assistant]", active)
	}

	if err := s.SetActive("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("activating unknown prompt error = %v, want ErrNotFound", err)
	}
}

func TestActiveFallsBackToType(t *testing.T) {
	s := setupStore(t)

	p, err := s.Active(TypeChitchat)
	if err != nil {
		t.Fatalf("active with fallback: %v", err)
	}
	if p.Name != "default_chitchat" {
		t.Errorf("fallback prompt = %q, want default_chitchat", p.Name)
	}

	if err := s.SetActive("default_assistant"); err != nil {
		t.Fatal(err)
	}
	p, err = s.Active(TypeChitchat)
	if err != nil {
		t.Fatal(err)
	}
	if p.Name != "default_assistant" {
		t.Errorf("active prompt = %q, want default_assistant", p.Name)
	}
}

func TestBackgroundKnowledge(t *testing.T) {
	s := setupStore(t)

	got, err := s.BackgroundKnowledge()
	if err != nil {
		t.Fatalf("reading empty background knowledge: %v", err)
	}
	if got != "" {
		t.Errorf("background knowledge = %q, want empty", got)
	}

	if err := s.SetBackgroundKnowledge("Works at a bakery."); err != nil {
		t.Fatalf("saving background knowledge: %v", err)
	}
	if err := s.SetBackgroundKnowledge("Works at a bakery in Lyon."); err != nil {
		t.Fatalf("overwriting background knowledge: %v", err)
	}
	got, err = s.BackgroundKnowledge()
	if err != nil {
		t.Fatal(err)
	}
	if got != "Works at a bakery in Lyon." {
		t.Errorf("background knowledge = %q", got)
	}
}

func TestRenderSkipsEmptySections(t *testing.T) {
	p := &RolePrompt{
		RoleDefinition: "# Role\nAssistant.",
		Rules:          "- Be brief.",
	}
	out := p.Render()
	if !strings.Contains(out, "# Role") || !strings.Contains(out, "## Rules") {
		t.Errorf("render missing sections: %q", out)
	}
	if strings.Contains(out, "## Skills") || strings.Contains(out, "## Profile") {
		t.Errorf("render includes empty sections: %q", out)
	}
}

func TestBuildAnswerSystem(t *testing.T) {
	out := BuildAnswerSystem("You are an assistant.", []Snippet{
		{Index: 1, Source: "notes.md", Content: "Paris is the capital of France."},
		{Index: 2, Source: "trip.md", Content: "The flight leaves at 9am."},
	}, "Prefers metric units.")

	for _, want := range []string{"[source-1]", "[source-2]", "notes.md", "Paris is the capital", "Prefers metric units."} {
		if !strings.Contains(out, want) {
			t.Errorf("answer system missing %q", want)
		}
	}
}

func TestAppendSummary(t *testing.T) {
	base := "You are an assistant."
	withSummary := AppendSummary(base, "User asked about Paris.")
	if !strings.Contains(withSummary, ContextMarker) {
		t.Errorf("summary marker missing: %q", withSummary)
	}
	again := AppendSummary(withSummary, "Something else.")
	if strings.Count(again, ContextMarker) != 1 {
		t.Errorf("summary appended twice: %q", again)
	}
	if got := AppendSummary(base, ""); got != base {
		t.Errorf("empty summary changed prompt: %q", got)
	}
}
