package prompts

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/sagalabs/saga/internal/db"
)

var (
	// ErrNotFound is returned when a role prompt does not exist.
	ErrNotFound = errors.New("prompt not found")
	// ErrExists is returned when a role prompt name is already taken.
	ErrExists = errors.New("prompt already exists")
)

// Prompt types. The system and chitchat prompts are seeded defaults;
// custom prompts are user-created.
const (
	TypeSystem   = "system"
	TypeChitchat = "chitchat"
	TypeCustom   = "custom"
)

// RolePrompt is a structured role definition stored in the database and
// rendered into a system prompt.
type RolePrompt struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	DisplayName    string `json:"display_name"`
	Description    string `json:"description"`
	PromptType     string `json:"prompt_type"`
	RoleDefinition string `json:"role_definition"`
	Profile        string `json:"profile"`
	Skills         string `json:"skills"`
	Rules          string `json:"rules"`
	Workflows      string `json:"workflows"`
	OutputFormat   string `json:"output_format"`
	IsActive       bool   `json:"is_active"`
}

// Render assembles the structured sections into prompt text. Empty
// sections are skipped.
func (p *RolePrompt) Render() string {
	var sb strings.Builder
	section := func(heading, body string) {
		if body == "" {
			return
		}
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		if heading != "" {
			sb.WriteString(heading)
			sb.WriteString("\n")
		}
		sb.WriteString(body)
	}
	section("", p.RoleDefinition)
	section("## Profile", p.Profile)
	section("## Skills", p.Skills)
	section("## Rules", p.Rules)
	section("## Workflows", p.Workflows)
	section("## Output Format", p.OutputFormat)
	return sb.String()
}

// Store persists role prompts and the background knowledge blob.
type Store struct {
	db *db.DB
}

// NewStore creates a prompt store and seeds the default system and
// chitchat prompts when they are missing.
func NewStore(database *db.DB) (*Store, error) {
	s := &Store{db: database}
	if err := s.seed(); err != nil {
		return nil, fmt.Errorf("seeding default prompts: %w", err)
	}
	return s, nil
}

const promptColumns = `id, name, display_name, description, prompt_type,
	role_definition, profile, skills, rules, workflows, output_format, is_active`

// Get returns a role prompt by name.
func (s *Store) Get(name string) (*RolePrompt, error) {
	row := s.db.QueryRow(`SELECT `+promptColumns+` FROM system_prompts WHERE name = ?`, name)
	return scanPrompt(row)
}

// List returns all role prompts ordered by type then name.
func (s *Store) List() ([]*RolePrompt, error) {
	rows, err := s.db.Query(`SELECT ` + promptColumns + ` FROM system_prompts ORDER BY prompt_type, name`)
	if err != nil {
		return nil, fmt.Errorf("listing prompts: %w", err)
	}
	defer rows.Close()

	var out []*RolePrompt
	for rows.Next() {
		p, err := scanPrompt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Create inserts a new custom role prompt.
func (s *Store) Create(p *RolePrompt) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.PromptType == "" {
		p.PromptType = TypeCustom
	}
	_, err := s.db.Exec(`INSERT INTO system_prompts
		(id, name, display_name, description, prompt_type, role_definition, profile, skills, rules, workflows, output_format, is_active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.DisplayName, p.Description, p.PromptType,
		p.RoleDefinition, p.Profile, p.Skills, p.Rules, p.Workflows, p.OutputFormat, boolInt(p.IsActive))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("prompt %q: %w", p.Name, ErrExists)
		}
		return fmt.Errorf("creating prompt: %w", err)
	}
	return nil
}

// Update rewrites an existing role prompt's content fields.
func (s *Store) Update(p *RolePrompt) error {
	res, err := s.db.Exec(`UPDATE system_prompts SET
		display_name = ?, description = ?, role_definition = ?, profile = ?,
		skills = ?, rules = ?, workflows = ?, output_format = ?
		WHERE name = ?`,
		p.DisplayName, p.Description, p.RoleDefinition, p.Profile,
		p.Skills, p.Rules, p.Workflows, p.OutputFormat, p.Name)
	if err != nil {
		return fmt.Errorf("updating prompt: %w", err)
	}
	return requireAffected(res, p.Name)
}

// Delete removes a custom role prompt. Seeded prompts cannot be deleted.
func (s *Store) Delete(name string) error {
	res, err := s.db.ExecRetry(`DELETE FROM system_prompts WHERE name = ? AND prompt_type = ?`, name, TypeCustom)
	if err != nil {
		return fmt.Errorf("deleting prompt: %w", err)
	}
	return requireAffected(res, name)
}

// SetActive marks one prompt active and deactivates the rest.
func (s *Store) SetActive(name string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`UPDATE system_prompts SET is_active = 0`); err != nil {
		return fmt.Errorf("deactivating prompts: %w", err)
	}
	res, err := tx.Exec(`UPDATE system_prompts SET is_active = 1 WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("activating prompt: %w", err)
	}
	if err := requireAffected(res, name); err != nil {
		return err
	}
	return tx.Commit()
}

// Active returns the currently active role prompt, preferring the active
// flag and falling back to the seeded prompt of the given type.
func (s *Store) Active(fallbackType string) (*RolePrompt, error) {
	row := s.db.QueryRow(`SELECT ` + promptColumns + ` FROM system_prompts WHERE is_active = 1 LIMIT 1`)
	p, err := scanPrompt(row)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	row = s.db.QueryRow(`SELECT `+promptColumns+` FROM system_prompts WHERE prompt_type = ? LIMIT 1`, fallbackType)
	return scanPrompt(row)
}

// BackgroundKnowledge returns the user's background knowledge blob, or
// the empty string when none is stored.
func (s *Store) BackgroundKnowledge() (string, error) {
	var content string
	err := s.db.QueryRow(`SELECT content FROM background_knowledge WHERE id = 1`).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading background knowledge: %w", err)
	}
	return content, nil
}

// SetBackgroundKnowledge replaces the background knowledge blob.
func (s *Store) SetBackgroundKnowledge(content string) error {
	_, err := s.db.ExecRetry(`INSERT INTO background_knowledge (id, content, last_updated_at)
		VALUES (1, ?, datetime('now'))
		ON CONFLICT(id) DO UPDATE SET content = excluded.content, last_updated_at = excluded.last_updated_at`,
		content)
	if err != nil {
		return fmt.Errorf("saving background knowledge: %w", err)
	}
	return nil
}

func (s *Store) seed() error {
	for _, p := range defaultPrompts() {
		err := s.Create(p)
		if err != nil && !errors.Is(err, ErrExists) {
			return err
		}
	}
	return nil
}

func defaultPrompts() []*RolePrompt {
	return []*RolePrompt{
		{
			Name:        "default_assistant",
			DisplayName: "Knowledge Assistant",
			Description: "Default prompt for knowledge-grounded answers.",
			PromptType:  TypeSystem,
			RoleDefinition: "# Role\nYou are a personal knowledge assistant. You answer questions " +
				"based on the user's own documents and notes.",
			Rules: "- Ground every claim in the provided reference snippets.\n" +
				"- Answer in the language of the question.\n" +
				"- When the snippets are insufficient, say so plainly.",
			OutputFormat: "Concise prose. Use lists only when the question calls for enumeration.",
		},
		{
			Name:        "default_chitchat",
			DisplayName: "Casual Chat",
			Description: "Default prompt for conversations without a knowledge base.",
			PromptType:  TypeChitchat,
			RoleDefinition: "# Role\nYou are a friendly personal assistant. Chat naturally and " +
				"keep answers brief unless asked for detail.",
		},
	}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPrompt(row scanner) (*RolePrompt, error) {
	var p RolePrompt
	var active int
	err := row.Scan(&p.ID, &p.Name, &p.DisplayName, &p.Description, &p.PromptType,
		&p.RoleDefinition, &p.Profile, &p.Skills, &p.Rules, &p.Workflows, &p.OutputFormat, &active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning prompt: %w", err)
	}
	p.IsActive = active != 0
	return &p, nil
}

func requireAffected(res sql.Result, name string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("prompt %q: %w", name, ErrNotFound)
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
