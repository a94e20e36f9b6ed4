// Package conversation manages chat topics, their message history, and
// the token-budgeted context sent to the model.
package conversation

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sagalabs/saga/internal/db"
)

// ErrNotFound is returned when a topic or message does not exist.
var ErrNotFound = errors.New("conversation not found")

// DefaultTitle is the placeholder title of a fresh topic, replaced after
// the first exchange.
const DefaultTitle = "New conversation"

// Topic is one conversation with its knowledge base selection and
// rolling summary.
type Topic struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Summary        string    `json:"summary"`
	KnowledgeBases []string  `json:"knowledge_bases"`
	CreatedAt      time.Time `json:"created_at"`
	LastUpdatedAt  time.Time `json:"last_updated_at"`
}

// Message is one stored chat turn.
type Message struct {
	ID        int64     `json:"id"`
	TopicID   string    `json:"topic_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists topics and messages.
type Store struct {
	db *db.DB
}

// NewStore creates a conversation store.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// CreateTopic starts a new conversation scoped to the given knowledge
// bases. An empty list means casual chat without retrieval.
func (s *Store) CreateTopic(ctx context.Context, kbIDs []string) (*Topic, error) {
	id := uuid.NewString()
	kbs, err := marshalKBs(kbIDs)
	if err != nil {
		return nil, err
	}
	_, err = s.db.Exec(`INSERT INTO conversation_topics (id, knowledge_bases) VALUES (?, ?)`, id, kbs)
	if err != nil {
		return nil, fmt.Errorf("creating topic: %w", err)
	}
	return s.GetTopic(ctx, id)
}

const topicColumns = `id, title, summary, knowledge_bases, created_at, last_updated_at`

// GetTopic returns one topic by id.
func (s *Store) GetTopic(ctx context.Context, id string) (*Topic, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+topicColumns+` FROM conversation_topics WHERE id = ?`, id)
	return scanTopic(row)
}

// ListTopics returns all topics, most recently active first.
func (s *Store) ListTopics(ctx context.Context) ([]Topic, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+topicColumns+` FROM conversation_topics ORDER BY last_updated_at DESC, created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing topics: %w", err)
	}
	defer rows.Close()

	var out []Topic
	for rows.Next() {
		t, err := scanTopic(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// SetTitle replaces a topic's title.
func (s *Store) SetTitle(ctx context.Context, id, title string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE conversation_topics SET title = ? WHERE id = ?`, title, id)
	if err != nil {
		return fmt.Errorf("updating title: %w", err)
	}
	return requireTopic(res, id)
}

// SetKnowledgeBases replaces a topic's knowledge base selection and
// clears the rolling summary, since the conversation's grounding changed.
func (s *Store) SetKnowledgeBases(ctx context.Context, id string, kbIDs []string) error {
	kbs, err := marshalKBs(kbIDs)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE conversation_topics SET knowledge_bases = ?, summary = '' WHERE id = ?`, kbs, id)
	if err != nil {
		return fmt.Errorf("updating knowledge bases: %w", err)
	}
	return requireTopic(res, id)
}

// SetSummary replaces a topic's rolling summary.
func (s *Store) SetSummary(ctx context.Context, id, summary string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE conversation_topics SET summary = ? WHERE id = ?`, summary, id)
	if err != nil {
		return fmt.Errorf("updating summary: %w", err)
	}
	return requireTopic(res, id)
}

// ClearSummary drops a topic's rolling summary.
func (s *Store) ClearSummary(ctx context.Context, id string) error {
	return s.SetSummary(ctx, id, "")
}

// DeleteTopic removes a topic and its messages.
func (s *Store) DeleteTopic(ctx context.Context, id string) error {
	res, err := s.db.ExecRetry(`DELETE FROM conversation_topics WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting topic: %w", err)
	}
	return requireTopic(res, id)
}

// AddMessage appends a message to a topic and bumps its activity time.
func (s *Store) AddMessage(ctx context.Context, topicID, role, content string) (*Message, error) {
	res, err := s.db.ExecContext(ctx, `INSERT INTO chat_messages (topic_id, role, content) VALUES (?, ?, ?)`,
		topicID, role, content)
	if err != nil {
		return nil, fmt.Errorf("adding message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	if _, err := s.db.ExecContext(ctx, `UPDATE conversation_topics SET last_updated_at = datetime('now') WHERE id = ?`, topicID); err != nil {
		return nil, fmt.Errorf("touching topic: %w", err)
	}

	row := s.db.QueryRowContext(ctx, `SELECT id, topic_id, role, content, created_at FROM chat_messages WHERE id = ?`, id)
	return scanMessage(row)
}

// Messages returns a topic's messages in chronological order.
func (s *Store) Messages(ctx context.Context, topicID string) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, topic_id, role, content, created_at FROM chat_messages WHERE topic_id = ? ORDER BY id`, topicID)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

// Stats holds conversation-wide counts.
type Stats struct {
	Topics   int `json:"topics"`
	Messages int `json:"messages"`
}

// Stats returns store-wide counts.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	var st Stats
	row := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM conversation_topics),
			(SELECT COUNT(*) FROM chat_messages)`)
	if err := row.Scan(&st.Topics, &st.Messages); err != nil {
		return nil, fmt.Errorf("reading conversation stats: %w", err)
	}
	return &st, nil
}

// TopicStats holds message volume for one topic. Rounds counts completed
// exchanges, one per assistant reply.
type TopicStats struct {
	TopicID  string `json:"topic_id"`
	Messages int    `json:"messages"`
	Rounds   int    `json:"rounds"`
}

// TopicStats returns message counts for a single topic.
func (s *Store) TopicStats(ctx context.Context, topicID string) (*TopicStats, error) {
	if _, err := s.GetTopic(ctx, topicID); err != nil {
		return nil, err
	}
	st := TopicStats{TopicID: topicID}
	row := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM chat_messages WHERE topic_id = ?),
			(SELECT COUNT(*) FROM chat_messages WHERE topic_id = ? AND role = 'assistant')`,
		topicID, topicID)
	if err := row.Scan(&st.Messages, &st.Rounds); err != nil {
		return nil, fmt.Errorf("reading topic stats: %w", err)
	}
	return &st, nil
}

func marshalKBs(kbIDs []string) (string, error) {
	if kbIDs == nil {
		kbIDs = []string{}
	}
	data, err := json.Marshal(kbIDs)
	if err != nil {
		return "", fmt.Errorf("encoding knowledge base list: %w", err)
	}
	return string(data), nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTopic(row scanner) (*Topic, error) {
	var t Topic
	var kbs string
	err := row.Scan(&t.ID, &t.Title, &t.Summary, &kbs, &t.CreatedAt, &t.LastUpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning topic: %w", err)
	}
	if err := json.Unmarshal([]byte(kbs), &t.KnowledgeBases); err != nil {
		return nil, fmt.Errorf("decoding knowledge base list: %w", err)
	}
	return &t, nil
}

func scanMessage(row scanner) (*Message, error) {
	var m Message
	err := row.Scan(&m.ID, &m.TopicID, &m.Role, &m.Content, &m.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning message: %w", err)
	}
	return &m, nil
}

func requireTopic(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("topic %s: %w", id, ErrNotFound)
	}
	return nil
}
