package chat

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("chat: conversation not found")

// Store is the persistence boundary for chat transcripts.
type Store interface {
	InsertConversation(ctx context.Context, c *Conversation) error
	GetConversation(ctx context.Context, user, id uuid.UUID) (*Conversation, error)
	TouchConversation(ctx context.Context, user, id uuid.UUID, at time.Time) error
	ListConversations(ctx context.Context, user uuid.UUID) ([]*Conversation, error)

	InsertMessage(ctx context.Context, m *ChatMessage) error
	// RecentMessages returns the newest limit messages, oldest first.
	// limit <= 0 returns everything.
	RecentMessages(ctx context.Context, conversation uuid.UUID, limit int) ([]*ChatMessage, error)
}

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) InsertConversation(ctx context.Context, c *Conversation) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversations (id, user_id, title, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`, c.ID, c.UserID, c.Title, c.CreatedAt, c.UpdatedAt)
	return err
}

func (s *PostgresStore) GetConversation(ctx context.Context, user, id uuid.UUID) (*Conversation, error) {
	var c Conversation
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, title, created_at, updated_at
		FROM conversations WHERE id = $1 AND user_id = $2
	`, id, user).Scan(&c.ID, &c.UserID, &c.Title, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *PostgresStore) TouchConversation(ctx context.Context, user, id uuid.UUID, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE conversations SET updated_at = $3 WHERE id = $1 AND user_id = $2
	`, id, user, at)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListConversations(ctx context.Context, user uuid.UUID) ([]*Conversation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, title, created_at, updated_at
		FROM conversations WHERE user_id = $1
		ORDER BY updated_at DESC
	`, user)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Conversation
	for rows.Next() {
		var c Conversation
		if err := rows.Scan(&c.ID, &c.UserID, &c.Title, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

func (s *PostgresStore) InsertMessage(ctx context.Context, m *ChatMessage) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chat_messages (id, conversation_id, role, content, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, m.ID, m.ConversationID, m.Role, m.Content, m.CreatedAt)
	return err
}

func (s *PostgresStore) RecentMessages(ctx context.Context, conversation uuid.UUID, limit int) ([]*ChatMessage, error) {
	query := `
		SELECT id, conversation_id, role, content, created_at
		FROM chat_messages WHERE conversation_id = $1
		ORDER BY created_at DESC, id DESC
	`
	args := []any{conversation}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*ChatMessage
	for rows.Next() {
		var m ChatMessage
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Newest-first from the query, oldest-first for callers.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// MemoryStore keeps transcripts in process memory for dev mode and
// tests.
type MemoryStore struct {
	mu            sync.RWMutex
	conversations map[uuid.UUID]*Conversation
	messages      []*ChatMessage
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{conversations: make(map[uuid.UUID]*Conversation)}
}

func (s *MemoryStore) InsertConversation(ctx context.Context, c *Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *c
	s.conversations[c.ID] = &copied
	return nil
}

func (s *MemoryStore) GetConversation(ctx context.Context, user, id uuid.UUID) (*Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.conversations[id]
	if !ok || c.UserID != user {
		return nil, ErrNotFound
	}
	copied := *c
	return &copied, nil
}

func (s *MemoryStore) TouchConversation(ctx context.Context, user, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[id]
	if !ok || c.UserID != user {
		return ErrNotFound
	}
	c.UpdatedAt = at
	return nil
}

func (s *MemoryStore) ListConversations(ctx context.Context, user uuid.UUID) ([]*Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Conversation
	for _, c := range s.conversations {
		if c.UserID == user {
			copied := *c
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

func (s *MemoryStore) InsertMessage(ctx context.Context, m *ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *m
	s.messages = append(s.messages, &copied)
	return nil
}

func (s *MemoryStore) RecentMessages(ctx context.Context, conversation uuid.UUID, limit int) ([]*ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*ChatMessage
	for _, m := range s.messages {
		if m.ConversationID == conversation {
			copied := *m
			out = append(out, &copied)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}
