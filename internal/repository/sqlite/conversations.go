package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// ConversationMessage is one turn in a query session.
type ConversationMessage struct {
	SessionID string    `json:"session_id"`
	UserSub   string    `json:"user_sub"`
	Role      string    `json:"role"` // "user" or "assistant"
	Content   string    `json:"content"`
	Citations []string  `json:"citations,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// AddConversationMessage appends a message to a session.
func (s *Store) AddConversationMessage(ctx context.Context, msg ConversationMessage) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversation_messages (session_id, user_sub, role, content, citations)
		VALUES (?, ?, ?, ?, ?)`,
		msg.SessionID, msg.UserSub, msg.Role, msg.Content, strings.Join(msg.Citations, ","))
	if err != nil {
		return fmt.Errorf("add conversation message: %w", err)
	}
	return nil
}

// GetConversationHistory returns up to limit most recent messages of a
// session in chronological order.
func (s *Store) GetConversationHistory(ctx context.Context, sessionID string, limit int) ([]ConversationMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, user_sub, role, content, citations, created_at
		FROM (
			SELECT * FROM conversation_messages
			WHERE session_id = ? ORDER BY id DESC LIMIT ?
		) ORDER BY id ASC`,
		sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("get conversation history: %w", err)
	}
	defer rows.Close()

	var msgs []ConversationMessage
	for rows.Next() {
		var (
			m         ConversationMessage
			citations string
		)
		if err := rows.Scan(&m.SessionID, &m.UserSub, &m.Role, &m.Content, &citations, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("scan conversation message: %w", err)
		}
		if citations != "" {
			m.Citations = strings.Split(citations, ",")
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversation messages: %w", err)
	}
	return msgs, nil
}
