package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/cassidy/journal-core/internal/domain"
)

// AppendMessage inserts a message, grounded on the teacher's
// MessageRepository.Create (internal/repository/message.go), adapted to
// the role-tagged domain.ChatMessage shape and arbitrary metadata.
func (s *Store) AppendMessage(ctx context.Context, db DBTX, sessionID string, role domain.MessageRole, content string, metadata map[string]any) (domain.ChatMessage, error) {
	m := domain.ChatMessage{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		Metadata:  metadata,
	}
	if m.Metadata == nil {
		m.Metadata = map[string]any{}
	}
	meta, err := jsonbValue(m.Metadata, false)
	if err != nil {
		return domain.ChatMessage{}, err
	}
	row := db.QueryRowContext(ctx, `
		INSERT INTO chat_messages (id, session_id, role, content, metadata)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, m.ID, m.SessionID, m.Role, m.Content, meta)
	if err := row.Scan(&m.CreatedAt); err != nil {
		return domain.ChatMessage{}, err
	}
	return m, nil
}

// ListMessages returns a session's transcript in chronological order,
// the ordering the agent runtime replays into the LLM's message list
// (spec.md §4.6, step 2).
func (s *Store) ListMessages(ctx context.Context, db DBTX, sessionID string) ([]domain.ChatMessage, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, session_id, role, content, metadata, created_at
		FROM chat_messages WHERE session_id = $1 ORDER BY created_at ASC
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ChatMessage
	for rows.Next() {
		var m domain.ChatMessage
		var meta []byte
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &meta, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Metadata = map[string]any{}
		if err := scanJSONB(meta, &m.Metadata); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
