package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/cassidy/journal-core/internal/domain"
)

const chatSessionColumns = `id, user_id, conversation_type, is_active, metadata, created_at, updated_at`

func scanChatSession(row *sql.Row) (domain.ChatSession, error) {
	var c domain.ChatSession
	var meta []byte
	if err := row.Scan(&c.ID, &c.UserID, &c.ConversationType, &c.IsActive, &meta, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return domain.ChatSession{}, err
	}
	c.Metadata = map[string]any{}
	if err := scanJSONB(meta, &c.Metadata); err != nil {
		return domain.ChatSession{}, err
	}
	return c, nil
}

func (s *Store) CreateChatSession(ctx context.Context, db DBTX, userID string, convType domain.ConversationType) (domain.ChatSession, error) {
	now := time.Now().UTC()
	c := domain.ChatSession{
		ID:                uuid.NewString(),
		UserID:            userID,
		ConversationType:  convType,
		IsActive:          true,
		Metadata:          map[string]any{},
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	meta, err := jsonbValue(c.Metadata, false)
	if err != nil {
		return domain.ChatSession{}, err
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO chat_sessions (id, user_id, conversation_type, is_active, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, c.ID, c.UserID, c.ConversationType, c.IsActive, meta, c.CreatedAt, c.UpdatedAt)
	return c, err
}

// GetSessionForUser is the store contract's get_session_for_user
// (spec.md §4.1): a lookup that scopes by user_id in the query itself
// rather than filtering after the fact, so a session owned by another
// user can never be observed (invariant 1).
func (s *Store) GetSessionForUser(ctx context.Context, db DBTX, userID, sessionID string) (domain.ChatSession, error) {
	row := db.QueryRowContext(ctx, `
		SELECT `+chatSessionColumns+` FROM chat_sessions WHERE id = $1 AND user_id = $2
	`, sessionID, userID)
	c, err := scanChatSession(row)
	if err != nil {
		return domain.ChatSession{}, err
	}
	AssertUserScoped(s.Debug, userID, c.UserID)
	return c, nil
}

// ListSessions returns a user's chat sessions, newest first.
func (s *Store) ListSessions(ctx context.Context, db DBTX, userID string) ([]domain.ChatSession, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+chatSessionColumns+` FROM chat_sessions WHERE user_id = $1 ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ChatSession
	for rows.Next() {
		var c domain.ChatSession
		var meta []byte
		if err := rows.Scan(&c.ID, &c.UserID, &c.ConversationType, &c.IsActive, &meta, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		c.Metadata = map[string]any{}
		if err := scanJSONB(meta, &c.Metadata); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
