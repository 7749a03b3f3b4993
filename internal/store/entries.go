package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/cassidy/journal-core/internal/domain"
)

func (s *Store) CreateEntry(ctx context.Context, db DBTX, userID string, sessionID *string, title string, structured map[string]domain.SectionValue, rawText string, metadata map[string]any) (domain.JournalEntry, error) {
	e := domain.JournalEntry{
		ID:             uuid.NewString(),
		UserID:         userID,
		SessionID:      sessionID,
		Title:          title,
		StructuredData: structured,
		RawText:        rawText,
		Metadata:       metadata,
		CreatedAt:      time.Now().UTC(),
	}
	if e.StructuredData == nil {
		e.StructuredData = map[string]domain.SectionValue{}
	}
	if e.Metadata == nil {
		e.Metadata = map[string]any{}
	}
	data, err := jsonbValue(e.StructuredData, false)
	if err != nil {
		return domain.JournalEntry{}, err
	}
	meta, err := jsonbValue(e.Metadata, false)
	if err != nil {
		return domain.JournalEntry{}, err
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO journal_entries (id, user_id, session_id, title, structured_data, raw_text, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, e.ID, e.UserID, e.SessionID, e.Title, data, e.RawText, meta, e.CreatedAt)
	return e, err
}

// GetEntryForUser scopes the lookup by user_id in the query itself (spec.md
// §4.1's get_... user-scoped lookup pattern), so a different user's entry
// id produces sql.ErrNoRows rather than a 403 — S6 requires 404, never a
// existence-leaking 403.
func (s *Store) GetEntryForUser(ctx context.Context, db DBTX, userID, id string) (domain.JournalEntry, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, user_id, session_id, title, structured_data, raw_text, metadata, created_at
		FROM journal_entries WHERE id = $1 AND user_id = $2
	`, id, userID)
	var e domain.JournalEntry
	var data, meta []byte
	if err := row.Scan(&e.ID, &e.UserID, &e.SessionID, &e.Title, &data, &e.RawText, &meta, &e.CreatedAt); err != nil {
		return domain.JournalEntry{}, err
	}
	e.StructuredData = map[string]domain.SectionValue{}
	e.Metadata = map[string]any{}
	if err := scanJSONB(data, &e.StructuredData); err != nil {
		return domain.JournalEntry{}, err
	}
	if err := scanJSONB(meta, &e.Metadata); err != nil {
		return domain.JournalEntry{}, err
	}
	AssertUserScoped(s.Debug, userID, e.UserID)
	return e, nil
}

// ListEntries returns a user's journal entries newest-first, optionally
// limited, for the list/history endpoints of spec.md §6.1.
func (s *Store) ListEntries(ctx context.Context, db DBTX, userID string, limit int) ([]domain.JournalEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.QueryContext(ctx, `
		SELECT id, user_id, session_id, title, structured_data, raw_text, metadata, created_at
		FROM journal_entries WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.JournalEntry
	for rows.Next() {
		var e domain.JournalEntry
		var data, meta []byte
		if err := rows.Scan(&e.ID, &e.UserID, &e.SessionID, &e.Title, &data, &e.RawText, &meta, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.StructuredData = map[string]domain.SectionValue{}
		e.Metadata = map[string]any{}
		if err := scanJSONB(data, &e.StructuredData); err != nil {
			return nil, err
		}
		if err := scanJSONB(meta, &e.Metadata); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
