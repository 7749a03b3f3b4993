package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/cassidy/journal-core/internal/domain"
)

const draftColumns = `id, session_id, user_id, draft_data, is_finalized, metadata, created_at, updated_at`

func scanDraft(row *sql.Row) (domain.JournalDraft, error) {
	var d domain.JournalDraft
	var data, meta []byte
	if err := row.Scan(&d.ID, &d.SessionID, &d.UserID, &data, &d.IsFinalized, &meta, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return domain.JournalDraft{}, err
	}
	d.DraftData = map[string]domain.SectionValue{}
	d.Metadata = map[string]any{}
	if err := scanJSONB(data, &d.DraftData); err != nil {
		return domain.JournalDraft{}, err
	}
	if err := scanJSONB(meta, &d.Metadata); err != nil {
		return domain.JournalDraft{}, err
	}
	return d, nil
}

// GetOrCreateDraft returns the single open draft for a session, creating
// an empty one on first access. journal_drafts.session_id is UNIQUE, so
// a session has at most one live draft, per spec.md §3.
func (s *Store) GetOrCreateDraft(ctx context.Context, db DBTX, sessionID, userID string) (domain.JournalDraft, error) {
	row := db.QueryRowContext(ctx, `SELECT `+draftColumns+` FROM journal_drafts WHERE session_id = $1`, sessionID)
	d, err := scanDraft(row)
	if err == nil {
		return d, nil
	}
	if err != sql.ErrNoRows {
		return domain.JournalDraft{}, err
	}

	now := time.Now().UTC()
	d = domain.JournalDraft{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		UserID:    userID,
		DraftData: map[string]domain.SectionValue{},
		Metadata:  map[string]any{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	data, err := jsonbValue(d.DraftData, false)
	if err != nil {
		return domain.JournalDraft{}, err
	}
	meta, err := jsonbValue(d.Metadata, false)
	if err != nil {
		return domain.JournalDraft{}, err
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO journal_drafts (id, session_id, user_id, draft_data, is_finalized, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, FALSE, $5, $6, $6)
		ON CONFLICT (session_id) DO NOTHING
	`, d.ID, d.SessionID, d.UserID, data, meta, now)
	if err != nil {
		return domain.JournalDraft{}, err
	}
	return d, nil
}

// SaveDraftData overwrites a draft's section data wholesale. Callers
// (internal/draft's merge_patch) compute the merged map in memory and
// write it back in one statement, keeping the merge rules out of SQL.
func (s *Store) SaveDraftData(ctx context.Context, db DBTX, draftID string, data map[string]domain.SectionValue) error {
	raw, err := jsonbValue(data, false)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		UPDATE journal_drafts SET draft_data = $2, updated_at = now() WHERE id = $1
	`, draftID, raw)
	return err
}

// FinalizeDraft marks a draft finalized. Callers first write the
// resulting JournalEntry in the same transaction so the clear is atomic
// both-or-neither (spec.md's Open Question #1, resolved: "draft
// clearing and entry creation commit together or not at all").
func (s *Store) FinalizeDraft(ctx context.Context, db DBTX, draftID string) error {
	_, err := db.ExecContext(ctx, `
		UPDATE journal_drafts SET is_finalized = TRUE, draft_data = '{}', updated_at = now() WHERE id = $1
	`, draftID)
	return err
}
