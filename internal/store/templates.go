package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/cassidy/journal-core/internal/domain"
)

const templateColumns = `user_id, name, sections, is_active, created_at, updated_at`

func scanTemplate(row *sql.Row) (domain.UserTemplate, error) {
	var t domain.UserTemplate
	var sections []byte
	if err := row.Scan(&t.UserID, &t.Name, &sections, &t.IsActive, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return domain.UserTemplate{}, err
	}
	if err := scanJSONB(sections, &t.Sections); err != nil {
		return domain.UserTemplate{}, err
	}
	return t, nil
}

// GetActiveTemplate returns a user's override template, or sql.ErrNoRows
// if the user has never saved one (the C2 provider falls back to the
// process-wide default in that case; see internal/template).
func (s *Store) GetActiveTemplate(ctx context.Context, db DBTX, userID string) (domain.UserTemplate, error) {
	row := db.QueryRowContext(ctx, `SELECT `+templateColumns+` FROM user_templates WHERE user_id = $1 AND is_active`, userID)
	return scanTemplate(row)
}

// DeactivateTemplateOverride clears a user's saved override, so the
// next ForUser call falls back to the process-wide default — the
// persisted half of a template reload, as opposed to template.Provider.
// Reload's in-memory cache drop.
func (s *Store) DeactivateTemplateOverride(ctx context.Context, db DBTX, userID string) error {
	_, err := db.ExecContext(ctx, `UPDATE user_templates SET is_active = FALSE, updated_at = now() WHERE user_id = $1`, userID)
	return err
}

// UpsertTemplate replaces a user's override template wholesale, the
// shape the template-authoring path (template.Provider.SaveOverride) needs (spec.md
// §4.2: "saving a template is a full replace, never a per-section
// patch").
func (s *Store) UpsertTemplate(ctx context.Context, db DBTX, userID, name string, sections []domain.TemplateSection) (domain.UserTemplate, error) {
	now := time.Now().UTC()
	raw, err := jsonbValue(sections, true)
	if err != nil {
		return domain.UserTemplate{}, err
	}
	t := domain.UserTemplate{UserID: userID, Name: name, Sections: sections, IsActive: true, UpdatedAt: now}
	_, err = db.ExecContext(ctx, `
		INSERT INTO user_templates (user_id, name, sections, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, TRUE, $4, $4)
		ON CONFLICT (user_id) DO UPDATE
		SET name = EXCLUDED.name, sections = EXCLUDED.sections, is_active = TRUE, updated_at = EXCLUDED.updated_at
	`, t.UserID, t.Name, raw, now)
	if err != nil {
		return domain.UserTemplate{}, err
	}
	t.CreatedAt = now
	return t, nil
}
