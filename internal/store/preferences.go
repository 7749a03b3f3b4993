package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/cassidy/journal-core/internal/domain"
)

const preferencesColumns = `user_id, purpose_statement, long_term_goals, known_challenges, preferred_feedback_style, personal_glossary, created_at, updated_at`

func scanPreferences(row *sql.Row) (domain.UserPreferences, error) {
	var p domain.UserPreferences
	var goals, challenges, glossary []byte
	if err := row.Scan(&p.UserID, &p.PurposeStatement, &goals, &challenges, &p.PreferredFeedbackStyle, &glossary, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return domain.UserPreferences{}, err
	}
	p.LongTermGoals = []string{}
	p.KnownChallenges = []string{}
	p.PersonalGlossary = map[string]string{}
	if err := scanJSONB(goals, &p.LongTermGoals); err != nil {
		return domain.UserPreferences{}, err
	}
	if err := scanJSONB(challenges, &p.KnownChallenges); err != nil {
		return domain.UserPreferences{}, err
	}
	if err := scanJSONB(glossary, &p.PersonalGlossary); err != nil {
		return domain.UserPreferences{}, err
	}
	return p, nil
}

// GetOrCreatePreferences returns a user's preferences row, lazily
// creating the all-defaults row on first access rather than requiring a
// separate provisioning step, per spec.md §3 (UserPreferences "exists
// implicitly for every user; absence is equivalent to all-default
// values").
func (s *Store) GetOrCreatePreferences(ctx context.Context, db DBTX, userID string) (domain.UserPreferences, error) {
	row := db.QueryRowContext(ctx, `SELECT `+preferencesColumns+` FROM user_preferences WHERE user_id = $1`, userID)
	p, err := scanPreferences(row)
	if err == nil {
		return p, nil
	}
	if err != sql.ErrNoRows {
		return domain.UserPreferences{}, err
	}

	now := time.Now().UTC()
	p = domain.UserPreferences{
		UserID:                 userID,
		LongTermGoals:          []string{},
		KnownChallenges:        []string{},
		PreferredFeedbackStyle: domain.DefaultPreferredFeedbackStyle,
		PersonalGlossary:       map[string]string{},
		CreatedAt:              now,
		UpdatedAt:              now,
	}
	goals, err := jsonbValue(p.LongTermGoals, true)
	if err != nil {
		return domain.UserPreferences{}, err
	}
	challenges, err := jsonbValue(p.KnownChallenges, true)
	if err != nil {
		return domain.UserPreferences{}, err
	}
	glossary, err := jsonbValue(p.PersonalGlossary, false)
	if err != nil {
		return domain.UserPreferences{}, err
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO user_preferences (user_id, purpose_statement, long_term_goals, known_challenges, preferred_feedback_style, personal_glossary, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id) DO NOTHING
	`, p.UserID, p.PurposeStatement, goals, challenges, p.PreferredFeedbackStyle, glossary, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return domain.UserPreferences{}, err
	}
	return p, nil
}

// UpdatePreferences applies a partial patch: nil fields are left
// unchanged, matching the update_preferences tool's "only given keys
// are touched" contract (spec.md §4.4).
type PreferencesPatch struct {
	PurposeStatement       *string
	LongTermGoals          []string
	KnownChallenges        []string
	PreferredFeedbackStyle *string
	PersonalGlossary       map[string]string
}

func (s *Store) UpdatePreferences(ctx context.Context, db DBTX, userID string, patch PreferencesPatch) (domain.UserPreferences, error) {
	current, err := s.GetOrCreatePreferences(ctx, db, userID)
	if err != nil {
		return domain.UserPreferences{}, err
	}

	if patch.PurposeStatement != nil {
		current.PurposeStatement = patch.PurposeStatement
	}
	if patch.LongTermGoals != nil {
		current.LongTermGoals = patch.LongTermGoals
	}
	if patch.KnownChallenges != nil {
		current.KnownChallenges = patch.KnownChallenges
	}
	if patch.PreferredFeedbackStyle != nil {
		current.PreferredFeedbackStyle = *patch.PreferredFeedbackStyle
	}
	if patch.PersonalGlossary != nil {
		current.PersonalGlossary = patch.PersonalGlossary
	}
	current.UpdatedAt = time.Now().UTC()

	goals, err := jsonbValue(current.LongTermGoals, true)
	if err != nil {
		return domain.UserPreferences{}, err
	}
	challenges, err := jsonbValue(current.KnownChallenges, true)
	if err != nil {
		return domain.UserPreferences{}, err
	}
	glossary, err := jsonbValue(current.PersonalGlossary, false)
	if err != nil {
		return domain.UserPreferences{}, err
	}

	_, err = db.ExecContext(ctx, `
		UPDATE user_preferences
		SET purpose_statement = $2, long_term_goals = $3, known_challenges = $4,
		    preferred_feedback_style = $5, personal_glossary = $6, updated_at = $7
		WHERE user_id = $1
	`, current.UserID, current.PurposeStatement, goals, challenges, current.PreferredFeedbackStyle, glossary, current.UpdatedAt)
	if err != nil {
		return domain.UserPreferences{}, err
	}
	return current, nil
}
