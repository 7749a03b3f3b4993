package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/cassidy/journal-core/internal/domain"
)

// CreateAuthSession persists a new session for a signed token's hash,
// grounded on the teacher's UserSessionRepository.Create (internal/
// repository/user_session.go). Tokens themselves are never stored, per
// spec.md §3 ("Tokens are never stored verbatim; only a one-way digest
// is").
func (s *Store) CreateAuthSession(ctx context.Context, db DBTX, userID, tokenHash string, expiresAt time.Time, userAgent, ip *string) (domain.AuthSession, error) {
	now := time.Now().UTC()
	sess := domain.AuthSession{
		ID:        uuid.NewString(),
		UserID:    userID,
		TokenHash: tokenHash,
		ExpiresAt: expiresAt,
		Revoked:   false,
		UserAgent: userAgent,
		IP:        ip,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO auth_sessions (id, user_id, token_hash, expires_at, revoked, user_agent, ip, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, sess.ID, sess.UserID, sess.TokenHash, sess.ExpiresAt, sess.Revoked, sess.UserAgent, sess.IP, sess.CreatedAt, sess.UpdatedAt)
	return sess, err
}

const authSessionColumns = `id, user_id, token_hash, expires_at, revoked, user_agent, ip, created_at, updated_at`

func scanAuthSession(row *sql.Row) (domain.AuthSession, error) {
	var a domain.AuthSession
	err := row.Scan(&a.ID, &a.UserID, &a.TokenHash, &a.ExpiresAt, &a.Revoked, &a.UserAgent, &a.IP, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

func (s *Store) GetAuthSessionByTokenHash(ctx context.Context, db DBTX, tokenHash string) (domain.AuthSession, error) {
	row := db.QueryRowContext(ctx, `SELECT `+authSessionColumns+` FROM auth_sessions WHERE token_hash = $1`, tokenHash)
	return scanAuthSession(row)
}

func (s *Store) RevokeAuthSessionByTokenHash(ctx context.Context, db DBTX, tokenHash string) error {
	_, err := db.ExecContext(ctx, `UPDATE auth_sessions SET revoked = TRUE, updated_at = now() WHERE token_hash = $1`, tokenHash)
	return err
}
