package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/cassidy/journal-core/internal/domain"
)

// CreateUser inserts a new user, grounded on the teacher's
// UserRepository.Create (internal/repository/user.go): generate a uuid,
// stamp timestamps, single INSERT.
func (s *Store) CreateUser(ctx context.Context, db DBTX, username string, email *string, passwordHash string) (domain.User, error) {
	now := time.Now().UTC()
	u := domain.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		IsActive:     true,
		IsVerified:   false,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO users (id, username, email, password_hash, is_active, is_verified, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, u.ID, u.Username, u.Email, u.PasswordHash, u.IsActive, u.IsVerified, u.CreatedAt, u.UpdatedAt)
	return u, err
}

func scanUser(row *sql.Row) (domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.IsActive, &u.IsVerified, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

const userColumns = `id, username, email, password_hash, is_active, is_verified, created_at, updated_at`

func (s *Store) GetUserByID(ctx context.Context, db DBTX, id string) (domain.User, error) {
	row := db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (s *Store) GetUserByUsername(ctx context.Context, db DBTX, username string) (domain.User, error) {
	row := db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
	return scanUser(row)
}

// DeactivateUser clears is_active (spec.md §3 User lifecycle: "soft-
// deactivated by clearing is_active; no hard delete required") and
// revokes every still-valid auth session for the user.
func (s *Store) DeactivateUser(ctx context.Context, db DBTX, userID string) error {
	if _, err := db.ExecContext(ctx, `UPDATE users SET is_active = FALSE, updated_at = now() WHERE id = $1`, userID); err != nil {
		return err
	}
	_, err := db.ExecContext(ctx, `UPDATE auth_sessions SET revoked = TRUE, updated_at = now() WHERE user_id = $1`, userID)
	return err
}
