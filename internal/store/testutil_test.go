package store

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"github.com/cassidy/journal-core/internal/config"
	"github.com/cassidy/journal-core/internal/storage"
)

// openTestDB opens a real Postgres connection against TEST_DATABASE_URL
// and applies the schema, skipping the test entirely when that variable
// is unset. The store's queries rely on jsonb columns and
// pg_advisory_xact_lock, which no embedded/in-memory substitute
// reproduces faithfully, so these tests are only meaningful against a
// real Postgres instance (see DESIGN.md's "Test strategy" section).
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping store integration test")
	}

	ctx := context.Background()
	db, err := storage.NewDatabase(ctx, config.DatabaseConfig{DSN: dsn})
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := storage.RunMigrations(ctx, db); err != nil {
		t.Fatalf("running migrations: %v", err)
	}

	t.Cleanup(func() {
		_, _ = db.ExecContext(ctx, `
			TRUNCATE users, auth_sessions, user_preferences, user_templates,
			chat_sessions, chat_messages, journal_drafts, journal_entries, tasks
			RESTART IDENTITY CASCADE`)
	})

	return db
}

func newTestUser(t *testing.T, s *Store, db DBTX) string {
	t.Helper()
	ctx := context.Background()
	u, err := s.CreateUser(ctx, db, "user_"+t.Name(), nil, "hash")
	if err != nil {
		t.Fatalf("creating test user: %v", err)
	}
	return u.ID
}
