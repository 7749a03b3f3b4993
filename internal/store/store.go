// Package store implements C1: transactional, user-scoped persistence for
// every entity in internal/domain. It generalizes the teacher's per-entity
// repository structs (internal/repository/*.go), which each hold a
// concrete *sql.DB, into repository methods that take a DBTX so the same
// query code runs against either the pool or an open transaction — the
// shape spec.md §4.1 requires ("begin() -> Tx ... all mutations in a
// single HTTP request occur under one transaction").
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx, letting every store
// method run unmodified inside or outside a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store is the top-level handle; it owns the connection pool and exposes
// Begin for request-scoped transactions plus direct non-transactional
// reads for endpoints that don't need one.
type Store struct {
	db    *sql.DB
	Debug bool
}

func New(db *sql.DB, debug bool) *Store {
	return &Store{db: db, Debug: debug}
}

// DB returns the underlying pool for read-only, non-transactional calls.
func (s *Store) DB() DBTX { return s.db }

// Tx wraps a single request's transaction plus a monotonically increasing
// savepoint counter, so ToolCatalogue handlers (C5) can roll back just
// their own writes without aborting the whole turn (spec.md §4.5, last
// sentence: "a tool failure rolls back only that tool's writes (via a
// savepoint) while the turn continues").
type Tx struct {
	tx       *sql.Tx
	store    *Store
	savepoint int
}

func (s *Store) Begin(ctx context.Context) (*Tx, error) {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("store: begin tx: %w", err)
	}
	return &Tx{tx: sqlTx, store: s}, nil
}

func (t *Tx) Commit() error   { return t.tx.Commit() }
func (t *Tx) Rollback() error { return t.tx.Rollback() }

func (t *Tx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.tx.ExecContext(ctx, query, args...)
}

func (t *Tx) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return t.tx.QueryContext(ctx, query, args...)
}

func (t *Tx) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return t.tx.QueryRowContext(ctx, query, args...)
}

// Savepoint begins a named nested savepoint and returns a handle whose
// Release/Rollback commit or discard just the work done since it was
// taken.
func (t *Tx) Savepoint(ctx context.Context) (*Savepoint, error) {
	t.savepoint++
	name := fmt.Sprintf("sp_%d", t.savepoint)
	if _, err := t.tx.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return nil, err
	}
	return &Savepoint{tx: t, name: name}, nil
}

type Savepoint struct {
	tx   *Tx
	name string
}

func (sp *Savepoint) Release(ctx context.Context) error {
	_, err := sp.tx.tx.ExecContext(ctx, "RELEASE SAVEPOINT "+sp.name)
	return err
}

func (sp *Savepoint) Rollback(ctx context.Context) error {
	_, err := sp.tx.tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+sp.name)
	return err
}

// AdvisoryLock acquires a transaction-scoped Postgres advisory lock keyed
// by an arbitrary string (hashed to the int4 Postgres expects), released
// automatically at commit or rollback. Used for the session:{id} and
// user:{id}:tasks locks of spec.md §5.
func AdvisoryLock(ctx context.Context, tx *Tx, key string) error {
	_, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", key)
	return err
}

// AssertUserScoped panics in debug mode if a lookup's resulting user_id
// does not match the expected scope, per spec.md §4.1 ("Cross-user reads
// are a programming error and must fail loudly in debug mode").
func AssertUserScoped(debug bool, expectedUserID, actualUserID string) {
	if debug && expectedUserID != actualUserID {
		panic(fmt.Sprintf("store: cross-user access: expected user %q, got %q", expectedUserID, actualUserID))
	}
}

// ErrNotFound is returned by lookups that found no row; wrap with
// apperr.NotFound at the service boundary.
var ErrNotFound = sql.ErrNoRows

// IsSerializationFailure reports whether err is a Postgres serialization
// failure (SQLSTATE 40001), which callers may retry per spec.md §7
// ("Database serialization failures retry at most three times").
func IsSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001"
	}
	return false
}

// IsUniqueViolation reports whether err is a Postgres unique constraint
// violation (SQLSTATE 23505), used by callers that must turn a duplicate
// username/email into apperr.Conflict rather than apperr.Internal.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

// RetrySerialized runs fn, retrying up to 3 times total on a Postgres
// serialization failure, with no wait between attempts, per spec.md §7
// ("Database serialization failures retry at most three times").
func RetrySerialized(ctx context.Context, fn func() error) error {
	const maxAttempts = 3
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = fn()
		if err == nil || !IsSerializationFailure(err) || attempt == maxAttempts {
			return err
		}
	}
	return err
}
