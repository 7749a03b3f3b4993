package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/cassidy/journal-core/internal/domain"
)

const taskColumns = `id, user_id, title, description, priority, is_completed, completed_at, due_date, source_session_id, created_at, updated_at`

func scanTask(row *sql.Row) (domain.Task, error) {
	var t domain.Task
	err := row.Scan(&t.ID, &t.UserID, &t.Title, &t.Description, &t.Priority, &t.IsCompleted, &t.CompletedAt, &t.DueDate, &t.SourceSessionID, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

// NextPriority returns max(priority)+1 for a user's incomplete tasks, or
// 1 if they have none, grounded on the original's
// TaskRepository.get_next_priority.
func (s *Store) NextPriority(ctx context.Context, db DBTX, userID string) (int, error) {
	var max sql.NullInt64
	row := db.QueryRowContext(ctx, `SELECT MAX(priority) FROM tasks WHERE user_id = $1 AND NOT is_completed`, userID)
	if err := row.Scan(&max); err != nil {
		return 0, err
	}
	if !max.Valid {
		return 1, nil
	}
	return int(max.Int64) + 1, nil
}

func (s *Store) CreateTask(ctx context.Context, db DBTX, userID, title string, description *string, priority int, dueDate *time.Time, sourceSessionID *string) (domain.Task, error) {
	now := time.Now().UTC()
	t := domain.Task{
		ID:              uuid.NewString(),
		UserID:          userID,
		Title:           title,
		Description:     description,
		Priority:        priority,
		IsCompleted:     false,
		DueDate:         dueDate,
		SourceSessionID: sourceSessionID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO tasks (id, user_id, title, description, priority, is_completed, completed_at, due_date, source_session_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, FALSE, NULL, $6, $7, $8, $8)
	`, t.ID, t.UserID, t.Title, t.Description, t.Priority, t.DueDate, t.SourceSessionID, now)
	return t, err
}

func (s *Store) GetTask(ctx context.Context, db DBTX, id string) (domain.Task, error) {
	row := db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id)
	return scanTask(row)
}

// ListTasks returns a user's tasks ordered by priority, grounded on
// TaskRepository.get_by_user_id / get_pending_by_user_id; includeDone
// controls whether completed tasks are included.
func (s *Store) ListTasks(ctx context.Context, db DBTX, userID string, includeDone bool) ([]domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE user_id = $1`
	if !includeDone {
		query += ` AND NOT is_completed`
	}
	query += ` ORDER BY priority ASC, created_at ASC`

	rows, err := db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Task
	for rows.Next() {
		var t domain.Task
		if err := rows.Scan(&t.ID, &t.UserID, &t.Title, &t.Description, &t.Priority, &t.IsCompleted, &t.CompletedAt, &t.DueDate, &t.SourceSessionID, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// UpdateTask applies a partial patch (nil fields left unchanged),
// supplementing the spec's named tools with the update_task operation
// found in the original's generic update path.
type TaskPatch struct {
	Title       *string
	Description *string
	DueDate     *time.Time
}

func (s *Store) UpdateTask(ctx context.Context, db DBTX, id string, patch TaskPatch) error {
	_, err := db.ExecContext(ctx, `
		UPDATE tasks SET
			title = COALESCE($2, title),
			description = COALESCE($3, description),
			due_date = COALESCE($4, due_date),
			updated_at = now()
		WHERE id = $1
	`, id, patch.Title, patch.Description, patch.DueDate)
	return err
}

// CompleteTask marks a task done, leaving its priority untouched so it
// stays addressable by history even though CompactPriorities (called
// separately by the tasks service) excludes it from the live ordering
// domain — spec.md's Open Question #3, resolved: "completed tasks keep
// their priority value but leave the compaction domain".
func (s *Store) CompleteTask(ctx context.Context, db DBTX, id string) error {
	_, err := db.ExecContext(ctx, `
		UPDATE tasks SET is_completed = TRUE, completed_at = now(), updated_at = now() WHERE id = $1
	`, id)
	return err
}

func (s *Store) DeleteTask(ctx context.Context, db DBTX, userID, id string) (bool, error) {
	res, err := db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// ReorderTasks applies a full priority permutation in two phases —
// first to a collision-free offset block, then to final values — so
// the unique-ish ordering never transiently violates another task's
// current priority. Grounded on the original's TaskRepository.
// reorder_tasks, which uses the same max-priority+1000 offset trick.
func (s *Store) ReorderTasks(ctx context.Context, db DBTX, userID string, orderedTaskIDs []string) error {
	if len(orderedTaskIDs) == 0 {
		return nil
	}

	var max sql.NullInt64
	row := db.QueryRowContext(ctx, `SELECT MAX(priority) FROM tasks WHERE user_id = $1`, userID)
	if err := row.Scan(&max); err != nil {
		return err
	}
	offset := 1000
	if max.Valid {
		offset = int(max.Int64) + 1000
	}

	for i, taskID := range orderedTaskIDs {
		if _, err := db.ExecContext(ctx, `
			UPDATE tasks SET priority = $3, updated_at = now() WHERE id = $1 AND user_id = $2
		`, taskID, userID, offset+i); err != nil {
			return err
		}
	}
	for i, taskID := range orderedTaskIDs {
		if _, err := db.ExecContext(ctx, `
			UPDATE tasks SET priority = $3, updated_at = now() WHERE id = $1 AND user_id = $2
		`, taskID, userID, i+1); err != nil {
			return err
		}
	}
	return nil
}

// CompactPriorities renumbers a user's pending (non-completed) tasks to
// a dense 1..N sequence in their existing relative order, run after a
// completion or deletion so gaps never accumulate (spec.md §4.7).
func (s *Store) CompactPriorities(ctx context.Context, db DBTX, userID string) error {
	rows, err := db.QueryContext(ctx, `
		SELECT id FROM tasks WHERE user_id = $1 AND NOT is_completed ORDER BY priority ASC
	`, userID)
	if err != nil {
		return err
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	rows.Close()

	return s.ReorderTasks(ctx, db, userID, ids)
}
