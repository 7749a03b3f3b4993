// Package tasks implements C7: CRUD and reordering over a user's task
// list, exposed both as HTTP endpoints (internal/httpapi) and as agent
// tools (internal/agent). Grounded on original_source's
// repositories/task.py reorder_tasks offset trick, carried forward
// verbatim into internal/store.ReorderTasks; this package adds the
// bijection validation and the advisory-lock boundary spec.md §4.7 and
// §5 require.
package tasks

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/cassidy/journal-core/internal/apperr"
	"github.com/cassidy/journal-core/internal/domain"
	"github.com/cassidy/journal-core/internal/store"
)

type Manager struct {
	store *store.Store
}

func New(s *store.Store) *Manager {
	return &Manager{store: s}
}

// lockKey is the user:{user_id}:tasks advisory lock of spec.md §5,
// held for the duration of the transaction so two concurrent mutations
// cannot leave gaps in the priority sequence.
func lockKey(userID string) string {
	return fmt.Sprintf("user:%s:tasks", userID)
}

// Create inserts a task, defaulting priority to "end of the incomplete
// list" per spec.md §4.5's create_task tool contract.
func (m *Manager) Create(ctx context.Context, tx *store.Tx, userID, title string, description *string, priority int, dueDate *time.Time, sourceSessionID *string) (domain.Task, error) {
	if err := store.AdvisoryLock(ctx, tx, lockKey(userID)); err != nil {
		return domain.Task{}, apperr.Internal(err)
	}
	if priority <= 0 {
		next, err := m.store.NextPriority(ctx, tx, userID)
		if err != nil {
			return domain.Task{}, apperr.Internal(err)
		}
		priority = next
	}
	t, err := m.store.CreateTask(ctx, tx, userID, title, description, priority, dueDate, sourceSessionID)
	if err != nil {
		return domain.Task{}, apperr.Internal(err)
	}
	return t, nil
}

// List returns a user's tasks in the canonical order of spec.md §4.1:
// incomplete before completed, then by priority, then by creation time.
// Completed tasks are additionally resorted by completed_at descending,
// per spec.md §3's Task invariant.
func (m *Manager) List(ctx context.Context, db store.DBTX, userID string, includeCompleted bool) ([]domain.Task, error) {
	all, err := m.store.ListTasks(ctx, db, userID, includeCompleted)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	var pending, done []domain.Task
	for _, t := range all {
		if t.IsCompleted {
			done = append(done, t)
		} else {
			pending = append(pending, t)
		}
	}
	sort.SliceStable(pending, func(i, j int) bool { return pending[i].Priority < pending[j].Priority })
	sort.SliceStable(done, func(i, j int) bool {
		ci, cj := done[i].CompletedAt, done[j].CompletedAt
		if ci == nil || cj == nil {
			return false
		}
		return ci.After(*cj)
	})
	return append(pending, done...), nil
}

func (m *Manager) Get(ctx context.Context, db store.DBTX, userID, taskID string) (domain.Task, error) {
	t, err := m.store.GetTask(ctx, db, taskID)
	if err != nil {
		if err == store.ErrNotFound {
			return domain.Task{}, apperr.NotFound("task not found")
		}
		return domain.Task{}, apperr.Internal(err)
	}
	if t.UserID != userID {
		return domain.Task{}, apperr.NotFound("task not found")
	}
	return t, nil
}

type UpdatePatch struct {
	Title       *string
	Description *string
	DueDate     *time.Time
}

func (m *Manager) Update(ctx context.Context, db store.DBTX, userID, taskID string, patch UpdatePatch) (domain.Task, error) {
	if _, err := m.Get(ctx, db, userID, taskID); err != nil {
		return domain.Task{}, err
	}
	if err := m.store.UpdateTask(ctx, db, taskID, store.TaskPatch{Title: patch.Title, Description: patch.Description, DueDate: patch.DueDate}); err != nil {
		return domain.Task{}, apperr.Internal(err)
	}
	return m.Get(ctx, db, userID, taskID)
}

// Complete marks a task done and recompacts the remaining incomplete
// tasks to 1..N, resolving Open Question 3 as spec.md mandates: priority
// is left on the completed row, which simply leaves the compaction
// domain.
func (m *Manager) Complete(ctx context.Context, tx *store.Tx, userID, taskID string) (domain.Task, error) {
	if _, err := m.Get(ctx, tx, userID, taskID); err != nil {
		return domain.Task{}, err
	}
	if err := store.AdvisoryLock(ctx, tx, lockKey(userID)); err != nil {
		return domain.Task{}, apperr.Internal(err)
	}
	if err := m.store.CompleteTask(ctx, tx, taskID); err != nil {
		return domain.Task{}, apperr.Internal(err)
	}
	if err := m.store.CompactPriorities(ctx, tx, userID); err != nil {
		return domain.Task{}, apperr.Internal(err)
	}
	return m.Get(ctx, tx, userID, taskID)
}

// Delete removes a task and recompacts the remaining incomplete tasks.
func (m *Manager) Delete(ctx context.Context, tx *store.Tx, userID, taskID string) error {
	if err := store.AdvisoryLock(ctx, tx, lockKey(userID)); err != nil {
		return apperr.Internal(err)
	}
	ok, err := m.store.DeleteTask(ctx, tx, userID, taskID)
	if err != nil {
		return apperr.Internal(err)
	}
	if !ok {
		return apperr.NotFound("task not found")
	}
	if err := m.store.CompactPriorities(ctx, tx, userID); err != nil {
		return apperr.Internal(err)
	}
	return nil
}

// Ordering is one (task_id, new_priority) pair from a reorder request.
type Ordering struct {
	TaskID      string
	NewPriority int
}

// Reorder validates orderings is an exact bijection between the user's
// incomplete task ids and 1..N (spec.md invariant 6 / testable property
// 6) and applies it atomically. Any violation rejects with Conflict and
// changes nothing — the validation runs entirely before any write.
func (m *Manager) Reorder(ctx context.Context, tx *store.Tx, userID string, orderings []Ordering) error {
	if err := store.AdvisoryLock(ctx, tx, lockKey(userID)); err != nil {
		return apperr.Internal(err)
	}

	incomplete, err := m.store.ListTasks(ctx, tx, userID, false)
	if err != nil {
		return apperr.Internal(err)
	}

	if err := validateBijection(incomplete, orderings); err != nil {
		return err
	}

	ordered := make([]string, len(orderings))
	byPriority := make(map[int]string, len(orderings))
	for _, o := range orderings {
		byPriority[o.NewPriority] = o.TaskID
	}
	for i := 1; i <= len(orderings); i++ {
		ordered[i-1] = byPriority[i]
	}

	if err := m.store.ReorderTasks(ctx, tx, userID, ordered); err != nil {
		return apperr.Internal(err)
	}
	return nil
}

// heuristicCues are the trigger phrases original_source's
// _simple_task_extraction keys off of when the LLM-backed extractor is
// unavailable or times out.
var heuristicCues = []string{"need to ", "have to ", "should ", "todo:", "to do:", "must ", "remember to "}

// HeuristicExtract is the keyword-pattern fallback for task extraction,
// used when structurer.Structurer.ExtractTasks fails, mirroring
// original_source's try/except fallback to _simple_task_extraction.
func HeuristicExtract(rawText string) []string {
	var out []string
	for _, sentence := range splitSentences(rawText) {
		lower := strings.ToLower(sentence)
		for _, cue := range heuristicCues {
			if idx := strings.Index(lower, cue); idx != -1 {
				title := strings.TrimSpace(sentence[idx:])
				if title != "" {
					out = append(out, title)
				}
				break
			}
		}
	}
	return out
}

func splitSentences(text string) []string {
	var out []string
	start := 0
	for i, r := range text {
		if r == '.' || r == '\n' || r == ';' {
			if seg := strings.TrimSpace(text[start:i]); seg != "" {
				out = append(out, seg)
			}
			start = i + 1
		}
	}
	if seg := strings.TrimSpace(text[start:]); seg != "" {
		out = append(out, seg)
	}
	return out
}

func validateBijection(incomplete []domain.Task, orderings []Ordering) error {
	if len(orderings) != len(incomplete) {
		return apperr.Conflict("reorder must cover every incomplete task exactly once")
	}

	ids := make(map[string]bool, len(incomplete))
	for _, t := range incomplete {
		ids[t.ID] = true
	}

	seenIDs := make(map[string]bool, len(orderings))
	seenPriorities := make(map[int]bool, len(orderings))
	for _, o := range orderings {
		if !ids[o.TaskID] {
			return apperr.Conflict("reorder references a task that is not an incomplete task of this user")
		}
		if seenIDs[o.TaskID] {
			return apperr.Conflict("reorder lists the same task more than once")
		}
		seenIDs[o.TaskID] = true

		if o.NewPriority < 1 || o.NewPriority > len(orderings) {
			return apperr.Conflict("reorder priorities must form the permutation 1..N")
		}
		if seenPriorities[o.NewPriority] {
			return apperr.Conflict("reorder priorities must form the permutation 1..N")
		}
		seenPriorities[o.NewPriority] = true
	}
	return nil
}
