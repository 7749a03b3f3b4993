package agent

import (
	"context"
	"os"
	"testing"

	"github.com/cassidy/journal-core/internal/config"
	"github.com/cassidy/journal-core/internal/domain"
	"github.com/cassidy/journal-core/internal/draft"
	"github.com/cassidy/journal-core/internal/providers"
	"github.com/cassidy/journal-core/internal/storage"
	"github.com/cassidy/journal-core/internal/store"
	"github.com/cassidy/journal-core/internal/structurer"
	"github.com/cassidy/journal-core/internal/tasks"
	"github.com/cassidy/journal-core/internal/template"
)

// newTestRuntime wires a full Deps bundle against a real Postgres
// connection (TEST_DATABASE_URL). runtimeLLM drives the top-level
// tool-call decisions Runtime.Turn makes; structurerLLM is the separate
// client handed to the Structurer that structure_journal calls into —
// kept distinct because providers.StubClient's keyword rules assume a
// Tools list that the Structurer's own, tool-free completion request
// never sends, so reusing one stub for both would always degrade to the
// structuring-failed path. Skipped when TEST_DATABASE_URL is unset, per
// DESIGN.md's "Test strategy" section.
func newTestRuntime(t *testing.T, runtimeLLM, structurerLLM providers.LLMClient) (*Runtime, *store.Store) {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping agent integration test")
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
			TRUNCATE users, chat_sessions, chat_messages, journal_drafts,
			journal_entries, tasks, user_templates RESTART IDENTITY CASCADE`)
	})

	st := store.New(db, false)
	deps := &Deps{
		Store:      st,
		Templates:  template.NewProvider(st),
		Drafts:     draft.New(st),
		Structurer: structurer.New(structurerLLM, "test-model"),
		Tasks:      tasks.New(st),
		LLM:        runtimeLLM,
		Model:      "test-model",
	}
	return New(deps), st
}

// jsonContentLLM always answers with a fixed completion body, used to
// stand in for the Structurer's model when a test needs
// structure_journal to actually succeed rather than exercise the
// degraded could_not_structure path.
type jsonContentLLM struct {
	content string
}

func (j *jsonContentLLM) Complete(ctx context.Context, req providers.CompletionRequest) (providers.CompletionResult, error) {
	return providers.CompletionResult{Content: j.content}, nil
}

func newTestSession(t *testing.T, st *store.Store) (userID, sessionID string) {
	t.Helper()
	ctx := context.Background()
	user, err := st.CreateUser(ctx, st.DB(), "user_"+t.Name(), nil, "hash")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	session, err := st.CreateChatSession(ctx, st.DB(), user.ID, domain.ConversationTypeJournaling)
	if err != nil {
		t.Fatalf("CreateChatSession: %v", err)
	}
	return user.ID, session.ID
}

func TestTurnStructuresJournalTextIntoTheDraft(t *testing.T) {
	structurerLLM := &jsonContentLLM{content: `{"open_reflection": "I finished the quarterly report today."}`}
	runtime, st := newTestRuntime(t, &providers.StubClient{}, structurerLLM)
	userID, sessionID := newTestSession(t, st)

	tx, err := st.Begin(context.Background())
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	defer tx.Rollback()

	result, err := runtime.Turn(context.Background(), tx, userID, sessionID, "I finished the quarterly report today.", nil)
	if err != nil {
		t.Fatalf("Turn: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if len(result.ToolCalls) != 1 || result.ToolCalls[0].Name != "structure_journal" {
		t.Fatalf("expected exactly one structure_journal call, got %+v", result.ToolCalls)
	}
	if result.ToolCalls[0].Error != "" {
		t.Fatalf("structure_journal call failed: %s", result.ToolCalls[0].Error)
	}
	if len(result.UpdatedDraftData) == 0 {
		t.Fatalf("expected the draft to have been updated, got %v", result.UpdatedDraftData)
	}
	if result.Text == "" {
		t.Errorf("expected a non-empty terminal reply")
	}
}

func TestTurnSavesTheDraftOnExplicitConfirmation(t *testing.T) {
	runtime, st := newTestRuntime(t, &providers.StubClient{}, &providers.StubClient{})
	userID, sessionID := newTestSession(t, st)
	ctx := context.Background()

	d, err := st.GetOrCreateDraft(ctx, st.DB(), sessionID, userID)
	if err != nil {
		t.Fatalf("GetOrCreateDraft: %v", err)
	}
	if err := st.SaveDraftData(ctx, st.DB(), d.ID, map[string]domain.SectionValue{"Open Reflection": "A calm day."}); err != nil {
		t.Fatalf("SaveDraftData: %v", err)
	}

	tx, err := st.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	defer tx.Rollback()

	result, err := runtime.Turn(ctx, tx, userID, sessionID, "Please save it now.", nil)
	if err != nil {
		t.Fatalf("Turn: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if len(result.ToolCalls) != 1 || result.ToolCalls[0].Name != "save_journal" {
		t.Fatalf("expected exactly one save_journal call, got %+v", result.ToolCalls)
	}
	if result.ToolCalls[0].Error != "" {
		t.Fatalf("save_journal call failed: %s", result.ToolCalls[0].Error)
	}

	entries, err := st.ListEntries(ctx, st.DB(), userID, 10)
	if err != nil {
		t.Fatalf("ListEntries: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one finalized entry, got %d", len(entries))
	}
}

func TestTurnUnknownSessionIsNotFound(t *testing.T) {
	runtime, st := newTestRuntime(t, &providers.StubClient{}, &providers.StubClient{})
	ctx := context.Background()

	user, err := st.CreateUser(ctx, st.DB(), "user_"+t.Name(), nil, "hash")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	tx, err := st.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	defer tx.Rollback()

	_, err = runtime.Turn(ctx, tx, user.ID, "does-not-exist", "hello", nil)
	if err == nil {
		t.Fatalf("expected an error for an unowned/nonexistent session")
	}
}

func TestTurnRespectsToolCallBudgetUnderALoopingModel(t *testing.T) {
	runtime, st := newTestRuntime(t, &loopingLLM{}, &providers.StubClient{})
	userID, sessionID := newTestSession(t, st)
	ctx := context.Background()

	tx, err := st.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	defer tx.Rollback()

	result, err := runtime.Turn(ctx, tx, userID, sessionID, "keep going", nil)
	if err != nil {
		t.Fatalf("Turn: %v", err)
	}
	if !result.Overflow {
		t.Errorf("expected Overflow to be true once the tool-call budget is exhausted")
	}
	if len(result.ToolCalls) != ToolCallBudget {
		t.Errorf("got %d tool calls, want exactly the budget of %d", len(result.ToolCalls), ToolCallBudget)
	}
}

// loopingLLM always asks to call get_template_info, forcing the runtime
// to exhaust its ToolCallBudget rather than ever emitting a terminal
// reply, exercising the spec's overflow guard (spec.md §4.6 step 7).
type loopingLLM struct{}

func (l *loopingLLM) Complete(ctx context.Context, req providers.CompletionRequest) (providers.CompletionResult, error) {
	return providers.CompletionResult{
		ToolCalls: []providers.ToolCall{{ID: "call_x", Name: "get_template_info", Arguments: "{}"}},
	}, nil
}
