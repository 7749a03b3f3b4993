package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/cassidy/journal-core/internal/agent"
	"github.com/cassidy/journal-core/internal/auth"
	"github.com/cassidy/journal-core/internal/config"
	"github.com/cassidy/journal-core/internal/draft"
	"github.com/cassidy/journal-core/internal/providers"
	"github.com/cassidy/journal-core/internal/storage"
	"github.com/cassidy/journal-core/internal/store"
	"github.com/cassidy/journal-core/internal/structurer"
	"github.com/cassidy/journal-core/internal/tasks"
	"github.com/cassidy/journal-core/internal/template"
)

// newTestServer wires the full v1 router against a real Postgres
// connection (TEST_DATABASE_URL) and a deterministic providers.StubClient,
// exercising the HTTP surface end to end through httptest rather than
// calling handler methods directly, matching how the teacher's own
// handler wiring expects to be driven. Skipped when TEST_DATABASE_URL is
// unset, per DESIGN.md's "Test strategy" section.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping httpapi integration test")
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

	st := store.New(db, false)
	authSvc := auth.New(st, "test-secret", "HS256", 24)
	templates := template.NewProvider(st)
	drafts := draft.New(st)
	taskMgr := tasks.New(st)
	deps := &agent.Deps{
		Store:     st,
		Templates: templates,
		Drafts:    drafts,
		// The Structurer gets its own LLM rather than sharing the
		// tool-dispatching StubClient: the Structurer's completion
		// request never sets Tools, so StubClient would always fall
		// through to its plain-text default and every structure_journal
		// call would degrade to the could_not_structure path. See the
		// equivalent note in internal/agent/agent_test.go.
		Structurer: structurer.New(&echoStructureLLM{}, "test-model"),
		Tasks:      taskMgr,
		LLM:        &providers.StubClient{},
		Model:      "test-model",
	}
	runtime := agent.New(deps)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := NewRouter(st, authSvc, templates, drafts, taskMgr, runtime, logger, config.CORSConfig{Origins: []string{"*"}}, false)

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

// echoStructureLLM always routes the caller's text into open_reflection,
// standing in for the Structurer's model so structure_journal actually
// updates the draft instead of hitting the degraded could_not_structure
// path a shared tool-calling stub would always fall into.
type echoStructureLLM struct{}

func (e *echoStructureLLM) Complete(ctx context.Context, req providers.CompletionRequest) (providers.CompletionResult, error) {
	var text string
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == providers.RoleUser {
			text = req.Messages[i].Content
			break
		}
	}
	encoded, _ := json.Marshal(text)
	return providers.CompletionResult{Content: `{"open_reflection": ` + string(encoded) + `}`}, nil
}

func doJSON(t *testing.T, srv *httptest.Server, method, path, token string, body any) (int, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshaling request body: %v", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, srv.URL+path, reader)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var decoded map[string]any
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &decoded); err != nil {
			t.Fatalf("%s %s: decoding response %q: %v", method, path, raw, err)
		}
	}
	return resp.StatusCode, decoded
}

// decodeList requests an endpoint that responds with a bare JSON array
// (listEntries, listTasks, listSessions) rather than the object body
// doJSON expects.
func decodeList(t *testing.T, srv *httptest.Server, method, path, token string) (int, []any) {
	t.Helper()

	req, err := http.NewRequest(method, srv.URL+path, nil)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	var list []any
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &list); err != nil {
			t.Fatalf("%s %s: decoding response %q as a list: %v", method, path, raw, err)
		}
	}
	return resp.StatusCode, list
}

func registerAndLogin(t *testing.T, srv *httptest.Server, username string) (userID, token string) {
	t.Helper()

	status, _ := doJSON(t, srv, http.MethodPost, "/auth/register", "", map[string]any{
		"username": username,
		"password": "correct-horse-battery-staple",
	})
	if status != http.StatusOK {
		t.Fatalf("register: got status %d", status)
	}

	status, body := doJSON(t, srv, http.MethodPost, "/auth/login", "", map[string]any{
		"username": username,
		"password": "correct-horse-battery-staple",
	})
	if status != http.StatusOK {
		t.Fatalf("login: got status %d, body %v", status, body)
	}
	tok, _ := body["access_token"].(string)
	uid, _ := body["user_id"].(string)
	if tok == "" || uid == "" {
		t.Fatalf("login: missing access_token/user_id in %v", body)
	}
	return uid, tok
}

func TestRegisterLoginAndMe(t *testing.T) {
	srv := newTestServer(t)

	userID, token := registerAndLogin(t, srv, "alice")

	status, body := doJSON(t, srv, http.MethodGet, "/auth/me", token, nil)
	if status != http.StatusOK {
		t.Fatalf("GET /auth/me: got status %d, body %v", status, body)
	}
	if body["user_id"] != userID {
		t.Errorf("/auth/me user_id = %v, want %v", body["user_id"], userID)
	}
	if body["username"] != "alice" {
		t.Errorf("/auth/me username = %v", body["username"])
	}
}

func TestMeRequiresAuthentication(t *testing.T) {
	srv := newTestServer(t)

	status, _ := doJSON(t, srv, http.MethodGet, "/auth/me", "", nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("GET /auth/me without a token: got status %d, want 401", status)
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	srv := newTestServer(t)

	status, _ := doJSON(t, srv, http.MethodPost, "/auth/register", "", map[string]any{
		"username": "bob",
		"password": "correct-password",
	})
	if status != http.StatusOK {
		t.Fatalf("register: got status %d", status)
	}

	status, body := doJSON(t, srv, http.MethodPost, "/auth/login", "", map[string]any{
		"username": "bob",
		"password": "wrong-password",
	})
	if status != http.StatusUnauthorized {
		t.Fatalf("login with wrong password: got status %d, body %v", status, body)
	}
}

func TestDeactivateAccountRevokesTheCallersToken(t *testing.T) {
	srv := newTestServer(t)

	_, token := registerAndLogin(t, srv, "carol")

	status, _ := doJSON(t, srv, http.MethodDelete, "/auth/me", token, nil)
	if status != http.StatusOK {
		t.Fatalf("DELETE /auth/me: got status %d", status)
	}

	status, _ = doJSON(t, srv, http.MethodGet, "/auth/me", token, nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("GET /auth/me with a deactivated user's token: got status %d, want 401", status)
	}
}

func TestSessionCreateAndChatStructuresADraft(t *testing.T) {
	srv := newTestServer(t)
	_, token := registerAndLogin(t, srv, "carol")

	status, body := doJSON(t, srv, http.MethodPost, "/sessions", token, map[string]any{})
	if status != http.StatusOK {
		t.Fatalf("POST /sessions: got status %d, body %v", status, body)
	}
	sessionID, _ := body["session_id"].(string)
	if sessionID == "" {
		t.Fatalf("expected a session_id in %v", body)
	}

	status, body = doJSON(t, srv, http.MethodPost, "/agent/chat/"+sessionID, token, map[string]any{
		"text": "I finished the quarterly report today.",
	})
	if status != http.StatusOK {
		t.Fatalf("POST /agent/chat: got status %d, body %v", status, body)
	}
	toolCalls, _ := body["tool_calls"].([]any)
	if len(toolCalls) != 1 {
		t.Errorf("expected exactly one tool call, got %v", body["tool_calls"])
	}
}

func TestChatOnAnotherUsersSessionIsNotFound(t *testing.T) {
	srv := newTestServer(t)
	_, ownerToken := registerAndLogin(t, srv, "dave")
	_, intruderToken := registerAndLogin(t, srv, "erin")

	_, body := doJSON(t, srv, http.MethodPost, "/sessions", ownerToken, map[string]any{})
	sessionID, _ := body["session_id"].(string)

	status, body := doJSON(t, srv, http.MethodPost, "/agent/chat/"+sessionID, intruderToken, map[string]any{
		"text": "hello",
	})
	if status != http.StatusNotFound {
		t.Fatalf("chatting on someone else's session: got status %d, body %v", status, body)
	}
}

func TestPreferencesRoundTrip(t *testing.T) {
	srv := newTestServer(t)
	_, token := registerAndLogin(t, srv, "frank")

	purpose := "build a daily reflection habit"
	status, body := doJSON(t, srv, http.MethodPost, "/user/preferences", token, map[string]any{
		"purpose_statement": purpose,
		"long_term_goals":   []string{"sleep earlier"},
	})
	if status != http.StatusOK {
		t.Fatalf("POST /user/preferences: got status %d, body %v", status, body)
	}
	if body["purpose_statement"] != purpose {
		t.Errorf("purpose_statement = %v", body["purpose_statement"])
	}

	status, body = doJSON(t, srv, http.MethodGet, "/user/preferences", token, nil)
	if status != http.StatusOK {
		t.Fatalf("GET /user/preferences: got status %d, body %v", status, body)
	}
	if body["purpose_statement"] != purpose {
		t.Errorf("persisted purpose_statement = %v", body["purpose_statement"])
	}
}

func TestTemplateOverrideRoundTrip(t *testing.T) {
	srv := newTestServer(t)
	_, token := registerAndLogin(t, srv, "grace")

	status, body := doJSON(t, srv, http.MethodPost, "/user/template", token, map[string]any{
		"name": "minimalist",
		"sections": []map[string]any{
			{"name": "open_reflection", "description": "free write"},
		},
	})
	if status != http.StatusOK {
		t.Fatalf("POST /user/template: got status %d, body %v", status, body)
	}
	if body["name"] != "minimalist" {
		t.Errorf("template name = %v", body["name"])
	}

	status, body = doJSON(t, srv, http.MethodGet, "/user/template", token, nil)
	if status != http.StatusOK {
		t.Fatalf("GET /user/template: got status %d, body %v", status, body)
	}
	if body["name"] != "minimalist" {
		t.Errorf("persisted template name = %v", body["name"])
	}
}

func TestTaskCreateCompleteAndDelete(t *testing.T) {
	srv := newTestServer(t)
	_, token := registerAndLogin(t, srv, "henry")

	status, body := doJSON(t, srv, http.MethodPost, "/tasks", token, map[string]any{
		"title": "call the dentist",
	})
	if status != http.StatusOK {
		t.Fatalf("POST /tasks: got status %d, body %v", status, body)
	}
	taskID, _ := body["id"].(string)
	if taskID == "" {
		t.Fatalf("expected a task id in %v", body)
	}

	status, body = doJSON(t, srv, http.MethodGet, "/tasks", token, nil)
	if status != http.StatusOK {
		t.Fatalf("GET /tasks: got status %d", status)
	}

	status, body = doJSON(t, srv, http.MethodPost, "/tasks/"+taskID+"/complete", token, nil)
	if status != http.StatusOK {
		t.Fatalf("POST /tasks/:id/complete: got status %d, body %v", status, body)
	}
	if body["is_completed"] != true {
		t.Errorf("completed task is_completed = %v", body["is_completed"])
	}

	status, body = doJSON(t, srv, http.MethodDelete, "/tasks/"+taskID, token, nil)
	if status != http.StatusOK {
		t.Fatalf("DELETE /tasks/:id: got status %d, body %v", status, body)
	}
}

func TestTaskReorderValidatesBijection(t *testing.T) {
	srv := newTestServer(t)
	_, token := registerAndLogin(t, srv, "iris")

	_, first := doJSON(t, srv, http.MethodPost, "/tasks", token, map[string]any{"title": "one"})
	_, second := doJSON(t, srv, http.MethodPost, "/tasks", token, map[string]any{"title": "two"})
	firstID, _ := first["id"].(string)
	secondID, _ := second["id"].(string)

	status, body := doJSON(t, srv, http.MethodPost, "/tasks/reorder", token, map[string]any{
		"task_orders": []map[string]any{
			{"task_id": firstID, "new_priority": 1},
			{"task_id": firstID, "new_priority": 2},
		},
	})
	if status != http.StatusConflict && status != http.StatusBadRequest {
		t.Fatalf("reordering with a duplicate task: got status %d, body %v", status, body)
	}

	status, body = doJSON(t, srv, http.MethodPost, "/tasks/reorder", token, map[string]any{
		"task_orders": []map[string]any{
			{"task_id": firstID, "new_priority": 2},
			{"task_id": secondID, "new_priority": 1},
		},
	})
	if status != http.StatusOK {
		t.Fatalf("reordering a valid permutation: got status %d, body %v", status, body)
	}
}

func TestCreateTaskRejectsBlankTitle(t *testing.T) {
	srv := newTestServer(t)
	_, token := registerAndLogin(t, srv, "jack")

	status, body := doJSON(t, srv, http.MethodPost, "/tasks", token, map[string]any{"title": "   "})
	if status != http.StatusBadRequest {
		t.Fatalf("creating a blank-title task: got status %d, body %v", status, body)
	}
}

func TestJournalEntryVisibleAfterSave(t *testing.T) {
	srv := newTestServer(t)
	_, token := registerAndLogin(t, srv, "kara")

	_, body := doJSON(t, srv, http.MethodPost, "/sessions", token, map[string]any{})
	sessionID, _ := body["session_id"].(string)

	status, body := doJSON(t, srv, http.MethodPost, "/agent/chat/"+sessionID, token, map[string]any{
		"text": "Today I went for a long walk and felt much calmer.",
	})
	if status != http.StatusOK {
		t.Fatalf("POST /agent/chat (structure): got status %d, body %v", status, body)
	}
	if len(body["updated_draft_data"].(map[string]any)) == 0 {
		t.Fatalf("expected the first turn to populate the draft, got %v", body["updated_draft_data"])
	}

	status, body = doJSON(t, srv, http.MethodPost, "/agent/chat/"+sessionID, token, map[string]any{
		"text": "Please save it now.",
	})
	if status != http.StatusOK {
		t.Fatalf("POST /agent/chat (save): got status %d, body %v", status, body)
	}

	status, list := decodeList(t, srv, http.MethodGet, "/journal-entries", token)
	if status != http.StatusOK {
		t.Fatalf("GET /journal-entries: got status %d", status)
	}
	if len(list) != 1 {
		t.Fatalf("expected exactly one saved journal entry, got %d", len(list))
	}
}
