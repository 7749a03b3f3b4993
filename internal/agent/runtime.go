package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/cassidy/journal-core/internal/apperr"
	"github.com/cassidy/journal-core/internal/domain"
	"github.com/cassidy/journal-core/internal/draft"
	"github.com/cassidy/journal-core/internal/providers"
	"github.com/cassidy/journal-core/internal/store"
)

// ToolCallBudget bounds how many tool-call round-trips one turn may
// spend before the runtime forces a terminal reply, per spec.md §4.6
// step 7 ("a bounded tool-call budget (e.g., 8)").
const ToolCallBudget = 8

// Timeout is the hard timeout on the main completion call, per spec.md
// §5 ("LLM calls carry a hard timeout (default 30s)").
const Timeout = 30 * time.Second

// Runtime is C6: the per-turn procedure that builds an AgentContext,
// drives the model through its tool-call loop, and persists the
// resulting messages — spec.md §4.6's nine numbered steps.
type Runtime struct {
	deps *Deps
}

func New(deps *Deps) *Runtime {
	return &Runtime{deps: deps}
}

// ToolCallRecord is one (name, args, result) triple recorded on the
// assistant message's metadata, per spec.md §4.6 step 8.
type ToolCallRecord struct {
	Name   string `json:"name"`
	Args   string `json:"args"`
	Result string `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// TurnResult is the per-turn response of spec.md §4.6 step 9.
type TurnResult struct {
	Text             string
	SessionID        string
	UpdatedDraftData map[string]domain.SectionValue
	ToolCalls        []ToolCallRecord
	Overflow         bool
}

// lockKey is the session:{session_id} advisory lock of spec.md §5,
// acquired at the top of a turn so two concurrent turns on the same
// session are strictly sequenced.
func lockKey(sessionID string) string {
	return fmt.Sprintf("session:%s", sessionID)
}

// Turn runs one full agent turn: spec.md §4.6 steps 1-9.
func (r *Runtime) Turn(ctx context.Context, tx *store.Tx, userID, sessionID, text string, metadata map[string]any) (TurnResult, error) {
	// Step 1: load ChatSession for (user_id, session_id); NotFound if
	// absent or not owned.
	session, err := r.deps.Store.GetSessionForUser(ctx, tx, userID, sessionID)
	if err != nil {
		if err == store.ErrNotFound {
			return TurnResult{}, apperr.NotFound("session not found")
		}
		return TurnResult{}, apperr.Internal(err)
	}

	if err := store.AdvisoryLock(ctx, tx, lockKey(sessionID)); err != nil {
		return TurnResult{}, apperr.Internal(err)
	}

	// Step 2: preferences, template, draft.
	prefs, err := r.deps.Store.GetOrCreatePreferences(ctx, tx, userID)
	if err != nil {
		return TurnResult{}, apperr.Internal(err)
	}
	tmpl, err := r.deps.Templates.ForUser(ctx, userID)
	if err != nil {
		return TurnResult{}, apperr.Internal(err)
	}
	d, err := r.deps.Drafts.Load(ctx, tx, sessionID, userID)
	if err != nil {
		return TurnResult{}, apperr.Internal(err)
	}

	// Step 3: ordered message history.
	history, err := r.deps.Store.ListMessages(ctx, tx, sessionID)
	if err != nil {
		return TurnResult{}, apperr.Internal(err)
	}

	// Step 4: build AgentContext.
	ac := &Context{
		UserID:      userID,
		SessionID:   sessionID,
		Preferences: prefs,
		Template:    tmpl,
		Draft:       d,
		History:     history,
		RawText:     text,
	}

	// Step 5: persist the incoming user utterance.
	if _, err := r.deps.Store.AppendMessage(ctx, tx, sessionID, domain.RoleUser, text, metadata); err != nil {
		return TurnResult{}, apperr.Internal(err)
	}

	systemPrompt, toolset := For(session.ConversationType)
	system := buildSystemPrompt(systemPrompt, ac)

	messages := historyToMessages(history)
	messages = append(messages, providers.Message{Role: providers.RoleUser, Content: text})

	toolSpecs := make([]providers.ToolSpec, 0, len(toolset))
	for _, t := range toolset {
		toolSpecs = append(toolSpecs, providers.ToolSpec{Name: t.Name, Description: t.Description, Parameters: t.Parameters})
	}

	rc := &runCtx{ctx: ctx, tx: tx, deps: r.deps, ac: ac}

	var calls []ToolCallRecord
	var finalText string
	overflow := false

	llmCtx, cancel := context.WithTimeout(ctx, Timeout)
	defer cancel()

	// Step 6-7: invoke the model, loop over tool calls up to the budget.
	for round := 0; ; round++ {
		if round >= ToolCallBudget {
			overflow = true
			finalText = "I've made several updates but want to pause here — let me know what else you'd like."
			break
		}

		result, err := r.deps.LLM.Complete(llmCtx, providers.CompletionRequest{
			Model:    r.deps.Model,
			System:   system,
			Messages: messages,
			Tools:    toolSpecs,
		})
		if err != nil {
			if ae, ok := apperr.As(err); ok {
				return TurnResult{}, ae
			}
			if llmCtx.Err() != nil {
				return TurnResult{}, apperr.UpstreamTimeout(err)
			}
			return TurnResult{}, apperr.UpstreamUnavailable(err)
		}

		if len(result.ToolCalls) == 0 {
			finalText = result.Content
			break
		}

		messages = append(messages, providers.Message{
			Role:      providers.RoleAssistant,
			Content:   result.Content,
			ToolCalls: result.ToolCalls,
		})

		for _, call := range result.ToolCalls {
			record := ToolCallRecord{Name: call.Name, Args: call.Arguments}
			resultContent, err := runTool(rc, toolset, call)
			if err != nil {
				record.Error = safeErrorMessage(err)
				resultContent = fmt.Sprintf(`{"error":%q}`, record.Error)
			} else {
				record.Result = resultContent
			}
			calls = append(calls, record)
			messages = append(messages, providers.Message{
				Role:       providers.RoleTool,
				Content:    resultContent,
				ToolCallID: call.ID,
			})
		}
	}

	// Step 8: persist the assistant reply with tool-call metadata.
	assistantMeta := map[string]any{"tool_calls": calls}
	if overflow {
		assistantMeta["overflow"] = true
	}
	if _, err := r.deps.Store.AppendMessage(ctx, tx, sessionID, domain.RoleAssistant, finalText, assistantMeta); err != nil {
		return TurnResult{}, apperr.Internal(err)
	}

	// Step 9: return the turn result with the post-tool draft snapshot.
	return TurnResult{
		Text:             finalText,
		SessionID:        sessionID,
		UpdatedDraftData: ac.Draft.DraftData,
		ToolCalls:        calls,
		Overflow:         overflow,
	}, nil
}

// runTool dispatches one tool call with a savepoint boundary so a
// single tool's failure rolls back only its own writes while the turn
// continues, per spec.md §4.5's last sentence.
func runTool(rc *runCtx, toolset []Tool, call providers.ToolCall) (string, error) {
	tool, ok := toolByName(toolset, call.Name)
	if !ok {
		return "", apperr.Validation(fmt.Sprintf("unknown tool %q", call.Name))
	}

	sp, err := rc.tx.Savepoint(rc.ctx)
	if err != nil {
		return "", apperr.Internal(err)
	}

	result, err := tool.handler(rc, json.RawMessage(call.Arguments))
	if err != nil {
		if rbErr := sp.Rollback(rc.ctx); rbErr != nil {
			return "", apperr.Internal(rbErr)
		}
		return "", err
	}
	if err := sp.Release(rc.ctx); err != nil {
		return "", apperr.Internal(err)
	}

	out, marshalErr := json.Marshal(result)
	if marshalErr != nil {
		return "", apperr.Internal(marshalErr)
	}
	return string(out), nil
}

// mergeAndSave runs the DraftEngine's merge rules and persists the
// result within the turn's transaction, used by structure_journal. A
// save failure propagates so the caller's savepoint rolls back the
// merge rather than leaving an in-memory draft that was never written.
func mergeAndSave(rc *runCtx, patch map[string]domain.SectionValue) (domain.JournalDraft, error) {
	updated := draft.MergePatch(rc.ac.Template, rc.ac.Draft, patch)
	if err := rc.deps.Drafts.Save(rc.ctx, rc.tx, updated); err != nil {
		return domain.JournalDraft{}, err
	}
	return updated, nil
}

func historyToMessages(history []domain.ChatMessage) []providers.Message {
	out := make([]providers.Message, 0, len(history))
	for _, m := range history {
		role := providers.RoleUser
		switch m.Role {
		case domain.RoleAssistant:
			role = providers.RoleAssistant
		case domain.RoleSystem:
			role = providers.RoleSystem
		}
		out = append(out, providers.Message{Role: role, Content: m.Content})
	}
	return out
}

// buildSystemPrompt composes the fixed base instructions, the
// conversation type's fragment, and a dynamic "currently empty
// sections" hint drawn from the AgentContext, per spec.md §4.6 step 6
// and original_source's factory.py::_get_system_prompt.
func buildSystemPrompt(fragment string, ac *Context) string {
	var b strings.Builder
	b.WriteString("You are a journaling assistant. You help the user reflect on their day, ")
	b.WriteString("organize their thoughts into their journal template, and keep their task list current. ")
	b.WriteString("Be warm but concise.\n\n")
	b.WriteString(fragment)
	b.WriteString("\n\n")

	empty := emptySections(ac.Template, ac.Draft)
	if len(empty) > 0 {
		sort.Strings(empty)
		b.WriteString("Sections with no content yet this session: ")
		b.WriteString(strings.Join(empty, ", "))
		b.WriteString(". Gently encourage coverage of these when it fits the conversation.\n")
	}
	return b.String()
}

func emptySections(tmpl domain.UserTemplate, d domain.JournalDraft) []string {
	var out []string
	for _, sec := range tmpl.Sections {
		v, ok := d.DraftData[sec.Name]
		if !ok || isEmptyValue(v) {
			out = append(out, sec.Name)
		}
	}
	return out
}

func isEmptyValue(v domain.SectionValue) bool {
	switch val := v.(type) {
	case string:
		return val == ""
	case []string:
		return len(val) == 0
	case []any:
		return len(val) == 0
	case map[string]string:
		return len(val) == 0
	case map[string]any:
		return len(val) == 0
	default:
		return val == nil
	}
}

// safeErrorMessage never leaks raw exception text to the model's tool
// context beyond what apperr already exposes, per spec.md §7's
// propagation policy.
func safeErrorMessage(err error) string {
	if ae, ok := apperr.As(err); ok {
		return ae.Error()
	}
	return "an unexpected error occurred"
}
