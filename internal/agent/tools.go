package agent

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cassidy/journal-core/internal/apperr"
	"github.com/cassidy/journal-core/internal/domain"
	"github.com/cassidy/journal-core/internal/store"
	"github.com/cassidy/journal-core/internal/tasks"
)

// Tool is one entry of the ToolCatalogue: a name, its JSON-schema
// argument shape (as providers.ToolSpec.Parameters expects), and a pure
// handler over the turn's runCtx.
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]any
	handler     func(rc *runCtx, rawArgs json.RawMessage) (map[string]any, error)
}

func stringSchema(props map[string]any, required ...string) map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

var structureJournalTool = Tool{
	Name:        "structure_journal",
	Description: "Classify and route a piece of journaling text into the active template's sections, merging it into the session's draft.",
	Parameters: stringSchema(map[string]any{
		"text": map[string]any{"type": "string", "description": "the raw text to structure"},
	}, "text"),
	handler: handleStructureJournal,
}

func handleStructureJournal(rc *runCtx, rawArgs json.RawMessage) (map[string]any, error) {
	var args struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(rawArgs, &args); err != nil || strings.TrimSpace(args.Text) == "" {
		return nil, apperr.Validation("structure_journal requires a non-empty text argument")
	}

	patch, err := rc.deps.Structurer.Structure(rc.ctx, args.Text, rc.ac.Template)
	if err != nil {
		// StructuringFailed never mutates the draft and never
		// surfaces as an HTTP 5xx; it is returned to the model as a
		// tool result so it can ask a clarifying question.
		if apperr.Is(err, apperr.CodeStructuringFailed) {
			return map[string]any{"error": "could_not_structure", "message": "I couldn't make sense of that — could you rephrase?"}, nil
		}
		return nil, err
	}

	updated, err := mergeAndSave(rc, patch)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	rc.ac.Draft = updated

	sections := make([]string, 0, len(patch))
	for k := range patch {
		sections = append(sections, rc.ac.Template.ResolveAlias(k))
	}

	extractSupplementalTasks(rc, args.Text)

	return map[string]any{"sections_updated": sections}, nil
}

// extractSupplementalTasks is the supplemented task-extraction feature
// (SPEC_FULL.md §4.4): a second, independent LLM call whose failure is
// swallowed rather than failing the turn, falling back to
// tasks.HeuristicExtract.
func extractSupplementalTasks(rc *runCtx, text string) {
	titles, err := rc.deps.Structurer.ExtractTasks(rc.ctx, text)
	if err != nil {
		titles = tasks.HeuristicExtract(text)
	}
	sourceSession := rc.ac.SessionID
	for _, title := range titles {
		title = strings.TrimSpace(title)
		if title == "" {
			continue
		}
		if _, err := rc.deps.Tasks.Create(rc.ctx, rc.tx, rc.ac.UserID, title, nil, 0, nil, &sourceSession); err != nil {
			// Best-effort: a failed supplemental task insert never
			// fails the structuring tool call itself.
			continue
		}
	}
}

var saveJournalTool = Tool{
	Name:        "save_journal",
	Description: "Finalize the current draft into a permanent journal entry. Only call this once the user has clearly confirmed they want to save.",
	Parameters: stringSchema(map[string]any{
		"confirm": map[string]any{"type": "boolean", "description": "must be true; the model must only set this after an explicit user confirmation"},
	}, "confirm"),
	handler: handleSaveJournal,
}

func handleSaveJournal(rc *runCtx, rawArgs json.RawMessage) (map[string]any, error) {
	var args struct {
		Confirm bool `json:"confirm"`
	}
	if err := json.Unmarshal(rawArgs, &args); err != nil {
		return nil, apperr.Validation("save_journal requires a confirm argument")
	}
	// Open Question 2, resolved: the server-side guard is this argument,
	// never a text heuristic on the user's message.
	if !args.Confirm {
		return map[string]any{"saved": false, "reason": "confirmation not given"}, nil
	}
	if rc.ac.Draft.IsEmpty() {
		return map[string]any{"saved": false, "reason": "draft is empty, nothing to save"}, nil
	}

	entry, err := rc.deps.Drafts.Finalize(rc.ctx, rc.tx, rc.ac.Template, rc.ac.Draft, rc.ac.RawText)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	rc.ac.Draft.DraftData = map[string]domain.SectionValue{}
	rc.ac.Draft.IsFinalized = true
	return map[string]any{"saved": true, "entry_id": entry.ID, "title": entry.Title}, nil
}

var updatePreferencesTool = Tool{
	Name:        "update_preferences",
	Description: "Shallow-merge updates into the user's stored preferences.",
	Parameters: stringSchema(map[string]any{
		"updates": map[string]any{"type": "object", "description": "partial UserPreferences fields to merge"},
	}, "updates"),
	handler: handleUpdatePreferences,
}

func handleUpdatePreferences(rc *runCtx, rawArgs json.RawMessage) (map[string]any, error) {
	var args struct {
		Updates struct {
			PurposeStatement       *string           `json:"purpose_statement"`
			LongTermGoals          []string          `json:"long_term_goals"`
			KnownChallenges        []string          `json:"known_challenges"`
			PreferredFeedbackStyle *string           `json:"preferred_feedback_style"`
			PersonalGlossary       map[string]string `json:"personal_glossary"`
		} `json:"updates"`
	}
	if err := json.Unmarshal(rawArgs, &args); err != nil {
		return nil, apperr.Validation("update_preferences requires an updates object")
	}

	patch := store.PreferencesPatch{
		PurposeStatement:       args.Updates.PurposeStatement,
		LongTermGoals:          args.Updates.LongTermGoals,
		KnownChallenges:        args.Updates.KnownChallenges,
		PreferredFeedbackStyle: args.Updates.PreferredFeedbackStyle,
	}
	// Glossary map merges rather than replaces, per spec.md §4.5's tool
	// table ("glossary map merges"); list fields replace wholesale.
	merged := rc.ac.Preferences.PersonalGlossary
	if merged == nil {
		merged = map[string]string{}
	}
	for k, v := range args.Updates.PersonalGlossary {
		merged[k] = v
	}
	if len(args.Updates.PersonalGlossary) > 0 {
		patch.PersonalGlossary = merged
	}

	prefs, err := rc.deps.Store.UpdatePreferences(rc.ctx, rc.tx, rc.ac.UserID, patch)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	rc.ac.Preferences = prefs
	return map[string]any{"updated": true}, nil
}

var getTemplateInfoTool = Tool{
	Name:        "get_template_info",
	Description: "Return the active template's section catalogue (names, descriptions, aliases).",
	Parameters:  stringSchema(map[string]any{}),
	handler:     handleGetTemplateInfo,
}

func handleGetTemplateInfo(rc *runCtx, _ json.RawMessage) (map[string]any, error) {
	return map[string]any{"name": rc.ac.Template.Name, "sections": rc.ac.Template.Sections}, nil
}

var reloadTemplateTool = Tool{
	Name:        "reload_template",
	Description: "Refresh the process-wide default template from its source of truth.",
	Parameters:  stringSchema(map[string]any{}),
	handler:     handleReloadTemplate,
}

func handleReloadTemplate(rc *runCtx, _ json.RawMessage) (map[string]any, error) {
	rc.deps.Templates.Reload()
	refreshed, err := rc.deps.Templates.ForUser(rc.ctx, rc.ac.UserID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	rc.ac.Template = refreshed
	return map[string]any{"reloaded": true}, nil
}

var createTaskTool = Tool{
	Name:        "create_task",
	Description: "Create a new task on the user's task list.",
	Parameters: stringSchema(map[string]any{
		"title":       map[string]any{"type": "string"},
		"description": map[string]any{"type": "string"},
		"priority":    map[string]any{"type": "integer", "description": "1-based priority; omit for end of list"},
		"due_date":    map[string]any{"type": "string", "description": "RFC3339 timestamp"},
	}, "title"),
	handler: handleCreateTask,
}

func handleCreateTask(rc *runCtx, rawArgs json.RawMessage) (map[string]any, error) {
	var args struct {
		Title       string  `json:"title"`
		Description *string `json:"description"`
		Priority    int     `json:"priority"`
		DueDate     *string `json:"due_date"`
	}
	if err := json.Unmarshal(rawArgs, &args); err != nil || strings.TrimSpace(args.Title) == "" {
		return nil, apperr.Validation("create_task requires a title")
	}
	due, err := parseOptionalTime(args.DueDate)
	if err != nil {
		return nil, apperr.Validation("due_date must be RFC3339")
	}
	sourceSession := rc.ac.SessionID
	t, err := rc.deps.Tasks.Create(rc.ctx, rc.tx, rc.ac.UserID, args.Title, args.Description, args.Priority, due, &sourceSession)
	if err != nil {
		return nil, err
	}
	return map[string]any{"task_id": t.ID, "priority": t.Priority}, nil
}

var listTasksTool = Tool{
	Name:        "list_tasks",
	Description: "List the user's tasks in canonical order.",
	Parameters: stringSchema(map[string]any{
		"include_completed": map[string]any{"type": "boolean"},
	}),
	handler: handleListTasks,
}

func handleListTasks(rc *runCtx, rawArgs json.RawMessage) (map[string]any, error) {
	var args struct {
		IncludeCompleted bool `json:"include_completed"`
	}
	_ = json.Unmarshal(rawArgs, &args)
	list, err := rc.deps.Tasks.List(rc.ctx, rc.tx, rc.ac.UserID, args.IncludeCompleted)
	if err != nil {
		return nil, err
	}
	return map[string]any{"tasks": list}, nil
}

var completeTaskTool = Tool{
	Name:        "complete_task",
	Description: "Mark a task completed and recompact remaining priorities.",
	Parameters: stringSchema(map[string]any{
		"task_id": map[string]any{"type": "string"},
	}, "task_id"),
	handler: handleCompleteTask,
}

func handleCompleteTask(rc *runCtx, rawArgs json.RawMessage) (map[string]any, error) {
	var args struct {
		TaskID string `json:"task_id"`
	}
	if err := json.Unmarshal(rawArgs, &args); err != nil || args.TaskID == "" {
		return nil, apperr.Validation("complete_task requires a task_id")
	}
	t, err := rc.deps.Tasks.Complete(rc.ctx, rc.tx, rc.ac.UserID, args.TaskID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"task_id": t.ID, "is_completed": t.IsCompleted}, nil
}

var deleteTaskTool = Tool{
	Name:        "delete_task",
	Description: "Delete a task and recompact remaining priorities.",
	Parameters: stringSchema(map[string]any{
		"task_id": map[string]any{"type": "string"},
	}, "task_id"),
	handler: handleDeleteTask,
}

func handleDeleteTask(rc *runCtx, rawArgs json.RawMessage) (map[string]any, error) {
	var args struct {
		TaskID string `json:"task_id"`
	}
	if err := json.Unmarshal(rawArgs, &args); err != nil || args.TaskID == "" {
		return nil, apperr.Validation("delete_task requires a task_id")
	}
	if err := rc.deps.Tasks.Delete(rc.ctx, rc.tx, rc.ac.UserID, args.TaskID); err != nil {
		return nil, err
	}
	return map[string]any{"deleted": true}, nil
}

// updateTaskTool supplements spec.md's table with original_source's
// update_task_tool (title/description edit), per SPEC_FULL.md §4.5.
var updateTaskTool = Tool{
	Name:        "update_task",
	Description: "Edit a task's title or description.",
	Parameters: stringSchema(map[string]any{
		"task_id":     map[string]any{"type": "string"},
		"title":       map[string]any{"type": "string"},
		"description": map[string]any{"type": "string"},
	}, "task_id"),
	handler: handleUpdateTask,
}

func handleUpdateTask(rc *runCtx, rawArgs json.RawMessage) (map[string]any, error) {
	var args struct {
		TaskID      string  `json:"task_id"`
		Title       *string `json:"title"`
		Description *string `json:"description"`
	}
	if err := json.Unmarshal(rawArgs, &args); err != nil || args.TaskID == "" {
		return nil, apperr.Validation("update_task requires a task_id")
	}
	t, err := rc.deps.Tasks.Update(rc.ctx, rc.tx, rc.ac.UserID, args.TaskID, tasks.UpdatePatch{Title: args.Title, Description: args.Description})
	if err != nil {
		return nil, err
	}
	return map[string]any{"task_id": t.ID, "title": t.Title}, nil
}

func parseOptionalTime(value *string) (*time.Time, error) {
	if value == nil || strings.TrimSpace(*value) == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, *value)
	if err != nil {
		return nil, fmt.Errorf("parse due_date: %w", err)
	}
	return &t, nil
}
