package httpapi

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cassidy/journal-core/internal/apperr"
	"github.com/cassidy/journal-core/internal/auth"
	"github.com/cassidy/journal-core/internal/domain"
	"github.com/cassidy/journal-core/internal/store"
	"github.com/cassidy/journal-core/internal/tasks"
)

// defaultEntryListLimit is the page size GET /journal-entries falls back
// to when the caller omits ?limit=, matching store.ListEntries's own
// internal default.
const defaultEntryListLimit = 50

// --- auth ---

func (api *API) register(c *gin.Context) {
	var payload struct {
		Username string  `json:"username" binding:"required"`
		Email    *string `json:"email"`
		Password string  `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		api.validationError(c, "username and password are required")
		return
	}
	if len(payload.Username) < 3 || len(payload.Username) > 100 {
		api.validationError(c, "username must be 3-100 characters")
		return
	}

	user, err := api.auth.Register(c.Request.Context(), payload.Username, payload.Email, payload.Password)
	if err != nil {
		api.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": user.ID, "username": user.Username})
}

func (api *API) login(c *gin.Context) {
	var payload struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		api.validationError(c, "username and password are required")
		return
	}

	user, issued, err := api.auth.Login(c.Request.Context(), payload.Username, payload.Password, userAgent(c), clientIP(c))
	if err != nil {
		if err == auth.ErrInvalidCredentials {
			c.JSON(http.StatusUnauthorized, gin.H{"error": string(apperr.CodeUnauthorized), "message": "invalid username or password"})
			return
		}
		api.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"access_token": issued.Token,
		"token_type":   "bearer",
		"expires_in":   int(time.Until(issued.ExpiresAt).Seconds()),
		"user_id":      user.ID,
		"username":     user.Username,
	})
}

func (api *API) me(c *gin.Context) {
	userID := currentUserID(c)
	user, err := api.store.GetUserByID(c.Request.Context(), api.store.DB(), userID)
	if err != nil {
		api.handleError(c, mapNotFound(err, "user not found"))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user_id":     user.ID,
		"username":    user.Username,
		"email":       user.Email,
		"is_verified": user.IsVerified,
		"created_at":  formatTime(user.CreatedAt),
	})
}

// deactivateMe is the caller's self-service soft-delete, per spec.md
// §3's User lifecycle. It never hard-deletes a row, so every owned
// ChatSession/JournalEntry/Task remains intact for audit or reactivation.
func (api *API) deactivateMe(c *gin.Context) {
	userID := currentUserID(c)
	if err := api.auth.DeactivateAccount(c.Request.Context(), userID); err != nil {
		api.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deactivated"})
}

// --- sessions ---

func (api *API) createSession(c *gin.Context) {
	userID := currentUserID(c)
	var payload struct {
		ConversationType *string        `json:"conversation_type"`
		Metadata         map[string]any `json:"metadata"`
	}
	_ = c.ShouldBindJSON(&payload)

	convType := domain.ConversationTypeJournaling
	if payload.ConversationType != nil && *payload.ConversationType != "" {
		convType = domain.ConversationType(*payload.ConversationType)
	}

	session, err := api.store.CreateChatSession(c.Request.Context(), api.store.DB(), userID, convType)
	if err != nil {
		api.handleError(c, apperr.Internal(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"session_id":        session.ID,
		"conversation_type": session.ConversationType,
		"created_at":        formatTime(session.CreatedAt),
	})
}

func (api *API) listSessions(c *gin.Context) {
	userID := currentUserID(c)
	sessions, err := api.store.ListSessions(c.Request.Context(), api.store.DB(), userID)
	if err != nil {
		api.handleError(c, apperr.Internal(err))
		return
	}
	c.JSON(http.StatusOK, sessions)
}

// --- agent chat ---

func (api *API) chat(c *gin.Context) {
	userID := currentUserID(c)
	sessionID := c.Param("session_id")

	var payload struct {
		Text     string         `json:"text" binding:"required"`
		Metadata map[string]any `json:"metadata"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil || strings.TrimSpace(payload.Text) == "" {
		api.validationError(c, "text is required")
		return
	}

	tx, err := api.store.Begin(c.Request.Context())
	if err != nil {
		api.handleError(c, apperr.Internal(err))
		return
	}

	result, err := api.runtime.Turn(c.Request.Context(), tx, userID, sessionID, payload.Text, payload.Metadata)
	if err != nil {
		_ = tx.Rollback()
		api.handleError(c, err)
		return
	}
	if err := tx.Commit(); err != nil {
		api.handleError(c, apperr.Internal(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"text":               result.Text,
		"session_id":         result.SessionID,
		"updated_draft_data": result.UpdatedDraftData,
		"tool_calls":         result.ToolCalls,
		"metadata":           gin.H{"overflow": result.Overflow},
	})
}

// --- preferences ---

func (api *API) getPreferences(c *gin.Context) {
	userID := currentUserID(c)
	prefs, err := api.store.GetOrCreatePreferences(c.Request.Context(), api.store.DB(), userID)
	if err != nil {
		api.handleError(c, apperr.Internal(err))
		return
	}
	c.JSON(http.StatusOK, prefs)
}

func (api *API) updatePreferences(c *gin.Context) {
	userID := currentUserID(c)
	var payload struct {
		PurposeStatement       *string           `json:"purpose_statement"`
		LongTermGoals          []string          `json:"long_term_goals"`
		KnownChallenges        []string          `json:"known_challenges"`
		PreferredFeedbackStyle *string           `json:"preferred_feedback_style"`
		PersonalGlossary       map[string]string `json:"personal_glossary"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		api.validationError(c, "malformed preferences payload")
		return
	}

	prefs, err := api.store.UpdatePreferences(c.Request.Context(), api.store.DB(), userID, store.PreferencesPatch{
		PurposeStatement:       payload.PurposeStatement,
		LongTermGoals:          payload.LongTermGoals,
		KnownChallenges:        payload.KnownChallenges,
		PreferredFeedbackStyle: payload.PreferredFeedbackStyle,
		PersonalGlossary:       payload.PersonalGlossary,
	})
	if err != nil {
		api.handleError(c, apperr.Internal(err))
		return
	}
	c.JSON(http.StatusOK, prefs)
}

// --- template ---

func (api *API) getTemplate(c *gin.Context) {
	userID := currentUserID(c)
	tmpl, err := api.templates.ForUser(c.Request.Context(), userID)
	if err != nil {
		api.handleError(c, apperr.Internal(err))
		return
	}
	c.JSON(http.StatusOK, tmpl)
}

func (api *API) updateTemplate(c *gin.Context) {
	userID := currentUserID(c)
	var payload struct {
		Name     string                   `json:"name"`
		Sections []domain.TemplateSection `json:"sections" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil || len(payload.Sections) == 0 {
		api.validationError(c, "sections are required")
		return
	}
	name := payload.Name
	if name == "" {
		name = "Custom Template"
	}

	tmpl, err := api.templates.SaveOverride(c.Request.Context(), userID, name, payload.Sections)
	if err != nil {
		api.handleError(c, apperr.Internal(err))
		return
	}
	c.JSON(http.StatusOK, tmpl)
}

// --- journal entries ---

// listEntries defaults to defaultEntryListLimit entries; callers that
// need more than the default page pass ?limit= explicitly rather than
// getting a silently truncated list.
func (api *API) listEntries(c *gin.Context) {
	userID := currentUserID(c)
	limit := parseIntQuery(c.Query("limit"), defaultEntryListLimit)
	entries, err := api.store.ListEntries(c.Request.Context(), api.store.DB(), userID, limit)
	if err != nil {
		api.handleError(c, apperr.Internal(err))
		return
	}
	c.JSON(http.StatusOK, entries)
}

func (api *API) getEntry(c *gin.Context) {
	userID := currentUserID(c)
	entry, err := api.store.GetEntryForUser(c.Request.Context(), api.store.DB(), userID, c.Param("id"))
	if err != nil {
		api.handleError(c, mapNotFound(err, "journal entry not found"))
		return
	}
	c.JSON(http.StatusOK, entry)
}

// --- tasks ---

func (api *API) listTasks(c *gin.Context) {
	userID := currentUserID(c)
	includeCompleted := parseBoolQuery(c.Query("include_completed"), false)
	list, err := api.tasks.List(c.Request.Context(), api.store.DB(), userID, includeCompleted)
	if err != nil {
		api.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (api *API) createTask(c *gin.Context) {
	userID := currentUserID(c)
	var payload struct {
		Title       string  `json:"title" binding:"required"`
		Description *string `json:"description"`
		Priority    int     `json:"priority"`
		DueDate     *string `json:"due_date"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil || strings.TrimSpace(payload.Title) == "" {
		api.validationError(c, "title is required")
		return
	}
	due, err := parseOptionalDueDate(payload.DueDate)
	if err != nil {
		api.validationError(c, "due_date must be RFC3339")
		return
	}

	tx, err := api.store.Begin(c.Request.Context())
	if err != nil {
		api.handleError(c, apperr.Internal(err))
		return
	}
	t, err := api.tasks.Create(c.Request.Context(), tx, userID, payload.Title, payload.Description, payload.Priority, due, nil)
	if err != nil {
		_ = tx.Rollback()
		api.handleError(c, err)
		return
	}
	if err := tx.Commit(); err != nil {
		api.handleError(c, apperr.Internal(err))
		return
	}
	c.JSON(http.StatusOK, t)
}

func (api *API) updateTask(c *gin.Context) {
	userID := currentUserID(c)
	var payload struct {
		Title       *string `json:"title"`
		Description *string `json:"description"`
		DueDate     *string `json:"due_date"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		api.validationError(c, "malformed task payload")
		return
	}
	due, err := parseOptionalDueDate(payload.DueDate)
	if err != nil {
		api.validationError(c, "due_date must be RFC3339")
		return
	}

	t, err := api.tasks.Update(c.Request.Context(), api.store.DB(), userID, c.Param("id"), tasks.UpdatePatch{
		Title:       payload.Title,
		Description: payload.Description,
		DueDate:     due,
	})
	if err != nil {
		api.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (api *API) completeTask(c *gin.Context) {
	userID := currentUserID(c)
	tx, err := api.store.Begin(c.Request.Context())
	if err != nil {
		api.handleError(c, apperr.Internal(err))
		return
	}
	t, err := api.tasks.Complete(c.Request.Context(), tx, userID, c.Param("id"))
	if err != nil {
		_ = tx.Rollback()
		api.handleError(c, err)
		return
	}
	if err := tx.Commit(); err != nil {
		api.handleError(c, apperr.Internal(err))
		return
	}
	c.JSON(http.StatusOK, t)
}

func (api *API) deleteTask(c *gin.Context) {
	userID := currentUserID(c)
	tx, err := api.store.Begin(c.Request.Context())
	if err != nil {
		api.handleError(c, apperr.Internal(err))
		return
	}
	if err := api.tasks.Delete(c.Request.Context(), tx, userID, c.Param("id")); err != nil {
		_ = tx.Rollback()
		api.handleError(c, err)
		return
	}
	if err := tx.Commit(); err != nil {
		api.handleError(c, apperr.Internal(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "task deleted"})
}

func (api *API) reorderTasks(c *gin.Context) {
	userID := currentUserID(c)
	var payload struct {
		TaskOrders []struct {
			TaskID      string `json:"task_id"`
			NewPriority int    `json:"new_priority"`
		} `json:"task_orders" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil || len(payload.TaskOrders) == 0 {
		api.validationError(c, "task_orders is required")
		return
	}

	orderings := make([]tasks.Ordering, 0, len(payload.TaskOrders))
	for _, o := range payload.TaskOrders {
		orderings = append(orderings, tasks.Ordering{TaskID: o.TaskID, NewPriority: o.NewPriority})
	}

	tx, err := api.store.Begin(c.Request.Context())
	if err != nil {
		api.handleError(c, apperr.Internal(err))
		return
	}
	if err := api.tasks.Reorder(c.Request.Context(), tx, userID, orderings); err != nil {
		_ = tx.Rollback()
		api.handleError(c, err)
		return
	}
	if err := tx.Commit(); err != nil {
		api.handleError(c, apperr.Internal(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "tasks reordered"})
}

// --- error mapping ---

func mapNotFound(err error, msg string) error {
	if err == store.ErrNotFound {
		return apperr.NotFound(msg)
	}
	return apperr.Internal(err)
}

// handleError maps the error taxonomy of spec.md §7 to an HTTP status
// and a user-safe body, generalizing the teacher's one-error-one-branch
// switch into a single typed dispatch keyed on apperr.Error.Status(),
// per SPEC_FULL.md §7. No error path leaks raw exception text.
func (api *API) handleError(c *gin.Context, err error) {
	if ae, ok := apperr.As(err); ok {
		if ae.Status() >= http.StatusInternalServerError {
			requestLogger(c, api.logger).Error("request failed", slog.String("code", string(ae.Code)), slog.Any("error", err))
		}
		c.JSON(ae.Status(), gin.H{"error": string(ae.Code), "message": ae.Message})
		return
	}
	requestLogger(c, api.logger).Error("unhandled error", slog.Any("error", err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": string(apperr.CodeInternal), "message": "an unexpected error occurred"})
}

func (api *API) validationError(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": string(apperr.CodeValidation), "message": msg})
}

// parseOptionalDueDate parses an RFC3339 due_date string from a request
// body, leaving it nil when the field was omitted.
func parseOptionalDueDate(value *string) (*time.Time, error) {
	if value == nil || strings.TrimSpace(*value) == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, *value)
	if err != nil {
		return nil, err
	}
	t = t.UTC()
	return &t, nil
}
