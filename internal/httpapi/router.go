// Package httpapi implements spec.md §6.1: the v1 HTTP surface over the
// core. Grounded on the teacher's gin-gonic/gin router and handler-method
// shape (func (api *API) handlerName(c *gin.Context)), generalized from
// the teacher's cookie session to the bearer-token auth spec.md mandates,
// and expanded from the teacher's single resource group to the full
// journaling endpoint table.
package httpapi

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/cassidy/journal-core/internal/agent"
	"github.com/cassidy/journal-core/internal/auth"
	"github.com/cassidy/journal-core/internal/config"
	"github.com/cassidy/journal-core/internal/draft"
	"github.com/cassidy/journal-core/internal/store"
	"github.com/cassidy/journal-core/internal/tasks"
	"github.com/cassidy/journal-core/internal/template"
)

type API struct {
	store     *store.Store
	auth      *auth.Service
	templates *template.Provider
	drafts    *draft.Engine
	tasks     *tasks.Manager
	runtime   *agent.Runtime
	logger    *slog.Logger
	debug     bool
}

// NewRouter wires the full v1 HTTP surface, per spec.md §6.1's table.
// Every dependency is passed in explicitly (spec.md §9: "injectable for
// tests"), never read from package-level globals.
func NewRouter(
	st *store.Store,
	authSvc *auth.Service,
	templates *template.Provider,
	drafts *draft.Engine,
	taskMgr *tasks.Manager,
	runtime *agent.Runtime,
	logger *slog.Logger,
	cors config.CORSConfig,
	debug bool,
) http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestIDMiddleware())
	r.Use(corsMiddleware(cors))

	api := &API{
		store:     st,
		auth:      authSvc,
		templates: templates,
		drafts:    drafts,
		tasks:     taskMgr,
		runtime:   runtime,
		logger:    logger,
		debug:     debug,
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	r.POST("/auth/register", api.register)
	r.POST("/auth/login", api.login)

	authed := r.Group("/")
	authed.Use(api.requireAuth)

	authed.GET("/auth/me", api.me)
	authed.DELETE("/auth/me", api.deactivateMe)

	authed.POST("/sessions", api.createSession)
	authed.GET("/sessions", api.listSessions)

	authed.POST("/agent/chat/:session_id", api.chat)

	authed.GET("/user/preferences", api.getPreferences)
	authed.POST("/user/preferences", api.updatePreferences)

	authed.GET("/user/template", api.getTemplate)
	authed.POST("/user/template", api.updateTemplate)

	authed.GET("/journal-entries", api.listEntries)
	authed.GET("/journal-entries/:id", api.getEntry)

	authed.GET("/tasks", api.listTasks)
	authed.POST("/tasks", api.createTask)
	authed.PUT("/tasks/:id", api.updateTask)
	authed.POST("/tasks/:id/complete", api.completeTask)
	authed.DELETE("/tasks/:id", api.deleteTask)
	authed.POST("/tasks/reorder", api.reorderTasks)

	return r
}

const requestIDKey = "request_id"

func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := uuid.NewString()
		c.Set(requestIDKey, id)
		c.Writer.Header().Set("X-Request-ID", id)
		c.Next()
	}
}

func corsMiddleware(cors config.CORSConfig) gin.HandlerFunc {
	allowed := make(map[string]bool, len(cors.Origins))
	for _, o := range cors.Origins {
		allowed[o] = true
	}
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" && (allowed[origin] || allowed["*"]) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
			c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

const userIDKey = "user_id"

// requireAuth is require_user(request) -> user_id at the HTTP edge,
// per spec.md §1/§6.1 ("Authorization: Bearer <token> on all endpoints
// except ...").
func (api *API) requireAuth(c *gin.Context) {
	header := c.Request.Header.Get("Authorization")
	token := strings.TrimPrefix(header, "Bearer ")
	if token == header && !strings.HasPrefix(header, "Bearer ") {
		token = ""
	}
	userID, err := api.auth.RequireUser(c.Request.Context(), token)
	if err != nil {
		api.handleError(c, err)
		c.Abort()
		return
	}
	c.Set(userIDKey, userID)
	c.Next()
}

func currentUserID(c *gin.Context) string {
	v, _ := c.Get(userIDKey)
	id, _ := v.(string)
	return id
}

func requestLogger(c *gin.Context, logger *slog.Logger) *slog.Logger {
	id, _ := c.Get(requestIDKey)
	rid, _ := id.(string)
	return logger.With(slog.String(requestIDKey, rid))
}

func clientIP(c *gin.Context) string {
	return c.ClientIP()
}

func userAgent(c *gin.Context) string {
	return c.Request.UserAgent()
}

func parseBoolQuery(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	default:
		return fallback
	}
}

func parseIntQuery(value string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
