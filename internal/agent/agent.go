// Package agent implements C5 (ToolCatalogue) and C6 (AgentRuntime): the
// fixed set of tools a conversational turn may invoke, and the per-turn
// procedure that builds an AgentContext, drives providers.LLMClient
// through zero or more tool calls, and persists the resulting messages.
// Grounded on original_source's factory.py (system prompt assembly) and
// tools.py (conversation-type tool registry), reimplemented as typed Go
// handlers over internal/store rather than Python closures.
package agent

import (
	"context"

	"github.com/cassidy/journal-core/internal/domain"
	"github.com/cassidy/journal-core/internal/draft"
	"github.com/cassidy/journal-core/internal/providers"
	"github.com/cassidy/journal-core/internal/store"
	"github.com/cassidy/journal-core/internal/structurer"
	"github.com/cassidy/journal-core/internal/tasks"
	"github.com/cassidy/journal-core/internal/template"
)

// Deps bundles the module-level singletons the runtime and its tool
// handlers need, threaded through explicitly rather than read from
// package-level globals, per spec.md §9 ("injectable for tests").
type Deps struct {
	Store      *store.Store
	Templates  *template.Provider
	Drafts     *draft.Engine
	Structurer *structurer.Structurer
	Tasks      *tasks.Manager
	LLM        providers.LLMClient
	Model      string
}

// Context is spec.md §4.6's AgentContext: the per-turn bundle a tool
// handler reads and mutates.
type Context struct {
	UserID      string
	SessionID   string
	Preferences domain.UserPreferences
	Template    domain.UserTemplate
	Draft       domain.JournalDraft
	History     []domain.ChatMessage

	// RawText is the current turn's user utterance, available to
	// handlers (save_journal) that need the raw source text rather
	// than the structured patch.
	RawText string
}

// runCtx is the execution environment one tool call runs in: the
// request-scoped transaction, a handle back to Deps, and the mutable
// Context.
type runCtx struct {
	ctx  context.Context
	tx   *store.Tx
	deps *Deps
	ac   *Context
}
