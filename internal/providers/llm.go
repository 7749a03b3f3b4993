// Package providers holds the LLMClient abstraction the agent runtime
// and structurer call through, generalizing the teacher's single-shot
// Generate into a tool-calling Complete, since the journaling agent
// must be able to invoke ToolCatalogue handlers mid-turn (spec.md
// §4.6). Grounded on internal/providers/llm.go's Registry shape,
// carried forward unchanged for provider lookup by name.
package providers

import (
	"context"
	"strings"
)

// Role mirrors the wire roles go-openai expects.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one turn of conversation passed to the model, including
// the bookkeeping fields needed to round-trip a tool call and its
// result back into context.
type Message struct {
	Role       Role
	Content    string
	ToolCallID string     // set on Role == RoleTool: which call this answers
	ToolCalls  []ToolCall // set on Role == RoleAssistant when it invoked tools
}

// ToolSpec declares one callable tool: name, human description, and a
// JSON-schema object describing its arguments, per spec.md §4.5.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// ToolCall is one invocation the model asked for.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string // raw JSON, caller unmarshals against the tool's schema
}

// CompletionRequest is one LLMClient.Complete call: prior turns plus
// the tool catalogue available this turn.
type CompletionRequest struct {
	Model    string
	System   string
	Messages []Message
	Tools    []ToolSpec
}

// CompletionResult is either a terminal text reply (ToolCalls empty) or
// a request to run tools before continuing (text may be empty).
type CompletionResult struct {
	Content   string
	ToolCalls []ToolCall
}

// LLMClient is the boundary the agent runtime drives per spec.md §4.6
// step 6: one call per round-trip, the caller loops until ToolCalls is
// empty or the tool-call budget is exhausted.
type LLMClient interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResult, error)
}

// Registry resolves a named LLMClient, grounded on the teacher's
// providers.Registry (backend/internal/providers/llm.go) and wired the
// same way the teacher's SessionService resolves session.ProviderName
// through it (internal/service/session_service.go). cmd/server
// registers "stub" and, when an API key is configured, "openai", then
// resolves LLM_PROVIDER (default "openai", or "stub" with no key) out
// of the registry rather than constructing the client inline.
type Registry struct {
	clients map[string]LLMClient
}

func NewRegistry() *Registry {
	return &Registry{clients: make(map[string]LLMClient)}
}

func (r *Registry) Register(name string, client LLMClient) {
	r.clients[strings.ToLower(name)] = client
}

func (r *Registry) Client(name string) (LLMClient, bool) {
	client, ok := r.clients[strings.ToLower(name)]
	return client, ok
}
