package providers

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
)

// StubClient is a deterministic LLMClient for tests, grounded on the
// teacher's EchoClient but driving the tool-calling contract instead
// of a plain echo: it emits save_journal when the latest user message
// contains "save it" and otherwise the structure_journal tool call a
// real model would, so spec.md §8.1 invariant 7 ("Structurer round-trip
// given a deterministic LLM stub") is exercisable without a network
// call.
type StubClient struct {
	// FailTransport, when set, makes every Complete call return a
	// transport error, for exercising S5 (LLM outage).
	FailTransport bool
	// FailStructuring, when set, makes the emitted structure_journal
	// tool call carry malformed JSON arguments, which the tool handler
	// rejects as a validation error.
	FailStructuring bool

	calls int
}

func (s *StubClient) Complete(ctx context.Context, req CompletionRequest) (CompletionResult, error) {
	s.calls++
	if s.FailTransport {
		return CompletionResult{}, errors.New("stub: simulated transport failure")
	}

	lastUser := lastUserContent(req.Messages)
	hasTool := func(name string) bool {
		for _, t := range req.Tools {
			if t.Name == name {
				return true
			}
		}
		return false
	}

	// Already answering a tool result: emit a terminal text reply.
	if len(req.Messages) > 0 && req.Messages[len(req.Messages)-1].Role == RoleTool {
		return CompletionResult{Content: "Noted. Anything else?"}, nil
	}

	if strings.Contains(strings.ToLower(lastUser), "save it") && hasTool("save_journal") {
		args := `{"confirm": true}`
		return CompletionResult{ToolCalls: []ToolCall{{ID: "call_save", Name: "save_journal", Arguments: args}}}, nil
	}

	if hasTool("structure_journal") {
		if s.FailStructuring {
			return CompletionResult{ToolCalls: []ToolCall{{ID: "call_structure", Name: "structure_journal", Arguments: "{not json"}}}, nil
		}
		args, _ := json.Marshal(map[string]string{"text": lastUser})
		return CompletionResult{ToolCalls: []ToolCall{{ID: "call_structure", Name: "structure_journal", Arguments: string(args)}}}, nil
	}

	return CompletionResult{Content: "Tell me more about your day."}, nil
}

func lastUserContent(messages []Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			return messages[i].Content
		}
	}
	return ""
}
