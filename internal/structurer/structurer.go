// Package structurer implements C4: turning a raw user utterance into
// a section-keyed patch via a dedicated LLM prompt. Grounded on the
// original's structuring prompt in app/agents/tools.py
// (structure_journal's system instructions enumerating the section
// catalogue), reimplemented here as a standalone LLMClient call rather
// than an in-process function so it can be retried and timed out like
// any other upstream call.
package structurer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cassidy/journal-core/internal/apperr"
	"github.com/cassidy/journal-core/internal/domain"
	"github.com/cassidy/journal-core/internal/providers"
)

// DefaultTimeout is the hard timeout on the structuring call, per
// spec.md §5 ("LLM calls carry a hard timeout, default 30s").
const DefaultTimeout = 30 * time.Second

type Structurer struct {
	llm   providers.LLMClient
	model string
}

func New(llm providers.LLMClient, model string) *Structurer {
	return &Structurer{llm: llm, model: model}
}

// Structure transforms rawText into a section patch. LLM transport
// failures surface as apperr.UpstreamUnavailable/UpstreamTimeout;
// non-JSON or malformed model output surfaces as
// apperr.StructuringFailed. An empty patch (zero keys) is a legal,
// successful result — spec.md §4.4.
func (s *Structurer) Structure(ctx context.Context, rawText string, tmpl domain.UserTemplate) (map[string]domain.SectionValue, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	req := providers.CompletionRequest{
		Model:  s.model,
		System: buildSystemPrompt(tmpl),
		Messages: []providers.Message{
			{Role: providers.RoleUser, Content: rawText},
		},
	}

	result, err := s.llm.Complete(ctx, req)
	if err != nil {
		if ae, ok := apperr.As(err); ok {
			return nil, ae
		}
		if ctx.Err() != nil {
			return nil, apperr.UpstreamTimeout(err)
		}
		return nil, apperr.UpstreamUnavailable(err)
	}

	raw := extractJSONObject(result.Content)
	if raw == "" {
		return nil, apperr.StructuringFailed(fmt.Errorf("structurer: no JSON object in model output"))
	}

	var parsed map[string]any
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, apperr.StructuringFailed(fmt.Errorf("structurer: malformed JSON: %w", err))
	}

	patch := make(map[string]domain.SectionValue, len(parsed))
	for key, value := range parsed {
		canonical := tmpl.ResolveAlias(key)
		patch[canonical] = normalizeValue(value)
	}
	return patch, nil
}

// ExtractTasks scans rawText for actionable items and returns candidate
// task titles, supplementing spec.md's section-routing Structurer with
// original_source's task_tools.py::extract_tasks_from_text. Its caller,
// the structure_journal tool handler, swallows failures here and falls
// back to a heuristic extractor (mirroring the original's try/except
// fallback) rather than fail the whole turn over a best-effort feature.
func (s *Structurer) ExtractTasks(ctx context.Context, rawText string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	req := providers.CompletionRequest{
		Model:  s.model,
		System: taskExtractionPrompt,
		Messages: []providers.Message{
			{Role: providers.RoleUser, Content: rawText},
		},
	}
	result, err := s.llm.Complete(ctx, req)
	if err != nil {
		if ae, ok := apperr.As(err); ok {
			return nil, ae
		}
		return nil, apperr.UpstreamUnavailable(err)
	}

	raw := extractJSONArray(result.Content)
	if raw == "" {
		return nil, apperr.StructuringFailed(fmt.Errorf("structurer: no JSON array in task-extraction output"))
	}
	var titles []string
	if err := json.Unmarshal([]byte(raw), &titles); err != nil {
		return nil, apperr.StructuringFailed(fmt.Errorf("structurer: malformed task list JSON: %w", err))
	}
	return titles, nil
}

const taskExtractionPrompt = "You read a short piece of journaling text and pull out concrete, " +
	"actionable to-do items the writer mentioned (things they said they need to do, buy, or follow up on). " +
	"Respond with a JSON array of short task title strings. If there are none, respond with []. JSON only, no prose."

func extractJSONArray(content string) string {
	start := strings.IndexByte(content, '[')
	end := strings.LastIndexByte(content, ']')
	if start == -1 || end == -1 || end < start {
		return ""
	}
	return content[start : end+1]
}

func buildSystemPrompt(tmpl domain.UserTemplate) string {
	var b strings.Builder
	b.WriteString("You convert a short piece of journaling text into a JSON object.\n")
	b.WriteString("Each key must be one of the following section names (or a close alias):\n\n")
	for _, sec := range tmpl.Sections {
		fmt.Fprintf(&b, "- %s: %s\n", sec.Name, sec.Description)
		if len(sec.Aliases) > 0 {
			fmt.Fprintf(&b, "  aliases: %s\n", strings.Join(sec.Aliases, ", "))
		}
	}
	b.WriteString("\nEach value must be a string or a list of strings drawn from the input text.\n")
	b.WriteString("Omit sections the text says nothing about. Respond with JSON only, no prose.\n")
	return b.String()
}

// extractJSONObject pulls the first top-level {...} block out of a
// model response, tolerating surrounding prose or code fences.
func extractJSONObject(content string) string {
	start := strings.IndexByte(content, '{')
	end := strings.LastIndexByte(content, '}')
	if start == -1 || end == -1 || end < start {
		return ""
	}
	return content[start : end+1]
}

func normalizeValue(v any) domain.SectionValue {
	switch val := v.(type) {
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return val
	}
}
