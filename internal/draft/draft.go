// Package draft implements C3: merging LLM-derived section patches into
// a session's JournalDraft and finalizing a draft into a JournalEntry.
// Grounded on the original's draft merge logic in app/agents/tools.py
// (structure_journal's in-place section update), generalized into an
// explicit, independently testable merge function.
package draft

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cassidy/journal-core/internal/domain"
	"github.com/cassidy/journal-core/internal/store"
)

type Engine struct {
	store *store.Store
}

func New(s *store.Store) *Engine {
	return &Engine{store: s}
}

// Load returns a session's draft, creating an empty one if none exists.
func (e *Engine) Load(ctx context.Context, db store.DBTX, sessionID, userID string) (domain.JournalDraft, error) {
	return e.store.GetOrCreateDraft(ctx, db, sessionID, userID)
}

// Warning is appended to a draft's metadata["warnings"] when a patch key
// does not resolve to a known template section.
type Warning struct {
	Section string `json:"section"`
	Reason  string `json:"reason"`
}

// MergePatch applies patch into draft.DraftData following the merge
// rules: string+string concatenates with a newline, list+list appends
// without dedup, map+map shallow-merges, and any other type mismatch
// coerces the existing value into a list and appends both. Unknown
// section names are kept verbatim but recorded as a warning. It returns
// the updated draft; callers persist it via Save.
func MergePatch(tmpl domain.UserTemplate, d domain.JournalDraft, patch map[string]domain.SectionValue) domain.JournalDraft {
	if d.DraftData == nil {
		d.DraftData = map[string]domain.SectionValue{}
	}
	if d.Metadata == nil {
		d.Metadata = map[string]any{}
	}

	for rawKey, value := range patch {
		section := tmpl.ResolveAlias(rawKey)
		if _, known := tmpl.Section(section); !known {
			d.Metadata["warnings"] = appendWarning(d.Metadata["warnings"], Warning{
				Section: section,
				Reason:  "not declared in the active template",
			})
		}

		existing, has := d.DraftData[section]
		if !has {
			d.DraftData[section] = value
			continue
		}
		d.DraftData[section] = mergeValue(existing, value)
	}
	return d
}

func appendWarning(existing any, w Warning) []Warning {
	var list []Warning
	if ws, ok := existing.([]Warning); ok {
		list = ws
	} else if ws, ok := existing.([]any); ok {
		for _, item := range ws {
			if m, ok := item.(map[string]any); ok {
				sec, _ := m["section"].(string)
				reason, _ := m["reason"].(string)
				list = append(list, Warning{Section: sec, Reason: reason})
			}
		}
	}
	list = append(list, w)
	return list
}

func mergeValue(existing, incoming domain.SectionValue) domain.SectionValue {
	switch ex := existing.(type) {
	case string:
		switch in := incoming.(type) {
		case string:
			if ex == "" {
				return in
			}
			if in == "" {
				return ex
			}
			return ex + "\n" + in
		default:
			return coerceToList(ex, incoming)
		}
	case []string:
		switch in := incoming.(type) {
		case []string:
			return append(append([]string{}, ex...), in...)
		case []any:
			out := append([]string{}, ex...)
			for _, v := range in {
				if s, ok := v.(string); ok {
					out = append(out, s)
				}
			}
			return out
		case string:
			return append(append([]string{}, ex...), in)
		default:
			return coerceToList(ex, incoming)
		}
	case []any:
		switch in := incoming.(type) {
		case []any:
			return append(append([]any{}, ex...), in...)
		case []string:
			out := append([]any{}, ex...)
			for _, v := range in {
				out = append(out, v)
			}
			return out
		default:
			return append(append([]any{}, ex...), incoming)
		}
	case map[string]string:
		if in, ok := incoming.(map[string]string); ok {
			out := map[string]string{}
			for k, v := range ex {
				out[k] = v
			}
			for k, v := range in {
				out[k] = v
			}
			return out
		}
		return coerceToList(ex, incoming)
	case map[string]any:
		if in, ok := incoming.(map[string]any); ok {
			out := map[string]any{}
			for k, v := range ex {
				out[k] = v
			}
			for k, v := range in {
				out[k] = v
			}
			return out
		}
		return coerceToList(ex, incoming)
	default:
		return incoming
	}
}

// coerceToList handles the type-conflict case: neither side is
// discarded, both land in a list.
func coerceToList(existing, incoming any) []any {
	return []any{existing, incoming}
}

// Save persists draft.DraftData, the mutated field after MergePatch.
func (e *Engine) Save(ctx context.Context, db store.DBTX, d domain.JournalDraft) error {
	return e.store.SaveDraftData(ctx, db, d.ID, d.DraftData)
}

// Finalize snapshots a draft into a new JournalEntry and clears it,
// within the caller's transaction so the clear and the entry creation
// commit together or not at all (spec.md's mandated atomicity for
// save_journal).
func (e *Engine) Finalize(ctx context.Context, db store.DBTX, tmpl domain.UserTemplate, d domain.JournalDraft, rawText string) (domain.JournalEntry, error) {
	title := generateTitle(tmpl, d.DraftData)
	sessionID := d.SessionID
	entry, err := e.store.CreateEntry(ctx, db, d.UserID, &sessionID, title, d.DraftData, rawText, nil)
	if err != nil {
		return domain.JournalEntry{}, err
	}
	if err := e.store.FinalizeDraft(ctx, db, d.ID); err != nil {
		return domain.JournalEntry{}, err
	}
	return entry, nil
}

// generateTitle takes the first 50 characters of the first non-empty
// section value, trimmed and whitespace-collapsed, falling back to a
// dated placeholder when the draft carries no content. "First" means
// first in the active template's declared section order, not Go's
// randomized map iteration order, matching the original's _generate_title
// (original_source/backend/app/repositories/session.py).
func generateTitle(tmpl domain.UserTemplate, data map[string]domain.SectionValue) string {
	for _, sec := range tmpl.Sections {
		v, ok := data[sec.Name]
		if !ok {
			continue
		}
		text := firstNonEmptyText(v)
		if text == "" {
			continue
		}
		text = collapseWhitespace(strings.TrimSpace(text))
		runes := []rune(text)
		if len(runes) > 50 {
			text = string(runes[:50])
		}
		if text != "" {
			return text
		}
	}
	return fmt.Sprintf("Journal Entry — %s", time.Now().UTC().Format("2006-01-02"))
}

func firstNonEmptyText(v domain.SectionValue) string {
	switch val := v.(type) {
	case string:
		return val
	case []string:
		if len(val) > 0 {
			return val[0]
		}
	case []any:
		if len(val) > 0 {
			if s, ok := val[0].(string); ok {
				return s
			}
		}
	}
	return ""
}

func collapseWhitespace(s string) string {
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}
