package draft

import (
	"strings"
	"testing"

	"github.com/cassidy/journal-core/internal/domain"
)

func testTemplate() domain.UserTemplate {
	return domain.UserTemplate{
		Name: "default",
		Sections: []domain.TemplateSection{
			{Name: "open_reflection", Aliases: []string{"reflection", "free_write"}},
			{Name: "things_done", Aliases: []string{"done", "accomplishments"}},
			{Name: "to_do", Aliases: []string{"todo", "tasks"}},
		},
	}
}

func emptyDraft() domain.JournalDraft {
	return domain.JournalDraft{ID: "draft-1", SessionID: "sess-1", UserID: "user-1"}
}

func TestMergePatchFirstWriteIsStoredVerbatim(t *testing.T) {
	d := MergePatch(testTemplate(), emptyDraft(), map[string]domain.SectionValue{
		"open_reflection": "Today was a good day.",
	})

	if got := d.DraftData["open_reflection"]; got != "Today was a good day." {
		t.Errorf("DraftData[open_reflection] = %v, want %q", got, "Today was a good day.")
	}
}

func TestMergePatchStringConcatenatesWithNewline(t *testing.T) {
	d := emptyDraft()
	d.DraftData = map[string]domain.SectionValue{"open_reflection": "First line."}

	d = MergePatch(testTemplate(), d, map[string]domain.SectionValue{
		"open_reflection": "Second line.",
	})

	want := "First line.\nSecond line."
	if got := d.DraftData["open_reflection"]; got != want {
		t.Errorf("DraftData[open_reflection] = %q, want %q", got, want)
	}
}

func TestMergePatchStringConcatenationSkipsEmptySides(t *testing.T) {
	d := emptyDraft()
	d.DraftData = map[string]domain.SectionValue{"open_reflection": ""}

	d = MergePatch(testTemplate(), d, map[string]domain.SectionValue{
		"open_reflection": "New content.",
	})

	if got := d.DraftData["open_reflection"]; got != "New content." {
		t.Errorf("DraftData[open_reflection] = %q, want %q", got, "New content.")
	}
}

func TestMergePatchListAppendsWithoutDedup(t *testing.T) {
	d := emptyDraft()
	d.DraftData = map[string]domain.SectionValue{"things_done": []string{"wrote code"}}

	d = MergePatch(testTemplate(), d, map[string]domain.SectionValue{
		"things_done": []string{"wrote code", "reviewed PR"},
	})

	got, ok := d.DraftData["things_done"].([]string)
	if !ok {
		t.Fatalf("DraftData[things_done] is %T, want []string", d.DraftData["things_done"])
	}
	want := []string{"wrote code", "wrote code", "reviewed PR"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestMergePatchMapShallowMerges(t *testing.T) {
	d := emptyDraft()
	d.DraftData = map[string]domain.SectionValue{
		"to_do": map[string]any{"laundry": "pending"},
	}

	d = MergePatch(testTemplate(), d, map[string]domain.SectionValue{
		"to_do": map[string]any{"groceries": "pending", "laundry": "done"},
	})

	got, ok := d.DraftData["to_do"].(map[string]any)
	if !ok {
		t.Fatalf("DraftData[to_do] is %T, want map[string]any", d.DraftData["to_do"])
	}
	if got["laundry"] != "done" {
		t.Errorf("laundry = %v, want %v (incoming should win on key collision)", got["laundry"], "done")
	}
	if got["groceries"] != "pending" {
		t.Errorf("groceries = %v, want %v", got["groceries"], "pending")
	}
}

func TestMergePatchTypeConflictCoercesToList(t *testing.T) {
	d := emptyDraft()
	d.DraftData = map[string]domain.SectionValue{"open_reflection": "a string"}

	d = MergePatch(testTemplate(), d, map[string]domain.SectionValue{
		"open_reflection": []string{"a", "list"},
	})

	got, ok := d.DraftData["open_reflection"].([]any)
	if !ok {
		t.Fatalf("DraftData[open_reflection] is %T, want []any", d.DraftData["open_reflection"])
	}
	if len(got) != 2 {
		t.Fatalf("got %v, want 2 elements", got)
	}
	if got[0] != "a string" {
		t.Errorf("got[0] = %v, want the original string preserved", got[0])
	}
}

func TestMergePatchResolvesAliasesAndRecordsWarningForUnknownSections(t *testing.T) {
	d := MergePatch(testTemplate(), emptyDraft(), map[string]domain.SectionValue{
		"todo":              "buy milk",
		"nonexistent_thing": "some value",
	})

	if _, ok := d.DraftData["to_do"]; !ok {
		t.Errorf("expected alias %q to resolve to canonical section %q", "todo", "to_do")
	}
	if _, ok := d.DraftData["nonexistent_thing"]; !ok {
		t.Errorf("unknown section should still be stored verbatim")
	}

	warnings, ok := d.Metadata["warnings"].([]Warning)
	if !ok {
		t.Fatalf("Metadata[warnings] is %T, want []Warning", d.Metadata["warnings"])
	}
	if len(warnings) != 1 {
		t.Fatalf("got %d warnings, want 1 (only the unknown section)", len(warnings))
	}
	if warnings[0].Section != "nonexistent_thing" {
		t.Errorf("warning section = %q, want %q", warnings[0].Section, "nonexistent_thing")
	}
}

func TestGenerateTitleTruncatesAndCollapsesWhitespace(t *testing.T) {
	longText := "This   is  a very   long open reflection that definitely exceeds fifty characters in length."
	title := generateTitle(testTemplate(), map[string]domain.SectionValue{"open_reflection": longText})

	if len(title) != 50 {
		t.Errorf("len(title) = %d, want 50", len(title))
	}
	if title != "This is a very long open reflection that definitel" {
		t.Errorf("title = %q", title)
	}
}

// TestGenerateTitlePicksTheFirstTemplateSectionDeterministically pins
// down that "first non-empty section" means first in the template's
// declared section order, not Go's randomized map iteration order: with
// both things_done and to_do populated, the title must always come from
// things_done since it precedes to_do in testTemplate().
func TestGenerateTitlePicksTheFirstTemplateSectionDeterministically(t *testing.T) {
	data := map[string]domain.SectionValue{
		"to_do":           "buy groceries",
		"things_done":     "finished the report",
		"open_reflection": "",
	}
	for i := 0; i < 20; i++ {
		title := generateTitle(testTemplate(), data)
		if title != "finished the report" {
			t.Fatalf("title = %q, want %q (things_done precedes to_do in the template)", title, "finished the report")
		}
	}
}

func TestGenerateTitleFallsBackWhenNoContent(t *testing.T) {
	title := generateTitle(testTemplate(), map[string]domain.SectionValue{"open_reflection": "", "to_do": []string{}})
	if title == "" {
		t.Fatalf("expected a non-empty fallback title")
	}
	if !strings.HasPrefix(title, "Journal Entry") {
		t.Errorf("title = %q, want it to start with the dated placeholder prefix", title)
	}
}
