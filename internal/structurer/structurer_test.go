package structurer

import (
	"context"
	"errors"
	"testing"

	"github.com/cassidy/journal-core/internal/apperr"
	"github.com/cassidy/journal-core/internal/domain"
	"github.com/cassidy/journal-core/internal/providers"
)

// fixedLLM is a minimal deterministic LLMClient double, grounded on
// providers.StubClient's role as a network-free test double but
// returning raw completion content rather than driving the tool-call
// contract, since Structure/ExtractTasks never pass a Tools list.
type fixedLLM struct {
	content string
	err     error
}

func (f *fixedLLM) Complete(ctx context.Context, req providers.CompletionRequest) (providers.CompletionResult, error) {
	if f.err != nil {
		return providers.CompletionResult{}, f.err
	}
	return providers.CompletionResult{Content: f.content}, nil
}

func testTemplate() domain.UserTemplate {
	return domain.UserTemplate{
		Sections: []domain.TemplateSection{
			{Name: "open_reflection", Aliases: []string{"reflection"}},
			{Name: "things_done", Aliases: []string{"done"}},
		},
	}
}

func TestStructureParsesJSONAndResolvesAliases(t *testing.T) {
	llm := &fixedLLM{content: `Sure, here you go:` + "\n" + `{"reflection": "A calm day.", "done": ["wrote tests"]}`}
	s := New(llm, "test-model")

	patch, err := s.Structure(context.Background(), "A calm day, I wrote tests.", testTemplate())
	if err != nil {
		t.Fatalf("Structure returned an error: %v", err)
	}

	if patch["open_reflection"] != "A calm day." {
		t.Errorf("patch[open_reflection] = %v", patch["open_reflection"])
	}
	done, ok := patch["things_done"].([]string)
	if !ok || len(done) != 1 || done[0] != "wrote tests" {
		t.Errorf("patch[things_done] = %v", patch["things_done"])
	}
}

func TestStructureEmptyPatchIsNotAnError(t *testing.T) {
	llm := &fixedLLM{content: `{}`}
	s := New(llm, "test-model")

	patch, err := s.Structure(context.Background(), "nothing notable", testTemplate())
	if err != nil {
		t.Fatalf("Structure returned an error for a legal empty patch: %v", err)
	}
	if len(patch) != 0 {
		t.Errorf("expected an empty patch, got %v", patch)
	}
}

func TestStructureNonJSONOutputIsStructuringFailed(t *testing.T) {
	llm := &fixedLLM{content: "I don't know what to make of that."}
	s := New(llm, "test-model")

	_, err := s.Structure(context.Background(), "mumble mumble", testTemplate())
	if !apperr.Is(err, apperr.CodeStructuringFailed) {
		t.Fatalf("expected CodeStructuringFailed, got %v", err)
	}
}

func TestStructureMalformedJSONIsStructuringFailed(t *testing.T) {
	llm := &fixedLLM{content: `{"reflection": "unterminated`}
	s := New(llm, "test-model")

	_, err := s.Structure(context.Background(), "mumble mumble", testTemplate())
	if !apperr.Is(err, apperr.CodeStructuringFailed) {
		t.Fatalf("expected CodeStructuringFailed for malformed JSON, got %v", err)
	}
}

func TestStructureTransportFailureIsUpstreamUnavailable(t *testing.T) {
	llm := &fixedLLM{err: errors.New("connection reset")}
	s := New(llm, "test-model")

	_, err := s.Structure(context.Background(), "anything", testTemplate())
	if !apperr.Is(err, apperr.CodeUpstreamUnavail) {
		t.Fatalf("expected CodeUpstreamUnavail, got %v", err)
	}
}

func TestExtractTasksParsesJSONArray(t *testing.T) {
	llm := &fixedLLM{content: `["call the dentist", "buy groceries"]`}
	s := New(llm, "test-model")

	titles, err := s.ExtractTasks(context.Background(), "I need to call the dentist and buy groceries.")
	if err != nil {
		t.Fatalf("ExtractTasks returned an error: %v", err)
	}
	if len(titles) != 2 || titles[0] != "call the dentist" || titles[1] != "buy groceries" {
		t.Errorf("titles = %v", titles)
	}
}

func TestExtractTasksEmptyArrayIsLegal(t *testing.T) {
	llm := &fixedLLM{content: `[]`}
	s := New(llm, "test-model")

	titles, err := s.ExtractTasks(context.Background(), "a quiet day")
	if err != nil {
		t.Fatalf("ExtractTasks returned an error for a legal empty array: %v", err)
	}
	if len(titles) != 0 {
		t.Errorf("expected no titles, got %v", titles)
	}
}

func TestExtractTasksNonArrayOutputIsStructuringFailed(t *testing.T) {
	llm := &fixedLLM{content: "there is nothing to extract"}
	s := New(llm, "test-model")

	_, err := s.ExtractTasks(context.Background(), "a quiet day")
	if !apperr.Is(err, apperr.CodeStructuringFailed) {
		t.Fatalf("expected CodeStructuringFailed, got %v", err)
	}
}
