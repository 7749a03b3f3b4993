package providers

import (
	"context"
	"errors"
	"testing"

	"github.com/cassidy/journal-core/internal/apperr"
)

type countingClient struct {
	failures int // number of calls that should fail before succeeding
	err      error
	calls    int
}

func (c *countingClient) Complete(ctx context.Context, req CompletionRequest) (CompletionResult, error) {
	c.calls++
	if c.calls <= c.failures {
		return CompletionResult{}, c.err
	}
	return CompletionResult{Content: "ok"}, nil
}

func TestRetryingClientSucceedsAfterTransientFailures(t *testing.T) {
	inner := &countingClient{failures: 2, err: context.DeadlineExceeded}
	c := NewRetryingClient(inner)

	result, err := c.Complete(context.Background(), CompletionRequest{})
	if err != nil {
		t.Fatalf("expected success after retries, got error: %v", err)
	}
	if result.Content != "ok" {
		t.Errorf("result.Content = %q, want %q", result.Content, "ok")
	}
	if inner.calls != 3 {
		t.Errorf("inner.calls = %d, want 3 (1 initial + 2 retries)", inner.calls)
	}
}

func TestRetryingClientGivesUpAfterMaxRetries(t *testing.T) {
	inner := &countingClient{failures: 100, err: context.DeadlineExceeded}
	c := NewRetryingClient(inner)

	_, err := c.Complete(context.Background(), CompletionRequest{})
	if !apperr.Is(err, apperr.CodeUpstreamTimeout) {
		t.Fatalf("expected CodeUpstreamTimeout after exhausting retries, got %v", err)
	}
	if inner.calls != 3 {
		t.Errorf("inner.calls = %d, want 3 (1 initial + 2 retries, maxRetries=2)", inner.calls)
	}
}

func TestRetryingClientNeverRetriesNonTransientErrors(t *testing.T) {
	permanent := errors.New("400: bad request")
	inner := &countingClient{failures: 100, err: permanent}
	c := NewRetryingClient(inner)

	_, err := c.Complete(context.Background(), CompletionRequest{})
	if !apperr.Is(err, apperr.CodeUpstreamUnavail) {
		t.Fatalf("expected CodeUpstreamUnavail, got %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("inner.calls = %d, want 1 (no retries for a non-transient error)", inner.calls)
	}
}
