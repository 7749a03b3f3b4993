package providers

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/cassidy/journal-core/internal/apperr"
)

// RetryingClient wraps an LLMClient with the transport-retry policy of
// spec.md §7: at most two retries, exponential backoff. Only network
// errors and deadline-exceeded are retried; any other error, including
// a 4xx from the upstream, is returned at once as UpstreamUnavailable.
type RetryingClient struct {
	inner      LLMClient
	maxRetries int
	baseDelay  time.Duration
}

func NewRetryingClient(inner LLMClient) *RetryingClient {
	return &RetryingClient{inner: inner, maxRetries: 2, baseDelay: 200 * time.Millisecond}
}

func (c *RetryingClient) Complete(ctx context.Context, req CompletionRequest) (CompletionResult, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		result, err := c.inner.Complete(ctx, req)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !isRetryableTransportError(err) {
			break
		}
		if attempt == c.maxRetries {
			break
		}
		delay := c.baseDelay * time.Duration(1<<attempt)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return CompletionResult{}, ctx.Err()
		}
	}
	return CompletionResult{}, classifyUpstreamError(lastErr)
}

func isRetryableTransportError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return false
}

// classifyUpstreamError maps a final transport failure to the error
// taxonomy's UpstreamTimeout or UpstreamUnavailable, per spec.md §7.
func classifyUpstreamError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperr.UpstreamTimeout(err)
	}
	return apperr.UpstreamUnavailable(err)
}
