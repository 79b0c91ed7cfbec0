package utils

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"time"

	"google.golang.org/api/googleapi"
)

// RetryPolicy retries an operation with bounded exponential backoff.
// External-call sites (embedding, search, generation, index writes) share
// one policy instead of ad hoc loops.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Retryable   func(error) bool
}

// NewRetryPolicy builds a policy with the default retryable predicate.
func NewRetryPolicy(maxAttempts int, baseDelay time.Duration) RetryPolicy {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if baseDelay <= 0 {
		baseDelay = 200 * time.Millisecond
	}
	return RetryPolicy{
		MaxAttempts: maxAttempts,
		BaseDelay:   baseDelay,
		MaxDelay:    10 * time.Second,
		Retryable:   IsRetryable,
	}
}

// Do runs fn until it succeeds, the attempts are exhausted, the error is
// not retryable, or ctx is done. Context cancellation is returned as the
// context's own error, never remapped.
func (p RetryPolicy) Do(ctx context.Context, fn func() error) error {
	var lastErr error

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, context.Canceled) || errors.Is(lastErr, context.DeadlineExceeded) {
			return lastErr
		}
		if p.Retryable != nil && !p.Retryable(lastErr) {
			return lastErr
		}
		if attempt == p.MaxAttempts {
			break
		}

		delay := p.BaseDelay << (attempt - 1)
		if p.MaxDelay > 0 && delay > p.MaxDelay {
			delay = p.MaxDelay
		}
		// full jitter keeps concurrent retries from synchronizing
		delay = time.Duration(rand.Int63n(int64(delay)) + int64(p.BaseDelay)/2)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return lastErr
}

// IsRetryable reports whether err looks transient: dependency-failure kinds
// whose cause is throttling or a server-side error. Validation, config and
// format errors are never retried.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindEmbeddingService, KindGenerationService, KindIndexWrite, KindIndexSearch:
	default:
		return false
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code == http.StatusTooManyRequests || gerr.Code >= 500
	}

	// No HTTP status attached: assume a transport-level failure.
	return true
}
