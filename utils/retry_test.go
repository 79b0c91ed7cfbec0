package utils

import (
	"context"
	"errors"
	"testing"
	"time"

	"google.golang.org/api/googleapi"
)

func fastPolicy(attempts int) RetryPolicy {
	policy := NewRetryPolicy(attempts, time.Millisecond)
	policy.MaxDelay = 2 * time.Millisecond
	return policy
}

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := fastPolicy(3).Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return E(KindEmbeddingService, "transient", nil)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestRetryExhaustsAttempts(t *testing.T) {
	calls := 0
	wantErr := E(KindGenerationService, "still down", nil)
	err := fastPolicy(3).Do(context.Background(), func() error {
		calls++
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("got %v", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestRetryStopsOnNonRetryable(t *testing.T) {
	calls := 0
	err := fastPolicy(5).Do(context.Background(), func() error {
		calls++
		return E(KindValidation, "bad input", nil)
	})
	if !IsKind(err, KindValidation) {
		t.Fatalf("got %v", err)
	}
	if calls != 1 {
		t.Fatalf("validation errors must not be retried, calls = %d", calls)
	}
}

func TestRetryNeverMasksCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := fastPolicy(5).Do(ctx, func() error {
		calls++
		cancel()
		return context.Canceled
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}

	// a pre-cancelled context never invokes fn
	calls = 0
	err = fastPolicy(5).Do(ctx, func() error {
		calls++
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v", err)
	}
	if calls != 0 {
		t.Fatal("fn ran despite cancelled context")
	}
}

func TestIsRetryable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil kind", errors.New("plain"), false},
		{"validation", E(KindValidation, "m", nil), false},
		{"config", E(KindConfig, "m", nil), false},
		{"embedding transport failure", E(KindEmbeddingService, "m", nil), true},
		{"generation 429", E(KindGenerationService, "m", &googleapi.Error{Code: 429}), true},
		{"generation 503", E(KindGenerationService, "m", &googleapi.Error{Code: 503}), true},
		{"generation 400", E(KindGenerationService, "m", &googleapi.Error{Code: 400}), false},
		{"index write", E(KindIndexWrite, "m", nil), true},
		{"index search", E(KindIndexSearch, "m", nil), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsRetryable(tc.err); got != tc.want {
				t.Fatalf("IsRetryable(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestErrorKindHelpers(t *testing.T) {
	inner := E(KindIndexWrite, "bulk write failed", errors.New("socket closed"))
	wrapped := E(KindEmbeddingService, "outer", inner)

	// the outermost kind wins
	if KindOf(wrapped) != KindEmbeddingService {
		t.Fatalf("KindOf = %s", KindOf(wrapped))
	}
	if KindOf(errors.New("untyped")) != "" {
		t.Fatal("untyped errors must have no kind")
	}
	if !errors.Is(wrapped, inner) {
		t.Fatal("wrapping must preserve the chain")
	}
}
