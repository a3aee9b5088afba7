package utils

import (
	"context"
	"testing"
	"time"
)

func TestWaitFor(t *testing.T) {
	t.Parallel()

	t.Run("returns immediately for non-positive duration", func(t *testing.T) {
		t.Parallel()
		if err := WaitFor(context.Background(), 0); err != nil {
			t.Fatalf("expected nil error, got %v", err)
		}
	})

	t.Run("waits out the duration", func(t *testing.T) {
		t.Parallel()
		start := time.Now()
		if err := WaitFor(context.Background(), 10*time.Millisecond); err != nil {
			t.Fatalf("expected nil error, got %v", err)
		}
		if elapsed := time.Since(start); elapsed < 10*time.Millisecond {
			t.Fatalf("returned after %v, expected at least 10ms", elapsed)
		}
	})

	t.Run("aborts on context cancellation", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if err := WaitFor(ctx, time.Minute); err != context.Canceled {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	})
}
