package resilience

import (
	"context"
	"errors"
	"fmt"
	"syscall"
	"testing"
	"time"
)

var errReset = fmt.Errorf("read tcp: %w", syscall.ECONNRESET)

func noWait(int, error) time.Duration { return 0 }

func TestDoVal_SuccessOnFirstAttempt(t *testing.T) {
	var calls int
	val, err := DoVal(context.Background(), RetryConfig{MaxAttempts: 3}, func(_ context.Context) (string, error) {
		calls++
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != "ok" || calls != 1 {
		t.Errorf("got %q after %d calls, want \"ok\" after 1", val, calls)
	}
}

func TestDoVal_SuccessAfterRetry(t *testing.T) {
	var calls int
	cfg := RetryConfig{MaxAttempts: 3, Backoff: noWait}

	val, err := DoVal(context.Background(), cfg, func(_ context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, errReset
		}
		return 42, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != 42 || calls != 3 {
		t.Errorf("got %d after %d calls, want 42 after 3", val, calls)
	}
}

func TestDoVal_ExhaustsAttempts(t *testing.T) {
	var calls int
	_, err := DoVal(context.Background(), RetryConfig{MaxAttempts: 3, Backoff: noWait}, func(_ context.Context) (int, error) {
		calls++
		return 0, errReset
	})
	if !errors.Is(err, syscall.ECONNRESET) {
		t.Fatalf("expected last error, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDoVal_ZeroAttemptsMeansOne(t *testing.T) {
	var calls int
	_, _ = DoVal(context.Background(), RetryConfig{Backoff: noWait}, func(_ context.Context) (int, error) {
		calls++
		return 0, errReset
	})
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDoVal_NonTransientError_NoRetry(t *testing.T) {
	var calls int
	_, err := DoVal(context.Background(), RetryConfig{MaxAttempts: 3, Backoff: noWait}, func(_ context.Context) (int, error) {
		calls++
		return 0, errors.New("bad request")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDoVal_CustomShouldRetry(t *testing.T) {
	retryMe := errors.New("status 503")
	var calls int
	cfg := RetryConfig{
		MaxAttempts: 4,
		Backoff:     noWait,
		ShouldRetry: func(err error) bool { return errors.Is(err, retryMe) },
	}
	_, _ = DoVal(context.Background(), cfg, func(_ context.Context) (int, error) {
		calls++
		return 0, retryMe
	})
	if calls != 4 {
		t.Errorf("expected 4 calls, got %d", calls)
	}
}

func TestDoVal_ContextCancelledDuringWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls int
	cfg := RetryConfig{
		MaxAttempts: 5,
		Backoff:     func(int, error) time.Duration { return time.Hour },
		OnRetry:     func(int, error) { cancel() },
	}

	start := time.Now()
	_, err := DoVal(ctx, cfg, func(_ context.Context) (int, error) {
		calls++
		return 0, errReset
	})
	if !errors.Is(err, syscall.ECONNRESET) {
		t.Fatalf("expected the call error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
	if time.Since(start) > time.Second {
		t.Error("cancellation did not interrupt the wait")
	}
}

func TestDoVal_BackoffAndOnRetryAttempts(t *testing.T) {
	var backoffs, retries []int
	cfg := RetryConfig{
		MaxAttempts: 3,
		Backoff: func(attempt int, _ error) time.Duration {
			backoffs = append(backoffs, attempt)
			return 0
		},
		OnRetry: func(attempt int, _ error) { retries = append(retries, attempt) },
	}
	_, _ = DoVal(context.Background(), cfg, func(_ context.Context) (int, error) {
		return 0, errReset
	})
	if fmt.Sprint(backoffs) != "[1 2]" || fmt.Sprint(retries) != "[1 2]" {
		t.Errorf("backoffs=%v retries=%v, want [1 2] for both", backoffs, retries)
	}
}

func TestLinearBackoff(t *testing.T) {
	b := LinearBackoff(300*time.Millisecond, 500*time.Millisecond)
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 300 * time.Millisecond},
		{1, 300 * time.Millisecond},
		{2, 800 * time.Millisecond},
		{3, 1300 * time.Millisecond},
	}
	for _, tt := range tests {
		if got := b(tt.attempt, nil); got != tt.want {
			t.Errorf("attempt %d: got %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestRetryLogger(t *testing.T) {
	// Must not panic with the no-op global logger.
	RetryLogger("Gemini", "generate")(1, errReset)
}
