package client

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func fastRetryConfig(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:       attempts,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        5 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
}

func TestDefaultRetryConfig(t *testing.T) {
	cfg := DefaultRetryConfig()
	if cfg.MaxAttempts != 1 {
		t.Errorf("MaxAttempts = %d, want 1 (no automatic retry)", cfg.MaxAttempts)
	}
	if cfg.BackoffMultiplier != 2.0 {
		t.Errorf("BackoffMultiplier = %v, want 2.0", cfg.BackoffMultiplier)
	}
}

func TestRetryWithBackoff_SuccessFirstAttempt(t *testing.T) {
	calls := 0
	err := retryWithBackoff(context.Background(), fastRetryConfig(3), zerolog.Nop(), func() error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRetryWithBackoff_RetriesTransient(t *testing.T) {
	calls := 0
	err := retryWithBackoff(context.Background(), fastRetryConfig(3), zerolog.Nop(), func() error {
		calls++
		if calls < 3 {
			return &FetchError{ErrorClass: ErrorClassStatus, StatusCode: 503}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetryWithBackoff_NoRetryOnValidationFailure(t *testing.T) {
	calls := 0
	err := retryWithBackoff(context.Background(), fastRetryConfig(5), zerolog.Nop(), func() error {
		calls++
		return &FetchError{ErrorClass: ErrorClassContentType, ContentType: "text/html"}
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if classOf(err) != ErrorClassContentType {
		t.Errorf("classOf(err) = %q, want %q", classOf(err), ErrorClassContentType)
	}
}

func TestRetryWithBackoff_SingleAttemptReturnsCause(t *testing.T) {
	calls := 0
	cause := &FetchError{ErrorClass: ErrorClassTransport, Err: errors.New("reset")}
	err := retryWithBackoff(context.Background(), fastRetryConfig(1), zerolog.Nop(), func() error {
		calls++
		return cause
	})
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if err != cause {
		t.Errorf("err = %v, want the original cause", err)
	}
}

func TestRetryWithBackoff_Exhausted(t *testing.T) {
	calls := 0
	err := retryWithBackoff(context.Background(), fastRetryConfig(3), zerolog.Nop(), func() error {
		calls++
		return &FetchError{ErrorClass: ErrorClassTransport, Err: errors.New("timeout")}
	})
	if !errors.Is(err, ErrRetryExhausted) {
		t.Errorf("err = %v, want ErrRetryExhausted", err)
	}
	if classOf(err) != ErrorClassTransport {
		t.Errorf("classOf(err) = %q, want %q", classOf(err), ErrorClassTransport)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetryWithBackoff_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    time.Hour,
		MaxBackoff:        time.Hour,
		BackoffMultiplier: 2.0,
	}

	calls := 0
	err := retryWithBackoff(ctx, cfg, zerolog.Nop(), func() error {
		calls++
		cancel()
		return &FetchError{ErrorClass: ErrorClassTransport}
	})
	if !errors.Is(err, ErrContextCancelled) {
		t.Errorf("err = %v, want ErrContextCancelled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}
