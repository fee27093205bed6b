package resilience

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func quickConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2.0,
		JitterFraction: 0,
	}
}

func TestDoRetriesTransient(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), quickConfig(), func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return &ConnectionError{Err: fmt.Errorf("transient")}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do() = %v, want nil", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestDoStopsOnPermanent(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), quickConfig(), func(ctx context.Context) error {
		attempts++
		return NewValidationError("bad input")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestDoValReturnsValue(t *testing.T) {
	attempts := 0
	val, err := DoVal(context.Background(), quickConfig(), func(ctx context.Context) (string, error) {
		attempts++
		if attempts < 2 {
			return "", &TimeoutError{Err: fmt.Errorf("slow")}
		}
		return "payload", nil
	})
	if err != nil {
		t.Fatalf("DoVal() error = %v", err)
	}
	if val != "payload" {
		t.Errorf("DoVal() = %q, want %q", val, "payload")
	}
}

func TestDoValExhaustsAttempts(t *testing.T) {
	attempts := 0
	last := &ConnectionError{Err: fmt.Errorf("down")}
	_, err := DoVal(context.Background(), quickConfig(), func(ctx context.Context) (int, error) {
		attempts++
		return 0, last
	})
	if !errors.Is(err, last) {
		t.Errorf("DoVal() error = %v, want last error", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want MaxAttempts", attempts)
	}
}

func TestDoRespectsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	err := Do(ctx, quickConfig(), func(ctx context.Context) error {
		attempts++
		cancel()
		return &ConnectionError{Err: fmt.Errorf("transient")}
	})
	if err == nil {
		t.Fatal("expected error after cancellation")
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestBackoffGrowthAndCap(t *testing.T) {
	cfg := quickConfig()
	d0 := Backoff(0, cfg)
	d1 := Backoff(1, cfg)
	if d0 != time.Millisecond {
		t.Errorf("Backoff(0) = %v, want 1ms", d0)
	}
	if d1 != 2*time.Millisecond {
		t.Errorf("Backoff(1) = %v, want 2ms", d1)
	}
	if d10 := Backoff(10, cfg); d10 != cfg.MaxBackoff {
		t.Errorf("Backoff(10) = %v, want capped at %v", d10, cfg.MaxBackoff)
	}
}

func TestBackoffJitterBounds(t *testing.T) {
	cfg := quickConfig()
	cfg.JitterFraction = 0.5
	for i := 0; i < 100; i++ {
		d := Backoff(0, cfg)
		if d < 500*time.Microsecond || d > 1500*time.Microsecond {
			t.Fatalf("jittered delay %v outside ±50%% of base", d)
		}
	}
}

func TestOnRetryCallback(t *testing.T) {
	var seen []int
	cfg := quickConfig()
	cfg.OnRetry = func(attempt int, err error) {
		seen = append(seen, attempt)
	}
	attempts := 0
	_ = Do(context.Background(), cfg, func(ctx context.Context) error {
		attempts++
		return &ConnectionError{Err: fmt.Errorf("transient")}
	})
	if len(seen) != 2 {
		t.Errorf("OnRetry called %d times, want 2", len(seen))
	}
}
