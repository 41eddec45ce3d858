package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errTransient = errors.New("transient")

func TestDoRetriesUntilSuccess(t *testing.T) {
	calls := 0
	got, err := Do(context.Background(), Immediate(3, nil), nil, "flaky", func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errTransient
		}
		return "ok", nil
	})
	if err != nil || got != "ok" {
		t.Fatalf("expected ok, got %q err=%v", got, err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestDoStopsOnPermanentError(t *testing.T) {
	permanent := errors.New("permanent")
	calls := 0
	cfg := Immediate(5, func(err error) bool { return errors.Is(err, errTransient) })
	_, err := Do(context.Background(), cfg, nil, "op", func(ctx context.Context) (int, error) {
		calls++
		return 0, permanent
	})
	if !errors.Is(err, permanent) || calls != 1 {
		t.Fatalf("expected a single call returning the permanent error, got calls=%d err=%v", calls, err)
	}
}

func TestDoWrapsLastError(t *testing.T) {
	_, err := Do(context.Background(), Immediate(2, nil), nil, "op", func(ctx context.Context) (int, error) {
		return 0, errTransient
	})
	if !errors.Is(err, errTransient) {
		t.Fatalf("expected wrapped transient error, got %v", err)
	}
}

func TestDoHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := &Config{MaxAttempts: 5, InitialBackoff: time.Hour, MaxBackoff: time.Hour, BackoffMultiplier: 1}
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err := Do(ctx, cfg, nil, "op", func(ctx context.Context) (int, error) {
		return 0, errTransient
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}

func TestCalculateBackoffCaps(t *testing.T) {
	cfg := &Config{InitialBackoff: time.Second, MaxBackoff: 3 * time.Second, BackoffMultiplier: 2}
	if got := calculateBackoff(0, cfg); got != time.Second {
		t.Fatalf("expected 1s, got %v", got)
	}
	if got := calculateBackoff(5, cfg); got != 3*time.Second {
		t.Fatalf("expected cap at 3s, got %v", got)
	}
}
