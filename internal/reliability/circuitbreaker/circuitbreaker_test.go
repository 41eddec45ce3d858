package circuitbreaker

import (
	"errors"
	"testing"
	"time"
)

func TestTripsAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker(2, 1, time.Hour)
	boom := errors.New("boom")

	var transitions []string
	cb.SetStateChangeCallback(func(from, to State) {
		transitions = append(transitions, from.String()+"->"+to.String())
	})

	for i := 0; i < 2; i++ {
		if err := cb.Execute(func() error { return boom }); !errors.Is(err, boom) {
			t.Fatalf("expected boom, got %v", err)
		}
	}
	if cb.GetState() != StateOpen {
		t.Fatalf("expected open, got %s", cb.GetState())
	}
	if err := cb.Execute(func() error { return nil }); !errors.Is(err, ErrOpen) {
		t.Fatalf("expected ErrOpen, got %v", err)
	}
	if len(transitions) != 1 || transitions[0] != "closed->open" {
		t.Fatalf("unexpected transitions %v", transitions)
	}
}

func TestHalfOpenRecovers(t *testing.T) {
	cb := NewCircuitBreaker(1, 1, 10*time.Millisecond)
	cb.RecordFailure()
	time.Sleep(20 * time.Millisecond)

	if err := cb.Execute(func() error { return nil }); err != nil {
		t.Fatalf("expected probe to pass, got %v", err)
	}
	if cb.GetState() != StateClosed {
		t.Fatalf("expected closed after probe, got %s", cb.GetState())
	}
}

func TestHalfOpenAdmitsOneProbe(t *testing.T) {
	now := time.Unix(0, 0)
	cb := NewCircuitBreaker(1, 2, time.Minute)
	cb.now = func() time.Time { return now }

	cb.RecordFailure()
	if cb.AllowRequest() {
		t.Fatal("open circuit must reject before the timeout")
	}

	now = now.Add(time.Minute)
	if !cb.AllowRequest() {
		t.Fatal("first probe should pass")
	}
	if cb.AllowRequest() {
		t.Fatal("second concurrent probe should be rejected")
	}

	cb.RecordSuccess()
	if cb.GetState() != StateHalfOpen {
		t.Fatalf("one success of two should keep half-open, got %s", cb.GetState())
	}
	if !cb.AllowRequest() {
		t.Fatal("next probe should pass after the first finished")
	}
	cb.RecordSuccess()
	if cb.GetState() != StateClosed {
		t.Fatalf("expected closed, got %s", cb.GetState())
	}
}

func TestFailedProbeReopens(t *testing.T) {
	now := time.Unix(0, 0)
	cb := NewCircuitBreaker(1, 1, time.Minute)
	cb.now = func() time.Time { return now }

	cb.RecordFailure()
	now = now.Add(time.Minute)
	if err := cb.Execute(func() error { return errors.New("still down") }); err == nil {
		t.Fatal("expected probe error")
	}
	if cb.GetState() != StateOpen {
		t.Fatalf("expected open, got %s", cb.GetState())
	}
	if cb.AllowRequest() {
		t.Fatal("reopened circuit must wait a full timeout")
	}
}
