package resilience

import (
	"errors"
	"testing"
	"time"
)

func TestCircuitBreaker_OpensAfterMaxFailures(t *testing.T) {
	cb := NewCircuitBreaker(BreakerConfig{Name: "backend", MaxFailures: 3, Cooldown: time.Minute})
	boom := errors.New("dial refused")

	for i := 0; i < 3; i++ {
		if err := cb.Execute(func() error { return boom }); !errors.Is(err, boom) {
			t.Fatalf("attempt %d: expected boom, got %v", i, err)
		}
	}
	if cb.State() != StateOpen {
		t.Fatalf("expected open, got %s", cb.State())
	}
	err := cb.Execute(func() error {
		t.Error("function must not run while open")
		return nil
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("expected ErrCircuitOpen, got %v", err)
	}
}

func TestCircuitBreaker_SuccessResetsFailures(t *testing.T) {
	cb := NewCircuitBreaker(BreakerConfig{MaxFailures: 2})
	cb.Record(errors.New("x"))
	cb.Record(nil)
	cb.Record(errors.New("x"))
	if cb.State() != StateClosed {
		t.Errorf("non-consecutive failures must not open, got %s", cb.State())
	}
}

func TestCircuitBreaker_HalfOpenProbe(t *testing.T) {
	now := time.Unix(0, 0)
	var transitions []string
	cb := NewCircuitBreaker(BreakerConfig{
		MaxFailures: 1,
		Cooldown:    10 * time.Second,
		OnStateChange: func(_ string, from, to State) {
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	})
	cb.now = func() time.Time { return now }

	cb.Record(errors.New("down"))
	now = now.Add(11 * time.Second)

	if !cb.Allow() {
		t.Fatal("expected a probe after cooldown")
	}
	if cb.Allow() {
		t.Fatal("only one probe may be in flight")
	}
	cb.Record(nil)
	if cb.State() != StateClosed {
		t.Fatalf("successful probe should close, got %s", cb.State())
	}

	want := []string{"closed->open", "open->half-open", "half-open->closed"}
	if len(transitions) != len(want) {
		t.Fatalf("transitions = %v", transitions)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("transition %d = %s, want %s", i, transitions[i], want[i])
		}
	}
}

func TestCircuitBreaker_FailedProbeReopens(t *testing.T) {
	now := time.Unix(0, 0)
	cb := NewCircuitBreaker(BreakerConfig{MaxFailures: 1, Cooldown: time.Second})
	cb.now = func() time.Time { return now }

	cb.Record(errors.New("down"))
	now = now.Add(2 * time.Second)
	if cb.State() != StateHalfOpen {
		t.Fatalf("expected half-open, got %s", cb.State())
	}
	cb.Allow()
	cb.Record(errors.New("still down"))
	if cb.State() != StateOpen {
		t.Errorf("expected open after failed probe, got %s", cb.State())
	}
	cb.Reset()
	if cb.State() != StateClosed {
		t.Errorf("reset should close, got %s", cb.State())
	}
}
