package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRateLimiter_BurstThenLimited(t *testing.T) {
	now := time.Unix(100, 0)
	limited := 0
	rl := NewRateLimiter(RateLimiterConfig{Name: "js-error", Rate: 1, Burst: 3, OnLimit: func(string) { limited++ }})
	rl.now = func() time.Time { return now }
	rl.last = now

	for i := 0; i < 3; i++ {
		if !rl.Allow() {
			t.Fatalf("call %d within burst was limited", i)
		}
	}
	if err := rl.Execute(func() error { return nil }); !errors.Is(err, ErrRateLimited) {
		t.Errorf("expected ErrRateLimited, got %v", err)
	}
	if limited != 1 {
		t.Errorf("OnLimit called %d times", limited)
	}

	now = now.Add(time.Second)
	if !rl.Allow() {
		t.Error("a token should have refilled after one second")
	}
}

func TestRateLimiter_WaitHonoursContext(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 0.01, Burst: 1})
	if err := rl.Wait(context.Background()); err != nil {
		t.Fatalf("first wait should pass: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := rl.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}
