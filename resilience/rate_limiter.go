package resilience

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrRateLimited is returned by Execute when no token is available.
var ErrRateLimited = errors.New("rate limit exceeded")

// RateLimiterConfig configures a token bucket.
type RateLimiterConfig struct {
	Name string
	// Rate is tokens added per second.
	Rate float64
	// Burst is the bucket size. Defaults to Rate.
	Burst   int
	OnLimit func(name string)
}

// RateLimiter is a token bucket. Error reporting uses it so a page stuck in
// an error loop cannot flood the backend.
type RateLimiter struct {
	cfg RateLimiterConfig
	now func() time.Time

	mu     sync.Mutex
	tokens float64
	last   time.Time
}

// NewRateLimiter creates a full bucket.
func NewRateLimiter(cfg RateLimiterConfig) *RateLimiter {
	if cfg.Rate <= 0 {
		cfg.Rate = 10
	}
	if cfg.Burst <= 0 {
		cfg.Burst = int(cfg.Rate)
		if cfg.Burst < 1 {
			cfg.Burst = 1
		}
	}
	return &RateLimiter{cfg: cfg, now: time.Now, tokens: float64(cfg.Burst), last: time.Now()}
}

// Allow takes a token if one is available.
func (rl *RateLimiter) Allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.refill()
	if rl.tokens >= 1 {
		rl.tokens--
		return true
	}
	if rl.cfg.OnLimit != nil {
		rl.cfg.OnLimit(rl.cfg.Name)
	}
	return false
}

// Wait blocks until a token is available or ctx ends.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	for {
		rl.mu.Lock()
		rl.refill()
		if rl.tokens >= 1 {
			rl.tokens--
			rl.mu.Unlock()
			return nil
		}
		wait := time.Duration((1 - rl.tokens) / rl.cfg.Rate * float64(time.Second))
		rl.mu.Unlock()

		if err := Sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// Execute runs fn if a token is available.
func (rl *RateLimiter) Execute(fn func() error) error {
	if !rl.Allow() {
		return ErrRateLimited
	}
	return fn()
}

func (rl *RateLimiter) refill() {
	now := rl.now()
	rl.tokens += now.Sub(rl.last).Seconds() * rl.cfg.Rate
	rl.last = now
	if rl.tokens > float64(rl.cfg.Burst) {
		rl.tokens = float64(rl.cfg.Burst)
	}
}
