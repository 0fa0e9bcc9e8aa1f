package resilience

import (
	"math"
	"math/rand/v2"
	"time"
)

// Backoff describes an exponential delay schedule: Initial * Factor^(n-1),
// capped at Max, with +/- Jitter applied as a fraction of the delay.
type Backoff struct {
	Initial time.Duration
	Max     time.Duration
	Factor  float64
	Jitter  float64
}

// ReconnectBackoff is the schedule used for live task connections:
// 1s doubling up to 30s.
func ReconnectBackoff() Backoff {
	return Backoff{Initial: time.Second, Max: 30 * time.Second, Factor: 2}
}

func (b Backoff) withDefaults() Backoff {
	if b.Initial <= 0 {
		b.Initial = time.Second
	}
	if b.Factor <= 0 {
		b.Factor = 2
	}
	if b.Max <= 0 {
		b.Max = 30 * time.Second
	}
	return b
}

// Delay returns the wait before retry n (1-based).
func (b Backoff) Delay(n int) time.Duration {
	b = b.withDefaults()
	if n < 1 {
		n = 1
	}
	d := float64(b.Initial) * math.Pow(b.Factor, float64(n-1))
	if b.Jitter > 0 {
		d += (rand.Float64()*2 - 1) * d * b.Jitter
	}
	if d > float64(b.Max) {
		d = float64(b.Max)
	}
	if d < 0 {
		d = float64(b.Initial)
	}
	return time.Duration(d)
}
