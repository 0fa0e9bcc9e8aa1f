package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ylai/autoplatform/resilience"
)

// RateLimitConfig configures per-key rate limiting.
type RateLimitConfig struct {
	// RequestsPerMinute is the sustained rate per key. Defaults to 60.
	RequestsPerMinute int
	// Burst defaults to RequestsPerMinute.
	Burst int
	// KeyFunc picks the bucket. Defaults to the client IP.
	KeyFunc func(*gin.Context) string
	// IdleTTL drops buckets unused for this long. Defaults to 5 minutes.
	IdleTTL time.Duration
}

// RateLimit gives every key its own token bucket and answers 429 when it is
// empty.
func RateLimit(cfg RateLimitConfig) gin.HandlerFunc {
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 60
	}
	if cfg.Burst <= 0 {
		cfg.Burst = cfg.RequestsPerMinute
	}
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = IPKey
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 5 * time.Minute
	}
	b := &buckets{cfg: cfg, entries: make(map[string]*bucket)}
	return func(c *gin.Context) {
		if !b.get(cfg.KeyFunc(c)).Allow() {
			abort(c, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		c.Next()
	}
}

// IPKey keys limits by client IP.
func IPKey(c *gin.Context) string { return c.ClientIP() }

// UserKey keys limits by the "sub" claim set by Auth, falling back to the IP.
func UserKey(c *gin.Context) string {
	if sub := c.GetString("sub"); sub != "" {
		return sub
	}
	return c.ClientIP()
}

type bucket struct {
	*resilience.RateLimiter
	seen time.Time
}

type buckets struct {
	cfg     RateLimitConfig
	mu      sync.Mutex
	entries map[string]*bucket
	swept   time.Time
}

func (b *buckets) get(key string) *bucket {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := time.Now()
	if now.Sub(b.swept) > b.cfg.IdleTTL {
		for k, e := range b.entries {
			if now.Sub(e.seen) > b.cfg.IdleTTL {
				delete(b.entries, k)
			}
		}
		b.swept = now
	}
	e, ok := b.entries[key]
	if !ok {
		e = &bucket{RateLimiter: resilience.NewRateLimiter(resilience.RateLimiterConfig{
			Name:  key,
			Rate:  float64(b.cfg.RequestsPerMinute) / 60,
			Burst: b.cfg.Burst,
		})}
		b.entries[key] = e
	}
	e.seen = now
	return e
}
