package console

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/ylai/autoplatform/httpclient"
	"github.com/ylai/autoplatform/logger"
)

// HealthTimeout bounds a single health probe.
const HealthTimeout = 2500 * time.Millisecond

// Level is the indicator colour of a health result.
type Level string

const (
	LevelHealthy  Level = "healthy"  // backend ok, AI reachable
	LevelDegraded Level = "degraded" // backend ok, AI not reachable
	LevelDown     Level = "down"
)

// Colors maps levels to the indicator dot colour.
var Colors = map[Level]string{
	LevelHealthy:  "#16a34a",
	LevelDegraded: "#f59e0b",
	LevelDown:     "#ef4444",
}

// AIProbe is the backend's view of the AI model server.
type AIProbe struct {
	Reachable    bool     `json:"reachable"`
	LatencyMS    *float64 `json:"latency_ms,omitempty"`
	LatencyAvgMS *float64 `json:"latency_avg_ms,omitempty"`
	Samples      int      `json:"samples"`
	Host         string   `json:"host,omitempty"`
	Port         any      `json:"port,omitempty"`
}

// Health is a normalised health probe result. Backends answer either
// {ok, ts, ...} or {code, data: {status, ai_probe}}; both end up here.
type Health struct {
	OK     bool
	Status string
	TS     int64
	AI     *AIProbe
	// Extra holds the remaining top-level fields of the bare shape, such as
	// apiTarget on the gateway.
	Extra map[string]any
	Err   string
}

// Level classifies h for the status indicator.
func (h Health) Level() Level {
	switch {
	case !h.OK:
		return LevelDown
	case h.AI == nil || h.AI.Reachable:
		return LevelHealthy
	default:
		return LevelDegraded
	}
}

// Text is the short indicator label.
func (h Health) Text() string {
	switch h.Level() {
	case LevelDown:
		return "error"
	case LevelDegraded:
		return "AI not connected"
	}
	if h.AI == nil {
		return "ok"
	}
	lat := "-"
	if h.AI.LatencyAvgMS != nil {
		lat = fmt.Sprintf("%.0f", *h.AI.LatencyAvgMS)
	} else if h.AI.LatencyMS != nil {
		lat = fmt.Sprintf("%.0f", *h.AI.LatencyMS)
	}
	return fmt.Sprintf("ok · %sms", lat)
}

type healthBody struct {
	Code *int            `json:"code"`
	OK   *bool           `json:"ok"`
	TS   int64           `json:"ts"`
	Data json.RawMessage `json:"data"`
}

type healthData struct {
	Status  string   `json:"status"`
	AIProbe *AIProbe `json:"ai_probe"`
}

// ParseHealth normalises a raw /health body.
func ParseHealth(body []byte) (Health, error) {
	var b healthBody
	if err := json.Unmarshal(body, &b); err != nil {
		return Health{}, fmt.Errorf("parse health: %w", err)
	}
	h := Health{TS: b.TS}
	if b.Code != nil {
		var d healthData
		if len(b.Data) > 0 {
			if err := json.Unmarshal(b.Data, &d); err != nil {
				return Health{}, fmt.Errorf("parse health data: %w", err)
			}
		}
		h.Status = d.Status
		h.OK = *b.Code == 0 && d.Status == "ok"
		h.AI = d.AIProbe
		return h, nil
	}

	var extra map[string]any
	_ = json.Unmarshal(body, &extra)
	delete(extra, "ok")
	delete(extra, "ts")
	h.Extra = extra
	h.OK = b.OK != nil && *b.OK
	if h.OK {
		h.Status = "ok"
	} else {
		h.Status = "error"
	}
	return h, nil
}

// Health probes the backend. A probe that fails or times out yields a down
// result with Err set rather than an error, so callers can render it
// directly.
func (c *Console) Health(ctx context.Context) Health {
	ctx, cancel := context.WithTimeout(ctx, HealthTimeout)
	defer cancel()

	env, err := c.client.Get(ctx, PathHealth, httpclient.WithoutRetry(), httpclient.WithoutAuth())
	if err != nil {
		return c.downHealth(err)
	}
	h, err := ParseHealth(env.Raw)
	if err != nil {
		return c.downHealth(err)
	}
	return h
}

func (c *Console) downHealth(err error) Health {
	c.log.Debug("health probe failed", logger.Fields(logger.FieldError, err.Error()))
	return Health{Status: "error", Err: err.Error()}
}

// LatencyWindow keeps the most recent AI latencies for the health chart.
type LatencyWindow struct {
	mu      sync.Mutex
	size    int
	samples []float64
}

// NewLatencyWindow keeps up to size samples; size <= 0 means 30.
func NewLatencyWindow(size int) *LatencyWindow {
	if size <= 0 {
		size = 30
	}
	return &LatencyWindow{size: size}
}

// Observe records the latency of h, if it carries one.
func (w *LatencyWindow) Observe(h Health) {
	if h.AI == nil || h.AI.LatencyMS == nil {
		return
	}
	w.Add(*h.AI.LatencyMS)
}

func (w *LatencyWindow) Add(ms float64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.samples = append(w.samples, ms)
	if len(w.samples) > w.size {
		w.samples = w.samples[len(w.samples)-w.size:]
	}
}

// Samples returns a copy of the window, oldest first.
func (w *LatencyWindow) Samples() []float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return slices.Clone(w.samples)
}

// Avg is the mean latency, or 0 for an empty window.
func (w *LatencyWindow) Avg() float64 {
	s := w.Samples()
	if len(s) == 0 {
		return 0
	}
	var sum float64
	for _, v := range s {
		sum += v
	}
	return sum / float64(len(s))
}

// Percentile returns the nearest-rank p-quantile, p in [0, 1].
func (w *LatencyWindow) Percentile(p float64) float64 {
	s := w.Samples()
	if len(s) == 0 {
		return 0
	}
	slices.Sort(s)
	idx := int(math.Round(p * float64(len(s)-1)))
	idx = max(0, min(len(s)-1, idx))
	return s[idx]
}
