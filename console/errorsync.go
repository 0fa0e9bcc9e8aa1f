package console

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ylai/autoplatform/httpclient"
	"github.com/ylai/autoplatform/logger"
	"github.com/ylai/autoplatform/resilience"
)

// ErrorReport is the body of /api/js-error.
type ErrorReport struct {
	Source  string `json:"source"`
	Type    string `json:"type"`
	File    string `json:"file,omitempty"`
	Line    int    `json:"line,omitempty"`
	Message string `json:"message"`
	Stack   string `json:"stack,omitempty"`
}

type consoleReport struct {
	Source string `json:"source"`
	Args   []any  `json:"args"`
}

// ReporterConfig configures an ErrorReporter.
type ReporterConfig struct {
	// Source tags every report. Defaults to "console".
	Source string
	// Rate and Burst bound reports per second; excess reports are dropped.
	Rate    float64
	Burst   int
	Timeout time.Duration
}

// ErrorReporter ships runtime errors and console output to the backend.
// Sends are fire-and-forget: they never block the caller, are not retried
// and their failures are only logged at debug level.
type ErrorReporter struct {
	client  *httpclient.Client
	cfg     ReporterConfig
	limiter *resilience.RateLimiter
	log     *logger.Logger
	wg      sync.WaitGroup

	mu      sync.Mutex
	dropped int
}

// NewErrorReporter creates a reporter on client.
func NewErrorReporter(client *httpclient.Client, cfg ReporterConfig) *ErrorReporter {
	if cfg.Source == "" {
		cfg.Source = "console"
	}
	if cfg.Rate <= 0 {
		cfg.Rate = 5
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 20
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	r := &ErrorReporter{client: client, cfg: cfg, log: logger.Get("console")}
	r.limiter = resilience.NewRateLimiter(resilience.RateLimiterConfig{
		Name:    "error-sync",
		Rate:    cfg.Rate,
		Burst:   cfg.Burst,
		OnLimit: func(string) { r.drop() },
	})
	return r
}

// ReportError sends rep to /api/js-error. An empty Source or Type is
// filled in.
func (r *ErrorReporter) ReportError(rep ErrorReport) {
	if rep.Source == "" {
		rep.Source = r.cfg.Source
	}
	if rep.Type == "" {
		rep.Type = "runtime_error"
	}
	r.send(PathJSError, rep)
}

// ReportPanic reports a recovered panic value with its stack.
func (r *ErrorReporter) ReportPanic(v any, stack []byte) {
	r.ReportError(ErrorReport{Type: "panic", Message: toString(v), Stack: string(stack)})
}

// ReportConsole mirrors console output to /api/js-console.
func (r *ErrorReporter) ReportConsole(args ...any) {
	r.send(PathJSConsole, consoleReport{Source: r.cfg.Source, Args: args})
}

// Flush waits for in-flight reports.
func (r *ErrorReporter) Flush() { r.wg.Wait() }

// Dropped counts reports discarded by the rate limit.
func (r *ErrorReporter) Dropped() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

func (r *ErrorReporter) drop() {
	r.mu.Lock()
	r.dropped++
	r.mu.Unlock()
}

func (r *ErrorReporter) send(path string, body any) {
	if !r.limiter.Allow() {
		return
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), r.cfg.Timeout)
		defer cancel()
		if _, err := r.client.Post(ctx, path, body, httpclient.WithoutRetry()); err != nil {
			r.log.Debug("report not delivered", logger.Fields(logger.FieldPath, path, logger.FieldError, err.Error()))
		}
	}()
}

func toString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case error:
		return x.Error()
	default:
		return fmt.Sprint(x)
	}
}
