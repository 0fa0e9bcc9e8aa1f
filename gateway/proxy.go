package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ylai/autoplatform/errors"
	"github.com/ylai/autoplatform/logger"
	"github.com/ylai/autoplatform/observability"
	"github.com/ylai/autoplatform/resilience"
)

// Proxy forwards requests to the backend, WebSocket upgrades included. A
// circuit breaker trips after repeated transport failures so a dead backend
// answers 502 at once.
type Proxy struct {
	prefix  string
	target  *url.URL
	rp      *httputil.ReverseProxy
	breaker *resilience.CircuitBreaker
	metrics *observability.Metrics
	log     *logger.Logger
}

type proxyErrKey struct{}

// NewProxy creates a proxy for requests under prefix. A ws or wss target is
// dialled over http or https; the upgrade travels in the request headers.
func NewProxy(prefix, target string, breaker *resilience.CircuitBreaker, metrics *observability.Metrics) (*Proxy, error) {
	u, err := url.Parse(target)
	if err != nil || u.Host == "" {
		return nil, errors.InvalidFormat("api_target", "absolute URL")
	}
	switch u.Scheme {
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	}

	p := &Proxy{
		prefix:  prefix,
		target:  u,
		breaker: breaker,
		metrics: metrics,
		log:     logger.Get("proxy").WithFields(logger.Fields("prefix", prefix, "target", u.String())),
	}
	p.rp = &httputil.ReverseProxy{
		Rewrite: func(r *httputil.ProxyRequest) {
			r.SetURL(u)
			r.SetXForwarded()
			observability.InjectHeaders(r.In.Context(), r.Out.Header)
		},
		FlushInterval: -1,
		ErrorHandler:  p.handleError,
		ModifyResponse: func(*http.Response) error {
			p.breaker.Record(nil)
			return nil
		},
	}
	return p, nil
}

// Target is the backend origin.
func (p *Proxy) Target() string { return p.target.String() }

func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, span := observability.StartSpan(observability.ExtractHeaders(r.Context(), r.Header), observability.SpanProxy,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("url.path", r.URL.Path),
			attribute.String("proxy.prefix", p.prefix),
		))
	r = r.WithContext(ctx)

	if !p.breaker.Allow() {
		p.metrics.ProxyError(ctx, p.prefix, "circuit_open")
		writeBadGateway(w, errors.BadGateway(p.target.String(), resilience.ErrCircuitOpen))
		observability.EndSpan(span, resilience.ErrCircuitOpen)
		return
	}

	if isUpgrade(r) || isEventStream(r) {
		// The server timeouts would otherwise cut long-lived streams.
		rc := http.NewResponseController(w)
		_ = rc.SetReadDeadline(time.Time{})
		_ = rc.SetWriteDeadline(time.Time{})
	}

	start := time.Now()
	p.metrics.ProxyStart(ctx)
	sw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	p.rp.ServeHTTP(sw, r)
	elapsed := time.Since(start)
	p.metrics.ProxyEnd(ctx, p.prefix, r.Method, sw.status, elapsed)

	span.SetAttributes(attribute.Int("http.status_code", sw.status))
	var spanErr error
	if sw.status >= http.StatusInternalServerError {
		spanErr = fmt.Errorf("upstream answered %d", sw.status)
	}
	observability.EndSpan(span, spanErr)

	if isUpgrade(r) {
		p.log.Debug("websocket session closed", logger.Fields(
			logger.FieldPath, r.URL.Path, logger.FieldDuration, elapsed.Milliseconds()))
	}
}

func (p *Proxy) handleError(w http.ResponseWriter, r *http.Request, err error) {
	if r.Context().Err() != nil {
		// The client went away; that says nothing about the backend.
		p.breaker.Record(nil)
		return
	}
	p.breaker.Record(err)
	p.metrics.ProxyError(r.Context(), p.prefix, "upstream")
	p.log.Warn("proxy error", logger.Fields(
		logger.FieldMethod, r.Method, logger.FieldPath, r.URL.Path, logger.FieldError, err.Error()))
	writeBadGateway(w, errors.BadGateway(p.target.String(), err))
}

func writeBadGateway(w http.ResponseWriter, appErr *errors.AppError) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusBadGateway)
	_ = json.NewEncoder(w).Encode(appErr.ToResponse())
}

func isUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

func isEventStream(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/event-stream")
}

// statusRecorder captures the status for metrics. It forwards Flush for
// SSE and Hijack is reached through Unwrap by the reverse proxy's
// ResponseController.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Flush() {
	if f, ok := s.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (s *statusRecorder) Unwrap() http.ResponseWriter { return s.ResponseWriter }
