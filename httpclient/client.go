package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ylai/autoplatform/httpclient/sse"
	"github.com/ylai/autoplatform/logger"
	"github.com/ylai/autoplatform/observability"
	"github.com/ylai/autoplatform/resilience"
)

// Client calls the backend API. It injects the bearer token, unwraps the
// {code, data} envelope, retries transient failures and reacts to 401.
type Client struct {
	httpClient *http.Client
	config     Config
	tokens     TokenSource
	navigator  Navigator
	onRetry    func(n int, err error, delay time.Duration)
	log        *logger.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithTokenSource sets where the bearer token comes from.
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

// WithNavigator sets the receiver of the post-401 redirect.
func WithNavigator(n Navigator) Option {
	return func(c *Client) { c.navigator = n }
}

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRetryHook observes every scheduled retry.
func WithRetryHook(fn func(n int, err error, delay time.Duration)) Option {
	return func(c *Client) { c.onRetry = fn }
}

// New creates a Client.
func New(cfg Config, opts ...Option) (*Client, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Client{
		httpClient: &http.Client{Transport: http.DefaultTransport.(*http.Transport).Clone()},
		config:     cfg,
		log:        logger.Get("httpclient"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Config returns the effective configuration.
func (c *Client) Config() Config { return c.config }

// BaseURL returns the configured base URL.
func (c *Client) BaseURL() string { return c.config.BaseURL }

// Token returns the current bearer token, or "".
func (c *Client) Token() string {
	if c.tokens == nil {
		return ""
	}
	return c.tokens.Token()
}

func (c *Client) Get(ctx context.Context, path string, opts ...RequestOption) (*Envelope, error) {
	return c.Do(ctx, newRequest(http.MethodGet, path, nil, opts))
}

func (c *Client) Post(ctx context.Context, path string, data any, opts ...RequestOption) (*Envelope, error) {
	return c.Do(ctx, newRequest(http.MethodPost, path, data, opts))
}

func (c *Client) Put(ctx context.Context, path string, data any, opts ...RequestOption) (*Envelope, error) {
	return c.Do(ctx, newRequest(http.MethodPut, path, data, opts))
}

func (c *Client) Patch(ctx context.Context, path string, data any, opts ...RequestOption) (*Envelope, error) {
	return c.Do(ctx, newRequest(http.MethodPatch, path, data, opts))
}

func (c *Client) Delete(ctx context.Context, path string, opts ...RequestOption) (*Envelope, error) {
	return c.Do(ctx, newRequest(http.MethodDelete, path, nil, opts))
}

func newRequest(method, path string, body any, opts []RequestOption) Request {
	r := Request{Method: method, Path: path, Body: body}
	for _, opt := range opts {
		opt(&r)
	}
	return r
}

// GetJSON performs a GET and decodes the envelope data into T.
func GetJSON[T any](ctx context.Context, c *Client, path string, opts ...RequestOption) (T, error) {
	env, err := c.Get(ctx, path, opts...)
	if err != nil {
		var zero T
		return zero, err
	}
	return Decode[T](env)
}

// PostJSON performs a POST and decodes the envelope data into T.
func PostJSON[T any](ctx context.Context, c *Client, path string, data any, opts ...RequestOption) (T, error) {
	env, err := c.Post(ctx, path, data, opts...)
	if err != nil {
		var zero T
		return zero, err
	}
	return Decode[T](env)
}

// Do sends req, retrying timeouts, connection and DNS failures and 5xx
// responses with exponential backoff. Other failures return immediately.
func (c *Client) Do(ctx context.Context, req Request) (*Envelope, error) {
	retries := c.config.retries()
	if req.noRetry {
		retries = 0
	}
	if r, ok := req.Body.(io.Reader); ok && retries > 0 {
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("httpclient: read request body: %w", err)
		}
		req.Body = replayBody(data)
	}
	cfg := resilience.RetryConfig{
		MaxRetries: retries,
		Backoff: resilience.Backoff{
			Initial: c.config.RetryDelay,
			Max:     c.config.RetryDelay << 4,
			Factor:  2,
			Jitter:  0.05,
		},
		RetryIf: IsRetryable,
		OnRetry: func(n int, err error, delay time.Duration) {
			c.log.Warn("retrying request", logger.Fields(
				logger.FieldMethod, req.Method,
				logger.FieldPath, req.Path,
				logger.FieldAttempt, n,
				logger.FieldError, err.Error(),
				"delay", delay.String(),
			))
			if c.onRetry != nil {
				c.onRetry(n, err, delay)
			}
		},
	}
	return resilience.Retry(ctx, cfg, func(ctx context.Context) (*Envelope, error) {
		return c.once(ctx, req)
	})
}

func (c *Client) once(ctx context.Context, req Request) (env *Envelope, err error) {
	ctx, span := observability.StartSpan(ctx, observability.SpanHTTPClient,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("http.method", req.Method), attribute.String("url.path", req.Path)))
	defer func() { observability.EndSpan(span, err) }()

	attemptCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	httpReq, err := c.buildRequest(attemptCtx, req)
	if err != nil {
		return nil, err
	}
	observability.InjectHeaders(attemptCtx, httpReq.Header)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, c.transportError(ctx, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.transportError(ctx, fmt.Errorf("read response body: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, c.statusError(req, resp.StatusCode, body)
	}
	return parseEnvelope(resp.StatusCode, resp.Header, body)
}

// transportError classifies a failure that produced no response. Caller
// cancellation is returned as-is so it is never retried.
func (c *Client) transportError(parent context.Context, err error) error {
	if parent.Err() != nil {
		return parent.Err()
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return newTransportError(KindDNS, err)
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return newTransportError(KindTimeout, err)
	}
	return newTransportError(KindConnection, err)
}

func (c *Client) statusError(req Request, status int, body []byte) error {
	e := classifyStatus(status, body)
	fields := logger.Fields(logger.FieldMethod, req.Method, logger.FieldPath, req.Path, logger.FieldStatus, status)
	switch {
	case status == http.StatusUnauthorized && req.noAuth:
	case status == http.StatusUnauthorized:
		if c.tokens != nil {
			c.tokens.ClearToken()
		}
		if c.navigator != nil {
			c.navigator.Redirect(LoginPath)
		}
		c.log.Warn("unauthorized, token cleared", fields)
	case status == http.StatusForbidden:
		fields["message"] = e.Message
		c.log.Warn("permission denied", fields)
	case status >= 500:
		fields["message"] = e.Message
		c.log.Error("server error", fields)
	}
	return e
}

// Stream opens a long-lived GET, typically an SSE endpoint. It is not retried
// and is bounded only by ctx.
func (c *Client) Stream(ctx context.Context, path string, opts ...RequestOption) (*StreamResponse, error) {
	req := newRequest(http.MethodGet, path, nil, opts)
	httpReq, err := c.buildRequest(ctx, req)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := (&http.Client{Transport: c.httpClient.Transport}).Do(httpReq)
	if err != nil {
		return nil, c.transportError(ctx, err)
	}
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		return nil, c.statusError(req, resp.StatusCode, body)
	}

	sr := &StreamResponse{StatusCode: resp.StatusCode, Headers: resp.Header}
	if strings.Contains(resp.Header.Get("Content-Type"), "text/event-stream") {
		sr.SSE = sse.NewReader(resp.Body)
	} else {
		sr.Body = resp.Body
	}
	return sr, nil
}

// ResolveURL joins path onto the base URL unless it is already absolute.
func (c *Client) ResolveURL(path string) string {
	if c.config.BaseURL == "" || strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return strings.TrimRight(c.config.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")
}

func (c *Client) buildRequest(ctx context.Context, req Request) (*http.Request, error) {
	body, contentType, err := encodeBody(req.Body)
	if err != nil {
		return nil, &Error{Kind: KindInvalidRequest, Message: "encode body: " + err.Error(), Err: err}
	}

	u, err := url.Parse(c.ResolveURL(req.Path))
	if err != nil {
		return nil, &Error{Kind: KindInvalidRequest, Message: "parse url: " + err.Error(), Err: err}
	}
	if len(req.Query) > 0 || c.config.AssetVersion != "" {
		q := u.Query()
		for k, v := range req.Query {
			q.Set(k, v)
		}
		if c.config.AssetVersion != "" {
			q.Set("_v", c.config.AssetVersion)
		}
		u.RawQuery = q.Encode()
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, u.String(), body)
	if err != nil {
		return nil, &Error{Kind: KindInvalidRequest, Message: "create request: " + err.Error(), Err: err}
	}

	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Cache-Control", "no-store")
	for k, v := range c.config.Headers {
		httpReq.Header.Set(k, v)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	if body != nil && contentType != "" && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	if token := c.Token(); token != "" && !req.noAuth && httpReq.Header.Get("Authorization") == "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	return httpReq, nil
}

// replayBody holds a reader body buffered once so every attempt sends it.
type replayBody []byte

func encodeBody(body any) (io.Reader, string, error) {
	switch v := body.(type) {
	case nil:
		return nil, "", nil
	case replayBody:
		return bytes.NewReader(v), "", nil
	case io.Reader:
		return v, "", nil
	case []byte:
		return bytes.NewReader(v), "application/json", nil
	case string:
		return strings.NewReader(v), "text/plain", nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, "", err
		}
		return bytes.NewReader(data), "application/json", nil
	}
}
