package observability

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the console's instruments.
type Metrics struct {
	proxyRequests metric.Int64Counter
	proxyDuration metric.Float64Histogram
	proxyErrors   metric.Int64Counter
	proxyActive   metric.Int64UpDownCounter
	pipelineRuns  metric.Int64Counter
	nodeStatus    metric.Int64Counter
}

// NewMetrics creates the instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	var (
		m   Metrics
		err error
	)
	if m.proxyRequests, err = meter.Int64Counter("proxy.requests",
		metric.WithDescription("Requests forwarded to the backend")); err != nil {
		return nil, fmt.Errorf("creating proxy.requests counter: %w", err)
	}
	if m.proxyDuration, err = meter.Float64Histogram("proxy.duration",
		metric.WithDescription("Backend round trip of proxied requests"), metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("creating proxy.duration histogram: %w", err)
	}
	if m.proxyErrors, err = meter.Int64Counter("proxy.errors",
		metric.WithDescription("Proxied requests that failed before a backend response")); err != nil {
		return nil, fmt.Errorf("creating proxy.errors counter: %w", err)
	}
	if m.proxyActive, err = meter.Int64UpDownCounter("proxy.active",
		metric.WithDescription("Proxied requests and WebSocket sessions in flight")); err != nil {
		return nil, fmt.Errorf("creating proxy.active gauge: %w", err)
	}
	if m.pipelineRuns, err = meter.Int64Counter("pipeline.runs",
		metric.WithDescription("Pipeline runs accepted, by engine")); err != nil {
		return nil, fmt.Errorf("creating pipeline.runs counter: %w", err)
	}
	if m.nodeStatus, err = meter.Int64Counter("pipeline.node_status",
		metric.WithDescription("Node status transitions, by status")); err != nil {
		return nil, fmt.Errorf("creating pipeline.node_status counter: %w", err)
	}
	return &m, nil
}

// ProxyStart marks a proxied request as in flight.
func (m *Metrics) ProxyStart(ctx context.Context) {
	if m == nil {
		return
	}
	m.proxyActive.Add(ctx, 1)
}

// ProxyEnd records a completed proxied request.
func (m *Metrics) ProxyEnd(ctx context.Context, prefix, method string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.proxyActive.Add(ctx, -1)
	m.proxyRequests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("prefix", prefix),
		attribute.String("method", method),
		attribute.String("status", strconv.Itoa(status)),
	))
	m.proxyDuration.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String("prefix", prefix),
	))
}

// ProxyError counts a failed proxy attempt; kind is "dial", "circuit_open", ...
func (m *Metrics) ProxyError(ctx context.Context, prefix, kind string) {
	if m == nil {
		return
	}
	m.proxyErrors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("prefix", prefix),
		attribute.String("kind", kind),
	))
}

// PipelineRun counts an accepted run.
func (m *Metrics) PipelineRun(ctx context.Context, engine string, nodes int) {
	if m == nil {
		return
	}
	m.pipelineRuns.Add(ctx, 1, metric.WithAttributes(
		attribute.String("engine", engine),
		attribute.Int("nodes", nodes),
	))
}

// NodeStatus counts a node entering status.
func (m *Metrics) NodeStatus(ctx context.Context, status string) {
	if m == nil {
		return
	}
	m.nodeStatus.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}
