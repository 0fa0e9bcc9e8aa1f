package observability

import (
	"context"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	out := map[string]metricdata.Metrics{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func TestProxyMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := NewMetrics(mp.Meter("gateway"))
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	ctx := context.Background()
	m.ProxyStart(ctx)
	m.ProxyEnd(ctx, "/api", "GET", 200, 20*time.Millisecond)
	m.ProxyStart(ctx)
	m.ProxyEnd(ctx, "/api", "GET", 200, 40*time.Millisecond)
	m.ProxyError(ctx, "/ws", "dial")

	got := collect(t, reader)

	reqs, ok := got["proxy.requests"].Data.(metricdata.Sum[int64])
	if !ok || len(reqs.DataPoints) != 1 || reqs.DataPoints[0].Value != 2 {
		t.Errorf("proxy.requests = %+v", got["proxy.requests"].Data)
	}
	active, ok := got["proxy.active"].Data.(metricdata.Sum[int64])
	if !ok || len(active.DataPoints) != 1 || active.DataPoints[0].Value != 0 {
		t.Errorf("proxy.active = %+v", got["proxy.active"].Data)
	}
	hist, ok := got["proxy.duration"].Data.(metricdata.Histogram[float64])
	if !ok || len(hist.DataPoints) != 1 || hist.DataPoints[0].Count != 2 {
		t.Errorf("proxy.duration = %+v", got["proxy.duration"].Data)
	}
	if _, ok := got["proxy.errors"]; !ok {
		t.Error("proxy.errors not recorded")
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	ctx := context.Background()
	m.ProxyStart(ctx)
	m.ProxyEnd(ctx, "/api", "GET", 502, time.Second)
	m.ProxyError(ctx, "/api", "dial")
	m.PipelineRun(ctx, "ws", 3)
	m.NodeStatus(ctx, "success")
}

func TestInitMeterWithoutEndpoint(t *testing.T) {
	shutdown, err := InitMeter(context.Background(), MeterConfig{})
	if err != nil {
		t.Fatalf("InitMeter: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown: %v", err)
	}
	if Meter("x") == nil {
		t.Error("expected a meter from the global provider")
	}
}
