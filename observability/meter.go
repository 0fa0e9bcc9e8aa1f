package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"

	"github.com/ylai/autoplatform/logger"
)

// MeterConfig configures metric export. With an empty Endpoint no exporter
// is installed and instruments record into the global no-op provider.
type MeterConfig struct {
	ServiceName    string        `mapstructure:"service_name"`
	ServiceVersion string        `mapstructure:"service_version"`
	Environment    string        `mapstructure:"environment"`
	Endpoint       string        `mapstructure:"otlp_endpoint"`
	Insecure       bool          `mapstructure:"otlp_insecure"`
	Interval       time.Duration `mapstructure:"interval"`
}

// ApplyDefaults fills the service name and a 15s export interval.
func (c *MeterConfig) ApplyDefaults() {
	if c.ServiceName == "" {
		c.ServiceName = "ylai"
	}
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.Interval <= 0 {
		c.Interval = 15 * time.Second
	}
}

// ShutdownFunc flushes and stops the meter provider.
type ShutdownFunc func(context.Context) error

// InitMeter installs an OTLP/HTTP meter provider as the global provider.
func InitMeter(ctx context.Context, cfg MeterConfig) (ShutdownFunc, error) {
	cfg.ApplyDefaults()
	if cfg.Endpoint == "" {
		logger.Debug("metrics export disabled", logger.Fields("service", cfg.ServiceName))
		return func(context.Context) error { return nil }, nil
	}

	opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.version", cfg.ServiceVersion),
		attribute.String("environment", cfg.Environment),
	))
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(cfg.Interval))),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	logger.Info("meter initialized", logger.Fields(
		"service", cfg.ServiceName,
		"endpoint", cfg.Endpoint,
		"interval", cfg.Interval.String(),
	))
	return mp.Shutdown, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}
