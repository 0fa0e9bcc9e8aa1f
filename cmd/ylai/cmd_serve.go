package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/ylai/autoplatform/bootstrap"
	"github.com/ylai/autoplatform/gateway"
	"github.com/ylai/autoplatform/logger"
	"github.com/ylai/autoplatform/observability"
	"github.com/ylai/autoplatform/redis"
)

func newServeCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the console pages and proxy /api and /ws to the backend",
		Long: `Serves pages/ and static/ from static_dir, substituting the asset version,
head and footer partials, and reverse-proxies /api/* and /ws/* to the backend.

With --dev the gateway listens on 5173 by default and sends a
Content-Security-Policy that allows the backend's HTTP and WebSocket origins.`,
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotationLogLevel: "info"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), c.cfg, cmd)
		},
	}
	cmd.Flags().BoolVar(&c.dev, "dev", false, "development mode: CSP header, port 5173, dated asset version")
	cmd.Flags().IntVar(&c.port, "port", 0, "listen port (overrides PORT)")
	return cmd
}

func runServe(ctx context.Context, cfg *Config, cmd *cobra.Command) error {
	app, err := bootstrap.NewApp(cfg, bootstrap.WithLogger(logger.GetGlobalLogger()), bootstrap.WithOutput(cmd.OutOrStdout()))
	if err != nil {
		return err
	}

	metrics, shutdown, err := initTelemetry(ctx, cfg)
	if err != nil {
		return err
	}
	app.OnStop(bootstrap.Hook(shutdown))

	if cfg.Redis.Enabled {
		if err := app.RegisterComponent(redis.NewComponent(cfg.Redis, app.Logger)); err != nil {
			return err
		}
	}

	gw, err := gateway.New(cfg.Gateway, gateway.WithMetrics(metrics))
	if err != nil {
		return err
	}
	if err := app.RegisterComponent(gw.Component()); err != nil {
		return err
	}
	gcfg := gw.Config()
	app.Summary.TrackClient("backend", gcfg.Target(), "http")
	app.Summary.Note("console: http://%s/", gcfg.Addr())
	return app.Run(ctx)
}

// initTelemetry installs the meter and tracer providers and builds the
// instrument set. shutdown flushes both.
func initTelemetry(ctx context.Context, cfg *Config) (*observability.Metrics, observability.ShutdownFunc, error) {
	stopMeter, err := observability.InitMeter(ctx, cfg.Metrics)
	if err != nil {
		return nil, nil, err
	}
	stopTracer, err := observability.InitTracer(ctx, cfg.Tracing)
	if err != nil {
		_ = stopMeter(ctx)
		return nil, nil, err
	}
	shutdown := func(ctx context.Context) error {
		return errors.Join(stopTracer(ctx), stopMeter(ctx))
	}
	metrics, err := observability.NewMetrics(observability.Meter(cfg.Name))
	if err != nil {
		_ = shutdown(ctx)
		return nil, nil, err
	}
	return metrics, shutdown, nil
}
