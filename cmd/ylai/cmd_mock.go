package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ylai/autoplatform/bootstrap"
	"github.com/ylai/autoplatform/logger"
	"github.com/ylai/autoplatform/mockbackend"
	"github.com/ylai/autoplatform/storage"
)

func newMockCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "mock",
		Short: "Run a local stand-in for the automation backend",
		Long: `Runs the mock backend on backend.host:backend.port (127.0.0.1:8001 by
default): login with the demo accounts, pipeline runs with WebSocket status
streams, the SSE log feed, scheduler and policy settings.

Scheduler and policy settings are kept in the configured store.`,
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotationLogLevel: "info"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, _, release, err := newMockApp(cmd.Context(), c.cfg, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer release()
			return app.Run(cmd.Context())
		},
	}
}

// newMockApp wires the mock backend into an App. The store is opened here
// because the backend reads its saved settings on construction; release
// closes it and flushes telemetry once the App has stopped.
func newMockApp(ctx context.Context, cfg *Config, out io.Writer) (*bootstrap.App[*Config], *mockbackend.Backend, func(), error) {
	app, err := bootstrap.NewApp(cfg, bootstrap.WithLogger(logger.GetGlobalLogger()), bootstrap.WithOutput(out))
	if err != nil {
		return nil, nil, nil, err
	}

	metrics, shutdown, err := initTelemetry(ctx, cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	store, err := storage.New(cfg.Storage, app.Logger)
	if err != nil {
		_ = shutdown(ctx)
		return nil, nil, nil, err
	}
	release := func() {
		closeStore(store)
		_ = shutdown(context.WithoutCancel(ctx))
	}

	backend, err := mockbackend.New(cfg.Backend, mockbackend.WithStore(store), mockbackend.WithMetrics(metrics))
	if err != nil {
		release()
		return nil, nil, nil, err
	}
	if err := app.RegisterComponent(backend); err != nil {
		release()
		return nil, nil, nil, err
	}
	app.Summary.Note("demo accounts: %s", demoAccounts())
	return app, backend, release, nil
}

func demoAccounts() string {
	parts := make([]string, len(mockbackend.DefaultAccounts))
	for i, a := range mockbackend.DefaultAccounts {
		parts[i] = fmt.Sprintf("%s/%s (%s)", a.Username, a.Password, a.Role)
	}
	return strings.Join(parts, ", ")
}
