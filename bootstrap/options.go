package bootstrap

import (
	"io"
	"time"

	"github.com/ylai/autoplatform/logger"
)

// Option configures the App during creation. Options are non-generic so
// they work with any config type.
type Option func(*appOptions)

type appOptions struct {
	logger          *logger.Logger
	out             io.Writer
	gracefulTimeout *time.Duration
	signals         *bool
}

func resolveOptions(opts []Option) *appOptions {
	o := &appOptions{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithLogger sets the application logger. Without it the logger is built
// from the config's logging section and installed globally.
func WithLogger(l *logger.Logger) Option {
	return func(o *appOptions) {
		o.logger = l
	}
}

// WithOutput sets where the startup summary is printed. Defaults to stdout.
func WithOutput(w io.Writer) Option {
	return func(o *appOptions) {
		o.out = w
	}
}

// WithGracefulTimeout sets the maximum duration for graceful shutdown.
func WithGracefulTimeout(d time.Duration) Option {
	return func(o *appOptions) {
		o.gracefulTimeout = &d
	}
}

// WithoutSignals stops Run and RunTask from listening for SIGINT and
// SIGTERM; only the context ends them.
func WithoutSignals() Option {
	return func(o *appOptions) {
		f := false
		o.signals = &f
	}
}
