package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ylai/autoplatform/auth"
	"github.com/ylai/autoplatform/config"
	"github.com/ylai/autoplatform/gateway"
	"github.com/ylai/autoplatform/httpclient"
	"github.com/ylai/autoplatform/mockbackend"
	"github.com/ylai/autoplatform/observability"
	"github.com/ylai/autoplatform/redis"
	"github.com/ylai/autoplatform/storage"
	"github.com/ylai/autoplatform/version"
)

// annotationLogLevel overrides the default log level of a command.
const annotationLogLevel = "ylai/log-level"

// Config is shared by every command. The gateway keys sit at the top level
// so PORT, API_HOST, API_PORT and the other console variables bind without
// a prefix.
type Config struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`

	Gateway gateway.Config             `yaml:",inline" mapstructure:",squash"`
	Backend mockbackend.Config         `yaml:"backend" mapstructure:"backend"`
	Client  httpclient.Config          `yaml:"client" mapstructure:"client"`
	Auth    auth.Config                `yaml:"auth" mapstructure:"auth"`
	Storage storage.Config             `yaml:"storage" mapstructure:"storage"`
	Redis   redis.Config               `yaml:"redis" mapstructure:"redis"`
	Metrics observability.MeterConfig  `yaml:"metrics" mapstructure:"metrics"`
	Tracing observability.TracerConfig `yaml:"tracing" mapstructure:"tracing"`
}

// ApplyDefaults fills every section. The client talks to the gateway's
// backend target unless client.base_url is set.
func (c *Config) ApplyDefaults() {
	c.ServiceConfig.ApplyDefaults()
	c.Gateway.ApplyDefaults()
	c.Backend.ApplyDefaults()
	if c.Client.BaseURL == "" {
		c.Client.BaseURL = c.Gateway.Target()
	}
	c.Client.ApplyDefaults()
	c.Auth.ApplyDefaults()
	c.Storage.ApplyDefaults()
	c.Redis.ApplyDefaults()
	if c.Metrics.ServiceName == "" {
		c.Metrics.ServiceName = c.Name
	}
	if c.Metrics.ServiceVersion == "" {
		c.Metrics.ServiceVersion = version.Get().Short()
	}
	if c.Metrics.Environment == "" {
		c.Metrics.Environment = c.Environment
	}
	c.Metrics.ApplyDefaults()
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = c.Metrics.ServiceName
	}
	if c.Tracing.ServiceVersion == "" {
		c.Tracing.ServiceVersion = c.Metrics.ServiceVersion
	}
	if c.Tracing.Environment == "" {
		c.Tracing.Environment = c.Environment
	}
	c.Tracing.ApplyDefaults()
}

// Validate checks every section.
func (c *Config) Validate() error {
	for _, s := range []struct {
		name string
		fn   func() error
	}{
		{"service", c.ServiceConfig.Validate},
		{"gateway", c.Gateway.Validate},
		{"backend", c.Backend.Validate},
		{"client", c.Client.Validate},
		{"auth", c.Auth.Validate},
		{"storage", c.Storage.Validate},
		{"redis", c.Redis.Validate},
	} {
		if err := s.fn(); err != nil {
			return fmt.Errorf("%s config: %w", s.name, err)
		}
	}
	return nil
}

// loadConfig reads config.yml, .env and the environment, then applies the
// persistent flags on top.
func loadConfig(c *cli, cmd *cobra.Command) (*Config, error) {
	level := "warn"
	if l := cmd.Annotations[annotationLogLevel]; l != "" {
		level = l
	}
	opts := []config.LoaderOption{config.WithDefaults(map[string]any{
		"logging.level":    level,
		"logging.output":   "stderr",
		"storage.provider": storage.ProviderLocal,
		"storage.path":     defaultStorePath(),
	})}
	if c.configFile != "" {
		opts = append(opts, config.WithConfigFile(c.configFile))
	}
	if c.envFile != "" {
		opts = append(opts, config.WithEnvFile(c.envFile))
	}

	cfg := &Config{}
	if err := config.LoadConfig("ylai", cfg, opts...); err != nil {
		return nil, err
	}
	if c.api != "" {
		cfg.Client.BaseURL = c.api
	}
	if c.logLevel != "" {
		cfg.Logging.Level = c.logLevel
	}
	if c.dev {
		cfg.Gateway.Mode = gateway.ModeDev
	}
	if c.port != 0 {
		cfg.Gateway.Port = c.port
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.InitLogger()
	return cfg, nil
}

// defaultStorePath keeps the session next to the user's other config.
func defaultStorePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return storage.DefaultLocalPath
	}
	return filepath.Join(dir, "ylai", "session.json")
}
