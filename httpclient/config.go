package httpclient

import (
	"fmt"
	"time"
)

const (
	defaultTimeout    = 30 * time.Second
	defaultRetryTimes = 3
	defaultRetryDelay = time.Second
)

// Config configures the API client.
type Config struct {
	// BaseURL is prepended to relative paths, e.g. "http://127.0.0.1:8001".
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	// Timeout bounds each attempt. Defaults to 30s.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
	// RetryTimes is the number of retries after the first attempt. Defaults
	// to 3; a negative value disables retries.
	RetryTimes int `yaml:"retry_times" mapstructure:"retry_times"`
	// RetryDelay is the first retry delay; later delays double. Defaults to 1s.
	RetryDelay time.Duration `yaml:"retry_delay" mapstructure:"retry_delay"`
	// AssetVersion, when set, is sent as the _v query parameter on every
	// request so intermediaries never serve a stale response.
	AssetVersion string            `yaml:"asset_version" mapstructure:"asset_version"`
	Headers      map[string]string `yaml:"headers" mapstructure:"headers"`
}

// ApplyDefaults fills zero values.
func (c *Config) ApplyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.RetryTimes == 0 {
		c.RetryTimes = defaultRetryTimes
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = defaultRetryDelay
	}
}

// Validate checks the configuration after defaults are applied.
func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("httpclient: timeout must be positive")
	}
	if c.RetryTimes > 10 {
		return fmt.Errorf("httpclient: retry_times must be at most 10 (got %d)", c.RetryTimes)
	}
	return nil
}

func (c *Config) retries() int {
	if c.RetryTimes < 0 {
		return 0
	}
	return c.RetryTimes
}
