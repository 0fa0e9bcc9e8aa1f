package mockbackend

import (
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/ylai/autoplatform/validation"
)

// Config configures the mock backend. The defaults match what the gateway
// expects of a local backend.
type Config struct {
	Host string `yaml:"host" mapstructure:"host"`
	Port int    `yaml:"port" mapstructure:"port"`
	// JWTSecret signs access tokens.
	JWTSecret string `yaml:"jwt_secret" mapstructure:"jwt_secret"`
	// BcryptCost is used when hashing the built-in accounts.
	BcryptCost int `yaml:"bcrypt_cost" mapstructure:"bcrypt_cost"`
	// LogInterval paces the mock lines on /api/sse/logs.
	LogInterval time.Duration `yaml:"log_interval" mapstructure:"log_interval"`
	// NodeDelay is how long each pipeline node pretends to work. A node's
	// duration_ms param overrides it.
	NodeDelay time.Duration `yaml:"node_delay" mapstructure:"node_delay"`
	// MaxConcurrentPipelines is the initial scheduler limit.
	MaxConcurrentPipelines int `yaml:"max_concurrent_pipelines" mapstructure:"max_concurrent_pipelines"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Host == "" {
		c.Host = "127.0.0.1"
	}
	if c.Port == 0 {
		c.Port = 8001
	}
	if c.JWTSecret == "" {
		c.JWTSecret = "ylai-secret"
	}
	if c.BcryptCost == 0 {
		c.BcryptCost = bcrypt.DefaultCost
	}
	if c.LogInterval <= 0 {
		c.LogInterval = 2 * time.Second
	}
	if c.NodeDelay <= 0 {
		c.NodeDelay = 400 * time.Millisecond
	}
	if c.MaxConcurrentPipelines <= 0 {
		c.MaxConcurrentPipelines = 2
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	return validation.New().
		Range("port", c.Port, 1, 65535).
		Range("bcrypt_cost", c.BcryptCost, bcrypt.MinCost, bcrypt.MaxCost).
		Required("jwt_secret", c.JWTSecret).
		Validate()
}
