package storage

import (
	"fmt"
)

// Provider names.
const (
	ProviderMemory = "memory"
	ProviderLocal  = "local"
	ProviderBadger = "badger"
	ProviderRedis  = "redis"
)

const (
	DefaultProvider  = ProviderMemory
	DefaultLocalPath = ".ylai/storage.json"
	DefaultDataDir   = ".ylai/badger"
)

// Config selects and configures a Store backend.
type Config struct {
	// Provider is one of memory, local, badger, redis.
	Provider string `mapstructure:"provider" json:"provider"`

	// Path is the JSON file for local, or the data directory for badger.
	Path string `mapstructure:"path" json:"path"`

	// InMemory runs badger without touching disk.
	InMemory bool `mapstructure:"in_memory" json:"in_memory"`

	// Namespace prefixes keys in shared backends (redis).
	Namespace string `mapstructure:"namespace" json:"namespace"`

	Addr     string `mapstructure:"addr" json:"addr"`
	Password string `mapstructure:"password" json:"-"`
	DB       int    `mapstructure:"db" json:"db"`
}

func (c *Config) ApplyDefaults() {
	if c.Provider == "" {
		c.Provider = DefaultProvider
	}
	switch c.Provider {
	case ProviderLocal:
		if c.Path == "" {
			c.Path = DefaultLocalPath
		}
	case ProviderBadger:
		if c.Path == "" && !c.InMemory {
			c.Path = DefaultDataDir
		}
	case ProviderRedis:
		if c.Addr == "" {
			c.Addr = "localhost:6379"
		}
		if c.Namespace == "" {
			c.Namespace = "ylai"
		}
	}
}

func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderMemory, ProviderRedis:
	case ProviderLocal:
		if c.Path == "" {
			return fmt.Errorf("storage: path is required for local provider")
		}
	case ProviderBadger:
		if c.Path == "" && !c.InMemory {
			return fmt.Errorf("storage: path or in_memory is required for badger provider")
		}
	default:
		return fmt.Errorf("storage: unsupported provider %q", c.Provider)
	}
	if c.DB < 0 {
		return fmt.Errorf("storage: db must be non-negative")
	}
	return nil
}
