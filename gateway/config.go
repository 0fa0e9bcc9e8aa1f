package gateway

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ylai/autoplatform/validation"
)

// Modes.
const (
	ModeDev  = "dev"
	ModeProd = "prod"
)

// Config configures the gateway. The mapstructure keys bind to the
// environment names PORT, API_HOST, API_PORT, API_PROTO, API_TARGET,
// ASSET_VERSION, EXTRA_CONNECT and WS_PROTO.
type Config struct {
	Mode string `yaml:"mode" mapstructure:"mode"`
	Host string `yaml:"host" mapstructure:"host"`
	// Port defaults to 8080 in prod and 5173 in dev.
	Port int `yaml:"port" mapstructure:"port"`
	// StaticDir holds pages/ and static/.
	StaticDir string `yaml:"static_dir" mapstructure:"static_dir"`

	APIHost  string `yaml:"api_host" mapstructure:"api_host"`
	APIPort  int    `yaml:"api_port" mapstructure:"api_port"`
	APIProto string `yaml:"api_proto" mapstructure:"api_proto"`
	// APITarget overrides APIProto://APIHost:APIPort.
	APITarget string `yaml:"api_target" mapstructure:"api_target"`
	// WSProto defaults to wss when APIProto is https, ws otherwise.
	WSProto string `yaml:"ws_proto" mapstructure:"ws_proto"`
	// AssetVersion replaces __ASSET_VERSION__ in pages. Defaults to "dev"
	// in prod and today's YYYYMMDD in dev.
	AssetVersion string `yaml:"asset_version" mapstructure:"asset_version"`
	// ExtraConnect is a comma separated list of extra CSP connect sources.
	ExtraConnect string `yaml:"extra_connect" mapstructure:"extra_connect"`

	// BreakerFailures consecutive proxy failures open the circuit for
	// BreakerCooldown.
	BreakerFailures int           `yaml:"breaker_failures" mapstructure:"breaker_failures"`
	BreakerCooldown time.Duration `yaml:"breaker_cooldown" mapstructure:"breaker_cooldown"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Mode == "" {
		c.Mode = ModeProd
	}
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.Port == 0 {
		c.Port = 8080
		if c.Mode == ModeDev {
			c.Port = 5173
		}
	}
	if c.StaticDir == "" {
		c.StaticDir = "."
	}
	if c.APIHost == "" {
		c.APIHost = "127.0.0.1"
	}
	if c.APIPort == 0 {
		c.APIPort = 8001
	}
	if c.APIProto == "" {
		c.APIProto = "http"
	}
	if c.WSProto == "" {
		c.WSProto = "ws"
		if c.APIProto == "https" {
			c.WSProto = "wss"
		}
	}
	if c.AssetVersion == "" {
		c.AssetVersion = "dev"
		if c.Mode == ModeDev {
			c.AssetVersion = time.Now().Format("20060102")
		}
	}
	if c.BreakerFailures <= 0 {
		c.BreakerFailures = 5
	}
	if c.BreakerCooldown <= 0 {
		c.BreakerCooldown = 10 * time.Second
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	v := validation.New().
		OneOf("mode", c.Mode, ModeDev, ModeProd).
		OneOf("api_proto", c.APIProto, "http", "https").
		OneOf("ws_proto", c.WSProto, "ws", "wss").
		Check(c.Port > 0 && c.Port <= 65535, "port", "must be between 1 and 65535").
		Check(c.APIPort > 0 && c.APIPort <= 65535, "api_port", "must be between 1 and 65535")
	if c.APITarget != "" {
		u, err := url.Parse(c.APITarget)
		v.Check(err == nil && u.Scheme != "" && u.Host != "", "api_target", "must be an absolute URL")
	}
	return v.Validate()
}

// Target is the backend origin requests are proxied to.
func (c *Config) Target() string {
	if c.APITarget != "" {
		return strings.TrimRight(c.APITarget, "/")
	}
	return fmt.Sprintf("%s://%s:%d", c.APIProto, c.APIHost, c.APIPort)
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// ConnectSources lists the CSP connect-src entries of dev mode.
func (c *Config) ConnectSources() []string {
	hostPort := c.APIHost + ":" + strconv.Itoa(c.APIPort)
	out := []string{"'self'", c.APIProto + "://" + hostPort, c.WSProto + "://" + hostPort}
	for _, s := range strings.Split(c.ExtraConnect, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// ContentSecurityPolicy is the header value sent in dev mode.
func (c *Config) ContentSecurityPolicy() string {
	return strings.Join([]string{
		"default-src 'self'",
		"style-src 'self' 'unsafe-inline' https://www.gstatic.com",
		"style-src-elem 'self' 'unsafe-inline' https://www.gstatic.com",
		"script-src 'self' 'unsafe-inline'",
		"img-src 'self' data: https:",
		"connect-src " + strings.Join(c.ConnectSources(), " "),
		"font-src 'self' data:",
		"frame-ancestors 'self'",
	}, "; ")
}
