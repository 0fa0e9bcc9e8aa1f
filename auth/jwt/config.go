package jwt

import (
	"errors"
	"fmt"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
)

// Config configures token signing. Only HMAC methods are supported.
type Config struct {
	Secret string `mapstructure:"secret"`
	// Method is HS256 (default), HS384 or HS512.
	Method string `mapstructure:"method"`
	Issuer string `mapstructure:"issuer"`
	// AccessTokenTTL defaults to 8h, the backend's session length.
	AccessTokenTTL time.Duration `mapstructure:"access_token_ttl"`
}

func (c *Config) ApplyDefaults() {
	if c.Method == "" {
		c.Method = "HS256"
	}
	if c.AccessTokenTTL <= 0 {
		c.AccessTokenTTL = 8 * time.Hour
	}
}

func (c *Config) Validate() error {
	if c.Secret == "" {
		return errors.New("jwt: secret is required")
	}
	if c.signingMethod() == nil {
		return fmt.Errorf("jwt: unsupported signing method %q", c.Method)
	}
	return nil
}

func (c *Config) signingMethod() *gojwt.SigningMethodHMAC {
	switch c.Method {
	case "HS256":
		return gojwt.SigningMethodHS256
	case "HS384":
		return gojwt.SigningMethodHS384
	case "HS512":
		return gojwt.SigningMethodHS512
	default:
		return nil
	}
}
