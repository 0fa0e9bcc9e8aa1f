package auth

import "fmt"

// Storage keys shared with the browser console.
const (
	KeyToken       = "yl_token"
	KeyRole        = "yl_user_role"
	KeyLegacyToken = "auth_token"
	KeyAutoLogin   = "yl_auto_login"
	// KeySuperadmin lives in the session-scoped store.
	KeySuperadmin = "index_superadmin"
)

const (
	DefaultLoginEndpoint = "/api/auth/login"
	LoginPage            = "/pages/login.html"
	IndexPage            = "/pages/index.html"
)

// Config controls the session manager.
type Config struct {
	// DemoMode lets a failed login fall back to a local demo session with
	// the superadmin role. Never enable it against a real backend.
	DemoMode bool `mapstructure:"demo_mode"`

	// Dev enables AutoLogin, mirroring the localhost-only behaviour of the
	// browser console.
	Dev bool `mapstructure:"dev"`

	LoginEndpoint string `mapstructure:"login_endpoint"`
}

func (c *Config) ApplyDefaults() {
	if c.LoginEndpoint == "" {
		c.LoginEndpoint = DefaultLoginEndpoint
	}
}

func (c *Config) Validate() error {
	if c.LoginEndpoint == "" || c.LoginEndpoint[0] != '/' {
		return fmt.Errorf("auth: login_endpoint must be an absolute path, got %q", c.LoginEndpoint)
	}
	return nil
}
