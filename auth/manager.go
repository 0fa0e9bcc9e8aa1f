package auth

import (
	"context"
	"errors"
	"math/rand/v2"
	"strconv"
	"sync"

	apperrors "github.com/ylai/autoplatform/errors"
	"github.com/ylai/autoplatform/httpclient"
	"github.com/ylai/autoplatform/logger"
	"github.com/ylai/autoplatform/storage"
)

// LoginResult is the outcome of Login.
type LoginResult struct {
	Success bool   `json:"success"`
	Token   string `json:"token,omitempty"`
	Role    Role   `json:"role,omitempty"`
	Message string `json:"message"`
}

// Manager holds the console session. It implements httpclient.TokenSource.
type Manager struct {
	cfg       Config
	local     storage.Store
	session   storage.Store
	client    *httpclient.Client
	navigator httpclient.Navigator
	onRole    func(Role)
	log       *logger.Logger

	mu    sync.Mutex
	token string
}

var _ httpclient.TokenSource = (*Manager)(nil)

type Option func(*Manager)

// WithSessionStore sets the store for session-scoped markers. Defaults to
// a fresh in-memory store.
func WithSessionStore(s storage.Store) Option {
	return func(m *Manager) { m.session = s }
}

func WithNavigator(n httpclient.Navigator) Option {
	return func(m *Manager) { m.navigator = n }
}

// WithRoleListener is called whenever the stored role changes.
func WithRoleListener(fn func(Role)) Option {
	return func(m *Manager) { m.onRole = fn }
}

// NewManager creates a session manager persisting to local.
func NewManager(cfg Config, local storage.Store, opts ...Option) (*Manager, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if local == nil {
		local = storage.NewMemory()
	}
	m := &Manager{cfg: cfg, local: local, log: logger.Get("auth")}
	for _, opt := range opts {
		opt(m)
	}
	if m.session == nil {
		m.session = storage.NewMemory()
	}
	return m, nil
}

// UseClient sets the API client used by Login. The client usually takes
// the manager as its TokenSource, so it is attached after construction.
func (m *Manager) UseClient(c *httpclient.Client) { m.client = c }

// Token returns the cached token, falling back to the store.
func (m *Manager) Token() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.token != "" {
		return m.token
	}
	t, ok, err := m.local.Get(context.Background(), KeyToken)
	if err != nil {
		m.log.Warn("read token failed", logger.Fields(logger.FieldError, err.Error()))
		return ""
	}
	if ok {
		m.token = t
	}
	return m.token
}

// ClearToken forgets the token, as after a 401.
func (m *Manager) ClearToken() {
	if err := m.SetToken(context.Background(), ""); err != nil {
		m.log.Warn("clear token failed", logger.Fields(logger.FieldError, err.Error()))
	}
}

// SetToken stores t under yl_token and the legacy auth_token key. An empty
// t removes both.
func (m *Manager) SetToken(ctx context.Context, t string) error {
	m.mu.Lock()
	m.token = t
	m.mu.Unlock()

	if t == "" {
		return errors.Join(m.local.Remove(ctx, KeyToken), m.local.Remove(ctx, KeyLegacyToken))
	}
	return errors.Join(m.local.Set(ctx, KeyToken, t), m.local.Set(ctx, KeyLegacyToken, t))
}

// AuthHeaders returns the Authorization header for the current token, if any.
func (m *Manager) AuthHeaders() map[string]string {
	h := map[string]string{}
	if t := m.Token(); t != "" {
		h["Authorization"] = "Bearer " + t
	}
	return h
}

// Role returns the stored role, or "" when none is stored.
func (m *Manager) Role(ctx context.Context) Role {
	r, _, _ := m.local.Get(ctx, KeyRole)
	return Role(r)
}

func (m *Manager) setRole(ctx context.Context, r Role) error {
	if err := m.local.Set(ctx, KeyRole, string(r)); err != nil {
		return err
	}
	if m.onRole != nil {
		m.onRole(r)
	}
	return nil
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
	Token       string `json:"token"`
	Role        Role   `json:"role"`
	Message     string `json:"message"`
}

// Login posts credentials to the login endpoint. A response carrying
// access_token (or token) starts a session. When the request fails and demo
// mode is on, a demo superadmin session is created instead; with demo mode
// off the failure is returned as DEMO_MODE_DISABLED.
func (m *Manager) Login(ctx context.Context, username, password string) (LoginResult, error) {
	if m.client == nil {
		return LoginResult{Message: "no api client"}, apperrors.Internal(errors.New("auth: UseClient was not called"))
	}

	env, err := m.client.Post(ctx, m.cfg.LoginEndpoint,
		map[string]string{"username": username, "password": password},
		httpclient.WithoutRetry(), httpclient.WithoutAuth())
	if err != nil {
		if m.cfg.DemoMode {
			m.log.Warn("login failed, entering demo mode", logger.Fields(logger.FieldError, err.Error()))
			return m.demoSession(ctx)
		}
		return LoginResult{Message: err.Error()}, apperrors.DemoModeDisabled(err)
	}

	resp, err := httpclient.Decode[loginResponse](env)
	if err != nil {
		return LoginResult{Message: "login failed"}, err
	}
	token := resp.AccessToken
	if token == "" {
		token = resp.Token
	}
	if token == "" {
		msg := resp.Message
		if msg == "" {
			msg = "login failed"
		}
		return LoginResult{Message: msg}, nil
	}

	if err := m.SetToken(ctx, token); err != nil {
		return LoginResult{}, err
	}
	if resp.Role != "" {
		if err := m.setRole(ctx, resp.Role); err != nil {
			return LoginResult{}, err
		}
	}
	m.log.Info("logged in", logger.Fields("username", username, "role", string(resp.Role)))
	return LoginResult{Success: true, Token: token, Role: resp.Role, Message: "ok"}, nil
}

func (m *Manager) demoSession(ctx context.Context) (LoginResult, error) {
	token := "demo-token-" + strconv.FormatUint(rand.Uint64(), 36)
	if err := m.SetToken(ctx, token); err != nil {
		return LoginResult{}, err
	}
	if err := m.setRole(ctx, RoleSuperadmin); err != nil {
		return LoginResult{}, err
	}
	if err := m.session.Set(ctx, KeySuperadmin, "1"); err != nil {
		return LoginResult{}, err
	}
	return LoginResult{Success: true, Token: token, Role: RoleSuperadmin, Message: "demo mode"}, nil
}

// Logout drops the token, role and superadmin marker.
func (m *Manager) Logout(ctx context.Context) error {
	return errors.Join(
		m.SetToken(ctx, ""),
		m.local.Remove(ctx, KeyRole),
		m.session.Remove(ctx, KeySuperadmin),
	)
}

// EnsureLoggedIn reports whether a token exists, redirecting to the login
// page when it does not and redirect is set.
func (m *Manager) EnsureLoggedIn(redirect bool) bool {
	if m.Token() != "" {
		return true
	}
	if redirect && m.navigator != nil {
		m.navigator.Redirect(LoginPage)
	}
	return false
}

// EnsureSuperadmin requires the superadmin role plus the session marker;
// otherwise it redirects to the index page.
func (m *Manager) EnsureSuperadmin(ctx context.Context) bool {
	marker, _, _ := m.session.Get(ctx, KeySuperadmin)
	if m.Role(ctx) == RoleSuperadmin && marker == "1" {
		return true
	}
	if m.navigator != nil {
		m.navigator.Redirect(IndexPage)
	}
	return false
}

// AutoLoginEnabled reads yl_auto_login; it defaults to true.
func (m *Manager) AutoLoginEnabled(ctx context.Context) bool {
	v, ok, err := m.local.Get(ctx, KeyAutoLogin)
	if err != nil || !ok {
		return true
	}
	return v == "true"
}

func (m *Manager) EnableAutoLogin(ctx context.Context, enabled bool) error {
	return m.local.Set(ctx, KeyAutoLogin, strconv.FormatBool(enabled))
}

// AutoLogin starts a demo session in dev mode when auto-login is enabled
// and no token is present. It reports whether a session was created.
func (m *Manager) AutoLogin(ctx context.Context) (bool, error) {
	if !m.cfg.Dev || !m.AutoLoginEnabled(ctx) || m.Token() != "" {
		return false, nil
	}
	if _, err := m.demoSession(ctx); err != nil {
		return false, err
	}
	m.log.Info("dev auto-login enabled")
	return true, nil
}
