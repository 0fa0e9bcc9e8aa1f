package httpclient

import "sync"

// TokenSource supplies the bearer token and is told to forget it when the
// backend answers 401. The auth session manager implements it.
type TokenSource interface {
	Token() string
	ClearToken()
}

// Navigator receives the redirect issued after a 401.
type Navigator interface {
	Redirect(path string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(path string)

func (f NavigatorFunc) Redirect(path string) { f(path) }

// StaticToken is an in-memory TokenSource.
type StaticToken struct {
	mu    sync.Mutex
	token string
}

func NewStaticToken(token string) *StaticToken {
	return &StaticToken{token: token}
}

func (s *StaticToken) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

func (s *StaticToken) ClearToken() {
	s.mu.Lock()
	s.token = ""
	s.mu.Unlock()
}

// LoginPath is where a 401 sends the user.
const LoginPath = "/login"
