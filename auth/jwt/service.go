// Package jwt issues and verifies console access tokens.
//
//	svc, _ := jwt.NewService(&jwt.Config{Secret: secret})
//	token, _ := svc.Issue("admin", "admin")
//	claims, err := svc.Parse(token)
package jwt

import (
	"errors"
	"fmt"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
)

// Claims carries the username (as subject) and role.
type Claims struct {
	gojwt.RegisteredClaims
	Role string `json:"role"`
}

// Username returns the subject.
func (c *Claims) Username() string { return c.Subject }

// Service signs and parses Claims.
type Service struct {
	cfg Config
	now func() time.Time
}

func NewService(cfg *Config) (*Service, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Service{cfg: *cfg, now: time.Now}, nil
}

// TTL is the lifetime of issued tokens.
func (s *Service) TTL() time.Duration { return s.cfg.AccessTokenTTL }

// Issue signs a token for username with role, valid for AccessTokenTTL.
func (s *Service) Issue(username, role string) (string, error) {
	now := s.now()
	claims := &Claims{
		RegisteredClaims: gojwt.RegisteredClaims{
			Subject:   username,
			Issuer:    s.cfg.Issuer,
			IssuedAt:  gojwt.NewNumericDate(now),
			ExpiresAt: gojwt.NewNumericDate(now.Add(s.cfg.AccessTokenTTL)),
		},
		Role: role,
	}
	signed, err := gojwt.NewWithClaims(s.cfg.signingMethod(), claims).SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("jwt: sign token: %w", err)
	}
	return signed, nil
}

// Parse verifies signature, method, expiry and, when configured, issuer.
func (s *Service) Parse(token string) (*Claims, error) {
	opts := []gojwt.ParserOption{
		gojwt.WithValidMethods([]string{s.cfg.Method}),
		gojwt.WithTimeFunc(s.now),
		gojwt.WithExpirationRequired(),
	}
	if s.cfg.Issuer != "" {
		opts = append(opts, gojwt.WithIssuer(s.cfg.Issuer))
	}

	claims := &Claims{}
	parsed, err := gojwt.ParseWithClaims(token, claims, func(*gojwt.Token) (interface{}, error) {
		return []byte(s.cfg.Secret), nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("jwt: parse token: %w", err)
	}
	if !parsed.Valid {
		return nil, errors.New("jwt: invalid token")
	}
	return claims, nil
}
