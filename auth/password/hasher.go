// Package password hashes and verifies user passwords with bcrypt.
package password

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// ErrMismatch is returned by Verify for a wrong password.
var ErrMismatch = errors.New("password: invalid password")

// Hasher hashes passwords and checks them against stored hashes.
type Hasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) error
}

// Config is loadable via mapstructure.
type Config struct {
	// Cost defaults to bcrypt.DefaultCost.
	Cost int `mapstructure:"cost"`
	// MinLength defaults to 1; the demo accounts use short passwords.
	MinLength int `mapstructure:"min_length"`
}

func (c *Config) ApplyDefaults() {
	if c.Cost == 0 {
		c.Cost = bcrypt.DefaultCost
	}
	if c.MinLength == 0 {
		c.MinLength = 1
	}
}

func (c *Config) Validate() error {
	if c.Cost < bcrypt.MinCost || c.Cost > bcrypt.MaxCost {
		return fmt.Errorf("password: cost must be between %d and %d (got %d)", bcrypt.MinCost, bcrypt.MaxCost, c.Cost)
	}
	if c.MinLength < 1 || c.MinLength > 72 {
		return fmt.Errorf("password: min_length must be between 1 and 72 (got %d)", c.MinLength)
	}
	return nil
}

// Bcrypt implements Hasher.
type Bcrypt struct {
	cost      int
	minLength int
}

func NewBcrypt(cfg Config) (*Bcrypt, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Bcrypt{cost: cfg.Cost, minLength: cfg.MinLength}, nil
}

func (h *Bcrypt) Hash(password string) (string, error) {
	if len(password) < h.minLength {
		return "", fmt.Errorf("password: minimum length is %d characters", h.minLength)
	}
	if len(password) > 72 {
		return "", errors.New("password: maximum length is 72 bytes")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("password: hash: %w", err)
	}
	return string(hash), nil
}

func (h *Bcrypt) Verify(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrMismatch
	}
	return nil
}
