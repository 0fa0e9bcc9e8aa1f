package password

import (
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestBcrypt(t *testing.T) {
	h, err := NewBcrypt(Config{Cost: bcrypt.MinCost})
	if err != nil {
		t.Fatal(err)
	}
	hash, err := h.Hash("admin")
	if err != nil {
		t.Fatal(err)
	}
	if err := h.Verify("admin", hash); err != nil {
		t.Errorf("Verify(correct) = %v", err)
	}
	if err := h.Verify("nope", hash); !errors.Is(err, ErrMismatch) {
		t.Errorf("Verify(wrong) = %v", err)
	}
}

func TestLengthLimits(t *testing.T) {
	h, _ := NewBcrypt(Config{Cost: bcrypt.MinCost, MinLength: 8})
	if _, err := h.Hash("short"); err == nil {
		t.Error("expected min length error")
	}
	long := make([]byte, 73)
	for i := range long {
		long[i] = 'a'
	}
	if _, err := h.Hash(string(long)); err == nil {
		t.Error("expected max length error")
	}
}

func TestConfigValidate(t *testing.T) {
	for _, cfg := range []Config{{Cost: 3}, {Cost: 40}, {Cost: 10, MinLength: 100}} {
		if _, err := NewBcrypt(cfg); err == nil {
			t.Errorf("NewBcrypt(%+v) accepted invalid config", cfg)
		}
	}
}
