package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrClosed is returned by stores used after Close.
var ErrClosed = errors.New("storage: store is closed")

// Store is a string key/value store. It stands in for browser localStorage
// and sessionStorage: values are opaque strings, usually JSON.
type Store interface {
	// Get returns the value and whether the key exists.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	// Remove is a no-op for missing keys.
	Remove(ctx context.Context, key string) error
	// Keys returns all keys in lexical order.
	Keys(ctx context.Context) ([]string, error)
}

// GetJSON reads key and decodes it into T. A missing key yields ok=false.
func GetJSON[T any](ctx context.Context, s Store, key string) (v T, ok bool, err error) {
	raw, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return v, ok, err
	}
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return v, true, fmt.Errorf("storage: decode %s: %w", key, err)
	}
	return v, true, nil
}

// SetJSON encodes v and stores it under key.
func SetJSON(ctx context.Context, s Store, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("storage: encode %s: %w", key, err)
	}
	return s.Set(ctx, key, string(data))
}
