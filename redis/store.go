package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	goredis "github.com/redis/go-redis/v9"

	"github.com/ylai/autoplatform/logger"
	"github.com/ylai/autoplatform/storage"
)

func init() {
	storage.RegisterFactory(storage.ProviderRedis, func(cfg storage.Config, log *logger.Logger) (storage.Store, error) {
		client, err := New(Config{
			Enabled:   true,
			Addr:      cfg.Addr,
			Password:  cfg.Password,
			DB:        cfg.DB,
			KeyPrefix: cfg.Namespace,
		}, log)
		if err != nil {
			return nil, err
		}
		return NewStore(client), nil
	})
}

// Store implements storage.Store on plain string keys under the client prefix.
type Store struct {
	client *Client
}

var _ storage.Store = (*Store)(nil)

func NewStore(client *Client) *Store {
	return &Store{client: client}
}

// Client returns the client the store writes through.
func (s *Store) Client() *Client { return s.client }

func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.client.rdb.Get(ctx, s.client.Key(key)).Result()
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get %q: %w", key, err)
	}
	return v, true, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	if err := s.client.rdb.Set(ctx, s.client.Key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %q: %w", key, err)
	}
	return nil
}

func (s *Store) Remove(ctx context.Context, key string) error {
	if err := s.client.rdb.Del(ctx, s.client.Key(key)).Err(); err != nil {
		return fmt.Errorf("redis del %q: %w", key, err)
	}
	return nil
}

// Keys scans the prefix and returns keys with the prefix stripped.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	prefix := s.client.Key("")
	var keys []string
	iter := s.client.rdb.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), prefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan: %w", err)
	}
	sort.Strings(keys)
	return keys, nil
}

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}
