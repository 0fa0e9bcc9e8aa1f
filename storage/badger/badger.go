// Package badger backs storage.Store with an embedded badger database.
package badger

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	badgerdb "github.com/dgraph-io/badger/v3"

	"github.com/ylai/autoplatform/logger"
	"github.com/ylai/autoplatform/storage"
)

func init() {
	storage.RegisterFactory(storage.ProviderBadger, func(cfg storage.Config, log *logger.Logger) (storage.Store, error) {
		return Open(cfg.Path, cfg.InMemory, log)
	})
}

// Store is a storage.Store on top of a badger DB.
type Store struct {
	db     *badgerdb.DB
	closed atomic.Bool
}

var _ storage.Store = (*Store)(nil)

// Open opens (or creates) the database at dir. With inMemory set dir is ignored.
func Open(dir string, inMemory bool, log *logger.Logger) (*Store, error) {
	opts := badgerdb.DefaultOptions(dir)
	if inMemory {
		opts = badgerdb.DefaultOptions("").WithInMemory(true)
	}
	if log == nil {
		log = logger.Get("storage")
	}
	opts = opts.WithLogger(badgerLogger{log.WithComponent("badger")})

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger: open %s: %w", dir, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Get(_ context.Context, key string) (string, bool, error) {
	if s.closed.Load() {
		return "", false, storage.ErrClosed
	}
	var value []byte
	err := s.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, s.wrap("get", key, err)
	}
	return string(value), true, nil
}

func (s *Store) Set(_ context.Context, key, value string) error {
	if s.closed.Load() {
		return storage.ErrClosed
	}
	err := s.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set([]byte(key), []byte(value))
	})
	return s.wrap("set", key, err)
}

func (s *Store) Remove(_ context.Context, key string) error {
	if s.closed.Load() {
		return storage.ErrClosed
	}
	err := s.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Delete([]byte(key))
	})
	return s.wrap("remove", key, err)
}

// Keys iterates in badger's byte order, which is lexical for string keys.
func (s *Store) Keys(_ context.Context) ([]string, error) {
	if s.closed.Load() {
		return nil, storage.ErrClosed
	}
	var keys []string
	err := s.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, string(it.Item().KeyCopy(nil)))
		}
		return nil
	})
	if err != nil {
		return nil, s.wrap("keys", "", err)
	}
	return keys, nil
}

// Close is idempotent.
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.db.Close()
}

func (s *Store) wrap(op, key string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("badger: %s %q: %w", op, key, err)
}

// badgerLogger routes badger's printf logging into the structured logger.
// Info is demoted to debug; badger is chatty on open and compaction.
type badgerLogger struct{ log *logger.Logger }

func (b badgerLogger) Errorf(format string, args ...interface{}) {
	b.log.Error(fmt.Sprintf(format, args...))
}

func (b badgerLogger) Warningf(format string, args ...interface{}) {
	b.log.Warn(fmt.Sprintf(format, args...))
}

func (b badgerLogger) Infof(format string, args ...interface{}) {
	b.log.Debug(fmt.Sprintf(format, args...))
}

func (b badgerLogger) Debugf(format string, args ...interface{}) {
	b.log.Debug(fmt.Sprintf(format, args...))
}
