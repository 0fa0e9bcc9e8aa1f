package bus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ylai/autoplatform/logger"
	"github.com/ylai/autoplatform/storage"
)

// Well-known keys shared between console surfaces.
const (
	KeyTheme        = "ylai-theme"
	KeyRole         = "ylai-role"
	KeyEngine       = "selectedEngine"
	KeyTaskProgress = "ylai-task-progress"
)

// Bus persists the last payload of each key and notifies subscribers.
// A late subscriber reads the current value with Last.
type Bus struct {
	store     storage.Store
	transport Transport
	log       *logger.Logger
}

type Option func(*Bus)

// WithTransport replaces the in-process transport, e.g. with redis pub/sub.
func WithTransport(t Transport) Option {
	return func(b *Bus) { b.transport = t }
}

func WithLogger(l *logger.Logger) Option {
	return func(b *Bus) { b.log = l }
}

// New creates a Bus over store. A nil store uses an in-memory one.
func New(store storage.Store, opts ...Option) *Bus {
	if store == nil {
		store = storage.NewMemory()
	}
	b := &Bus{store: store, transport: NewLocalTransport(), log: logger.Get("bus")}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Store returns the backing store.
func (b *Bus) Store() storage.Store { return b.store }

// Publish stores payload as JSON under key and notifies subscribers. Storage
// failures are returned; notification is best effort and only logged.
func (b *Bus) Publish(ctx context.Context, key string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("bus: encode %s: %w", key, err)
	}
	if err := b.store.Set(ctx, key, string(raw)); err != nil {
		return fmt.Errorf("bus: store %s: %w", key, err)
	}
	if err := b.transport.Publish(ctx, key, raw); err != nil {
		b.log.Warn("bus notify failed", logger.Fields("key", key, logger.FieldError, err.Error()))
	}
	return nil
}

// Subscribe calls handler with the raw JSON of every later Publish on key.
// A panicking handler is logged and does not affect other subscribers.
func (b *Bus) Subscribe(ctx context.Context, key string, handler func(json.RawMessage)) (func(), error) {
	return b.transport.Subscribe(ctx, key, func(payload []byte) {
		defer func() {
			if r := recover(); r != nil {
				b.log.Error("bus handler panicked", logger.Fields("key", key, "panic", fmt.Sprint(r)))
			}
		}()
		handler(json.RawMessage(payload))
	})
}

// Last returns the most recently published payload for key.
func (b *Bus) Last(ctx context.Context, key string) (json.RawMessage, bool, error) {
	raw, ok, err := b.store.Get(ctx, key)
	if err != nil || !ok {
		return nil, ok, err
	}
	return json.RawMessage(raw), true, nil
}
