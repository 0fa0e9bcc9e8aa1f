package bus

import (
	"context"
	"encoding/json"

	"github.com/ylai/autoplatform/logger"
)

// Topic is a typed view of one bus key.
type Topic[T any] struct {
	bus *Bus
	key string
}

func NewTopic[T any](b *Bus, key string) *Topic[T] {
	return &Topic[T]{bus: b, key: key}
}

func (t *Topic[T]) Key() string { return t.key }

func (t *Topic[T]) Publish(ctx context.Context, v T) error {
	return t.bus.Publish(ctx, t.key, v)
}

// Subscribe decodes each payload into T. Payloads that do not decode are
// logged and skipped.
func (t *Topic[T]) Subscribe(ctx context.Context, fn func(T)) (func(), error) {
	return t.bus.Subscribe(ctx, t.key, func(raw json.RawMessage) {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			t.bus.log.Warn("dropping undecodable payload", logger.Fields("key", t.key, logger.FieldError, err.Error()))
			return
		}
		fn(v)
	})
}

// Last returns the current value, ok=false if nothing was published yet.
func (t *Topic[T]) Last(ctx context.Context) (T, bool, error) {
	var v T
	raw, ok, err := t.bus.Last(ctx, t.key)
	if err != nil || !ok {
		return v, ok, err
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, true, err
	}
	return v, true, nil
}
