package bus

import (
	"context"
	"sync"
)

// Transport fans a published payload out to subscribers of a channel.
type Transport interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	// Subscribe registers fn and returns a func that removes it.
	Subscribe(ctx context.Context, channel string, fn func(payload []byte)) (func(), error)
}

// LocalTransport delivers synchronously, in subscription order, on the
// publishing goroutine.
type LocalTransport struct {
	mu     sync.RWMutex
	nextID int
	subs   map[string]map[int]func([]byte)
	order  map[string][]int
}

func NewLocalTransport() *LocalTransport {
	return &LocalTransport{
		subs:  make(map[string]map[int]func([]byte)),
		order: make(map[string][]int),
	}
}

func (t *LocalTransport) Publish(_ context.Context, channel string, payload []byte) error {
	t.mu.RLock()
	fns := make([]func([]byte), 0, len(t.order[channel]))
	for _, id := range t.order[channel] {
		fns = append(fns, t.subs[channel][id])
	}
	t.mu.RUnlock()

	for _, fn := range fns {
		fn(payload)
	}
	return nil
}

func (t *LocalTransport) Subscribe(_ context.Context, channel string, fn func([]byte)) (func(), error) {
	t.mu.Lock()
	id := t.nextID
	t.nextID++
	if t.subs[channel] == nil {
		t.subs[channel] = make(map[int]func([]byte))
	}
	t.subs[channel][id] = fn
	t.order[channel] = append(t.order[channel], id)
	t.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { t.remove(channel, id) })
	}, nil
}

func (t *LocalTransport) remove(channel string, id int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.subs[channel], id)
	ids := t.order[channel]
	for i, v := range ids {
		if v == id {
			t.order[channel] = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
	if len(t.subs[channel]) == 0 {
		delete(t.subs, channel)
		delete(t.order, channel)
	}
}

// Subscribers reports how many handlers are registered on channel.
func (t *LocalTransport) Subscribers(channel string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.subs[channel])
}
