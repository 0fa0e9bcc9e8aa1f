package dag

import (
	"fmt"
	"maps"
	"sync"

	"github.com/ylai/autoplatform/errors"
)

// State is shared by the nodes of one execution. The engine stores every
// successful node's output under the node's name.
type State struct {
	mu   sync.RWMutex
	data map[string]any
}

func NewState() *State {
	return &State{data: make(map[string]any)}
}

func (s *State) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok
}

func (s *State) Set(key string, value any) {
	s.mu.Lock()
	s.data[key] = value
	s.mu.Unlock()
}

// Snapshot copies the current values.
func (s *State) Snapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.data)
}

// Port is a typed state key.
type Port[T any] struct {
	Key string
}

// Output is the port under which the engine keeps node's result.
func Output[T any](node string) Port[T] {
	return Port[T]{Key: node}
}

// Read returns the value behind port. A missing key is NOT_FOUND; a value
// of another type is an internal error.
func Read[T any](state *State, port Port[T]) (T, error) {
	var zero T
	raw, ok := state.Get(port.Key)
	if !ok {
		return zero, errors.NotFound("state key", port.Key)
	}
	val, ok := raw.(T)
	if !ok {
		return zero, errors.Internal(fmt.Errorf("state key %q holds %T, want %T", port.Key, raw, zero))
	}
	return val, nil
}

func Write[T any](state *State, port Port[T], value T) {
	state.Set(port.Key, value)
}
