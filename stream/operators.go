package stream

import (
	"context"
	"time"
)

// Map transforms each value with fn.
func Map[I, O any](s *Stream[I], fn func(context.Context, I) (O, error)) *Stream[O] {
	return &Stream[O]{open: func(ctx context.Context) Iterator[O] {
		return &mapIter[I, O]{src: s.open(ctx), fn: fn}
	}}
}

// FlatMap expands each value into zero or more values.
func FlatMap[I, O any](s *Stream[I], fn func(context.Context, I) ([]O, error)) *Stream[O] {
	return &Stream[O]{open: func(ctx context.Context) Iterator[O] {
		return &flatMapIter[I, O]{src: s.open(ctx), fn: fn}
	}}
}

// Filter keeps values for which keep returns true.
func Filter[T any](s *Stream[T], keep func(T) bool) *Stream[T] {
	return &Stream[T]{open: func(ctx context.Context) Iterator[T] {
		return &filterIter[T]{src: s.open(ctx), keep: keep}
	}}
}

// Tap calls fn for each value and passes the value on unchanged.
func Tap[T any](s *Stream[T], fn func(context.Context, T) error) *Stream[T] {
	return Map(s, func(ctx context.Context, v T) (T, error) {
		return v, fn(ctx, v)
	})
}

// Take ends the stream after n values.
func Take[T any](s *Stream[T], n int) *Stream[T] {
	return &Stream[T]{open: func(ctx context.Context) Iterator[T] {
		return &takeIter[T]{src: s.open(ctx), left: n}
	}}
}

// Batch groups values into slices of up to size. With a positive timeout a
// batch is also emitted once timeout has passed since its first value; the
// check happens as values arrive.
func Batch[T any](s *Stream[T], size int, timeout time.Duration) *Stream[[]T] {
	if size <= 0 && timeout <= 0 {
		size = 1
	}
	return &Stream[[]T]{open: func(ctx context.Context) Iterator[[]T] {
		return &batchIter[T]{src: s.open(ctx), size: size, timeout: timeout, now: time.Now}
	}}
}

// Throttle drops values that arrive less than interval after the last value
// it let through.
func Throttle[T any](s *Stream[T], interval time.Duration) *Stream[T] {
	return &Stream[T]{open: func(ctx context.Context) Iterator[T] {
		return &throttleIter[T]{src: s.open(ctx), interval: interval, now: time.Now}
	}}
}

type mapIter[I, O any] struct {
	src Iterator[I]
	fn  func(context.Context, I) (O, error)
}

func (it *mapIter[I, O]) Next(ctx context.Context) (O, bool, error) {
	var zero O
	v, ok, err := it.src.Next(ctx)
	if err != nil || !ok {
		return zero, false, err
	}
	out, err := it.fn(ctx, v)
	if err != nil {
		return zero, false, err
	}
	return out, true, nil
}

func (it *mapIter[I, O]) Close() error { return it.src.Close() }

type flatMapIter[I, O any] struct {
	src     Iterator[I]
	fn      func(context.Context, I) ([]O, error)
	pending []O
}

func (it *flatMapIter[I, O]) Next(ctx context.Context) (O, bool, error) {
	var zero O
	for len(it.pending) == 0 {
		v, ok, err := it.src.Next(ctx)
		if err != nil || !ok {
			return zero, false, err
		}
		if it.pending, err = it.fn(ctx, v); err != nil {
			return zero, false, err
		}
	}
	out := it.pending[0]
	it.pending = it.pending[1:]
	return out, true, nil
}

func (it *flatMapIter[I, O]) Close() error { return it.src.Close() }

type filterIter[T any] struct {
	src  Iterator[T]
	keep func(T) bool
}

func (it *filterIter[T]) Next(ctx context.Context) (T, bool, error) {
	for {
		v, ok, err := it.src.Next(ctx)
		if err != nil || !ok {
			return v, false, err
		}
		if it.keep(v) {
			return v, true, nil
		}
	}
}

func (it *filterIter[T]) Close() error { return it.src.Close() }

type takeIter[T any] struct {
	src  Iterator[T]
	left int
}

func (it *takeIter[T]) Next(ctx context.Context) (T, bool, error) {
	if it.left <= 0 {
		var zero T
		return zero, false, nil
	}
	v, ok, err := it.src.Next(ctx)
	if ok {
		it.left--
	}
	return v, ok, err
}

func (it *takeIter[T]) Close() error { return it.src.Close() }

type batchIter[T any] struct {
	src     Iterator[T]
	size    int
	timeout time.Duration
	now     func() time.Time
	err     error
	done    bool
}

func (it *batchIter[T]) Next(ctx context.Context) ([]T, bool, error) {
	if it.err != nil {
		err := it.err
		it.err = nil
		it.done = true
		return nil, false, err
	}
	if it.done {
		return nil, false, nil
	}
	var (
		batch []T
		start time.Time
	)
	for it.size <= 0 || len(batch) < it.size {
		v, ok, err := it.src.Next(ctx)
		if err != nil {
			if len(batch) == 0 {
				it.done = true
				return nil, false, err
			}
			// surfaced on the next call
			it.err = err
			return batch, true, nil
		}
		if !ok {
			it.done = true
			break
		}
		if len(batch) == 0 {
			start = it.now()
		}
		batch = append(batch, v)
		if it.timeout > 0 && it.now().Sub(start) >= it.timeout {
			break
		}
	}
	if len(batch) == 0 {
		return nil, false, nil
	}
	return batch, true, nil
}

func (it *batchIter[T]) Close() error { return it.src.Close() }

type throttleIter[T any] struct {
	src      Iterator[T]
	interval time.Duration
	now      func() time.Time
	last     time.Time
}

func (it *throttleIter[T]) Next(ctx context.Context) (T, bool, error) {
	for {
		v, ok, err := it.src.Next(ctx)
		if err != nil || !ok {
			return v, false, err
		}
		now := it.now()
		if it.last.IsZero() || now.Sub(it.last) >= it.interval {
			it.last = now
			return v, true, nil
		}
	}
}

func (it *throttleIter[T]) Close() error { return it.src.Close() }
