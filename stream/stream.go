package stream

import "context"

// Iterator yields values one at a time. Next returns (zero, false, nil) when
// the sequence is exhausted.
type Iterator[T any] interface {
	Next(ctx context.Context) (T, bool, error)
	Close() error
}

// Stream is a lazily evaluated sequence.
type Stream[T any] struct {
	open func(ctx context.Context) Iterator[T]
}

// From wraps an existing iterator.
func From[T any](it Iterator[T]) *Stream[T] {
	return &Stream[T]{open: func(context.Context) Iterator[T] { return it }}
}

// FromSlice streams the elements of items.
func FromSlice[T any](items []T) *Stream[T] {
	return &Stream[T]{open: func(context.Context) Iterator[T] { return &sliceIter[T]{items: items} }}
}

// FromFunc streams values returned by next until it reports false. close
// may be nil.
func FromFunc[T any](next func(ctx context.Context) (T, bool, error), close func() error) *Stream[T] {
	return &Stream[T]{open: func(context.Context) Iterator[T] { return &funcIter[T]{next: next, close: close} }}
}

// Iter opens the stream. The caller must Close the iterator.
func (s *Stream[T]) Iter(ctx context.Context) Iterator[T] { return s.open(ctx) }

// Collect pulls every value into a slice. Values read before an error are
// returned with it.
func Collect[T any](ctx context.Context, s *Stream[T]) ([]T, error) {
	var out []T
	err := ForEach(ctx, s, func(_ context.Context, v T) error {
		out = append(out, v)
		return nil
	})
	return out, err
}

// ForEach pulls every value and passes it to fn, stopping at the first error.
func ForEach[T any](ctx context.Context, s *Stream[T], fn func(context.Context, T) error) error {
	it := s.open(ctx)
	defer func() { _ = it.Close() }()
	for {
		v, ok, err := it.Next(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := fn(ctx, v); err != nil {
			return err
		}
	}
}

type sliceIter[T any] struct {
	items []T
	pos   int
}

func (it *sliceIter[T]) Next(context.Context) (T, bool, error) {
	if it.pos >= len(it.items) {
		var zero T
		return zero, false, nil
	}
	v := it.items[it.pos]
	it.pos++
	return v, true, nil
}

func (it *sliceIter[T]) Close() error { return nil }

type funcIter[T any] struct {
	next  func(ctx context.Context) (T, bool, error)
	close func() error
}

func (it *funcIter[T]) Next(ctx context.Context) (T, bool, error) {
	if err := ctx.Err(); err != nil {
		var zero T
		return zero, false, err
	}
	return it.next(ctx)
}

func (it *funcIter[T]) Close() error {
	if it.close == nil {
		return nil
	}
	return it.close()
}
