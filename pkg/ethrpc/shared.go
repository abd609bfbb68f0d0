package ethrpc

import "sync/atomic"

// Shared is a reference-counted handle to an immutable value.
type Shared[T any] struct {
	value T
	refs  *atomic.Int32
}

// NewShared wraps value in a handle with a single reference.
func NewShared[T any](value T) *Shared[T] {
	refs := new(atomic.Int32)
	refs.Store(1)
	return &Shared[T]{value: value, refs: refs}
}

// Get returns the wrapped value.
func (s *Shared[T]) Get() T {
	return s.value
}

// Clone returns a new handle to the same value.
func (s *Shared[T]) Clone() *Shared[T] {
	s.refs.Add(1)
	return &Shared[T]{value: s.value, refs: s.refs}
}

// Release drops this handle's reference.
func (s *Shared[T]) Release() {
	s.refs.Add(-1)
}

// TryUnwrap takes the value out if this is the only live handle.
func (s *Shared[T]) TryUnwrap() (T, bool) {
	if s.refs.CompareAndSwap(1, 0) {
		return s.value, true
	}
	var zero T
	return zero, false
}
