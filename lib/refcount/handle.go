package refcount

import (
	"sync/atomic"
)

// object is the shared state behind all handles of one value
type object[T any] struct {
	value   T
	refs    atomic.Int64
	release func(T)
}

// Handle is a counted reference to a value. The release function passed to
// New runs exactly once, when the last handle is dropped.
//
// Copying a Handle struct does not add a reference. Use Clone for every
// additional owner and Drop each of them exactly once.
type Handle[T any] struct {
	obj *object[T]
}

// New wraps value in a handle with one reference. release may be nil.
func New[T any](value T, release func(T)) Handle[T] {
	o := &object[T]{value: value, release: release}
	o.refs.Store(1)
	return Handle[T]{obj: o}
}

// Clone returns a new reference to the same value. Cloning an invalid
// handle returns an invalid handle.
func (h Handle[T]) Clone() Handle[T] {
	if h.obj == nil {
		return Handle[T]{}
	}
	for {
		n := h.obj.refs.Load()
		if n <= 0 {
			panic("refcount: clone of a released handle")
		}
		if h.obj.refs.CompareAndSwap(n, n+1) {
			return Handle[T]{obj: h.obj}
		}
	}
}

// Drop gives up this reference and invalidates the handle. The value is
// released when the count reaches zero.
func (h *Handle[T]) Drop() {
	if h.obj == nil {
		return
	}
	o := h.obj
	h.obj = nil

	n := o.refs.Add(-1)
	switch {
	case n == 0:
		if o.release != nil {
			o.release(o.value)
		}
	case n < 0:
		panic("refcount: handle dropped more often than referenced")
	}
}

// Assign makes h refer to the value of other. The old value loses a
// reference, the new one gains one. Assigning a handle to itself is a no-op.
func (h *Handle[T]) Assign(other Handle[T]) {
	if h.obj == other.obj {
		return
	}
	c := other.Clone()
	h.Drop()
	*h = c
}

// Get returns the value, or the zero value for an invalid handle.
func (h Handle[T]) Get() T {
	if h.obj == nil {
		var zero T
		return zero
	}
	return h.obj.value
}

// Refs returns the current number of references.
func (h Handle[T]) Refs() int64 {
	if h.obj == nil {
		return 0
	}
	return h.obj.refs.Load()
}

// Valid reports whether the handle refers to a value.
func (h Handle[T]) Valid() bool {
	return h.obj != nil
}

// Same reports whether both handles refer to the same value.
func (h Handle[T]) Same(other Handle[T]) bool {
	return h.obj != nil && h.obj == other.obj
}
