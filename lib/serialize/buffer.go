package serialize

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// sizeClasses are the capacities of the pooled backing arrays. Every NPS
// message fits the largest class since the length field is a u16.
var sizeClasses = [...]int{64, 256, 1024, 4096, 16 * 1024, 64 * 1024}

var pools [len(sizeClasses)]sync.Pool

func init() {
	for i, size := range sizeClasses {
		size := size
		pools[i].New = func() interface{} {
			b := make([]byte, size)
			return &b
		}
	}
}

// classFor returns the index of the smallest size class holding n bytes, or -1
func classFor(n int) int {
	for i, size := range sizeClasses {
		if n <= size {
			return i
		}
	}
	return -1
}

// Buffer is a byte block that is either owned (allocated by this package and
// returned to a pool on Release) or borrowed (wrapping caller memory).
// Exactly one holder may release an owned buffer.
type Buffer struct {
	data     []byte
	backing  *[]byte
	class    int
	owned    bool
	released atomic.Bool
}

// Allocate returns an owned, zeroed buffer of n bytes. The caller must call
// Release once the bytes are no longer needed.
func Allocate(n int) *Buffer {
	class := classFor(n)
	if class < 0 {
		return &Buffer{data: make([]byte, n), class: -1, owned: true}
	}

	backing := pools[class].Get().(*[]byte)
	data := (*backing)[:n]
	clear(data)

	return &Buffer{data: data, backing: backing, class: class, owned: true}
}

// Borrow wraps caller memory without taking ownership.
func Borrow(b []byte) *Buffer {
	return &Buffer{data: b, class: -1}
}

// Bytes returns the buffer content. The slice must not be used after Release.
func (b *Buffer) Bytes() []byte {
	if b == nil {
		return nil
	}
	return b.data
}

// Len returns the number of bytes in the buffer.
func (b *Buffer) Len() int {
	if b == nil {
		return 0
	}
	return len(b.data)
}

// Owned reports whether Release will free the buffer.
func (b *Buffer) Owned() bool {
	return b != nil && b.owned
}

// Header returns a borrowed header overlay on the buffer.
func (b *Buffer) Header() Header {
	return NewHeader(b.Bytes())
}

// MessageID returns the id from the header at the start of the buffer.
func (b *Buffer) MessageID() uint16 {
	h := b.Header()
	return h.ID()
}

// MessageLength returns the length from the header at the start of the buffer.
func (b *Buffer) MessageLength() uint16 {
	h := b.Header()
	return h.Length()
}

// Release frees an owned buffer. Releasing a borrowed buffer or releasing
// twice returns ErrBufferOwnership and leaves the memory untouched.
func (b *Buffer) Release() error {
	if b == nil {
		return fmt.Errorf("%w: release of nil buffer", ErrBufferOwnership)
	}
	if !b.owned {
		return fmt.Errorf("%w: release of borrowed buffer", ErrBufferOwnership)
	}
	if b.released.Swap(true) {
		return fmt.Errorf("%w: buffer released twice", ErrBufferOwnership)
	}

	if b.backing != nil {
		pools[b.class].Put(b.backing)
		b.backing = nil
	}
	b.data = nil
	return nil
}
