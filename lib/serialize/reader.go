package serialize

import (
	"fmt"
	"github.com/ValentinKolb/nps/lib/byteorder"
)

// Reader consumes fields from a message in the order they were written. Like
// Writer it keeps the first error; after a failure every read leaves its
// target unchanged.
type Reader struct {
	buf []byte
	pos int
	err error
}

// Err returns the first error encountered.
func (r *Reader) Err() error { return r.err }

// Remaining returns the number of unread bytes in the current window.
func (r *Reader) Remaining() int {
	if r.err != nil {
		return 0
	}
	return len(r.buf) - r.pos
}

// Fail records err unless an error is already set. Field readers use it to
// report values that decode but are not acceptable.
func (r *Reader) Fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

// next consumes n bytes and returns them, or nil if they are not available
func (r *Reader) next(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || r.pos+n > len(r.buf) {
		r.err = fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrTruncatedBuffer, n, r.pos, len(r.buf)-r.pos)
		return nil
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b
}

// Bool reads one byte, any non-zero value is true.
func (r *Reader) Bool(v *bool) {
	if b := r.next(1); b != nil {
		*v = byteorder.Bool(b)
	}
}

// Int8 reads one byte into v.
func (r *Reader) Int8(v *int8) {
	if b := r.next(1); b != nil {
		*v = int8(b[0])
	}
}

// Uint8 reads one byte into v.
func (r *Reader) Uint8(v *uint8) {
	if b := r.next(1); b != nil {
		*v = b[0]
	}
}

// Int16 reads a network byte order value into v.
func (r *Reader) Int16(v *int16) {
	if b := r.next(2); b != nil {
		*v = int16(byteorder.Uint16(b))
	}
}

// Uint16 reads a network byte order value into v.
func (r *Reader) Uint16(v *uint16) {
	if b := r.next(2); b != nil {
		*v = byteorder.Uint16(b)
	}
}

// Int32 reads a network byte order value into v.
func (r *Reader) Int32(v *int32) {
	if b := r.next(4); b != nil {
		*v = int32(byteorder.Uint32(b))
	}
}

// Uint32 reads a network byte order value into v.
func (r *Reader) Uint32(v *uint32) {
	if b := r.next(4); b != nil {
		*v = byteorder.Uint32(b)
	}
}

// Int64 reads a network byte order value into v.
func (r *Reader) Int64(v *int64) {
	if b := r.next(8); b != nil {
		*v = int64(byteorder.Uint64(b))
	}
}

// Uint64 reads a network byte order value into v.
func (r *Reader) Uint64(v *uint64) {
	if b := r.next(8); b != nil {
		*v = byteorder.Uint64(b)
	}
}

// Float32 reads a network byte order value into v.
func (r *Reader) Float32(v *float32) {
	if b := r.next(4); b != nil {
		*v = byteorder.Float32(b)
	}
}

// Float64 reads a network byte order value into v.
func (r *Reader) Float64(v *float64) {
	if b := r.next(8); b != nil {
		*v = byteorder.Float64(b)
	}
}

// String reads a u16 length prefix and that many bytes.
func (r *Reader) String(v *string) {
	var n uint16
	r.Uint16(&n)
	if b := r.next(int(n)); b != nil {
		*v = string(b)
	}
}

// CString reads a length-prefixed string into fixed caller storage. At most
// len(dst)-1 bytes are copied and dst is NUL terminated. The whole encoded
// string is consumed; the return value is the number of bytes copied.
func (r *Reader) CString(dst []byte) int {
	var n uint16
	r.Uint16(&n)
	b := r.next(int(n))
	if b == nil || len(dst) == 0 {
		return 0
	}
	copied := copy(dst[:len(dst)-1], b)
	dst[copied] = 0
	return copied
}

// Bytes reads n raw bytes and returns a copy.
func (r *Reader) Bytes(n int) []byte {
	b := r.next(n)
	if b == nil {
		return nil
	}
	out := make([]byte, n)
	copy(out, b)
	return out
}

// View reads n raw bytes and returns them without copying. The result
// aliases the message memory.
func (r *Reader) View(n int) []byte {
	return r.next(n)
}

// BytesInto reads len(dst) raw bytes into dst.
func (r *Reader) BytesInto(dst []byte) {
	if b := r.next(len(dst)); b != nil {
		copy(dst, b)
	}
}

// Entity reads a u16 length prefix and decodes e from exactly that many
// bytes. Bytes of the window that e does not consume are skipped.
func (r *Reader) Entity(e Entity) {
	var n uint16
	r.Uint16(&n)
	window := r.next(int(n))
	if window == nil {
		return
	}
	if _, err := decode(e, window); err != nil {
		r.Fail(fmt.Errorf("nested entity: %w", err))
	}
}

// SkipEntity consumes a length-prefixed nested entity without decoding it.
func (r *Reader) SkipEntity() {
	var n uint16
	r.Uint16(&n)
	r.next(int(n))
}
