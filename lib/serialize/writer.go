package serialize

import (
	"fmt"
	"github.com/ValentinKolb/nps/lib/byteorder"
)

// Writer appends fields to a fixed-size message buffer. The first error is
// kept and every later call becomes a no-op, so field writers do not check
// errors individually; the top-level Serialize reports it.
type Writer struct {
	buf []byte
	pos int
	err error
}

// Err returns the first error encountered.
func (w *Writer) Err() error { return w.err }

// Len returns the number of bytes written so far, header included.
func (w *Writer) Len() int { return w.pos }

// next reserves n bytes and returns them, or nil after an overflow
func (w *Writer) next(n int) []byte {
	if w.err != nil {
		return nil
	}
	if w.pos+n > len(w.buf) {
		w.err = fmt.Errorf("%w: field of %d bytes at offset %d exceeds announced size %d", ErrSizeMismatch, n, w.pos, len(w.buf))
		return nil
	}
	b := w.buf[w.pos : w.pos+n]
	w.pos += n
	return b
}

// Bool writes v as one byte, 1 for true.
func (w *Writer) Bool(v bool) {
	if b := w.next(1); b != nil {
		byteorder.PutBool(b, v)
	}
}

// Int8 writes v as one byte.
func (w *Writer) Int8(v int8) { w.Uint8(uint8(v)) }

// Uint8 writes v as one byte.
func (w *Writer) Uint8(v uint8) {
	if b := w.next(1); b != nil {
		b[0] = v
	}
}

// Int16 writes v in network byte order.
func (w *Writer) Int16(v int16) { w.Uint16(uint16(v)) }

// Uint16 writes v in network byte order.
func (w *Writer) Uint16(v uint16) {
	if b := w.next(2); b != nil {
		byteorder.PutUint16(b, v)
	}
}

// Int32 writes v in network byte order.
func (w *Writer) Int32(v int32) { w.Uint32(uint32(v)) }

// Uint32 writes v in network byte order.
func (w *Writer) Uint32(v uint32) {
	if b := w.next(4); b != nil {
		byteorder.PutUint32(b, v)
	}
}

// Int64 writes v in network byte order.
func (w *Writer) Int64(v int64) { w.Uint64(uint64(v)) }

// Uint64 writes v in network byte order.
func (w *Writer) Uint64(v uint64) {
	if b := w.next(8); b != nil {
		byteorder.PutUint64(b, v)
	}
}

// Float32 writes v in network byte order.
func (w *Writer) Float32(v float32) {
	if b := w.next(4); b != nil {
		byteorder.PutFloat32(b, v)
	}
}

// Float64 writes v in network byte order.
func (w *Writer) Float64(v float64) {
	if b := w.next(8); b != nil {
		byteorder.PutFloat64(b, v)
	}
}

// String writes a u16 length prefix followed by the raw bytes of s.
func (w *Writer) String(s string) {
	if len(s) > MaxMessageSize {
		w.fail(fmt.Errorf("%w: string of %d bytes", ErrMessageTooLarge, len(s)))
		return
	}
	w.Uint16(uint16(len(s)))
	if b := w.next(len(s)); b != nil {
		copy(b, s)
	}
}

// Bytes writes p without a length prefix. Both ends must know the length.
func (w *Writer) Bytes(p []byte) {
	if b := w.next(len(p)); b != nil {
		copy(b, p)
	}
}

// Entity writes a u16 prefix holding e.SerializeSizeOf() followed by the
// serialized entity. The nested entity emits its header only if its own
// header flag is set.
func (w *Writer) Entity(e Entity) {
	if w.err != nil {
		return
	}
	size := e.SerializeSizeOf()
	if size > MaxMessageSize {
		w.fail(fmt.Errorf("%w: nested entity of %d bytes", ErrMessageTooLarge, size))
		return
	}
	w.Uint16(uint16(size))
	b := w.next(size)
	if b == nil {
		return
	}
	if _, err := encode(e, b); err != nil {
		w.fail(fmt.Errorf("nested entity: %w", err))
	}
}

func (w *Writer) fail(err error) {
	if w.err == nil {
		w.err = err
	}
}
