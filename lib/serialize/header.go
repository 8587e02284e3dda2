package serialize

import (
	"fmt"
	"github.com/ValentinKolb/nps/lib/byteorder"
)

// HeaderSize is the size of the control block at the start of every
// top-level message.
const HeaderSize = 12

// MaxMessageSize is the largest message the u16 length field can describe.
const MaxMessageSize = 1<<16 - 1

// offsets into the header
const (
	offID       = 0
	offLength   = 2
	offVersion  = 4
	offReserved = 6
	offChecksum = 8
)

// Header is an overlay on the first 12 bytes of a message:
//
//	id u16 | length u16 | version u16 | reserved u16 | checksum u32
//
// all in network byte order. A header without data returns 0 from every
// accessor and ignores every setter. A header created by Clone owns its
// buffer and frees it on Release; every other header borrows.
type Header struct {
	data  []byte
	owner *Buffer
}

// NewHeader returns a header borrowing data. A slice shorter than HeaderSize
// is treated as no data.
func NewHeader(data []byte) Header {
	if len(data) < HeaderSize {
		return Header{}
	}
	return Header{data: data}
}

// HasData reports whether the header is attached to a buffer.
func (h *Header) HasData() bool { return len(h.data) >= HeaderSize }

// Owned reports whether Release frees the underlying buffer.
func (h *Header) Owned() bool { return h.owner != nil }

// Bytes returns the bytes the header is attached to.
func (h *Header) Bytes() []byte { return h.data }

// ID returns the message id.
func (h *Header) ID() uint16 { return h.u16(offID) }

// Length returns the total message length including the header.
func (h *Header) Length() uint16 { return h.u16(offLength) }

// Version returns the message version.
func (h *Header) Version() uint16 { return h.u16(offVersion) }

// Reserved returns the reserved field, 0 for every valid message.
func (h *Header) Reserved() uint16 { return h.u16(offReserved) }

// Checksum returns the checksum field. Depending on the message type this is
// a generated checksum or an application sequence number.
func (h *Header) Checksum() uint32 {
	if !h.HasData() {
		return 0
	}
	return byteorder.Uint32(h.data[offChecksum:])
}

// SetID writes the id field.
func (h *Header) SetID(id uint16) { h.setU16(offID, id) }

// SetLength writes the length field.
func (h *Header) SetLength(length uint16) { h.setU16(offLength, length) }

// SetVersion writes the version field.
func (h *Header) SetVersion(version uint16) { h.setU16(offVersion, version) }

// SetChecksum writes the checksum field.
func (h *Header) SetChecksum(sum uint32) {
	if h.HasData() {
		byteorder.PutUint32(h.data[offChecksum:], sum)
	}
}

// clearReserved zeroes the reserved field, which is always 0 on the wire
func (h *Header) clearReserved() { h.setU16(offReserved, 0) }

// Validate checks the header against the bytes it is attached to and returns
// the declared message length.
func (h *Header) Validate() (int, error) {
	if !h.HasData() {
		return 0, fmt.Errorf("%w: need %d header bytes, have %d", ErrTruncatedBuffer, HeaderSize, len(h.data))
	}
	length := int(h.Length())
	if length < HeaderSize {
		return 0, fmt.Errorf("%w: declared length %d is shorter than the header", ErrMalformedHeader, length)
	}
	if length > len(h.data) {
		return 0, fmt.Errorf("%w: declared length %d, have %d bytes", ErrTruncatedBuffer, length, len(h.data))
	}
	return length, nil
}

// Clone deep-copies Length() bytes into a freshly allocated buffer owned by
// the returned header. Cloning a header without data returns an empty header.
func (h *Header) Clone() Header {
	if !h.HasData() {
		return Header{}
	}

	n := int(h.Length())
	if n < HeaderSize || n > len(h.data) {
		n = len(h.data)
	}

	buf := Allocate(n)
	copy(buf.Bytes(), h.data[:n])
	return Header{data: buf.Bytes(), owner: buf}
}

// Release frees the buffer if this header owns it and detaches the header.
// Releasing a borrowing header only detaches it.
func (h *Header) Release() error {
	var err error
	if h.owner != nil {
		err = h.owner.Release()
	}
	h.data = nil
	h.owner = nil
	return err
}

func (h *Header) u16(off int) uint16 {
	if !h.HasData() {
		return 0
	}
	return byteorder.Uint16(h.data[off:])
}

func (h *Header) setU16(off int, v uint16) {
	if h.HasData() {
		byteorder.PutUint16(h.data[off:], v)
	}
}

// String returns a short description used in log lines.
func (h *Header) String() string {
	if !h.HasData() {
		return "header{}"
	}
	return fmt.Sprintf("header{id=%#04x len=%d ver=%d checksum=%#08x}", h.ID(), h.Length(), h.Version(), h.Checksum())
}
