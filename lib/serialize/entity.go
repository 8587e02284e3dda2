package serialize

import (
	"fmt"
	"github.com/ValentinKolb/nps/lib/byteorder"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("serialize")

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// Entity is a structure that can become a self-describing byte sequence and
// be reconstructed from one.
//
// Concrete types embed Base (or another entity that embeds Base) and
// implement the three chain steps. Each step must call the embedded entity's
// step first and then handle its own fields, in the same order on both
// sides of the wire:
//
//	func (m *Foo) SerializeSizeOf() int {
//		return m.Parent.SerializeSizeOf() + byteorder.SizeOf(m.x)
//	}
//	func (m *Foo) WriteFields(w *serialize.Writer) { m.Parent.WriteFields(w); w.Uint32(m.x) }
//	func (m *Foo) ReadFields(r *serialize.Reader)  { m.Parent.ReadFields(r); r.Uint32(&m.x) }
type Entity interface {
	// MessageBase returns the header state shared by the whole chain.
	MessageBase() *Base
	// SerializeSizeOf returns the exact number of bytes Serialize produces.
	SerializeSizeOf() int
	// WriteFields appends the entity's fields (header excluded).
	WriteFields(w *Writer)
	// ReadFields consumes the entity's fields (header excluded).
	ReadFields(r *Reader)
}

// ChecksumGenerator can be implemented by an entity to replace the default
// checksum. GenerateChecksum receives the complete serialized message with
// the checksum field set to zero.
type ChecksumGenerator interface {
	GenerateChecksum(msg []byte) uint32
}

// --------------------------------------------------------------------------
// Base
// --------------------------------------------------------------------------

// Base carries the header state of an entity: id, version, an optional
// sequence number and whether a header is emitted at all. The zero value
// emits a header. Nested members usually disable it.
type Base struct {
	id         uint16
	version    uint16
	sequence   uint32
	omitHeader bool

	// values of the last header read
	length   uint16
	checksum uint32
}

// NewBase returns a Base with the given id and version.
func NewBase(id, version uint16) Base {
	return Base{id: id, version: version}
}

func (b *Base) MessageBase() *Base { return b }

func (b *Base) MessageID() uint16          { return b.id }
func (b *Base) SetMessageID(id uint16)     { b.id = id }
func (b *Base) MessageVersion() uint16     { return b.version }
func (b *Base) SetMessageVersion(v uint16) { b.version = v }

// SequenceNumber returns the sequence number set with SetSequenceNumber.
func (b *Base) SequenceNumber() uint32 { return b.sequence }

// SetSequenceNumber makes the checksum field carry sn instead of a generated
// checksum. Zero restores checksum semantics.
func (b *Base) SetSequenceNumber(sn uint32) { b.sequence = sn }

// Checksum returns the checksum field of the last header read.
func (b *Base) Checksum() uint32 { return b.checksum }

// MessageLength returns the length field of the last header read.
func (b *Base) MessageLength() uint16 { return b.length }

// AdoptHeader copies the id, version and the last seen length and checksum
// from o. Codecs that carry an entity inside an envelope use it to restore
// the header state.
func (b *Base) AdoptHeader(o *Base) {
	b.id = o.id
	b.version = o.version
	b.length = o.length
	b.checksum = o.checksum
}

// SerializeHeader reports whether the header is emitted.
func (b *Base) SerializeHeader() bool { return !b.omitHeader }

// SetSerializeHeader enables or disables the header.
func (b *Base) SetSerializeHeader(on bool) { b.omitHeader = !on }

// SerializeSizeOf returns HeaderSize if the header is emitted, else 0.
func (b *Base) SerializeSizeOf() int {
	if b.omitHeader {
		return 0
	}
	return HeaderSize
}

// SizeOfEntity returns the wire size of e as a nested member: its own size
// plus the u16 length prefix.
func SizeOfEntity(e Entity) int {
	return e.SerializeSizeOf() + byteorder.LengthPrefixSize
}

// DefaultChecksum folds length and version into a 32-bit sanity tag. It is
// not a corruption detector.
func DefaultChecksum(length, version uint16) uint32 {
	return uint32(length) + uint32(version)<<8
}

// --------------------------------------------------------------------------
// Serialize / Deserialize
// --------------------------------------------------------------------------

// Serialize allocates a buffer of exactly e.SerializeSizeOf() bytes and
// writes e into it. The caller owns the returned buffer and must Release it.
// Serialize can be called any number of times; every call re-encodes the
// current field values. It does not write to e, so an entity can be
// serialized from several goroutines.
func Serialize(e Entity) (*Buffer, error) {
	size := e.SerializeSizeOf()
	if size > MaxMessageSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrMessageTooLarge, size)
	}

	buf := Allocate(size)
	if _, err := encode(e, buf.Bytes()); err != nil {
		_ = buf.Release()
		return nil, err
	}
	return buf, nil
}

// SerializeInto writes e into caller memory and returns the number of bytes
// written. dst must hold at least e.SerializeSizeOf() bytes.
func SerializeInto(e Entity, dst []byte) (int, error) {
	return encode(e, dst)
}

// Deserialize decodes e from data without taking ownership. Entities that
// keep slices of the payload (RawMessage) borrow data, so it must outlive them.
func Deserialize(e Entity, data []byte) error {
	_, err := decode(e, data)
	return err
}

// DeserializeOwned decodes e from buf and releases buf afterwards, also when
// decoding fails.
func DeserializeOwned(e Entity, buf *Buffer) error {
	_, err := decode(e, buf.Bytes())
	if relErr := buf.Release(); relErr != nil && err == nil {
		err = relErr
	}
	return err
}

// Verify recomputes the checksum of a received message and compares it with
// the checksum field. It only makes sense for message types that use
// checksum semantics rather than sequence numbers.
func Verify(e Entity, data []byte) error {
	h := NewHeader(data)
	n, err := h.Validate()
	if err != nil {
		return err
	}

	tmp := Allocate(n)
	defer tmp.Release()
	copy(tmp.Bytes(), data[:n])

	th := NewHeader(tmp.Bytes())
	th.SetChecksum(0)
	expected := generateChecksum(e, tmp.Bytes())
	if got := h.Checksum(); got != expected {
		return fmt.Errorf("%w: header carries %#08x, computed %#08x", ErrChecksumMismatch, got, expected)
	}
	return nil
}

// encode writes e into dst and returns the number of bytes written
func encode(e Entity, dst []byte) (int, error) {
	b := e.MessageBase()
	size := e.SerializeSizeOf()
	if size > MaxMessageSize {
		return 0, fmt.Errorf("%w: %d bytes", ErrMessageTooLarge, size)
	}
	if len(dst) < size {
		return 0, fmt.Errorf("%w: destination holds %d bytes, need %d", ErrTruncatedBuffer, len(dst), size)
	}

	w := Writer{buf: dst[:size]}
	if b.SerializeHeader() {
		w.pos = HeaderSize
	}

	e.WriteFields(&w)
	if w.err != nil {
		return 0, w.err
	}
	if w.pos != size {
		return 0, fmt.Errorf("%w: wrote %d bytes, announced %d", ErrSizeMismatch, w.pos, size)
	}

	if b.SerializeHeader() {
		msg := dst[:size]
		h := NewHeader(msg)
		h.SetID(b.id)
		h.SetLength(uint16(size))
		h.SetVersion(b.version)
		h.clearReserved()
		h.SetChecksum(0)

		sum := b.sequence
		if sum == 0 {
			sum = generateChecksum(e, msg)
		}
		h.SetChecksum(sum)
	}
	return size, nil
}

// decode reads e from data and returns the number of bytes consumed
func decode(e Entity, data []byte) (int, error) {
	b := e.MessageBase()
	r := Reader{buf: data}

	if b.SerializeHeader() {
		h := NewHeader(data)
		n, err := h.Validate()
		if err != nil {
			return 0, err
		}
		if h.Reserved() != 0 {
			Logger.Debugf("message %#04x carries non-zero reserved field %#04x", h.ID(), h.Reserved())
		}

		// fields are read within the declared length, trailing bytes of a
		// newer message version are ignored
		r.buf = data[:n]
		r.pos = HeaderSize

		b.id = h.ID()
		b.version = h.Version()
		b.length = h.Length()
		b.checksum = h.Checksum()
	}

	e.ReadFields(&r)
	if r.err != nil {
		return 0, r.err
	}
	return r.pos, nil
}

// generateChecksum dispatches to the entity's generator or the default
func generateChecksum(e Entity, msg []byte) uint32 {
	if g, ok := e.(ChecksumGenerator); ok {
		return g.GenerateChecksum(msg)
	}
	h := NewHeader(msg)
	return DefaultChecksum(h.Length(), h.Version())
}
