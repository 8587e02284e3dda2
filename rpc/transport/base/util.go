package base

import (
	"fmt"
	"github.com/ValentinKolb/nps/lib/serialize"
	"io"
	"net"
)

// writeFrame writes one NPS message to the connection. Frames need no extra
// envelope since every message starts with its own header:
//
//	id u16 | length u16 | version u16 | reserved u16 | sequence u32 | body
//
// The checksum field of msg is replaced by seq on the wire, msg itself is
// not modified.
func writeFrame(conn net.Conn, seq uint32, msg []byte) error {
	h := serialize.NewHeader(msg)
	n, err := h.Validate()
	if err != nil {
		return fmt.Errorf("invalid frame: %w", err)
	}
	if n != len(msg) {
		return fmt.Errorf("invalid frame: declared length %d, have %d bytes", n, len(msg))
	}

	header := make([]byte, serialize.HeaderSize)
	copy(header, msg)
	patched := serialize.NewHeader(header)
	patched.SetChecksum(seq)

	b := net.Buffers{header, msg[serialize.HeaderSize:]}
	_, err = b.WriteTo(conn)
	return err
}

// readFrame reads one NPS message from the connection into a pooled buffer.
// The caller must release the buffer; the sequence number is the checksum
// field of its header.
func readFrame(conn net.Conn) (*serialize.Buffer, error) {
	var header [serialize.HeaderSize]byte

	// Read header
	if _, err := io.ReadFull(conn, header[:]); err != nil {
		return nil, err
	}

	h := serialize.NewHeader(header[:])
	length := int(h.Length())
	if length < serialize.HeaderSize {
		return nil, fmt.Errorf("%w: frame length %d is shorter than the header", serialize.ErrMalformedHeader, length)
	}

	buf := serialize.Allocate(length)
	copy(buf.Bytes(), header[:])

	// Read body
	if _, err := io.ReadFull(conn, buf.Bytes()[serialize.HeaderSize:]); err != nil {
		_ = buf.Release()
		return nil, err
	}
	return buf, nil
}

// frameSequence returns the sequence number of a frame
func frameSequence(buf *serialize.Buffer) uint32 {
	h := buf.Header()
	return h.Checksum()
}
