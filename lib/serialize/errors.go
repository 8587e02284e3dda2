package serialize

import "errors"

// Codec errors. Callers match them with errors.Is; the returned errors wrap
// these with the offending sizes.
var (
	// ErrTruncatedBuffer is returned when fewer bytes are available than a
	// header or field declares it needs.
	ErrTruncatedBuffer = errors.New("truncated buffer")
	// ErrMalformedHeader is returned when the header fields are inconsistent,
	// e.g. a declared length shorter than the header itself.
	ErrMalformedHeader = errors.New("malformed header")
	// ErrMalformedField is returned when a field decodes to a value its type
	// cannot hold (e.g. an oversized session key).
	ErrMalformedField = errors.New("malformed field")
	// ErrBufferOwnership is returned when a borrowed buffer is released or an
	// owned buffer is released twice.
	ErrBufferOwnership = errors.New("buffer ownership violation")
	// ErrMessageTooLarge is returned when an entity does not fit the u16
	// length field.
	ErrMessageTooLarge = errors.New("message too large")
	// ErrSizeMismatch is returned when the field writers produce a different
	// number of bytes than SerializeSizeOf announced.
	ErrSizeMismatch = errors.New("serialized size mismatch")
	// ErrChecksumMismatch is returned by Verify.
	ErrChecksumMismatch = errors.New("checksum mismatch")
)
