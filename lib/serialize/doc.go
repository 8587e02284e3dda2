// Package serialize implements the NPS binary message codec: a fixed 12-byte
// header followed by fields in network byte order, with length-prefixed
// strings and nested entities.
//
// Wire format:
//
//	header  id u16 | length u16 | version u16 | reserved u16 (=0) | checksum u32
//	scalar  natural width, big-endian, bool as one byte (0 or 1)
//	string  len u16 | bytes (no terminator)
//	buffer  raw bytes, length known to both ends
//	nested  len u16 | nested entity (with or without its own header)
//
// The length field always equals the number of bytes the full serialize
// chain produced, header included. The checksum field carries either a
// generated checksum (DefaultChecksum or an entity's ChecksumGenerator) or an
// application sequence number set with Base.SetSequenceNumber. Nothing on the
// wire tells the two apart; both ends agree per message type.
//
// Key Components:
//
//   - Entity: The contract every message implements. SerializeSizeOf,
//     WriteFields and ReadFields are chained explicitly: a type embedding
//     another entity calls the embedded step before its own fields.
//
//   - Base: Header state embedded by every entity (id, version, sequence
//     number, header flag, last seen length and checksum).
//
//   - Serialize/SerializeInto: Compute the size, write the fields, then fill
//     in the header. Serialize returns an owned Buffer the caller releases.
//
//   - Deserialize/DeserializeOwned: Validate the header, then read the fields
//     within the declared length. DeserializeOwned releases the buffer it was
//     given. Bytes after the fields an entity knows are ignored so that older
//     readers accept newer message versions.
//
//   - Header: Overlay on the first 12 bytes of a buffer. Borrowed by default,
//     owned after Clone.
//
//   - Buffer: Owned (pooled by size class) or borrowed byte block. Releasing a
//     borrowed buffer or releasing twice is reported as ErrBufferOwnership.
//
// Error Handling:
//
//	Field primitives never fail individually. Writer and Reader keep the first
//	error (sticky) and the top-level entry points return it: ErrTruncatedBuffer,
//	ErrMalformedHeader, ErrMalformedField, ErrMessageTooLarge, ErrSizeMismatch.
//
// Thread Safety:
//
//	Entities are not safe for concurrent mutation. Serialize and Deserialize
//	on distinct entities run concurrently without coordination. Buffer.Release
//	is atomic, so a racing double release is still detected.
package serialize
