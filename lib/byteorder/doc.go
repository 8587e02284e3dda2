// Package byteorder converts scalar values between host representation and
// network byte order (big-endian) and computes the wire size of scalars,
// strings and fixed-length buffers.
//
// The NPS wire contract is always big-endian, independent of the host. On
// little-endian hosts ToNetwork and ToHost swap the bytes of every multi-byte
// scalar, on big-endian hosts they pass values through unchanged. Both
// directions are the same transform, so ToHost(ToNetwork(v)) == v for every
// supported type.
//
// Key Components:
//
//   - Scalar: Type constraint covering int8..int64, uint8..uint64, float32,
//     float64 and bool. Booleans and single bytes are never swapped.
//
//   - ToNetwork/ToHost: Pure value transforms with no error conditions.
//
//   - Put*/Get helpers (PutUint16, Uint16, ...): Write or read a scalar at the
//     start of a byte slice in network order. They store the converted value
//     in native order, which yields big-endian bytes on every host.
//
//   - SizeOf helpers: SizeOf (scalar width, bool = 1), SizeOfString (length
//     plus the 2-byte length prefix) and SizeOfBytes (raw length, optionally
//     capped at the first NUL byte).
//
// Thread Safety:
//
//	All functions are pure and safe for concurrent use.
package byteorder
