package byteorder

import (
	"bytes"
	"encoding/binary"
	"math"
	"math/bits"
	"unsafe"
)

// LengthPrefixSize is the size of the u16 length prefix in front of strings
// and nested entities.
const LengthPrefixSize = 2

// Scalar is the set of types the codec can convert. Named types are not
// included on purpose so that the type switch in swap stays exhaustive.
type Scalar interface {
	int8 | uint8 | int16 | uint16 | int32 | uint32 | int64 | uint64 | float32 | float64 | bool
}

// hostIsBigEndian is true when the native byte order already matches the wire
var hostIsBigEndian = binary.NativeEndian.Uint16([]byte{0x12, 0x34}) == 0x1234

// HostIsBigEndian reports whether values pass through the codec unchanged.
func HostIsBigEndian() bool {
	return hostIsBigEndian
}

// --------------------------------------------------------------------------
// Conversion
// --------------------------------------------------------------------------

// ToNetwork converts a host value into network byte order.
func ToNetwork[T Scalar](v T) T {
	if hostIsBigEndian {
		return v
	}
	return swap(v)
}

// ToHost converts a value in network byte order into host representation.
func ToHost[T Scalar](v T) T {
	if hostIsBigEndian {
		return v
	}
	return swap(v)
}

// swap reverses the byte order of v
func swap[T Scalar](v T) T {
	var r any
	switch x := any(v).(type) {
	case int8, uint8, bool:
		return v
	case int16:
		r = int16(bits.ReverseBytes16(uint16(x)))
	case uint16:
		r = bits.ReverseBytes16(x)
	case int32:
		r = int32(bits.ReverseBytes32(uint32(x)))
	case uint32:
		r = bits.ReverseBytes32(x)
	case int64:
		r = int64(bits.ReverseBytes64(uint64(x)))
	case uint64:
		r = bits.ReverseBytes64(x)
	case float32:
		r = math.Float32frombits(bits.ReverseBytes32(math.Float32bits(x)))
	case float64:
		r = math.Float64frombits(bits.ReverseBytes64(math.Float64bits(x)))
	default:
		return v
	}
	return r.(T)
}

// --------------------------------------------------------------------------
// Put / Get helpers
// --------------------------------------------------------------------------

// PutUint16 writes v to b[0:2] in network byte order.
func PutUint16(b []byte, v uint16) { binary.NativeEndian.PutUint16(b, ToNetwork(v)) }

// PutUint32 writes v to b[0:4] in network byte order.
func PutUint32(b []byte, v uint32) { binary.NativeEndian.PutUint32(b, ToNetwork(v)) }

// PutUint64 writes v to b[0:8] in network byte order.
func PutUint64(b []byte, v uint64) { binary.NativeEndian.PutUint64(b, ToNetwork(v)) }

// PutFloat32 writes v to b[0:4] in network byte order.
func PutFloat32(b []byte, v float32) { PutUint32(b, math.Float32bits(v)) }

// PutFloat64 writes v to b[0:8] in network byte order.
func PutFloat64(b []byte, v float64) { PutUint64(b, math.Float64bits(v)) }

// PutBool writes v to b[0] as 0 or 1.
func PutBool(b []byte, v bool) {
	if v {
		b[0] = 1
	} else {
		b[0] = 0
	}
}

// Uint16 reads a network order uint16 from b[0:2].
func Uint16(b []byte) uint16 { return ToHost(binary.NativeEndian.Uint16(b)) }

// Uint32 reads a network order uint32 from b[0:4].
func Uint32(b []byte) uint32 { return ToHost(binary.NativeEndian.Uint32(b)) }

// Uint64 reads a network order uint64 from b[0:8].
func Uint64(b []byte) uint64 { return ToHost(binary.NativeEndian.Uint64(b)) }

// Float32 reads a network order float32 from b[0:4].
func Float32(b []byte) float32 { return math.Float32frombits(Uint32(b)) }

// Float64 reads a network order float64 from b[0:8].
func Float64(b []byte) float64 { return math.Float64frombits(Uint64(b)) }

// Bool reads a single byte; any non-zero value is true.
func Bool(b []byte) bool { return b[0] != 0 }

// --------------------------------------------------------------------------
// Size helpers
// --------------------------------------------------------------------------

// SizeOf returns the wire width of a scalar.
func SizeOf[T Scalar](v T) int {
	return int(unsafe.Sizeof(v))
}

// SizeOfString returns the wire size of a string: its bytes plus the u16
// length prefix. No terminator is written.
func SizeOfString(s string) int {
	return len(s) + LengthPrefixSize
}

// SizeOfBytes returns the wire size of a fixed buffer. The length is known to
// both ends and not re-encoded. With checkTermination the size is capped at
// the first NUL byte.
func SizeOfBytes(b []byte, checkTermination bool) int {
	if checkTermination {
		if i := bytes.IndexByte(b, 0); i >= 0 {
			return i
		}
	}
	return len(b)
}
