package serializer

import (
	"fmt"
	"github.com/ValentinKolb/nps/lib/serialize"
)

// IRPCSerializer is the interface for all message serializers. Every
// implementation produces a complete NPS message (header included) so the
// transport can frame it by its length field and correlate it by its
// checksum field.
type IRPCSerializer interface {
	// Serialize serializes an entity into a byte array
	// It returns the serialized byte array and an error if any
	Serialize(e serialize.Entity) ([]byte, error)
	// Deserialize decodes a byte array into e
	// e must be an empty entity of the type announced by the header id
	// It returns an error if any
	Deserialize(b []byte, e serialize.Entity) error
	// Name returns the name used in configuration
	Name() string
}

// New returns the serializer registered under name.
func New(name string) (IRPCSerializer, error) {
	switch name {
	case "binary", "":
		return NewBinarySerializer(), nil
	case "json":
		return NewJSONSerializer(), nil
	default:
		return nil, fmt.Errorf("unknown serializer %q (use binary or json)", name)
	}
}
