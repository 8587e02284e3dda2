package serializer

import (
	"github.com/ValentinKolb/nps/lib/serialize"
)

// NewBinarySerializer creates a new serializer writing the NPS wire format
func NewBinarySerializer() IRPCSerializer {
	return &binarySerializerImpl{}
}

// binarySerializerImpl implements the IRPCSerializer interface with the
// field layout of each entity
type binarySerializerImpl struct{}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (b *binarySerializerImpl) Name() string { return "binary" }

func (b *binarySerializerImpl) Serialize(e serialize.Entity) ([]byte, error) {
	out := make([]byte, e.SerializeSizeOf())
	n, err := serialize.SerializeInto(e, out)
	if err != nil {
		return nil, err
	}
	return out[:n], nil
}

func (b *binarySerializerImpl) Deserialize(data []byte, e serialize.Entity) error {
	return serialize.Deserialize(e, data)
}
