package serializer

import (
	"encoding/json"
	"fmt"
	"github.com/ValentinKolb/nps/lib/message"
	"github.com/ValentinKolb/nps/lib/serialize"
)

// NewJSONSerializer creates a new serializer using json encoding
//
// The json document travels as payload of a RawMessage carrying the id and
// version of the entity, so frames stay NPS messages on the wire.
func NewJSONSerializer() IRPCSerializer {
	return &jsonSerializerImpl{}
}

// jsonSerializerImpl implements the IRPCSerializer interface using json encoding
type jsonSerializerImpl struct {
}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (j *jsonSerializerImpl) Name() string { return "json" }

func (j *jsonSerializerImpl) Serialize(e serialize.Entity) ([]byte, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("json encode: %w", err)
	}

	base := e.MessageBase()
	envelope := message.NewRawMessage(message.Opcode(base.MessageID()), payload)
	envelope.SetMessageVersion(base.MessageVersion())
	envelope.SetSequenceNumber(base.SequenceNumber())

	return NewBinarySerializer().Serialize(envelope)
}

func (j *jsonSerializerImpl) Deserialize(b []byte, e serialize.Entity) error {
	var envelope message.RawMessage
	if err := serialize.Deserialize(&envelope, b); err != nil {
		return err
	}
	if err := json.Unmarshal(envelope.Payload(), e); err != nil {
		return fmt.Errorf("json decode %s: %w", message.Opcode(envelope.MessageID()), err)
	}
	e.MessageBase().AdoptHeader(envelope.MessageBase())
	return nil
}
