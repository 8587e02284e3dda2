package message

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"github.com/ValentinKolb/nps/lib/serialize"
)

// --------------------------------------------------------------------------
// RawMessage
// --------------------------------------------------------------------------

// RawMessage carries an opaque payload. The payload is not copied: after
// SetPayload or Deserialize the message aliases the caller's memory, which
// must stay valid as long as the message is used.
type RawMessage struct {
	serialize.Base
	payload []byte
}

// NewRawMessage returns a message with the given id borrowing payload.
func NewRawMessage(id Opcode, payload []byte) *RawMessage {
	return &RawMessage{Base: serialize.NewBase(uint16(id), Version), payload: payload}
}

// NewErrorMessage returns a raw message carrying the text of err.
func NewErrorMessage(id Opcode, err error) *RawMessage {
	return NewRawMessage(id, []byte(err.Error()))
}

func (m *RawMessage) Payload() []byte { return m.payload }
func (m *RawMessage) SetPayload(p []byte) { m.payload = p }
func (m *RawMessage) Len() int { return len(m.payload) }

func (m *RawMessage) SerializeSizeOf() int {
	return m.Base.SerializeSizeOf() + len(m.payload)
}

func (m *RawMessage) WriteFields(w *serialize.Writer) {
	w.Bytes(m.payload)
}

// ReadFields takes the rest of the window as payload.
func (m *RawMessage) ReadFields(r *serialize.Reader) {
	m.payload = r.View(r.Remaining())
}

// Err returns the payload as error if the id is an error opcode.
func (m *RawMessage) Err() error {
	if !Opcode(m.MessageID()).IsError() {
		return nil
	}
	return fmt.Errorf("%s: %s", Opcode(m.MessageID()), m.payload)
}

type rawMessageJSON struct {
	ID      Opcode `json:"id"`
	Payload string `json:"payload"`
}

func (m *RawMessage) MarshalJSON() ([]byte, error) {
	return json.Marshal(rawMessageJSON{ID: Opcode(m.MessageID()), Payload: base64.StdEncoding.EncodeToString(m.payload)})
}

func (m *RawMessage) UnmarshalJSON(data []byte) error {
	var v struct {
		Payload string `json:"payload"`
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	p, err := base64.StdEncoding.DecodeString(v.Payload)
	if err != nil {
		return fmt.Errorf("raw message payload: %w", err)
	}
	m.payload = p
	return nil
}

// --------------------------------------------------------------------------
// RawMessageGC
// --------------------------------------------------------------------------

// RawMessageGC is a RawMessage that owns its payload. Every payload it holds
// lives in a pooled buffer that is released when the payload is replaced,
// on Reset and on Release.
type RawMessageGC struct {
	RawMessage
	buf *serialize.Buffer
}

// NewRawMessageGC returns a message holding a private copy of payload.
func NewRawMessageGC(id Opcode, payload []byte) *RawMessageGC {
	m := &RawMessageGC{RawMessage: RawMessage{Base: serialize.NewBase(uint16(id), Version)}}
	m.SetPayload(payload)
	return m
}

// SetPayload copies p into a buffer owned by the message. p may point into
// the current payload; the old buffer is released after the copy.
func (m *RawMessageGC) SetPayload(p []byte) {
	var buf *serialize.Buffer
	if len(p) > 0 {
		buf = serialize.Allocate(len(p))
		copy(buf.Bytes(), p)
	}

	m.Reset()
	m.buf = buf
	if buf != nil {
		m.payload = buf.Bytes()
	}
}

// ReadFields copies the rest of the window into an owned buffer, so the
// message outlives the memory it was decoded from.
func (m *RawMessageGC) ReadFields(r *serialize.Reader) {
	m.SetPayload(r.View(r.Remaining()))
}

func (m *RawMessageGC) UnmarshalJSON(data []byte) error {
	var tmp RawMessage
	if err := tmp.UnmarshalJSON(data); err != nil {
		return err
	}
	m.SetPayload(tmp.payload)
	return nil
}

// Reset releases the owned payload.
func (m *RawMessageGC) Reset() {
	if m.buf != nil {
		if err := m.buf.Release(); err != nil {
			Logger.Errorf("raw message %s: %v", Opcode(m.MessageID()), err)
		}
		m.buf = nil
	}
	m.payload = nil
}

// Release frees the payload. It is equivalent to Reset and exists so the
// message can be used where a release function is expected.
func (m *RawMessageGC) Release() error {
	m.Reset()
	return nil
}
