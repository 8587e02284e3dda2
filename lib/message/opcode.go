package message

import (
	"encoding/json"
	"fmt"
	"github.com/ValentinKolb/nps/lib/serialize"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("message")

// Version is the message format version written by this package.
const Version uint16 = 1

// --------------------------------------------------------------------------
// Opcode Definition
// --------------------------------------------------------------------------

// Opcode is the message id stored in the first header field.
type Opcode uint16

const (
	// lobby client -> lobby server
	MsgTLogin     Opcode = 0x100
	MsgTLoginResp Opcode = 0x120

	// lobby server -> lobby client
	MsgTAck       Opcode = 0x207
	MsgTHeartbeat Opcode = 0x217

	// login client -> login server
	MsgTUserLogin     Opcode = 0x501
	MsgTGetUserStatus Opcode = 0x535

	// login server -> login client
	MsgTUserValid      Opcode = 0x601
	MsgTUserInvalid    Opcode = 0x602
	MsgTDBError        Opcode = 0x60A
	MsgTUserBanned     Opcode = 0x626
	MsgTUndefinedError Opcode = 0x650
)

// String returns the string representation of an Opcode.
func (o Opcode) String() string {
	switch o {
	case MsgTLogin:
		return "login"
	case MsgTLoginResp:
		return "loginResp"
	case MsgTAck:
		return "ack"
	case MsgTHeartbeat:
		return "heartbeat"
	case MsgTUserLogin:
		return "userLogin"
	case MsgTGetUserStatus:
		return "getUserStatus"
	case MsgTUserValid:
		return "userValid"
	case MsgTUserInvalid:
		return "userInvalid"
	case MsgTDBError:
		return "dbError"
	case MsgTUserBanned:
		return "userBanned"
	case MsgTUndefinedError:
		return "undefinedError"
	default:
		return fmt.Sprintf("unknown(%#04x)", uint16(o))
	}
}

// IsError reports whether the opcode carries an error text payload.
func (o Opcode) IsError() bool {
	return o == MsgTDBError || o == MsgTUndefinedError
}

// MarshalJSON implements the json.Marshaler interface for Opcode.
func (o Opcode) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.String())
}

// --------------------------------------------------------------------------
// Registry
// --------------------------------------------------------------------------

// New returns an empty entity for a wire id. The second return value is
// false for ids this package does not know.
func New(id uint16) (serialize.Entity, bool) {
	switch Opcode(id) {
	case MsgTGetUserStatus:
		return &UserStatusRequest{}, true
	case MsgTUserValid, MsgTUserInvalid, MsgTUserBanned:
		return &UserStatus{}, true
	case MsgTHeartbeat, MsgTAck, MsgTDBError, MsgTUndefinedError:
		return &RawMessage{}, true
	default:
		return nil, false
	}
}

// Decode reads the id from the header of data, builds the matching entity
// and deserializes it. Unknown ids decode as RawMessage.
func Decode(data []byte) (serialize.Entity, error) {
	h := serialize.NewHeader(data)
	if _, err := h.Validate(); err != nil {
		return nil, err
	}

	e, ok := New(h.ID())
	if !ok {
		e = &RawMessage{}
	}
	if err := serialize.Deserialize(e, data); err != nil {
		return nil, fmt.Errorf("decode %s: %w", Opcode(h.ID()), err)
	}
	return e, nil
}
