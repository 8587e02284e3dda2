package message

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"github.com/ValentinKolb/nps/lib/serialize"
	"time"
)

// SessionKeyLen is the capacity of a session key in bytes.
const SessionKeyLen = 32

// SessionKey is an opaque key with an expiry date (unix seconds).
//
// On the wire the key bytes are written without a length prefix, followed
// by the expiry as i64. The key length is therefore derived from the size of
// the enclosing window, so a SessionKey is only decodable as a nested member
// or as a complete framed message.
type SessionKey struct {
	serialize.Base
	key    [SessionKeyLen]byte
	keyLen int
	expiry int64
}

// NewSessionKey returns a session key. Keys longer than SessionKeyLen are
// truncated.
func NewSessionKey(key []byte, expiry int64) SessionKey {
	var s SessionKey
	s.SetKey(key)
	s.expiry = expiry
	return s
}

// Key returns a copy of the key bytes.
func (s *SessionKey) Key() []byte {
	out := make([]byte, s.keyLen)
	copy(out, s.key[:s.keyLen])
	return out
}

// SetKey replaces the key, truncating to SessionKeyLen.
func (s *SessionKey) SetKey(key []byte) {
	s.key = [SessionKeyLen]byte{}
	s.keyLen = copy(s.key[:], key)
}

func (s *SessionKey) Expiry() int64 { return s.expiry }
func (s *SessionKey) SetExpiry(exp int64) { s.expiry = exp }

// ExpiryTime returns the expiry as time.Time.
func (s *SessionKey) ExpiryTime() time.Time { return time.Unix(s.expiry, 0) }

// IsValid reports whether an expiry is set. It does not compare against the
// current time: a key that expired yesterday is still valid here.
func (s *SessionKey) IsValid() bool {
	return s.expiry > 0
}

// Expired reports whether the expiry lies before now.
func (s *SessionKey) Expired(now time.Time) bool {
	return s.IsValid() && now.Unix() >= s.expiry
}

func (s *SessionKey) SerializeSizeOf() int {
	return s.Base.SerializeSizeOf() + s.keyLen + 8
}

func (s *SessionKey) WriteFields(w *serialize.Writer) {
	w.Bytes(s.key[:s.keyLen])
	w.Int64(s.expiry)
}

func (s *SessionKey) ReadFields(r *serialize.Reader) {
	n := r.Remaining() - 8
	if n < 0 {
		r.Fail(fmt.Errorf("%w: session key needs at least 8 bytes, have %d", serialize.ErrTruncatedBuffer, r.Remaining()))
		return
	}
	if n > SessionKeyLen {
		r.Fail(fmt.Errorf("%w: session key of %d bytes exceeds %d", serialize.ErrMalformedField, n, SessionKeyLen))
		return
	}

	s.key = [SessionKeyLen]byte{}
	r.BytesInto(s.key[:n])
	r.Int64(&s.expiry)
	if r.Err() == nil {
		s.keyLen = n
	}
}

type sessionKeyJSON struct {
	Key    string `json:"key"`
	Expiry int64  `json:"expiry"`
	Valid  bool   `json:"valid"`
}

func (s SessionKey) MarshalJSON() ([]byte, error) {
	return json.Marshal(sessionKeyJSON{
		Key:    hex.EncodeToString(s.key[:s.keyLen]),
		Expiry: s.expiry,
		Valid:  s.expiry > 0,
	})
}

func (s *SessionKey) UnmarshalJSON(data []byte) error {
	var v sessionKeyJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	key, err := hex.DecodeString(v.Key)
	if err != nil {
		return fmt.Errorf("session key: %w", err)
	}
	s.SetKey(key)
	s.expiry = v.Expiry
	return nil
}
