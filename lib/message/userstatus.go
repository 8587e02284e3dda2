package message

import (
	"encoding/json"
	"github.com/ValentinKolb/nps/lib/byteorder"
	"github.com/ValentinKolb/nps/lib/serialize"
)

// UserStatus is the login server's answer to a status request. It carries
// the customer and persona ids, a session key and the ban and gag records.
// Whether the user is authorized is derived from the session key and not
// stored.
type UserStatus struct {
	serialize.Base
	customerID uint32
	personaID  uint32
	cacheHit   bool
	ban        UserAction
	gag        UserAction
	sessionKey SessionKey
}

// NewUserStatus returns an empty status for a customer. The message id
// defaults to MsgTUserValid.
func NewUserStatus(customerID uint32) *UserStatus {
	s := &UserStatus{
		Base:       serialize.NewBase(uint16(MsgTUserValid), Version),
		customerID: customerID,
	}
	s.members()
	return s
}

func (s *UserStatus) CustomerID() uint32 { return s.customerID }
func (s *UserStatus) SetCustomerID(id uint32) { s.customerID = id }
func (s *UserStatus) PersonaID() uint32 { return s.personaID }
func (s *UserStatus) SetPersonaID(id uint32) { s.personaID = id }
func (s *UserStatus) IsCacheHit() bool { return s.cacheHit }
func (s *UserStatus) SetCacheHit(hit bool) { s.cacheHit = hit }
func (s *UserStatus) SessionKey() *SessionKey { return &s.sessionKey }

func (s *UserStatus) SetSessionKey(k SessionKey) {
	s.sessionKey = k
	s.sessionKey.SetSerializeHeader(false)
}

func (s *UserStatus) SetBan(a UserAction) {
	s.ban = a
	s.ban.SetSerializeHeader(false)
}

func (s *UserStatus) SetGag(a UserAction) {
	s.gag = a
	s.gag.SetSerializeHeader(false)
}

// Authorized reports whether the session key is valid.
func (s *UserStatus) Authorized() bool {
	return s.sessionKey.IsValid()
}

// Ban returns the ban record or nil if none was issued.
func (s *UserStatus) Ban() *UserAction {
	if !s.ban.IsValid() {
		return nil
	}
	return &s.ban
}

// Gag returns the gag record or nil if none was issued.
func (s *UserStatus) Gag() *UserAction {
	if !s.gag.IsValid() {
		return nil
	}
	return &s.gag
}

// ClearBan removes the ban record.
func (s *UserStatus) ClearBan() { s.SetBan(UserAction{}) }

// ClearGag removes the gag record.
func (s *UserStatus) ClearGag() { s.SetGag(UserAction{}) }

// Clone returns a deep copy.
func (s *UserStatus) Clone() *UserStatus {
	c := *s
	return &c
}

// members disables the header of every nested member. The flags are only
// written when one of them is still set, so serializing a status built with
// NewUserStatus and its setters never writes to it.
func (s *UserStatus) members() {
	if !s.ban.SerializeHeader() && !s.gag.SerializeHeader() && !s.sessionKey.SerializeHeader() {
		return
	}
	s.ban.SetSerializeHeader(false)
	s.gag.SetSerializeHeader(false)
	s.sessionKey.SetSerializeHeader(false)
}

func (s *UserStatus) SerializeSizeOf() int {
	s.members()
	return s.Base.SerializeSizeOf() +
		byteorder.SizeOf(s.customerID) +
		byteorder.SizeOf(s.personaID) +
		byteorder.SizeOf(s.cacheHit) +
		serialize.SizeOfEntity(&s.ban) +
		serialize.SizeOfEntity(&s.gag) +
		serialize.SizeOfEntity(&s.sessionKey)
}

func (s *UserStatus) WriteFields(w *serialize.Writer) {
	s.members()
	w.Uint32(s.customerID)
	w.Uint32(s.personaID)
	w.Bool(s.cacheHit)
	w.Entity(&s.ban)
	w.Entity(&s.gag)
	w.Entity(&s.sessionKey)
}

func (s *UserStatus) ReadFields(r *serialize.Reader) {
	s.members()
	r.Uint32(&s.customerID)
	r.Uint32(&s.personaID)
	r.Bool(&s.cacheHit)
	r.Entity(&s.ban)
	r.Entity(&s.gag)
	r.Entity(&s.sessionKey)
}

type userStatusJSON struct {
	ID         Opcode      `json:"id"`
	CustomerID uint32      `json:"customerId"`
	PersonaID  uint32      `json:"personaId"`
	CacheHit   bool        `json:"cacheHit"`
	Authorized bool        `json:"authorized"`
	Ban        *UserAction `json:"ban,omitempty"`
	Gag        *UserAction `json:"gag,omitempty"`
	SessionKey SessionKey  `json:"sessionKey"`
}

func (s *UserStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(userStatusJSON{
		ID:         Opcode(s.MessageID()),
		CustomerID: s.customerID,
		PersonaID:  s.personaID,
		CacheHit:   s.cacheHit,
		Authorized: s.Authorized(),
		Ban:        s.Ban(),
		Gag:        s.Gag(),
		SessionKey: s.sessionKey,
	})
}

// UnmarshalJSON restores the fields written by MarshalJSON. The id field is
// informational and ignored.
func (s *UserStatus) UnmarshalJSON(data []byte) error {
	var v struct {
		CustomerID uint32      `json:"customerId"`
		PersonaID  uint32      `json:"personaId"`
		CacheHit   bool        `json:"cacheHit"`
		Ban        *UserAction `json:"ban"`
		Gag        *UserAction `json:"gag"`
		SessionKey SessionKey  `json:"sessionKey"`
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	s.customerID = v.CustomerID
	s.personaID = v.PersonaID
	s.cacheHit = v.CacheHit
	s.ban, s.gag = UserAction{}, UserAction{}
	if v.Ban != nil {
		s.ban = *v.Ban
	}
	if v.Gag != nil {
		s.gag = *v.Gag
	}
	s.sessionKey = v.SessionKey
	s.members()
	return nil
}
