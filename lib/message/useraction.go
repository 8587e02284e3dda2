package message

import (
	"github.com/ValentinKolb/nps/lib/byteorder"
	"github.com/ValentinKolb/nps/lib/serialize"
	"time"
)

// ActionKind distinguishes the two user actions a status carries.
type ActionKind string

const (
	ActionBan ActionKind = "ban"
	ActionGag ActionKind = "gag"
)

// UserAction is a ban or gag record. Times are unix seconds; an action
// that was never issued has IssuedAt == 0.
type UserAction struct {
	serialize.Base `json:"-"`
	IssuedBy       uint32 `json:"issuedBy"`
	Reason         string `json:"reason"`
	IssuedAt       int64  `json:"issuedAt"`
	ExpiresAt      int64  `json:"expiresAt"`
}

// NewUserAction returns an action issued now.
func NewUserAction(issuedBy uint32, reason string, duration time.Duration) UserAction {
	now := time.Now()
	a := UserAction{IssuedBy: issuedBy, Reason: reason, IssuedAt: now.Unix()}
	if duration > 0 {
		a.ExpiresAt = now.Add(duration).Unix()
	}
	return a
}

// IsValid reports whether the action was issued at all.
func (a *UserAction) IsValid() bool {
	return a.IssuedAt > 0
}

// Permanent reports whether the action never expires.
func (a *UserAction) Permanent() bool {
	return a.ExpiresAt == 0
}

func (a *UserAction) SerializeSizeOf() int {
	return a.Base.SerializeSizeOf() +
		byteorder.SizeOf(a.IssuedBy) +
		byteorder.SizeOfString(a.Reason) +
		byteorder.SizeOf(a.IssuedAt) +
		byteorder.SizeOf(a.ExpiresAt)
}

func (a *UserAction) WriteFields(w *serialize.Writer) {
	w.Uint32(a.IssuedBy)
	w.String(a.Reason)
	w.Int64(a.IssuedAt)
	w.Int64(a.ExpiresAt)
}

func (a *UserAction) ReadFields(r *serialize.Reader) {
	r.Uint32(&a.IssuedBy)
	r.String(&a.Reason)
	r.Int64(&a.IssuedAt)
	r.Int64(&a.ExpiresAt)
}
