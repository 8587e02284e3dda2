package message

import (
	"encoding/json"
	"fmt"
	"github.com/ValentinKolb/nps/lib/serialize"
	"strings"
)

// Operation controls how the status cache answers a UserStatusRequest.
type Operation uint32

const (
	// OpUseCache answers from the cache if possible
	OpUseCache Operation = iota
	// OpRefreshCache reloads the entry from the source
	OpRefreshCache
	// OpClearCacheEntry drops the entry, then answers from the source
	OpClearCacheEntry
	// OpClearCache drops every entry, then answers from the source
	OpClearCache
)

// String returns the string representation of an Operation.
func (o Operation) String() string {
	switch o {
	case OpUseCache:
		return "use-cache"
	case OpRefreshCache:
		return "refresh-cache"
	case OpClearCacheEntry:
		return "clear-cache-entry"
	case OpClearCache:
		return "clear-cache"
	default:
		return fmt.Sprintf("unknown(%d)", uint32(o))
	}
}

// Valid reports whether o is one of the defined operations.
func (o Operation) Valid() bool {
	return o <= OpClearCache
}

// ParseOperation parses the String form of an operation.
func ParseOperation(s string) (Operation, error) {
	for op := OpUseCache; op <= OpClearCache; op++ {
		if strings.EqualFold(s, op.String()) {
			return op, nil
		}
	}
	return 0, fmt.Errorf("unknown operation %q (use-cache, refresh-cache, clear-cache-entry, clear-cache)", s)
}

// UserStatusRequest asks the login server for the status of a customer.
// The customer id is written first, followed by the operation as u32.
type UserStatusRequest struct {
	Customer
	Operation Operation
}

// NewUserStatusRequest returns a request with id MsgTGetUserStatus.
func NewUserStatusRequest(customerID uint32, op Operation) *UserStatusRequest {
	return &UserStatusRequest{
		Customer: Customer{
			Base:       serialize.NewBase(uint16(MsgTGetUserStatus), Version),
			CustomerID: customerID,
		},
		Operation: op,
	}
}

func (r *UserStatusRequest) SerializeSizeOf() int {
	return r.Customer.SerializeSizeOf() + 4
}

func (r *UserStatusRequest) WriteFields(w *serialize.Writer) {
	r.Customer.WriteFields(w)
	w.Uint32(uint32(r.Operation))
}

func (r *UserStatusRequest) ReadFields(rd *serialize.Reader) {
	r.Customer.ReadFields(rd)
	var op uint32
	rd.Uint32(&op)
	r.Operation = Operation(op)
}

type userStatusRequestJSON struct {
	CustomerID uint32 `json:"customerId"`
	Operation  string `json:"operation"`
}

func (r *UserStatusRequest) MarshalJSON() ([]byte, error) {
	return json.Marshal(userStatusRequestJSON{CustomerID: r.CustomerID, Operation: r.Operation.String()})
}

func (r *UserStatusRequest) UnmarshalJSON(data []byte) error {
	var v userStatusRequestJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	op, err := ParseOperation(v.Operation)
	if err != nil {
		return err
	}
	r.CustomerID = v.CustomerID
	r.Operation = op
	return nil
}
