package message

import (
	"github.com/ValentinKolb/nps/lib/byteorder"
	"github.com/ValentinKolb/nps/lib/serialize"
)

// Customer is the base entity of every message addressed to one customer.
// It encodes a single u32.
type Customer struct {
	serialize.Base
	CustomerID uint32
}

func (c *Customer) SerializeSizeOf() int {
	return c.Base.SerializeSizeOf() + byteorder.SizeOf(c.CustomerID)
}

func (c *Customer) WriteFields(w *serialize.Writer) {
	w.Uint32(c.CustomerID)
}

func (c *Customer) ReadFields(r *serialize.Reader) {
	r.Uint32(&c.CustomerID)
}
