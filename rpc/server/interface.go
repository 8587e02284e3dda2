package server

import (
	"context"
	"github.com/ValentinKolb/nps/lib/serialize"
)

// IRPCServerAdapter is the interface for all RPC server adapters
// It is responsible for handling requests and responses of one opcode
type IRPCServerAdapter interface {
	// NewRequest returns an empty entity the request is decoded into
	NewRequest() serialize.Entity
	// Handle handles a decoded request and returns the response entity.
	// Errors are reported as error messages, never as a missing response.
	Handle(ctx context.Context, req serialize.Entity) (resp serialize.Entity)
}
