package transport

import (
	"context"
	"github.com/ValentinKolb/nps/lib/serialize"
	"github.com/ValentinKolb/nps/rpc/common"
)

// --------------------------------------------------------------------------
// Server Transport
// --------------------------------------------------------------------------

// ServerHandleFunc is a function type that handles incoming requests
// This function is called by a server transport layer when a request is received
// It takes a complete NPS message and returns the complete response message.
// The request bytes are only valid until the function returns.
type ServerHandleFunc func(req []byte) (resp []byte)

// IRPCServerTransport is the interface for the RPC transport layer
// It must accept a ServerConfig as a parameter
type IRPCServerTransport interface {
	// RegisterHandler registers a handler for the transport layer
	// This handler should be called when a request is received
	RegisterHandler(handler ServerHandleFunc)
	// Listen starts the transport layer and listens for incoming requests.
	// It blocks until Close is called, in which case it returns nil.
	Listen(config common.ServerConfig) error
	// Close stops accepting connections and closes all open connections
	// after their in-flight requests are answered.
	Close() error
}

// --------------------------------------------------------------------------
// Client Transport
// --------------------------------------------------------------------------

// IRPCClientTransport is the interface for the RPC client transport
type IRPCClientTransport interface {
	// Connect initializes the transport with the given configuration
	Connect(config common.ClientConfig) error
	// Send sends a complete NPS message to the server and returns the
	// response message. The transport owns the checksum field of the request
	// header and uses it to correlate the response. The caller must release
	// the returned buffer.
	Send(ctx context.Context, req []byte) (*serialize.Buffer, error)
	// Close closes the transport connection
	Close() error
}
