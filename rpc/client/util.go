package client

import (
	"context"
	"errors"
	"fmt"
	"github.com/ValentinKolb/nps/lib/message"
	"github.com/ValentinKolb/nps/lib/serialize"
	"github.com/ValentinKolb/nps/rpc/serializer"
	"github.com/ValentinKolb/nps/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
)

var (
	Logger = logger.GetLogger("client")
)

// ErrUnexpectedResponse is returned when the server answers with a message id
// the request does not allow.
var ErrUnexpectedResponse = errors.New("unexpected response")

// RemoteError is an error message (NPS_DB_ERROR, NPS_UNDEFINED_ERROR) sent by
// the server.
type RemoteError struct {
	Opcode message.Opcode
	Msg    string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("server error %s: %s", e.Opcode, e.Msg)
}

// invokeRPCRequest is a helper function used by all RPC clients to send requests
// It serializes req, sends it and decodes the response into the entity matching
// the response id. handle is called with the decoded response while the response
// buffer is still valid. Error messages from the server are returned as *RemoteError.
func invokeRPCRequest(
	ctx context.Context,
	req serialize.Entity,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
	handle func(resp serialize.Entity) error,
) error {
	// Serialize the request
	reqBytes, err := serializer.Serialize(req)
	if err != nil {
		return fmt.Errorf("serialize %s: %w", message.Opcode(req.MessageBase().MessageID()), err)
	}

	// Send the request
	buf, err := transport.Send(ctx, reqBytes)
	if err != nil {
		return err
	}
	defer func() {
		if err := buf.Release(); err != nil {
			Logger.Warningf("release response buffer: %v", err)
		}
	}()

	// Deserialize the response
	id := buf.MessageID()
	resp, ok := message.New(id)
	if !ok {
		resp = &message.RawMessage{}
	}
	if err := serializer.Deserialize(buf.Bytes(), resp); err != nil {
		return fmt.Errorf("deserialize %s: %w", message.Opcode(id), err)
	}

	// Check if the response is an error response
	if raw, ok := resp.(*message.RawMessage); ok && message.Opcode(id).IsError() {
		return &RemoteError{Opcode: message.Opcode(id), Msg: string(raw.Payload())}
	}

	return handle(resp)
}
