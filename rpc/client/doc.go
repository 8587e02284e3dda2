// Package client implements the RPC client of the NPS login status service.
//
// UserStatusClient sends NPS_GET_USER_STATUS and NPS_HEARTBEAT requests over any
// transport.IRPCClientTransport and decodes the responses with the configured
// serializer. Retries, reconnects and the correlation of responses are done by the
// transport.
//
// Error messages sent by the server are returned as *RemoteError, so callers can
// tell a failing server (NPS_DB_ERROR) from a rejected request (NPS_UNDEFINED_ERROR):
//
//	status, err := c.GetUserStatus(ctx, 4711, message.OpUseCache)
//	var remote *client.RemoteError
//	if errors.As(err, &remote) && remote.Opcode == message.MsgTDBError {
//	  // retry later
//	}
//
// Every client keeps a go-metrics registry with a timer per request type, a meter
// for failed requests and a counter of responses answered from the server cache.
package client
