// Package transport defines the interfaces between the rpc server and client
// and the network. A transport moves complete NPS messages: the 12 byte header
// of every message already carries its length, so no additional framing is
// needed.
//
// Requests and responses are correlated by the checksum field of the header.
// The client transport writes a sequence number into it and the server
// transport answers with the sequence number of the request. Entities sent
// over a transport therefore always use sequence semantics for that field.
//
// Implementations live in the subpackages:
//
//   - base: protocol independent client and server
//   - tcp: TCP connector with configurable socket options
//   - unix: Unix domain socket connector
package transport
