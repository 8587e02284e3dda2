// Package rpc provides the remote procedure call layer of the NPS login status
// service. Clients and servers exchange plain NPS messages, so any peer that
// speaks the NPS wire format can talk to the server.
//
// The package is organized into several subpackages:
//
//   - common: Configuration structures and logging shared by client and server.
//
//   - transport: Network communication abstractions with pluggable implementations
//     (TCP, Unix sockets). Frames are NPS messages correlated by sequence number.
//
//   - serializer: Entity serialization with two format options (Binary, JSON)
//     for converting between NPS entities and frames.
//
//   - client: The status client sending status requests and heartbeats.
//
//   - server: RPC server components that handle incoming requests, including
//     adapters for status requests and heartbeats.
package rpc
