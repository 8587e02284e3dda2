// Package base provides a foundation for transport layers of the login server,
// implementing core functionality for RPC communication independent of the specific
// network protocol (TCP, Unix sockets, etc.). It serves as a base layer that can be
// extended with protocol-specific connectors.
//
// The package focuses on:
//   - Protocol-agnostic client and server transport implementations
//   - Connection pooling and pooled frame buffers
//   - Response correlation through the sequence number in the message header
//   - Robust error handling with retries and reconnection logic
//
// Key Components:
//
//   - IClientConnector/IServerConnector: Interfaces for protocol-specific operations
//     that allow extending the base transport with different network protocols.
//
//   - clientTransport: Core client implementation that manages multiple connections
//     with round-robin load balancing. Requests waiting on a connection that breaks
//     fail immediately, the connection is then redialed with exponential backoff.
//
//   - serverTransport: Core server implementation that accepts connections and
//     hands every request to the registered handler. Each connection processes up
//     to ServerConfig.Workers requests concurrently. Close drains the in-flight
//     requests of every connection before returning.
//
// Frame Format:
//
//	Frames are plain NPS messages. The length field of the header bounds the frame
//	to 64 KiB, so every frame is read into a buffer of the serialize package pool
//	and released after the handler (server) or the caller (client) is done.
//
// Thread Safety:
//
//	All public methods are thread-safe. The client transport uses atomic operations
//	and mutexes to ensure concurrent access safety, while the server creates a
//	dedicated goroutine for each connection.
package base
