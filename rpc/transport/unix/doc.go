// Package unix implements a transport layer for the login server's RPC system
// using Unix domain sockets. It provides cheap communication for processes
// running on the same machine, e.g. a login frontend next to the status server.
//
// This package extends the base transport layer with Unix socket-specific connectors
// while inheriting all core functionality like connection pooling, request
// correlation, and error handling from the base package.
//
// Key Components:
//
//   - clientConnector: Establishes connections using Unix domain sockets
//
//   - serverConnector: Creates Unix socket listeners and accepts connections.
//     An existing socket file at the endpoint is removed before listening.
package unix
