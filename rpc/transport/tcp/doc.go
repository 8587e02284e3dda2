// Package tcp implements TCP socket-based transport for the login server's
// RPC system. It provides concrete implementations of the base package's connector
// interfaces and applies the socket options of common.SocketConfig to every
// connection on both sides.
//
// This package builds on the base package's transport functionality, inheriting its
// connection pooling, buffer reuse, and request correlation. See the base package
// documentation for detailed information on the underlying transport mechanisms.
//
// Key Components:
//
//   - clientConnector: TCP-specific implementation of base.IClientConnector
//
//   - serverConnector: TCP-specific implementation of base.IServerConnector
package tcp
