// Package common provides the configuration structures and the logger
// shared by the rpc server, the rpc client and the command line.
//
// Key Components:
//
//   - ServerConfig: Transport, serializer, status store, metrics and logging
//     settings of the login server. String renders it as the table printed
//     on startup.
//
//   - ClientConfig: Endpoints, timeouts, retries and connections per
//     endpoint for the status client.
//
//   - SocketConfig: TCP options applied by the tcp connectors on both sides.
//
//   - Logger: Custom implementation of the dragonboat logger interface that
//     writes "LEVEL | name | message" lines. InitLoggers installs it and sets
//     the level of every named logger of the module.
package common
