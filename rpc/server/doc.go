// Package server implements the RPC server of the NPS login status service.
// It decodes incoming NPS messages, hands them to the adapter registered for
// their opcode and encodes the adapter's response.
//
// The package focuses on:
//   - Server-side handling of status and heartbeat requests
//   - Adapter pattern to decouple application logic from RPC mechanisms
//   - Creation of the status store (SQLite source plus cache) from the configuration
//   - Request metrics in prometheus format
//
// Key Components:
//
//   - IRPCServerAdapter: Interface defining the contract for all server adapters.
//     NewRequest returns the entity a request is decoded into, Handle turns it into
//     the response entity.
//
//   - NewUserStatusAdapter: Answers NPS_GET_USER_STATUS from a store.IStatusStore.
//     The response id is NPS_USER_VALID, NPS_USER_INVALID or NPS_USER_BANNED, store
//     failures are answered with an error message.
//
//   - NewHeartbeatAdapter: Answers NPS_HEARTBEAT with NPS_ACK.
//
//   - NewRPCServer: Factory function creating a configured server with the specified
//     transport and serializer mechanisms.
//
// Usage Example:
//
//	config := common.ServerConfig{
//	  Transport:     "tcp",
//	  Endpoint:      "0.0.0.0:8080",
//	  TimeoutSecond: 5,
//	  DBPath:        "./data/status.db",
//	  LogLevel:      "info",
//	}
//
//	s := server.NewRPCServer(
//	  config,
//	  tcp.NewTCPServerTransport(),
//	  serializer.NewBinarySerializer(),
//	)
//
//	if err := s.Serve(); err != nil {
//	  log.Fatalf("Server error: %v", err)
//	}
//
// Error Responses:
//
//	Requests with an unknown opcode, undecodable requests and unknown cache
//	operations are answered with an NPS_UNDEFINED_ERROR raw message, store
//	failures with NPS_DB_ERROR. The payload is the error text. Every response
//	carries the sequence number of its request.
//
// Metrics:
//
//	If MetricsEndpoint is set, GET /metrics serves the request counters and
//	duration histograms per opcode, the cache counters and the process metrics.
//
// Thread Safety:
//
//	The server implementation is thread-safe and can handle concurrent requests
//	across multiple connections. Each request is processed independently.
//	Serve should be called only once.
package server
