// Package serializer turns NPS entities into the frames the rpc transport
// sends and back. It defines a common interface and two implementations.
//
// Key Components:
//
//   - IRPCSerializer: Core interface that all serializer implementations must satisfy.
//     The output is always a complete NPS message, so the transport frames it by
//     the header length and correlates requests through the checksum field.
//
//   - binarySerializerImpl: The NPS wire format itself (lib/serialize). Recommended
//     for production use and required by clients that speak the original protocol.
//
//   - jsonSerializerImpl: The entity as json document inside a RawMessage envelope
//     that keeps the id and version of the entity. Useful for debugging with
//     packet captures, with larger frames and lower performance.
//
// Thread Safety:
//
//	All serializer implementations are stateless and safe for concurrent use
//	across multiple goroutines without additional synchronization.
//
// Usage:
//
//	Serializers are typically created once and reused throughout the application:
//
//	  s := serializer.NewBinarySerializer()
//	  data, err := s.Serialize(message.NewUserStatusRequest(42, message.OpUseCache))
//	  // ... send data ...
//	  var status message.UserStatus
//	  err = s.Deserialize(receivedData, &status)
package serializer
