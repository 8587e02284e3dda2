// Package message defines the concrete NPS messages exchanged with the login
// server and the registry that maps wire ids to them.
//
// Key Components:
//
//   - Opcode: The u16 message id. The constants follow the NPS numbering
//     (0x1xx lobby requests, 0x2xx lobby replies, 0x5xx login requests,
//     0x6xx login replies).
//
//   - UserStatusRequest: Customer id plus a cache Operation.
//
//   - UserStatus: Customer and persona ids, cache-hit flag and three nested
//     members (ban, gag, session key) written without their own headers.
//
//   - SessionKey: Up to SessionKeyLen raw key bytes and an expiry. Validity
//     only checks that an expiry is set.
//
//   - RawMessage / RawMessageGC: Opaque payloads. RawMessage borrows the
//     memory it was given, RawMessageGC keeps a private pooled copy.
//
//   - New / Decode: Build an empty entity for a wire id, or decode a
//     complete message into the right type.
//
// Every message also implements json.Marshaler for inspection and for the
// json rpc serializer.
//
// Thread Safety:
//
//	Messages are plain values and not safe for concurrent mutation. Share
//	them read-only, or wrap them in a refcount.Handle.
package message
