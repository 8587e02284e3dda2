// Package store provides the user status store used by the login server.
// It answers UserStatusRequest messages from a cache in front of an
// authoritative source and reports failures with a typed error.
//
// Key Components:
//
//   - IStatusSource Interface: Loads the status of one customer from the
//     authoritative backend. Every call builds a new message.UserStatus that
//     the caller owns.
//
//   - IStatusStore Interface: Answers requests according to their cache
//     operation (use cache, refresh, clear one entry, clear all) and exposes
//     hit and miss counters.
//
//   - Error System: Errors carry a RetCode so the rpc layer can map them to
//     response opcodes (NotFound becomes NPS_USER_INVALID, everything else
//     NPS_DB_ERROR) without parsing messages.
//
// Implementations:
//
//	- SQL Source (sqlstore): Customers and their ban/gag records in a SQLite
//	  database. Available in the "github.com/ValentinKolb/nps/lib/store/sqlstore" package.
//
//	- Caching Store (cstore): Keeps reference counted UserStatus values in a
//	  refcount.Map with a TTL and a size bound, loading misses from any
//	  IStatusSource. Available in the "github.com/ValentinKolb/nps/lib/store/cstore" package.
package store
