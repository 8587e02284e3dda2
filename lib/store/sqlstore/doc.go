// Package sqlstore implements store.IStatusSource on a SQLite database
// (modernc.org/sqlite, no cgo).
//
// The database holds two tables: customers (persona id and session key per
// customer id) and user_actions (at most one ban and one gag per customer).
// Expired actions stay in the table but are not loaded. Writes are
// serialized through a mutex and a single connection, reads run in WAL mode.
package sqlstore
