package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"github.com/ValentinKolb/nps/lib/message"
	"github.com/ValentinKolb/nps/lib/store"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// schema is applied statement by statement on Open
var schema = []string{
	`CREATE TABLE IF NOT EXISTS customers (
		customer_id    INTEGER PRIMARY KEY,
		persona_id     INTEGER NOT NULL DEFAULT 0,
		session_key    BLOB,
		session_expiry INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS user_actions (
		customer_id INTEGER NOT NULL REFERENCES customers(customer_id) ON DELETE CASCADE,
		kind        TEXT    NOT NULL CHECK (kind IN ('ban', 'gag')),
		issued_by   INTEGER NOT NULL DEFAULT 0,
		reason      TEXT    NOT NULL DEFAULT '',
		issued_at   INTEGER NOT NULL,
		expires_at  INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (customer_id, kind)
	)`,
}

// Customer is one row of the customers table.
type Customer struct {
	CustomerID    uint32
	PersonaID     uint32
	SessionKey    []byte
	SessionExpiry int64
}

// Store is a SQLite backed store.IStatusSource.
type Store struct {
	mu   sync.Mutex // serializes writes
	db   *sql.DB
	path string

	now func() time.Time
}

// compile time check
var _ store.IStatusSource = (*Store)(nil)

// Open opens or creates the database at path and applies the schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}

	// SQLite doesn't support concurrent writers
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		store.Logger.Warningf("failed to enable WAL mode: %v", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		store.Logger.Warningf("failed to enable foreign keys: %v", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply schema: %w", err)
		}
	}

	store.Logger.Infof("status database opened at %s", path)
	return &Store{db: db, path: path, now: time.Now}, nil
}

// Path returns the database file.
func (s *Store) Path() string { return s.path }

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// --------------------------------------------------------------------------
// IStatusSource
// --------------------------------------------------------------------------

// LoadUserStatus builds the status of a customer from the customers row and
// every action that has not expired yet.
func (s *Store) LoadUserStatus(ctx context.Context, customerID uint32) (*message.UserStatus, error) {
	var (
		personaID uint32
		key       []byte
		expiry    int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT persona_id, session_key, session_expiry FROM customers WHERE customer_id = ?`,
		customerID,
	).Scan(&personaID, &key, &expiry)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.Errorf(store.RetCNotFound, "customer %d does not exist", customerID)
	}
	if err != nil {
		return nil, store.Errorf(store.RetCInternalError, "load customer %d: %v", customerID, err)
	}

	status := message.NewUserStatus(customerID)
	status.SetPersonaID(personaID)
	status.SetSessionKey(message.NewSessionKey(key, expiry))

	rows, err := s.db.QueryContext(ctx,
		`SELECT kind, issued_by, reason, issued_at, expires_at FROM user_actions
		 WHERE customer_id = ? AND (expires_at = 0 OR expires_at > ?)`,
		customerID, s.now().Unix(),
	)
	if err != nil {
		return nil, store.Errorf(store.RetCInternalError, "load actions of %d: %v", customerID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			kind string
			a    message.UserAction
		)
		if err := rows.Scan(&kind, &a.IssuedBy, &a.Reason, &a.IssuedAt, &a.ExpiresAt); err != nil {
			return nil, store.Errorf(store.RetCInternalError, "scan action of %d: %v", customerID, err)
		}
		switch message.ActionKind(kind) {
		case message.ActionBan:
			status.SetBan(a)
		case message.ActionGag:
			status.SetGag(a)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, store.Errorf(store.RetCInternalError, "iterate actions of %d: %v", customerID, err)
	}
	return status, nil
}

// --------------------------------------------------------------------------
// Administration
// --------------------------------------------------------------------------

// UpsertCustomer inserts or replaces a customer row. Existing actions are kept.
func (s *Store) UpsertCustomer(ctx context.Context, c Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO customers (customer_id, persona_id, session_key, session_expiry)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(customer_id) DO UPDATE SET
			persona_id = excluded.persona_id,
			session_key = excluded.session_key,
			session_expiry = excluded.session_expiry`,
		c.CustomerID, c.PersonaID, c.SessionKey, c.SessionExpiry,
	)
	if err != nil {
		return store.Errorf(store.RetCInternalError, "upsert customer %d: %v", c.CustomerID, err)
	}
	return nil
}

// SetAction issues a ban or gag, replacing an earlier one of the same kind.
func (s *Store) SetAction(ctx context.Context, customerID uint32, kind message.ActionKind, a message.UserAction) error {
	if kind != message.ActionBan && kind != message.ActionGag {
		return store.Errorf(store.RetCInvalidOperation, "unknown action kind %q", kind)
	}
	if !a.IsValid() {
		return store.Errorf(store.RetCInvalidOperation, "action without issue date")
	}

	return s.transaction(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM customers WHERE customer_id = ?`, customerID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return store.Errorf(store.RetCNotFound, "customer %d does not exist", customerID)
		}
		if err != nil {
			return store.Errorf(store.RetCInternalError, "lookup customer %d: %v", customerID, err)
		}

		_, err = tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO user_actions (customer_id, kind, issued_by, reason, issued_at, expires_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			customerID, string(kind), a.IssuedBy, a.Reason, a.IssuedAt, a.ExpiresAt,
		)
		if err != nil {
			return store.Errorf(store.RetCInternalError, "set %s of %d: %v", kind, customerID, err)
		}
		return nil
	})
}

// ClearAction lifts a ban or gag. It returns false if none was set.
func (s *Store) ClearAction(ctx context.Context, customerID uint32, kind message.ActionKind) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM user_actions WHERE customer_id = ? AND kind = ?`,
		customerID, string(kind),
	)
	if err != nil {
		return false, store.Errorf(store.RetCInternalError, "clear %s of %d: %v", kind, customerID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, store.Errorf(store.RetCInternalError, "clear %s of %d: %v", kind, customerID, err)
	}
	return n > 0, nil
}

// CountCustomers returns the number of customer rows.
func (s *Store) CountCustomers(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM customers`).Scan(&n); err != nil {
		return 0, store.Errorf(store.RetCInternalError, "count customers: %v", err)
	}
	return n, nil
}

// transaction executes fn within a database transaction.
func (s *Store) transaction(ctx context.Context, fn func(tx *sql.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return store.Errorf(store.RetCInternalError, "failed to begin transaction: %v", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return store.Errorf(store.RetCInternalError, "commit: %v", err)
	}
	return nil
}
