// Package kvstore provides the durable, namespaced u16 key-value area that
// survives power loss. Handles are short-lived: opened for one load or one
// save, then closed. Nothing holds a handle across a blocking call.
package kvstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

var (
	// ErrNotFound reports an absent namespace or key.
	ErrNotFound = errors.New("kvstore: not found")
	// ErrNeedsErase reports a backing file that cannot be used until erased.
	ErrNeedsErase = errors.New("kvstore: backing store needs erase")
	// ErrReadOnly reports a write attempted through a read-only handle.
	ErrReadOnly = errors.New("kvstore: handle is read-only")
)

// Mode selects how a namespace handle is opened.
type Mode int

const (
	ReadOnly Mode = iota
	ReadWrite
)

// Store manages the SQLite file backing all namespaces.
type Store struct {
	path string
	db   *sql.DB
}

// Open initializes the backing database, creating directories as needed.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return &Store{path: path, db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Init ensures the baseline schema exists. A corrupt backing file surfaces as
// ErrNeedsErase so the caller can erase and retry once.
func (s *Store) Init(ctx context.Context) error {
	const stmt = `CREATE TABLE IF NOT EXISTS kv_u16 (
		namespace TEXT NOT NULL,
		key TEXT NOT NULL,
		value INTEGER NOT NULL,
		updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now')),
		PRIMARY KEY (namespace, key)
	);`

	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		if isCorruption(err) {
			return ErrNeedsErase
		}
		return fmt.Errorf("init kvstore schema: %w", err)
	}
	return nil
}

// Erase removes the backing file entirely. The store must be re-opened and
// re-initialized afterwards.
func (s *Store) Erase() error {
	if s.db != nil {
		_ = s.db.Close()
		s.db = nil
	}
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("erase kvstore: %w", err)
	}
	return nil
}

// Reopen re-establishes the database connection after an Erase.
func (s *Store) Reopen() error {
	ns, err := Open(s.path)
	if err != nil {
		return err
	}
	s.db = ns.db
	return nil
}

func isCorruption(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "malformed") || strings.Contains(msg, "not a database")
}

// Handle is a short-lived view over one namespace. Read-only handles can only
// get; read-write handles accumulate sets inside a transaction that becomes
// durable at Commit.
type Handle struct {
	store     *Store
	namespace string
	mode      Mode
	tx        *sql.Tx
	committed bool
	closed    bool
}

// OpenNamespace opens a handle on a namespace. In ReadOnly mode a namespace
// that has never been written reports ErrNotFound, mirroring first-boot.
func (s *Store) OpenNamespace(ctx context.Context, namespace string, mode Mode) (*Handle, error) {
	if s.db == nil {
		return nil, fmt.Errorf("kvstore not initialized")
	}

	h := &Handle{store: s, namespace: namespace, mode: mode}

	if mode == ReadOnly {
		var n int
		err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM kv_u16 WHERE namespace = ?;`, namespace).Scan(&n)
		if err != nil {
			return nil, fmt.Errorf("probe namespace %q: %w", namespace, err)
		}
		if n == 0 {
			return nil, ErrNotFound
		}
		return h, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("open namespace %q read-write: %w", namespace, err)
	}
	h.tx = tx
	return h, nil
}

// GetU16 reads one key. A missing key reports ErrNotFound; the caller decides
// whether that defaults or fails.
func (h *Handle) GetU16(ctx context.Context, key string) (uint16, error) {
	if h.closed {
		return 0, fmt.Errorf("kvstore: handle closed")
	}

	row := h.queryRow(ctx,
		`SELECT value FROM kv_u16 WHERE namespace = ? AND key = ?;`, h.namespace, key)

	var v int64
	if err := row.Scan(&v); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("get %s/%s: %w", h.namespace, key, err)
	}
	if v < 0 || v > 0xFFFF {
		return 0, fmt.Errorf("get %s/%s: value %d out of u16 range", h.namespace, key, v)
	}
	return uint16(v), nil
}

// SetU16 stages one key write. Durable only after Commit.
func (h *Handle) SetU16(ctx context.Context, key string, value uint16) error {
	if h.closed {
		return fmt.Errorf("kvstore: handle closed")
	}
	if h.mode != ReadWrite || h.tx == nil {
		return ErrReadOnly
	}

	_, err := h.tx.ExecContext(ctx,
		`INSERT INTO kv_u16 (namespace, key, value) VALUES (?, ?, ?)
		 ON CONFLICT (namespace, key) DO UPDATE
		 SET value = excluded.value, updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now');`,
		h.namespace, key, int64(value))
	if err != nil {
		return fmt.Errorf("set %s/%s: %w", h.namespace, key, err)
	}
	return nil
}

// Commit makes all staged writes durable.
func (h *Handle) Commit() error {
	if h.mode != ReadWrite || h.tx == nil {
		return ErrReadOnly
	}
	if err := h.tx.Commit(); err != nil {
		return fmt.Errorf("commit %s: %w", h.namespace, err)
	}
	h.committed = true
	return nil
}

// Close releases the handle. Uncommitted writes are rolled back, so an aborted
// save leaves prior values untouched.
func (h *Handle) Close() error {
	if h.closed {
		return nil
	}
	h.closed = true
	if h.tx != nil && !h.committed {
		if err := h.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			return fmt.Errorf("rollback %s: %w", h.namespace, err)
		}
	}
	return nil
}

func (h *Handle) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	if h.tx != nil {
		return h.tx.QueryRowContext(ctx, query, args...)
	}
	return h.store.db.QueryRowContext(ctx, query, args...)
}
