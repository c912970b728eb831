// Package statedb persists session records in SQLite so a restarted panel
// can list what was running before.
package statedb

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SchemaVersion tracks the current database schema version.
// Bump this when adding migrations.
const SchemaVersion = 1

// StateDB wraps a SQLite database for session persistence.
// Thread-safe for concurrent use from multiple goroutines within one process.
// Multiple OS processes can safely read/write via WAL mode + busy timeout.
type StateDB struct {
	db *sql.DB
}

// SessionRow represents a session row in the database.
type SessionRow struct {
	ID           string
	Name         string
	Command      string
	Cwd          string
	CreatedAt    time.Time
	LastAccessed time.Time
}

// Open creates or opens a SQLite database at dbPath with WAL mode and busy timeout.
func Open(dbPath string) (*StateDB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("statedb: mkdir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("statedb: open: %w", err)
	}

	// WAL mode: allows concurrent readers while writing
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("statedb: wal mode: %w", err)
	}

	// Busy timeout: wait up to 5s if another process holds a lock
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("statedb: busy timeout: %w", err)
	}

	return &StateDB{db: db}, nil
}

// Close checkpoints WAL and closes the database.
func (s *StateDB) Close() error {
	_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return s.db.Close()
}

// DB returns the underlying sql.DB for advanced use cases (e.g., testing).
func (s *StateDB) DB() *sql.DB {
	return s.db
}

// Migrate creates tables if they don't exist.
func (s *StateDB) Migrate() error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("statedb: begin migrate: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS metadata (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("statedb: create metadata: %w", err)
	}

	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			id            TEXT PRIMARY KEY,
			name          TEXT NOT NULL,
			command       TEXT NOT NULL DEFAULT '',
			cwd           TEXT NOT NULL DEFAULT '',
			created_at    INTEGER NOT NULL,
			last_accessed INTEGER NOT NULL DEFAULT 0
		)
	`); err != nil {
		return fmt.Errorf("statedb: create sessions: %w", err)
	}

	if _, err := tx.Exec(
		`INSERT OR REPLACE INTO metadata (key, value) VALUES ('schema_version', ?)`,
		fmt.Sprintf("%d", SchemaVersion),
	); err != nil {
		return fmt.Errorf("statedb: set schema version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("statedb: commit migrate: %w", err)
	}
	return nil
}

// Upsert inserts or replaces a session row.
func (s *StateDB) Upsert(row *SessionRow) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO sessions (id, name, command, cwd, created_at, last_accessed)
		VALUES (?, ?, ?, ?, ?, ?)`,
		row.ID, row.Name, row.Command, row.Cwd,
		row.CreatedAt.Unix(), row.LastAccessed.Unix(),
	)
	if err != nil {
		return fmt.Errorf("statedb: upsert session: %w", err)
	}
	return nil
}

// Delete removes a session row. Deleting an unknown id is not an error.
func (s *StateDB) Delete(id string) error {
	if _, err := s.db.Exec(`DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("statedb: delete session: %w", err)
	}
	return nil
}

// List returns all session rows, oldest first.
func (s *StateDB) List() ([]*SessionRow, error) {
	rows, err := s.db.Query(`
		SELECT id, name, command, cwd, created_at, last_accessed
		FROM sessions ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("statedb: list sessions: %w", err)
	}
	defer rows.Close()

	var out []*SessionRow
	for rows.Next() {
		var r SessionRow
		var created, accessed int64
		if err := rows.Scan(&r.ID, &r.Name, &r.Command, &r.Cwd, &created, &accessed); err != nil {
			return nil, fmt.Errorf("statedb: scan session: %w", err)
		}
		r.CreatedAt = time.Unix(created, 0)
		r.LastAccessed = time.Unix(accessed, 0)
		out = append(out, &r)
	}
	return out, rows.Err()
}

// Touch updates last_accessed for a session to now.
func (s *StateDB) Touch(id string) error {
	if _, err := s.db.Exec(
		`UPDATE sessions SET last_accessed = ? WHERE id = ?`,
		time.Now().Unix(), id,
	); err != nil {
		return fmt.Errorf("statedb: touch session: %w", err)
	}
	return nil
}
