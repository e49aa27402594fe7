package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore keeps the vocabulary record as a single row of a key/value
// table in a SQLite database.
type SQLiteStore struct {
	conn *sql.DB
	key  string
}

const schema = `
CREATE TABLE IF NOT EXISTS records (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
`

// NewSQLiteStore opens (creating if needed) the database at dbPath and
// initializes the schema. key names the row holding the record; empty means
// DefaultKey.
func NewSQLiteStore(dbPath, key string) (*SQLiteStore, error) {
	if key == "" {
		key = DefaultKey
	}

	conn, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if dbPath == ":memory:" {
		// Every connection to :memory: is a separate database, so pin the
		// pool to one connection that never gets recycled.
		conn.SetMaxOpenConns(1)
		conn.SetMaxIdleConns(1)
	} else {
		conn.SetMaxOpenConns(4)
		conn.SetMaxIdleConns(2)

		if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{conn: conn, key: key}, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

// Load returns the stored record, or false if the row does not exist
func (s *SQLiteStore) Load(ctx context.Context) ([]byte, bool, error) {
	query := `SELECT value FROM records WHERE key = ?`

	var value string
	err := s.conn.QueryRowContext(ctx, query, s.key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read record %q: %w", s.key, err)
	}

	return []byte(value), true, nil
}

// Save writes the record, replacing any previous value
func (s *SQLiteStore) Save(ctx context.Context, data []byte) error {
	query := `
INSERT INTO records (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`

	if _, err := s.conn.ExecContext(ctx, query, s.key, string(data)); err != nil {
		return fmt.Errorf("failed to write record %q: %w", s.key, err)
	}

	return nil
}
