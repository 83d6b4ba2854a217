package state

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

const schema = `
CREATE TABLE IF NOT EXISTS disabled_plugins (
	identifier  TEXT PRIMARY KEY,
	disabled_at DATETIME NOT NULL
);
`

// SQLiteStore persists the disabled set in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at dbPath. The caller is
// responsible for calling Close.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Load implements Store.
func (s *SQLiteStore) Load() ([]string, error) {
	rows, err := s.db.Query(`SELECT identifier FROM disabled_plugins ORDER BY identifier`)
	if err != nil {
		return nil, fmt.Errorf("query plugin state: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan plugin state: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Save implements Store. Identifiers already present keep their timestamp.
func (s *SQLiteStore) Save(disabled []string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	del := `DELETE FROM disabled_plugins`
	args := make([]any, len(disabled))
	if len(disabled) > 0 {
		del += ` WHERE identifier NOT IN (?` + strings.Repeat(`,?`, len(disabled)-1) + `)`
		for i, id := range disabled {
			args[i] = id
		}
	}
	if _, err := tx.Exec(del, args...); err != nil {
		return fmt.Errorf("save plugin state: %w", err)
	}

	now := time.Now().UTC()
	for _, id := range disabled {
		if _, err := tx.Exec(
			`INSERT OR IGNORE INTO disabled_plugins (identifier, disabled_at) VALUES (?, ?)`, id, now,
		); err != nil {
			return fmt.Errorf("save plugin state: %w", err)
		}
	}
	return tx.Commit()
}

// Close releases the underlying database connection.
func (s *SQLiteStore) Close() error { return s.db.Close() }
