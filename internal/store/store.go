// Package store provides SQLite persistence for raw measurements and their
// multi-resolution rollups.
package store

import (
	"database/sql"
	"fmt"
	"os"

	_ "modernc.org/sqlite"
)

// Store wraps a SQLite database holding raw samples and rollup tables.
type Store struct {
	db   *sql.DB
	path string
}

// New opens or creates the database at path and applies any pending
// migrations. WAL mode keeps readers unblocked while the ingestion loop or
// the aggregator writes.
func New(path string) (*Store, error) {
	dsn := "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", path, err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// SizeMB returns the size of the database file in megabytes.
func (s *Store) SizeMB() (float64, error) {
	info, err := os.Stat(s.path)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", s.path, err)
	}
	return float64(info.Size()) / (1024 * 1024), nil
}

// Vacuum rewrites the database file to reclaim space freed by deletions.
func (s *Store) Vacuum() error {
	if _, err := s.db.Exec("VACUUM"); err != nil {
		return fmt.Errorf("vacuum: %w", err)
	}
	return nil
}
