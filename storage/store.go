package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateBallot is returned when inserting a ballot would violate
	// the (voter_id, election_id) uniqueness constraint.
	ErrDuplicateBallot = errors.New("ballot already exists for voter and election")
)

// Store is the sqlite-backed persistence layer. All cross-request state of
// the commit protocol lives here; there is no in-memory-only state.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the database at dsn and ensures the
// schema exists. Use "file::memory:?cache=shared" for tests.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// The ledger has a single logical writer; one connection avoids
	// SQLITE_BUSY races between the commit worker and readers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := CreateSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// isUniqueViolation reports whether err is a sqlite UNIQUE constraint
// failure mentioning every given column.
func isUniqueViolation(err error, columns ...string) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	if !strings.Contains(msg, "UNIQUE constraint failed") {
		return false
	}
	for _, col := range columns {
		if !strings.Contains(msg, col) {
			return false
		}
	}
	return true
}
