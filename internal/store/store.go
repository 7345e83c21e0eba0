// Package store persists extension preferences in SQLite.
//
// Every value is a JSON document scoped by the owning extension's package
// name, so two extensions using the same key never see each other's data.
// Secure values live in a separate table with the same shape.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// Store is a SQLite database holding extension data.
type Store struct {
	db   *sql.DB
	qb   squirrel.StatementBuilderType
	path string
}

// New opens the database at dbPath, creating it and its parent directory if
// needed, and runs migrations.
func New(dbPath string) (*Store, error) {
	if dbPath != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps writes serialized and lets an in-memory
	// database survive between queries.
	db.SetMaxOpenConns(1)

	s := &Store{
		db:   db,
		qb:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
		path: dbPath,
	}

	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying database connection.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Path returns the database path.
func (s *Store) Path() string {
	return s.path
}

// Preferences returns the repository of plain preferences.
func (s *Store) Preferences() *KVRepository {
	return &KVRepository{db: s.db, qb: s.qb, table: tablePreferences}
}

// Secure returns the repository of secure preferences.
func (s *Store) Secure() *KVRepository {
	return &KVRepository{db: s.db, qb: s.qb, table: tableSecure}
}
