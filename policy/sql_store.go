package policy

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Store resolves a named policy document.
type Store interface {
	Load(name string) (*Document, bool, error)
}

type sqlDialect string

const (
	dialectSQLite   sqlDialect = "sqlite"
	dialectPostgres sqlDialect = "postgres"
)

// SQLStore keeps raw policy documents in SQLite or Postgres, one row per
// document name. Documents are validated before they are written, so Load
// only fails on storage errors or on rows written by other tools.
type SQLStore struct {
	db      *sql.DB
	dialect sqlDialect
}

// NewSQLiteStore opens (and creates if needed) a SQLite policy store.
func NewSQLiteStore(dsn string) (*SQLStore, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		dsn = "policy-router.db"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite policy store: %w", err)
	}
	return newSQLStore(db, dialectSQLite)
}

// NewPostgresStore opens a Postgres policy store.
func NewPostgresStore(dsn string) (*SQLStore, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres policy store: %w", err)
	}
	return newSQLStore(db, dialectPostgres)
}

// newSQLStore takes ownership of db and creates the table if needed.
func newSQLStore(db *sql.DB, dialect sqlDialect) (*SQLStore, error) {
	s := &SQLStore{db: db, dialect: dialect}
	if err := s.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// OpenStore opens a store for driver "sqlite" or "postgres".
func OpenStore(driver, dsn string) (*SQLStore, error) {
	switch driver {
	case "sqlite":
		return NewSQLiteStore(dsn)
	case "postgres":
		return NewPostgresStore(dsn)
	default:
		return nil, fmt.Errorf("unknown policy store driver %q: use sqlite or postgres", driver)
	}
}

func (s *SQLStore) init() error {
	if err := s.db.Ping(); err != nil {
		return fmt.Errorf("ping %s policy store: %w", s.dialect, err)
	}

	ddl := `
CREATE TABLE IF NOT EXISTS policy_documents (
	name TEXT PRIMARY KEY,
	document TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL
);`

	if s.dialect == dialectPostgres {
		ddl = `
CREATE TABLE IF NOT EXISTS policy_documents (
	name TEXT PRIMARY KEY,
	document TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);`
	}

	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("initialize policy schema: %w", err)
	}
	return nil
}

// Save validates raw and upserts it under name.
func (s *SQLStore) Save(name string, raw []byte) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("policy document name is required")
	}
	if _, err := Parse(raw); err != nil {
		return fmt.Errorf("refusing to store %q: %w", name, err)
	}

	upsert := `
INSERT INTO policy_documents(name, document, updated_at)
VALUES(?, ?, ?)
ON CONFLICT(name) DO UPDATE SET document = excluded.document, updated_at = excluded.updated_at`

	if s.dialect == dialectPostgres {
		upsert = `
INSERT INTO policy_documents(name, document, updated_at)
VALUES($1, $2, $3)
ON CONFLICT(name) DO UPDATE SET document = EXCLUDED.document, updated_at = EXCLUDED.updated_at`
	}

	if _, err := s.db.Exec(upsert, name, string(raw), time.Now().UTC()); err != nil {
		return fmt.Errorf("save policy document: %w", err)
	}
	return nil
}

// Load returns the parsed document stored under name. The bool is false
// when no such document exists.
func (s *SQLStore) Load(name string) (*Document, bool, error) {
	query := `SELECT document FROM policy_documents WHERE name = ?`
	if s.dialect == dialectPostgres {
		query = `SELECT document FROM policy_documents WHERE name = $1`
	}

	var raw string
	if err := s.db.QueryRow(query, name).Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("load policy document: %w", err)
	}

	doc, err := Parse([]byte(raw))
	if err != nil {
		return nil, false, fmt.Errorf("decode policy document %q: %w", name, err)
	}
	return doc, true, nil
}

// Names lists stored document names in ascending order.
func (s *SQLStore) Names() ([]string, error) {
	rows, err := s.db.Query(`SELECT name FROM policy_documents ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list policy documents: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("scan policy document name: %w", err)
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

// Delete removes the document stored under name.
func (s *SQLStore) Delete(name string) error {
	query := `DELETE FROM policy_documents WHERE name = ?`
	if s.dialect == dialectPostgres {
		query = `DELETE FROM policy_documents WHERE name = $1`
	}
	if _, err := s.db.Exec(query, name); err != nil {
		return fmt.Errorf("delete policy document: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *SQLStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
