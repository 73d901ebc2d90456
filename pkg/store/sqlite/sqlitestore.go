package sqlitestore

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	_ "embed" // for side effect

	_ "modernc.org/sqlite" // for side effect

	"github.com/jmoiron/sqlx"
)

// schemaVersion is stored in PRAGMA user_version once schema.sql has been
// applied. A database at version 0 is empty.
const schemaVersion = 1

// errors form database
var (
	// ErrNoRowsAffected by the operation.
	ErrNoRowsAffected = errors.New("no rows affected by operation")

	// ErrConfigNotFound means the configuration row has never been written
	ErrConfigNotFound = errors.New("cellular configuration not found")

	// ErrDBAlreadyClosed is returned if you call Close and the database is either already closed or it was
	// never opened in the first place.
	ErrDBAlreadyClosed = errors.New("database already closed")

	// ErrSchemaVersion means the file was written by a newer release
	ErrSchemaVersion = errors.New("unsupported database schema version")
)

//go:embed schema.sql
var schema string

type SqliteStore struct {
	dbSpec string
	mu     sync.RWMutex
	db     *sqlx.DB
}

// New opens the configuration database at dbSpec. An empty database gets the
// schema, and the returned flag tells the caller it was created.
func New(dbSpec string) (*SqliteStore, bool, error) {
	db, err := sqlx.Open("sqlite", dbSpec)
	if err != nil {
		return nil, false, fmt.Errorf("unable to open database: %w", err)
	}

	// a single connection keeps an in-memory database alive between calls
	// and serializes file writes without SQLITE_BUSY
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, false, fmt.Errorf("unable to ping database: %w", err)
	}

	created, err := migrate(db)
	if err != nil {
		db.Close()
		return nil, false, err
	}
	if created {
		log.Printf("created database [%s]", dbSpec)
	}

	return &SqliteStore{
		dbSpec: dbSpec,
		db:     db,
	}, created, nil
}

// Close the sqliteStore.
func (s *SqliteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return ErrDBAlreadyClosed
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// migrate applies the schema to an empty database and reports whether it did
func migrate(db *sqlx.DB) (bool, error) {
	var version int
	if err := db.Get(&version, "PRAGMA user_version"); err != nil {
		return false, fmt.Errorf("unable to read schema version: %w", err)
	}

	switch {
	case version == schemaVersion:
		return false, nil
	case version > schemaVersion:
		return false, fmt.Errorf("%w: %d", ErrSchemaVersion, version)
	}

	if err := createSchema(db); err != nil {
		return false, fmt.Errorf("unable to create schema: %w", err)
	}
	return true, nil
}

// createSchema runs every statement of schema.sql and stamps the version in
// one transaction, so a failure leaves the database empty.
func createSchema(db *sqlx.DB) error {
	tx, err := db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for n, statement := range schemaStatements(schema) {
		if _, err := tx.Exec(statement); err != nil {
			return fmt.Errorf("statement %d failed: %q: %w", n+1, statement, err)
		}
	}

	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return err
	}
	return tx.Commit()
}

// schemaStatements splits s on ';' after dropping "--" comments. Blank
// statements are left out.
func schemaStatements(s string) []string {
	var sb strings.Builder
	for _, line := range strings.Split(s, "\n") {
		if i := strings.Index(line, "--"); i >= 0 {
			line = line[:i]
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		sb.WriteString(strings.TrimRight(line, " \t\r"))
		sb.WriteByte('\n')
	}

	var statements []string
	for _, statement := range strings.Split(sb.String(), ";") {
		if statement = strings.TrimSpace(statement); statement != "" {
			statements = append(statements, statement)
		}
	}
	return statements
}

// CheckForZeroRowsAffected turns a write that touched nothing into
// ErrNoRowsAffected. err from the statement itself takes precedence.
func CheckForZeroRowsAffected(r sql.Result, err error) error {
	if err != nil || r == nil {
		return err
	}
	affected, err := r.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNoRowsAffected
	}
	return nil
}
