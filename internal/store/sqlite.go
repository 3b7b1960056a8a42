// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides contact directory and lookup audit persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist.
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS contacts (
			id TEXT PRIMARY KEY,
			username TEXT NOT NULL DEFAULT '',
			first_name TEXT NOT NULL DEFAULT '',
			last_name TEXT NOT NULL DEFAULT '',
			phone TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_contacts_phone
			ON contacts(phone);

		CREATE INDEX IF NOT EXISTS idx_contacts_username
			ON contacts(username);

		CREATE TABLE IF NOT EXISTS lookups (
			id TEXT PRIMARY KEY,
			operation TEXT NOT NULL,
			query TEXT NOT NULL,
			bot TEXT NOT NULL DEFAULT '',
			outcome TEXT NOT NULL,
			reply TEXT,
			created_at DATETIME NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_lookups_created
			ON lookups(created_at);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("executing schema: %w", err)
	}
	return nil
}

// UpsertContact inserts or updates a directory entry keyed by identity.
func (s *SQLiteStore) UpsertContact(ctx context.Context, contact *Contact) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO contacts (id, username, first_name, last_name, phone, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			username = excluded.username,
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			phone = excluded.phone,
			updated_at = excluded.updated_at`,
		contact.ID, contact.Username, contact.FirstName, contact.LastName, contact.Phone, now, now,
	)
	if err != nil {
		return fmt.Errorf("upserting contact: %w", err)
	}
	return nil
}

// GetContactByPhone returns the directory entry for a normalized phone number.
// Returns ErrContactNotFound if no entry exists and ErrContactAmbiguous if the
// number maps to more than one identity.
func (s *SQLiteStore) GetContactByPhone(ctx context.Context, phone string) (*Contact, error) {
	return s.getContacts(ctx, `phone = ?`, phone)
}

// GetContactByUsername returns the directory entry for a bare username.
func (s *SQLiteStore) GetContactByUsername(ctx context.Context, username string) (*Contact, error) {
	return s.getContacts(ctx, `username = ?`, username)
}

// getContacts runs a contact query expected to match exactly one row.
func (s *SQLiteStore) getContacts(ctx context.Context, where string, arg any) (*Contact, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, username, first_name, last_name, phone, created_at, updated_at
		FROM contacts WHERE `+where+` LIMIT 2`, arg)
	if err != nil {
		return nil, fmt.Errorf("querying contacts: %w", err)
	}
	defer rows.Close()

	var found []*Contact
	for rows.Next() {
		var c Contact
		if err := rows.Scan(&c.ID, &c.Username, &c.FirstName, &c.LastName, &c.Phone, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning contact: %w", err)
		}
		found = append(found, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading contacts: %w", err)
	}

	switch len(found) {
	case 0:
		return nil, ErrContactNotFound
	case 1:
		return found[0], nil
	default:
		return nil, ErrContactAmbiguous
	}
}

// SaveLookup appends an audit record for a resolve or search operation.
func (s *SQLiteStore) SaveLookup(ctx context.Context, lookup *Lookup) error {
	createdAt := lookup.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO lookups (id, operation, query, bot, outcome, reply, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		lookup.ID, lookup.Operation, lookup.Query, lookup.Bot, lookup.Outcome, lookup.Reply, createdAt,
	)
	if err != nil {
		return fmt.Errorf("saving lookup: %w", err)
	}
	return nil
}

// ListRecentLookups returns the most recent audit records, newest first.
func (s *SQLiteStore) ListRecentLookups(ctx context.Context, limit int) ([]*Lookup, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, operation, query, bot, outcome, reply, created_at
		FROM lookups ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying lookups: %w", err)
	}
	defer rows.Close()

	var lookups []*Lookup
	for rows.Next() {
		var l Lookup
		if err := rows.Scan(&l.ID, &l.Operation, &l.Query, &l.Bot, &l.Outcome, &l.Reply, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning lookup: %w", err)
		}
		lookups = append(lookups, &l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading lookups: %w", err)
	}
	return lookups, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
