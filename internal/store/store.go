// ABOUTME: Store interface and data types for courier persistence
// ABOUTME: Defines Contact, Lookup and the Store interface for database operations

package store

import (
	"context"
	"errors"
	"time"
)

// ErrContactNotFound is returned when no contact matches the query.
var ErrContactNotFound = errors.New("contact not found")

// ErrContactAmbiguous is returned when a query matches more than one contact.
var ErrContactAmbiguous = errors.New("contact query is ambiguous")

// Contact is a directory entry mapping a phone number to a channel identity.
type Contact struct {
	ID        string // channel-native identifier, e.g. "@who:matrix.org"
	Username  string
	FirstName string
	LastName  string
	Phone     string // normalized
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Lookup outcome constants.
const (
	LookupOutcomeReplied  = "replied"
	LookupOutcomeTimeout  = "timeout"
	LookupOutcomeResolved = "resolved"
	LookupOutcomeFailed   = "failed"
)

// Lookup is an audit record of a single resolve or search operation.
// Only metadata and the reply text are kept; no conversation history.
type Lookup struct {
	ID        string
	Operation string // "resolve_phone", "bot_send", "search_via_bot"
	Query     string
	Bot       string
	Outcome   string
	Reply     *string
	CreatedAt time.Time
}

// Store defines the interface for contact directory and audit persistence.
type Store interface {
	// Contacts
	UpsertContact(ctx context.Context, contact *Contact) error
	GetContactByPhone(ctx context.Context, phone string) (*Contact, error)
	GetContactByUsername(ctx context.Context, username string) (*Contact, error)

	// Lookup audit ledger
	SaveLookup(ctx context.Context, lookup *Lookup) error
	ListRecentLookups(ctx context.Context, limit int) ([]*Lookup, error)

	// Close releases any resources held by the store
	Close() error
}
