// ABOUTME: Tests for the SQLite-backed store
// ABOUTME: Uses a real temp-dir database; covers contacts, ambiguity and the lookup ledger

package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "courier.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStore_CreatesParentDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deeply", "courier.db")
	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())
}

func TestUpsertAndGetContact(t *testing.T) {
	s := newTestStore(t)

	contact := &Contact{
		ID:        "@who:example.org",
		Username:  "who",
		FirstName: "Wanda",
		LastName:  "Ho",
		Phone:     "+15551234567",
	}
	require.NoError(t, s.UpsertContact(t.Context(), contact))

	byPhone, err := s.GetContactByPhone(t.Context(), "+15551234567")
	require.NoError(t, err)
	assert.Equal(t, "@who:example.org", byPhone.ID)
	assert.Equal(t, "Wanda", byPhone.FirstName)
	assert.False(t, byPhone.CreatedAt.IsZero())

	byUsername, err := s.GetContactByUsername(t.Context(), "who")
	require.NoError(t, err)
	assert.Equal(t, "@who:example.org", byUsername.ID)
}

func TestUpsertContact_UpdatesExisting(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.UpsertContact(t.Context(), &Contact{
		ID:    "@who:example.org",
		Phone: "+15551234567",
	}))
	require.NoError(t, s.UpsertContact(t.Context(), &Contact{
		ID:       "@who:example.org",
		Username: "who_renamed",
		Phone:    "+15559990000",
	}))

	got, err := s.GetContactByPhone(t.Context(), "+15559990000")
	require.NoError(t, err)
	assert.Equal(t, "who_renamed", got.Username)

	_, err = s.GetContactByPhone(t.Context(), "+15551234567")
	assert.ErrorIs(t, err, ErrContactNotFound, "old phone must no longer resolve")
}

func TestGetContact_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetContactByPhone(t.Context(), "+15550000000")
	assert.ErrorIs(t, err, ErrContactNotFound)

	_, err = s.GetContactByUsername(t.Context(), "nobody")
	assert.ErrorIs(t, err, ErrContactNotFound)
}

func TestGetContactByPhone_Ambiguous(t *testing.T) {
	s := newTestStore(t)

	// Two identities sharing one number
	require.NoError(t, s.UpsertContact(t.Context(), &Contact{ID: "@one:example.org", Phone: "+15551234567"}))
	require.NoError(t, s.UpsertContact(t.Context(), &Contact{ID: "@two:example.org", Phone: "+15551234567"}))

	_, err := s.GetContactByPhone(t.Context(), "+15551234567")
	assert.ErrorIs(t, err, ErrContactAmbiguous)
}

func TestSaveAndListLookups(t *testing.T) {
	s := newTestStore(t)

	reply := "found it"
	base := time.Now().UTC().Add(-time.Hour)
	for i, outcome := range []string{LookupOutcomeFailed, LookupOutcomeTimeout, LookupOutcomeReplied} {
		lookup := &Lookup{
			ID:        uuid.New().String(),
			Operation: "search_via_bot",
			Query:     "+15551234567",
			Bot:       "@a_bot:example.org",
			Outcome:   outcome,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if outcome == LookupOutcomeReplied {
			lookup.Reply = &reply
		}
		require.NoError(t, s.SaveLookup(t.Context(), lookup))
	}

	lookups, err := s.ListRecentLookups(t.Context(), 10)
	require.NoError(t, err)
	require.Len(t, lookups, 3)

	// Newest first
	assert.Equal(t, LookupOutcomeReplied, lookups[0].Outcome)
	require.NotNil(t, lookups[0].Reply)
	assert.Equal(t, "found it", *lookups[0].Reply)
	assert.Equal(t, LookupOutcomeFailed, lookups[2].Outcome)
	assert.Nil(t, lookups[2].Reply)
}

func TestListRecentLookups_Limit(t *testing.T) {
	s := newTestStore(t)

	for range 5 {
		require.NoError(t, s.SaveLookup(t.Context(), &Lookup{
			ID:        uuid.New().String(),
			Operation: "resolve_phone",
			Query:     "+15551234567",
			Outcome:   LookupOutcomeResolved,
		}))
	}

	lookups, err := s.ListRecentLookups(t.Context(), 2)
	require.NoError(t, err)
	assert.Len(t, lookups, 2)

	// Non-positive limit falls back to the default
	lookups, err = s.ListRecentLookups(t.Context(), 0)
	require.NoError(t, err)
	assert.Len(t, lookups, 5)
}

func TestSaveLookup_FillsCreatedAt(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.SaveLookup(t.Context(), &Lookup{
		ID:        uuid.New().String(),
		Operation: "bot_send",
		Query:     "ping",
		Outcome:   LookupOutcomeTimeout,
	}))

	lookups, err := s.ListRecentLookups(t.Context(), 1)
	require.NoError(t, err)
	require.Len(t, lookups, 1)
	assert.False(t, lookups[0].CreatedAt.IsZero())
}
