// ABOUTME: Tests for phone normalization, handle validation and directory resolution
// ABOUTME: Uses an in-memory fake directory

package resolve

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relayworks/courier/internal/store"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"already normalized", "+15551234567", "+15551234567"},
		{"spaces and dashes", " +1 (555) 123-4567 ", "+15551234567"},
		{"no plus", "15551234567", "15551234567"},
		{"letters stripped", "+1555call-now", "+1555"},
		{"empty", "", ""},
		{"whitespace only", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizePhone(tt.input))
		})
	}
}

func TestValidUsername(t *testing.T) {
	tests := []struct {
		username string
		valid    bool
	}{
		{"a_bot", true},
		{"lookup_bot_99", true},
		{"abcde", true},
		{"ab", false},           // too short
		{"9bot_name", false},    // must start with a letter
		{"bot_name_", false},    // must end alphanumeric
		{"", false},
		{"has space", false},
	}

	for _, tt := range tests {
		t.Run(tt.username, func(t *testing.T) {
			assert.Equal(t, tt.valid, ValidUsername(tt.username))
		})
	}
}

// fakeDirectory returns canned contacts per query.
type fakeDirectory struct {
	byPhone    map[string]*store.Contact
	byUsername map[string]*store.Contact
	err        error
}

func (f *fakeDirectory) GetContactByPhone(_ context.Context, phone string) (*store.Contact, error) {
	if f.err != nil {
		return nil, f.err
	}
	if c, ok := f.byPhone[phone]; ok {
		return c, nil
	}
	return nil, store.ErrContactNotFound
}

func (f *fakeDirectory) GetContactByUsername(_ context.Context, username string) (*store.Contact, error) {
	if f.err != nil {
		return nil, f.err
	}
	if c, ok := f.byUsername[username]; ok {
		return c, nil
	}
	return nil, store.ErrContactNotFound
}

func TestResolvePhone_Found(t *testing.T) {
	contact := &store.Contact{ID: "@who:example.org", Username: "who", Phone: "+15551234567"}
	r := NewDirectoryResolver(&fakeDirectory{byPhone: map[string]*store.Contact{"+15551234567": contact}})

	// Input is normalized before lookup
	got, err := r.ResolvePhone(t.Context(), " +1 (555) 123-4567 ")
	require.NoError(t, err)
	assert.Equal(t, contact, got)
}

func TestResolvePhone_NotFound(t *testing.T) {
	r := NewDirectoryResolver(&fakeDirectory{})

	_, err := r.ResolvePhone(t.Context(), "+15550000000")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolvePhone_EmptyIsNotFound(t *testing.T) {
	r := NewDirectoryResolver(&fakeDirectory{})

	_, err := r.ResolvePhone(t.Context(), "---")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolvePhone_Ambiguous(t *testing.T) {
	r := NewDirectoryResolver(&fakeDirectory{err: store.ErrContactAmbiguous})

	_, err := r.ResolvePhone(t.Context(), "+15551234567")
	assert.ErrorIs(t, err, ErrAmbiguous)
}

func TestResolveHandle_FullIDPassesThrough(t *testing.T) {
	r := NewDirectoryResolver(&fakeDirectory{})

	identity, err := r.ResolveHandle(t.Context(), "@a_bot:example.org")
	require.NoError(t, err)
	assert.Equal(t, "@a_bot:example.org", identity.ID)
	assert.Equal(t, "a_bot", identity.Username)
}

func TestResolveHandle_UsernameLookedUpInDirectory(t *testing.T) {
	contact := &store.Contact{ID: "@a_bot:example.org", Username: "a_bot", FirstName: "Lookup", LastName: "Bot"}
	r := NewDirectoryResolver(&fakeDirectory{byUsername: map[string]*store.Contact{"a_bot": contact}})

	for _, handle := range []string{"a_bot", "@a_bot"} {
		identity, err := r.ResolveHandle(t.Context(), handle)
		require.NoError(t, err, "handle %q", handle)
		assert.Equal(t, "@a_bot:example.org", identity.ID)
		assert.Equal(t, "Lookup Bot", identity.DisplayName)
	}
}

func TestResolveHandle_InvalidUsernameRejectedBeforeLookup(t *testing.T) {
	r := NewDirectoryResolver(&fakeDirectory{err: assert.AnError}) // lookup would fail loudly

	_, err := r.ResolveHandle(t.Context(), "x!")
	assert.ErrorIs(t, err, ErrInvalidHandle)
}

func TestResolveHandle_EmptyIsInvalid(t *testing.T) {
	r := NewDirectoryResolver(&fakeDirectory{})

	_, err := r.ResolveHandle(t.Context(), "  ")
	assert.ErrorIs(t, err, ErrInvalidHandle)
}

func TestResolveHandle_UnknownUsernameIsNotFound(t *testing.T) {
	r := NewDirectoryResolver(&fakeDirectory{})

	_, err := r.ResolveHandle(t.Context(), "ghost_bot")
	assert.ErrorIs(t, err, ErrNotFound)
}
