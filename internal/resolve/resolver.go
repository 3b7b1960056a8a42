// ABOUTME: Identity resolution: phone numbers and bot handles to channel identities
// ABOUTME: Backed by the contact directory, with normalization and handle validation

package resolve

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/relayworks/courier/internal/channel"
	"github.com/relayworks/courier/internal/store"
)

// Resolver errors
var (
	// ErrNotFound means the handle or phone maps to no known identity.
	ErrNotFound = errors.New("identity not found")

	// ErrAmbiguous means the query matched more than one identity.
	ErrAmbiguous = errors.New("identity is ambiguous")

	// ErrInvalidHandle means the handle fails validation before any lookup.
	ErrInvalidHandle = errors.New("invalid handle")
)

var (
	phoneStripRe = regexp.MustCompile(`[^0-9+]`)
	usernameRe   = regexp.MustCompile(`^[a-zA-Z][\w]{3,30}[a-zA-Z0-9]$`)
)

// NormalizePhone strips everything except digits and a leading plus sign.
func NormalizePhone(phone string) string {
	return phoneStripRe.ReplaceAllString(strings.TrimSpace(phone), "")
}

// ValidUsername reports whether a bare handle (no leading @, no server part)
// is acceptable: letter first, 5-32 chars of word characters, alphanumeric last.
func ValidUsername(username string) bool {
	return usernameRe.MatchString(username)
}

// Directory is the slice of the store the resolver needs.
type Directory interface {
	GetContactByPhone(ctx context.Context, phone string) (*store.Contact, error)
	GetContactByUsername(ctx context.Context, username string) (*store.Contact, error)
}

// Resolver maps external contact handles to channel-native identities.
type Resolver interface {
	// ResolvePhone looks up the directory entry for a phone number.
	ResolvePhone(ctx context.Context, phone string) (*store.Contact, error)

	// ResolveHandle turns a caller-supplied handle into a channel identity.
	// A full channel-native ID (e.g. "@a_bot:matrix.org") passes through; a
	// bare username is validated and looked up in the directory.
	ResolveHandle(ctx context.Context, handle string) (channel.Identity, error)
}

// DirectoryResolver resolves against the local contact directory.
type DirectoryResolver struct {
	dir Directory
}

// NewDirectoryResolver creates a resolver backed by the given directory.
func NewDirectoryResolver(dir Directory) *DirectoryResolver {
	return &DirectoryResolver{dir: dir}
}

// ResolvePhone looks up a contact by normalized phone number.
func (r *DirectoryResolver) ResolvePhone(ctx context.Context, phone string) (*store.Contact, error) {
	normalized := NormalizePhone(phone)
	if normalized == "" {
		return nil, fmt.Errorf("%w: empty phone", ErrNotFound)
	}

	contact, err := r.dir.GetContactByPhone(ctx, normalized)
	if errors.Is(err, store.ErrContactNotFound) {
		return nil, fmt.Errorf("%w: no contact for phone", ErrNotFound)
	}
	if errors.Is(err, store.ErrContactAmbiguous) {
		return nil, fmt.Errorf("%w: phone maps to multiple contacts", ErrAmbiguous)
	}
	if err != nil {
		return nil, fmt.Errorf("resolving phone: %w", err)
	}
	return contact, nil
}

// ResolveHandle resolves a bot or user handle to a channel identity.
func (r *DirectoryResolver) ResolveHandle(ctx context.Context, handle string) (channel.Identity, error) {
	handle = strings.TrimSpace(handle)
	if handle == "" {
		return channel.Identity{}, fmt.Errorf("%w: empty handle", ErrInvalidHandle)
	}

	// Full channel-native ID: no directory lookup needed
	if strings.HasPrefix(handle, "@") && strings.Contains(handle, ":") {
		return channel.Identity{
			ID:       handle,
			Username: localpart(handle),
		}, nil
	}

	username := strings.TrimPrefix(handle, "@")
	if !ValidUsername(username) {
		return channel.Identity{}, fmt.Errorf("%w: %q must match %s", ErrInvalidHandle, handle, usernameRe.String())
	}

	contact, err := r.dir.GetContactByUsername(ctx, username)
	if errors.Is(err, store.ErrContactNotFound) {
		return channel.Identity{}, fmt.Errorf("%w: unknown handle %q", ErrNotFound, handle)
	}
	if errors.Is(err, store.ErrContactAmbiguous) {
		return channel.Identity{}, fmt.Errorf("%w: handle %q matches multiple contacts", ErrAmbiguous, handle)
	}
	if err != nil {
		return channel.Identity{}, fmt.Errorf("resolving handle: %w", err)
	}

	return channel.Identity{
		ID:          contact.ID,
		Username:    contact.Username,
		DisplayName: strings.TrimSpace(contact.FirstName + " " + contact.LastName),
	}, nil
}

// localpart extracts the local part of an ID like "@bot:server".
func localpart(userID string) string {
	s := strings.TrimPrefix(userID, "@")
	if i := strings.IndexByte(s, ':'); i >= 0 {
		return s[:i]
	}
	return s
}
