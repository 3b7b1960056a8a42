// ABOUTME: Core types and interface for the shared messaging channel connection
// ABOUTME: Defines Identity, InboundEvent and the Conn contract used by the correlator

package channel

import (
	"context"
	"errors"
	"time"
)

// Channel errors
var (
	// ErrAuthRequired means no valid session exists. The session artifact is
	// created externally; courier surfaces this and never retries a login.
	ErrAuthRequired = errors.New("channel session not authorized")

	// ErrUnavailable means the connection is not ready to send.
	ErrUnavailable = errors.New("channel connection not ready")

	// ErrSendRejected means the network refused the outbound message.
	ErrSendRejected = errors.New("send rejected by channel")

	// ErrRateLimited is a rate-limit flavor of ErrSendRejected, kept distinct
	// so the HTTP layer can map it to 429.
	ErrRateLimited = errors.New("rate limited by channel")
)

// Identity names an account on the channel.
type Identity struct {
	ID          string // channel-native identifier, e.g. "@a_bot:matrix.org"
	Username    string // bare handle without server part, may be empty
	DisplayName string
}

// InboundEvent is a message received on the channel. Events are produced for
// all inbound traffic regardless of whether anyone is waiting for them; many
// listeners may observe the same event.
type InboundEvent struct {
	Sender    Identity
	Text      string
	Timestamp time.Time
}

// Conn is a long-lived, authenticated connection to the messaging network,
// shared process-wide. It must be started before any send or subscribe.
type Conn interface {
	// Start establishes the session and begins delivering inbound events.
	// Returns ErrAuthRequired if the persisted session is not valid.
	Start(ctx context.Context) error

	// Send transmits text to the destination identity.
	Send(ctx context.Context, dest Identity, text string) error

	// Subscribe registers a listener for every inbound event satisfying match.
	// Returns the event channel and a subscription ID for Unsubscribe.
	Subscribe(match func(*InboundEvent) bool) (<-chan *InboundEvent, string)

	// Unsubscribe removes a listener. Idempotent; safe after the listener fired.
	Unsubscribe(id string)

	// Close tears down the connection and all listeners.
	Close()
}
