// ABOUTME: Matrix implementation of the channel connection using mautrix
// ABOUTME: Runs the sync loop, publishes inbound text events, sends via direct rooms

package channel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/relayworks/courier/internal/config"
	"github.com/relayworks/courier/internal/dedupe"
)

const (
	// seenTTL bounds how long sync event IDs are remembered. Matrix sync can
	// redeliver events after reconnects; duplicates within this window are dropped.
	seenTTL     = 10 * time.Minute
	seenMaxSize = 4096
)

// MatrixConn implements Conn on top of a mautrix client. One instance is
// shared process-wide; requests only register listeners and send.
type MatrixConn struct {
	client *mautrix.Client
	hub    *Hub
	seen   *dedupe.Cache
	logger *slog.Logger

	selfID id.UserID
	rooms  *roomCache

	mu    sync.RWMutex
	ready bool

	cancel context.CancelFunc
}

// NewMatrixConn creates a connection from persisted session credentials.
// The session must already exist; courier never performs a login flow.
func NewMatrixConn(cfg config.MatrixConfig, logger *slog.Logger) (*MatrixConn, error) {
	client, err := mautrix.NewClient(cfg.Homeserver, id.UserID(cfg.UserID), cfg.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("creating matrix client: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "matrix")

	return &MatrixConn{
		client: client,
		hub:    NewHub(logger),
		seen:   dedupe.New(seenTTL, seenMaxSize),
		logger: logger,
		selfID: id.UserID(cfg.UserID),
		rooms:  newRoomCache(),
	}, nil
}

// Start verifies the persisted session and begins the sync loop. Returns
// ErrAuthRequired if the access token is no longer valid.
func (c *MatrixConn) Start(ctx context.Context) error {
	whoami, err := c.client.Whoami(ctx)
	if err != nil {
		if errors.Is(err, mautrix.MUnknownToken) || errors.Is(err, mautrix.MMissingToken) {
			return fmt.Errorf("%w: %v", ErrAuthRequired, err)
		}
		return fmt.Errorf("verifying session: %w", err)
	}
	if whoami.UserID != c.selfID {
		return fmt.Errorf("%w: session belongs to %s, config says %s", ErrAuthRequired, whoami.UserID, c.selfID)
	}

	syncer, ok := c.client.Syncer.(*mautrix.DefaultSyncer)
	if !ok {
		return fmt.Errorf("unexpected syncer type: %T", c.client.Syncer)
	}
	syncer.OnEventType(event.EventMessage, c.handleMessageEvent)

	syncCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.mu.Lock()
	c.ready = true
	c.mu.Unlock()

	go func() {
		err := c.client.SyncWithContext(syncCtx)

		c.mu.Lock()
		c.ready = false
		c.mu.Unlock()

		if err != nil && !errors.Is(err, context.Canceled) {
			c.logger.Error("sync loop exited", "error", err)
		}
	}()

	c.logger.Info("channel connection ready", "user_id", c.selfID.String())
	return nil
}

// handleMessageEvent publishes inbound text messages to the hub. Runs on the
// sync loop; it must never block, so delivery goes through the hub's
// non-blocking fan-out.
func (c *MatrixConn) handleMessageEvent(_ context.Context, evt *event.Event) {
	if evt.Sender == c.selfID {
		return
	}

	content, ok := evt.Content.Parsed.(*event.MessageEventContent)
	if !ok || content.MsgType != event.MsgText {
		return
	}

	// Sync redelivers events after reconnects; drop repeats
	if c.seen.CheckAndMark(evt.ID.String()) {
		return
	}

	c.hub.Publish(&InboundEvent{
		Sender: Identity{
			ID:       evt.Sender.String(),
			Username: localpart(evt.Sender.String()),
		},
		Text:      content.Body,
		Timestamp: time.UnixMilli(evt.Timestamp),
	})
}

// Send transmits text to the destination's direct room, creating the room on
// first contact.
func (c *MatrixConn) Send(ctx context.Context, dest Identity, text string) error {
	c.mu.RLock()
	ready := c.ready
	c.mu.RUnlock()
	if !ready {
		return ErrUnavailable
	}

	roomID, err := c.roomFor(ctx, id.UserID(dest.ID))
	if err != nil {
		return err
	}

	if _, err := c.client.SendText(ctx, roomID, text); err != nil {
		return mapSendError(err)
	}
	return nil
}

// roomFor returns the cached direct room for the destination, creating one if
// this is the first contact. The cache serializes creation per destination.
func (c *MatrixConn) roomFor(ctx context.Context, dest id.UserID) (id.RoomID, error) {
	return c.rooms.get(dest, func() (id.RoomID, error) {
		resp, err := c.client.CreateRoom(ctx, &mautrix.ReqCreateRoom{
			Invite:   []id.UserID{dest},
			IsDirect: true,
			Preset:   "trusted_private_chat",
		})
		if err != nil {
			return "", mapSendError(err)
		}
		c.logger.Info("opened direct room", "destination", dest.String(), "room", resp.RoomID.String())
		return resp.RoomID, nil
	})
}

// Subscribe registers a listener on the shared event hub.
func (c *MatrixConn) Subscribe(match func(*InboundEvent) bool) (<-chan *InboundEvent, string) {
	return c.hub.Subscribe(match)
}

// Unsubscribe removes a listener. Idempotent.
func (c *MatrixConn) Unsubscribe(id string) {
	c.hub.Unsubscribe(id)
}

// Close stops the sync loop and tears down all listeners.
func (c *MatrixConn) Close() {
	if c.cancel != nil {
		c.cancel()
	}
	c.hub.Close()
	c.seen.Close()
}

// mapSendError translates mautrix errors into the channel error taxonomy.
func mapSendError(err error) error {
	switch {
	case errors.Is(err, mautrix.MLimitExceeded):
		return fmt.Errorf("%w: %v", ErrRateLimited, err)
	case errors.Is(err, mautrix.MUnknownToken), errors.Is(err, mautrix.MMissingToken):
		return fmt.Errorf("%w: %v", ErrAuthRequired, err)
	case errors.Is(err, mautrix.MForbidden), errors.Is(err, mautrix.MNotFound):
		return fmt.Errorf("%w: %v", ErrSendRejected, err)
	default:
		return fmt.Errorf("%w: %v", ErrSendRejected, err)
	}
}

// localpart extracts the local part of a channel-native ID like "@bot:server".
func localpart(userID string) string {
	s := strings.TrimPrefix(userID, "@")
	if i := strings.IndexByte(s, ':'); i >= 0 {
		return s[:i]
	}
	return s
}
