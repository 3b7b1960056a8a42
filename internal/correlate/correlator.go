// ABOUTME: Reply correlator: sends a message and waits for the responder's reply
// ABOUTME: Subscribes before sending, resolves on first match or deadline, always unsubscribes

package correlate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/relayworks/courier/internal/channel"
)

// Channel is the slice of the connection the correlator needs. Satisfied by
// channel.Conn implementations and by test fakes.
type Channel interface {
	Send(ctx context.Context, dest channel.Identity, text string) error
	Subscribe(match func(*channel.InboundEvent) bool) (<-chan *channel.InboundEvent, string)
	Unsubscribe(id string)
}

// ReplyResult is the immutable outcome of a send-and-wait operation.
// Sent reports whether the outbound message was transmitted; Reply is nil when
// no qualifying reply arrived before the deadline. A nil Reply with Sent=true
// is a normal terminal outcome, not an error.
type ReplyResult struct {
	Sent  bool
	Reply *string
}

// Correlator turns "send then wait for a reply from a specific sender" into a
// single blocking operation, despite replies arriving on the shared event
// stream. Many correlations may be in flight concurrently; each owns its own
// listener registration and nothing else.
type Correlator struct {
	conn   Channel
	logger *slog.Logger
}

// New creates a correlator on top of the shared connection.
func New(conn Channel, logger *slog.Logger) *Correlator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Correlator{
		conn:   conn,
		logger: logger.With("component", "correlator"),
	}
}

// SendAndAwaitReply sends text to dest and waits up to timeout for the next
// inbound message from dest.
//
// The listener is registered before the send so a fast responder's reply
// cannot arrive while nobody is watching. If the send fails, the result has
// Sent=false and the error carries the failure reason. A timeout, or a
// non-positive timeout, yields Sent=true with a nil Reply; the send is never
// skipped. The listener is released on every exit path.
func (c *Correlator) SendAndAwaitReply(ctx context.Context, dest channel.Identity, text string, timeout time.Duration) (*ReplyResult, error) {
	events, subID := c.conn.Subscribe(func(evt *channel.InboundEvent) bool {
		return evt.Sender.ID == dest.ID
	})
	defer c.conn.Unsubscribe(subID)

	if err := c.conn.Send(ctx, dest, text); err != nil {
		return &ReplyResult{Sent: false}, fmt.Errorf("sending to %s: %w", dest.ID, err)
	}

	c.logger.Debug("message sent, awaiting reply",
		"destination", dest.ID,
		"timeout", timeout,
	)

	if timeout <= 0 {
		return &ReplyResult{Sent: true}, nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	// First qualifying event wins; the stream is broadcast, so later events
	// from the same sender remain visible to other listeners.
	select {
	case evt, ok := <-events:
		if !ok {
			// Connection shut down mid-wait; the send already succeeded
			return &ReplyResult{Sent: true}, nil
		}
		reply := evt.Text
		c.logger.Debug("reply received", "destination", dest.ID, "length", len(reply))
		return &ReplyResult{Sent: true, Reply: &reply}, nil

	case <-timer.C:
		c.logger.Debug("wait timed out", "destination", dest.ID)
		return &ReplyResult{Sent: true}, nil

	case <-ctx.Done():
		return &ReplyResult{Sent: true}, nil
	}
}
