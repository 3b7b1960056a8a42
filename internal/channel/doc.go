// Package channel provides the long-lived connection to the messaging network.
//
// # Overview
//
// One Conn is established at process startup and shared by all requests. The
// connection owns the network session: it transmits outbound messages and
// delivers every inbound event to registered listeners. Requests never
// reconfigure the connection; they only subscribe, send and unsubscribe.
//
// # Listener Hub
//
// Inbound events are fanned out through a Hub. Each listener supplies a
// predicate and receives matching events on a buffered channel:
//
//	ch, subID := conn.Subscribe(func(evt *InboundEvent) bool {
//	    return evt.Sender.ID == bot.ID
//	})
//	defer conn.Unsubscribe(subID)
//
// Publishing is non-blocking: a slow listener has events dropped rather than
// stalling the sync loop or other listeners. The event stream is broadcast,
// not a queue; an event consumed by one listener is still seen by the rest.
//
// # Matrix Implementation
//
// MatrixConn drives a mautrix client: Start verifies the persisted session
// with a whoami probe, registers the message handler and launches the sync
// loop; Send opens (and caches) a direct room per destination and posts text
// to it. Session bootstrap is external: if the access token is invalid,
// Start fails with ErrAuthRequired and the operator must recreate the session.
package channel
