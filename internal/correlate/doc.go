// Package correlate matches asynchronously delivered inbound messages to the
// outbound message that triggered them.
//
// # Model
//
// A correlation is: register a listener scoped to "next inbound message from
// this sender", send, then suspend until the first match or the deadline. The
// suspension happens in the requesting goroutine; the connection's event loop
// keeps servicing unrelated listeners throughout. Each in-flight correlation
// owns its own listener registration and shares nothing else, so no global
// lock is needed and concurrent waits cannot fulfill each other.
//
// Exactly one terminal outcome is produced per call, and the listener is
// released on every exit path: success, timeout, or send failure.
//
// # Known limitation
//
// Correlation is by sender identity only. A bot serving many simultaneous
// callers in a shared conversation can produce replies that match the wrong
// wait. Precise correlation under that load would need a token embedded in
// the outbound message and echoed in the reply; the protocol here does not
// provide one.
package correlate
