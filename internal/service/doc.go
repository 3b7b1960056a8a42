// Package service composes identity resolution, message templating and reply
// correlation into the one-shot operations the HTTP layer exposes.
//
// Every failure is reported upward as a structured result: resolution and
// template failures become ok=false envelopes, a timed-out wait is a normal
// outcome with the reply absent, and nothing is retried. The only error that
// escapes the envelope is channel rate limiting, which callers map to 429.
package service
