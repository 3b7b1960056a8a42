// Package resolve maps external contact handles (phone numbers and bot
// usernames) to channel-native identities. Resolution is backed by the local
// contact directory; the core consumes it as an input step and does not cache
// results across requests.
package resolve
