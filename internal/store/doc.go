// Package store provides SQLite persistence for the contact directory that
// backs identity resolution and for the lookup audit ledger. Conversation
// content is not persisted; only operation metadata and the captured reply.
package store
