// Package sidecar owns the process lifecycle. It constructs the shared
// channel connection, the store, the orchestrator service and the HTTP
// server, then runs them until shutdown. The connection is established once
// at startup and passed by shared reference; request handlers never own or
// reconfigure it.
package sidecar
