// Package daemon coordinates the long-running routekeeper process.
//
// It wires configuration, the key-value store, the position source and the
// tracking engine into a single lifecycle with flock-based locking to prevent
// multiple instances recording into the same store. On start it runs the
// preflight checks, applies the configured recovery policy to any interrupted
// route, and serves the HTTP API. Control from the CLI arrives through
// internal/ipc, which calls the methods exported here.
//
// Keep orchestration logic here: tracking rules live in internal/engine and
// persistence in internal/backup and internal/sessions.
package daemon
