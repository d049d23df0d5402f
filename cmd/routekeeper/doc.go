// Package main hosts the routekeeper CLI entrypoint and command graph.
//
// "routekeeper track" runs the daemon in the foreground: it owns the tracking
// engine, the position source and the HTTP API. Every other tracking command
// (start, pause, resume, stop, note, attach, reset, status) is a JSON-RPC call
// over the daemon's Unix socket. Session and export commands open the SQLite
// store directly, so they work whether or not the daemon is running.
package main
