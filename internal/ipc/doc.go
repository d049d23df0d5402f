// Package ipc exposes daemon control via JSON-RPC over a Unix domain socket.
//
// The CLI dials the socket for every tracking command (start, pause, note,
// stop and so on). Request and response types live in types.go and are
// encoded by net/rpc/jsonrpc. The service is registered as "Routekeeper".
package ipc
