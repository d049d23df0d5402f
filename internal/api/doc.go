// Package api serves the HTTP surface of a running routekeeper daemon.
//
// The API is the push side of the position pipeline: a phone or any other
// process posts fixes to /api/fixes and they reach the engine through a
// position.Push source. Notes and media attachments arrive the same way.
// Saved sessions and their exports are read-only.
//
// Every route under /api requires "Authorization: Bearer <token>" when a
// token is configured.
package api
