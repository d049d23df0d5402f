// Package preflight provides readiness checks for the filesystem paths and
// listeners routekeeper depends on.
//
// These checks run in two contexts:
//   - The daemon calls RunAll before taking its lock. Any failed check aborts
//     startup so a route is never recorded into a directory that cannot hold
//     its backups.
//   - The CLI "routekeeper status" command prints the same results when the
//     daemon is not reachable.
package preflight
