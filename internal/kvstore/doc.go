// Package kvstore provides the durable key-value store that backs the backup
// slot and the saved session list.
//
// Values are opaque byte slices stored in a single SQLite table. Writers that
// must touch several keys atomically (saving a session and deleting the
// backup, or clearing everything) use Batch, which runs inside one
// transaction and retries on SQLITE_BUSY.
package kvstore
