// Package audit persists task lifecycle events (spawn, exit, failure,
// shutdown) so an operator can reconstruct what the process did after
// the fact. Two drivers: an append-only JSON Lines file and a SQLite
// database. Disabled storage is not an error; callers get a nil Store.
package audit
