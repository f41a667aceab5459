// Package database owns the PostgreSQL connection lifecycle and the
// per-module schema migration ledger.
//
// A connection is either external (a plain URI) or embedded (a managed
// postgres server started under a local root directory). Open returns a
// Lock that must be closed after the pool is drained; for embedded
// connections closing the lock stops the server.
//
// Migrations are declared in code as ordered per-module sets. Each
// applied migration is recorded in the _migrations ledger with a
// SHA-512 checksum over its up+down SQL; any divergence between code
// and ledger fails hard rather than guessing.
package database
