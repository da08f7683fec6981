// Package dbpool manages the daemon's reserve of reusable database
// connections.
//
// The pool is elastic on the borrow side: Acquire never blocks on pool
// exhaustion, because a stalled call-routing decision is worse than a
// momentary extra connection. The configured size caps idle connections
// only. Reload swaps the whole reserve for fresh connections against a new
// URI without recalling connections that in-flight requests have borrowed.
//
// Connections are opened through database/sql with the driver chosen by URI
// scheme: pgx for postgres:// and modernc.org/sqlite for sqlite://.
package dbpool
