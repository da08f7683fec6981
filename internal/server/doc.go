// Package server implements the concurrent FastAGI request server and its
// reload coordinator.
//
// Each accepted connection is served by its own goroutine: decode the
// request, resolve the named handler, borrow a pooled database connection,
// run the handler inside one transaction under the handler's shared lock,
// commit, and acknowledge. The reload coordinator runs orthogonally on a
// dedicated goroutine fed by a coalescing control channel: it rebuilds the
// pool from current configuration and re-runs each handler's setup routine
// under exclusive access, skipping any handler it cannot lock safely.
package server
