// Package handler implements the handler registry and the per-handler
// locking that makes hot reload safe.
//
// Each registered handler carries its own reader-writer lock. Requests take
// shared access for the duration of their handle routine; a reload signal
// takes exclusive access per handler to re-run its setup routine. Writer
// acquisition is a non-blocking try-lock with a bounded retry budget rather
// than an open-ended wait: if the budget runs out, that one handler keeps
// its previous state until the next signal and the daemon never hangs.
//
// Handler names are globally unique. Registering a duplicate is a fatal
// bootstrap error, and the registry is never mutated once serving starts.
package handler
