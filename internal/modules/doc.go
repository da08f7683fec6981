// Package modules contains the built-in AGI handler modules.
//
// Each module registers a named handler through the registry before the
// server starts serving. Modules that cache database state implement a setup
// routine; the registry re-runs it on every reload signal under the
// handler's write lock.
package modules
