// Package metrics provides real-time metrics collection for the request
// server.
//
// It uses a channel-based event pipeline to asynchronously collect:
//   - Request counts per handler
//   - Request outcomes (ok, rejected, failed, not_found)
//   - Handling times with percentile calculations (P50, P95, P99)
//   - Reload counts and database health
//
// The collector runs in a dedicated goroutine and processes events without
// blocking the request path. Events are emitted with non-blocking semantics
// so a full buffer drops events rather than delaying call routing.
package metrics
