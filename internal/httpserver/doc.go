// Package httpserver provides the small HTTP server that exposes the
// metrics snapshot when a metrics address is configured.
package httpserver
