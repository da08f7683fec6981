// Package logger constructs the shared slog.Logger used across the daemon.
package logger
