// Package config handles loading and parsing of configuration from YAML files
// and environment variables. It defines the daemon configuration structure:
// the listening socket, the database connection pool sizing and URI, and the
// logging and metrics settings.
package config
