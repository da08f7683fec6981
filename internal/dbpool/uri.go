package dbpool

import (
	"fmt"
	"net/url"
)

// driverDSN maps a configured db_uri onto a registered database/sql driver
// name and the DSN that driver expects. Postgres URIs are passed through
// verbatim because pgx parses the full URL form itself.
func driverDSN(uri string) (driver, dsn string, err error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", "", fmt.Errorf("dbpool: parsing db uri: %w", err)
	}

	switch u.Scheme {
	case "postgres", "postgresql":
		return "pgx", uri, nil

	case "sqlite", "sqlite3":
		dsn := u.Opaque
		if dsn == "" {
			dsn = u.Host + u.Path
		}
		if dsn == "" {
			return "", "", fmt.Errorf("dbpool: sqlite uri %q has no path", uri)
		}
		if u.RawQuery != "" {
			dsn += "?" + u.RawQuery
		}
		return "sqlite", dsn, nil

	default:
		return "", "", fmt.Errorf("dbpool: unsupported db uri scheme %q", u.Scheme)
	}
}
