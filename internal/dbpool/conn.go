package dbpool

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Conn is one pooled database connection. Each Conn owns a private
// database/sql handle pinned to a single underlying connection, so the pool,
// not database/sql, decides how many connections exist and when each one
// closes. A Conn borrowed across a pool reload keeps working until released.
type Conn struct {
	db *sql.DB
	sc *sql.Conn
}

func open(ctx context.Context, driver, dsn string) (*Conn, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("dbpool: opening %s database: %w", driver, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	sc, err := db.Conn(ctx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("dbpool: connecting to %s database: %w", driver, err)
	}

	if err := sc.PingContext(ctx); err != nil {
		sc.Close()
		db.Close()
		return nil, fmt.Errorf("dbpool: pinging %s database: %w", driver, err)
	}

	if driver == "sqlite" {
		// Concurrent write transactions need a lock wait and WAL to coexist.
		for _, pragma := range []string{
			"PRAGMA busy_timeout=5000",
			"PRAGMA journal_mode=WAL",
		} {
			if _, err := sc.ExecContext(ctx, pragma); err != nil {
				sc.Close()
				db.Close()
				return nil, fmt.Errorf("dbpool: applying %q: %w", pragma, err)
			}
		}
	}

	return &Conn{db: db, sc: sc}, nil
}

// Begin opens the transaction serving as a request's cursor.
func (c *Conn) Begin(ctx context.Context) (*Cursor, error) {
	tx, err := c.sc.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("dbpool: beginning transaction: %w", err)
	}
	return &Cursor{tx: tx}, nil
}

// Ping verifies the connection is still alive.
func (c *Conn) Ping(ctx context.Context) error {
	return c.sc.PingContext(ctx)
}

// Close tears the connection down fully.
func (c *Conn) Close() error {
	err := c.sc.Close()
	if cerr := c.db.Close(); err == nil {
		err = cerr
	}
	return err
}

// Cursor is the per-request view of a pooled connection: one transaction,
// committed by the caller on success and rolled back on every other path.
type Cursor struct {
	tx *sql.Tx
}

func (cur *Cursor) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return cur.tx.QueryContext(ctx, query, args...)
}

func (cur *Cursor) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return cur.tx.QueryRowContext(ctx, query, args...)
}

func (cur *Cursor) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return cur.tx.ExecContext(ctx, query, args...)
}

func (cur *Cursor) Commit() error {
	return cur.tx.Commit()
}

// Rollback discards the transaction. Calling it after a successful Commit is
// harmless; the dispatcher relies on that for its deferred cleanup.
func (cur *Cursor) Rollback() error {
	if err := cur.tx.Rollback(); err != nil && err != sql.ErrTxDone {
		return err
	}
	return nil
}
