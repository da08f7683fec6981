package dbpool

import (
	"context"
	"log/slog"
	"sync"
)

// Pool keeps a bounded reserve of idle, ready-to-use database connections.
// The bound applies to idle connections only: Acquire never waits for
// capacity, it opens a fresh connection whenever the reserve is empty, and
// Release closes any connection the full reserve has no room for. Under load
// the daemon therefore opens as many transient connections as it needs and
// the reserve settles back to its configured size as requests complete.
type Pool struct {
	mu     sync.Mutex
	conns  []*Conn
	size   int
	uri    string
	driver string
	dsn    string

	logger *slog.Logger
}

func New(logger *slog.Logger) *Pool {
	return &Pool{logger: logger}
}

// Reload closes every reserved connection and eagerly reopens size fresh
// ones against uri. Connections currently borrowed by in-flight requests are
// not recalled; they keep working and fall out through the Release capacity
// check once returned. If opening the fresh reserve fails partway, the pool
// is left empty with the new size and uri recorded, and Acquire opens
// lazily against the new uri from then on.
func (p *Pool) Reload(ctx context.Context, size int, uri string) error {
	driver, dsn, err := driverDSN(uri)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	for _, c := range p.conns {
		if err := c.Close(); err != nil {
			p.logger.Warn("closing stale pool connection", slog.Any("err", err))
		}
	}
	p.conns = p.conns[:0]

	p.size = size
	p.uri = uri
	p.driver = driver
	p.dsn = dsn

	fresh := make([]*Conn, 0, size)
	for i := 0; i < size; i++ {
		c, err := open(ctx, driver, dsn)
		if err != nil {
			for _, fc := range fresh {
				fc.Close()
			}
			return err
		}
		fresh = append(fresh, c)
	}
	p.conns = fresh

	p.logger.Debug("reloaded db connection pool",
		slog.Int("size", size))
	return nil
}

// Acquire returns a connection from the reserve, or opens a brand-new one
// against the current uri when the reserve is empty. It never blocks waiting
// for capacity.
func (p *Pool) Acquire(ctx context.Context) (*Conn, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if n := len(p.conns); n > 0 {
		c := p.conns[n-1]
		p.conns = p.conns[:n-1]
		p.logger.Debug("acquiring connection: got connection from reserve")
		return c, nil
	}

	p.logger.Debug("acquiring connection: reserve empty, opening new connection")
	return open(ctx, p.driver, p.dsn)
}

// Release returns a connection to the reserve if there is room for it,
// otherwise closes it. The reserve never holds more idle connections than
// the configured size.
func (p *Pool) Release(c *Conn) {
	if c == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.conns) < p.size {
		p.conns = append(p.conns, c)
		p.logger.Debug("releasing connection: reserve refilled")
		return
	}

	if err := c.Close(); err != nil {
		p.logger.Warn("closing surplus connection", slog.Any("err", err))
	}
	p.logger.Debug("releasing connection: reserve full, connection closed")
}

// Ping borrows one connection to verify the database is reachable.
func (p *Pool) Ping(ctx context.Context) error {
	c, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer p.Release(c)

	return c.Ping(ctx)
}

// IdleCount reports how many connections the reserve currently holds.
func (p *Pool) IdleCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.conns)
}

// URI reports the uri the pool currently opens connections against.
func (p *Pool) URI() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.uri
}

// Close drains the reserve at process shutdown.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var firstErr error
	for _, c := range p.conns {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	p.conns = nil
	p.size = 0
	return firstErr
}
