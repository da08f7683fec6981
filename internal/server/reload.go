package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/mdufour/agid/internal/metrics"
)

// reloadLoop is the reload coordinator: one goroutine consuming the
// reconfigure channel, so passes are serialized no matter how signals
// arrive.
func (s *Server) reloadLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.reloadCh:
			s.reload(ctx)
		}
	}
}

// Setup re-reads pool sizing and database connectivity from configuration
// and rebuilds the pool. The listening socket is left untouched.
func (s *Server) Setup(ctx context.Context) error {
	cfg, err := s.ReloadConfig()
	if err != nil {
		return err
	}

	return s.pool.Reload(ctx, cfg.ConnectionPoolSize, cfg.DBURI)
}

// reload runs one full pass: pool rebuild, then every handler's reload with
// a single borrowed connection, sequentially to bound the load on it, with
// one commit at the end. Per-handler failures are isolated inside
// ReloadAll; a pool failure aborts the pass since handlers could not get a
// cursor anyway.
func (s *Server) reload(ctx context.Context) {
	s.logger.Debug("reloading core engine")

	if err := s.Setup(ctx); err != nil {
		s.logger.Error("reloading connection pool failed", slog.Any("err", err))
		return
	}

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		s.logger.Error("acquiring reload connection failed", slog.Any("err", err))
		return
	}
	defer s.pool.Release(conn)

	cur, err := conn.Begin(ctx)
	if err != nil {
		s.logger.Error("beginning reload transaction failed", slog.Any("err", err))
		return
	}

	s.logger.Debug("reloading handlers")
	s.registry.ReloadAll(ctx, cur, s.logger)

	if err := cur.Commit(); err != nil {
		s.logger.Error("committing reload transaction failed", slog.Any("err", err))
		return
	}

	s.emit(metrics.MetricEvent{
		Type:      metrics.EventReloadCompleted,
		Timestamp: time.Now(),
	})
	s.logger.Info("finished reload")
}
