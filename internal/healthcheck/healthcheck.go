package healthcheck

import (
	"context"
	"log/slog"
	"time"

	"github.com/mdufour/agid/internal/dbpool"
	"github.com/mdufour/agid/internal/metrics"
)

const pingTimeout = 5 * time.Second

// HealthCheck periodically verifies the database is reachable by borrowing
// one pooled connection and pinging it. Transitions are logged and reported
// to the metrics collector; the probe never affects request handling.
func HealthCheck(
	ctx context.Context,
	pool *dbpool.Pool,
	interval time.Duration,
	collector *metrics.Collector,
	logger *slog.Logger,
) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	healthy := true

	for {
		select {
		case <-ctx.Done():
			logger.Info("database health check stopped")
			return

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
			err := pool.Ping(pingCtx)
			cancel()

			nowHealthy := err == nil
			if nowHealthy == healthy {
				continue
			}
			healthy = nowHealthy

			if healthy {
				logger.Info("database is back up")
			} else {
				logger.Warn("database is down", slog.Any("err", err))
			}

			if collector != nil {
				collector.Emit(metrics.MetricEvent{
					Type:      metrics.EventDBHealthChanged,
					Timestamp: time.Now(),
					Healthy:   healthy,
				})
			}
		}
	}
}
