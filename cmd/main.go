package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mdufour/agid/config"
	"github.com/mdufour/agid/internal/handler"
	"github.com/mdufour/agid/internal/healthcheck"
	"github.com/mdufour/agid/internal/httpserver"
	"github.com/mdufour/agid/internal/metrics"
	"github.com/mdufour/agid/internal/modules"
	"github.com/mdufour/agid/internal/server"
	"github.com/mdufour/agid/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("err", err))
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, true, cfg.Environment)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	registry := handler.NewRegistry()
	if err := modules.RegisterAll(registry); err != nil {
		log.Error("Failed to register handler modules", slog.Any("err", err))
		os.Exit(1)
	}

	collector := metrics.NewCollector(1000, log)
	collector.Start(ctx)

	srv := server.New(cfg, log, registry, collector)
	if err := srv.Start(ctx); err != nil {
		log.Error("Failed to start server", slog.Any("err", err))
		os.Exit(1)
	}

	go forwardReloadSignal(ctx, srv, log)

	if cfg.Metrics.Address != "" {
		startMetricsServer(ctx, cfg.Metrics.Address, collector, log)
	}

	interval, err := time.ParseDuration(cfg.HealthCheck.Interval)
	if err != nil {
		// Validation already checked the format; keep a sane fallback anyway.
		interval = 30 * time.Second
	}
	go healthcheck.HealthCheck(ctx, srv.Pool(), interval, collector, log)

	<-ctx.Done()
	log.Info("Shutting down gracefully...")
	if err := srv.Stop(); err != nil {
		log.Error("Error during shutdown", slog.Any("err", err))
	}
}

// forwardReloadSignal turns SIGHUP deliveries into explicit reconfigure
// commands on the server's control channel.
func forwardReloadSignal(ctx context.Context, srv *server.Server, log *slog.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			log.Info("Reload signal received")
			srv.Reconfigure()
		}
	}
}

func startMetricsServer(ctx context.Context, addr string, collector *metrics.Collector, log *slog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", collector.Handler())

	msrv, err := httpserver.New(addr, mux)
	if err != nil {
		log.Error("Failed to create metrics server", slog.Any("err", err))
		os.Exit(1)
	}

	go func() {
		if err := msrv.Start(); err != nil {
			log.Error("Metrics server failed", slog.Any("err", err))
		}
	}()

	go func() {
		<-ctx.Done()
		if err := msrv.Shutdown(context.Background()); err != nil {
			log.Error("Error shutting down metrics server", slog.Any("err", err))
		}
	}()
}
