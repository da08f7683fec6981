package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/mdufour/agid/config"
	"github.com/mdufour/agid/internal/dbpool"
	"github.com/mdufour/agid/internal/handler"
	"github.com/mdufour/agid/internal/metrics"
)

// Server owns the listening socket, the connection pool and the handler
// registry. The socket is bound exactly once; reloads refresh the pool and
// the handlers but never rebind.
type Server struct {
	cfg       *config.Config
	logger    *slog.Logger
	registry  *handler.Registry
	pool      *dbpool.Pool
	collector *metrics.Collector

	// ReloadConfig re-reads the configuration during a reload pass.
	// Overridable in tests; defaults to config.Reload.
	ReloadConfig func() (*config.Config, error)

	listener net.Listener
	reloadCh chan struct{}
	wg       sync.WaitGroup
}

// New assembles a server. The registry must be fully populated before Start;
// handlers cannot be added or removed at runtime, only reloaded in place.
func New(cfg *config.Config, logger *slog.Logger, registry *handler.Registry, collector *metrics.Collector) *Server {
	return &Server{
		cfg:          cfg,
		logger:       logger,
		registry:     registry,
		pool:         dbpool.New(logger),
		collector:    collector,
		ReloadConfig: config.Reload,
		reloadCh:     make(chan struct{}, 1),
	}
}

// Start binds the listening socket, builds the connection pool, runs every
// handler's setup routine once, then serves connections concurrently until
// ctx is cancelled. It returns once serving has started.
func (s *Server) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.ListenAddress, strconv.Itoa(s.cfg.ListenPort))

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("server: binding %s: %w", addr, err)
	}
	s.listener = ln

	if err := s.pool.Reload(ctx, s.cfg.ConnectionPoolSize, s.cfg.DBURI); err != nil {
		ln.Close()
		return fmt.Errorf("server: building connection pool: %w", err)
	}

	if err := s.bootstrapHandlers(ctx); err != nil {
		ln.Close()
		s.pool.Close()
		return err
	}

	s.logger.Info("agid listening", slog.String("addr", ln.Addr().String()))

	go s.reloadLoop(ctx)

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	go s.acceptLoop(ctx)

	return nil
}

// Stop waits for in-flight dispatchers to finish and drains the pool. Call
// after cancelling the context passed to Start.
func (s *Server) Stop() error {
	s.wg.Wait()
	return s.pool.Close()
}

// Addr reports the bound listener address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Pool exposes the connection pool for the health probe.
func (s *Server) Pool() *dbpool.Pool {
	return s.pool
}

// Reconfigure queues one reload pass on the coordinator. Triggers arriving
// while a pass is already queued coalesce into it, so passes never run
// concurrently with each other.
func (s *Server) Reconfigure() {
	select {
	case s.reloadCh <- struct{}{}:
	default:
	}
}

func (s *Server) acceptLoop(ctx context.Context) {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Error("accepting connection failed", slog.Any("err", err))
			continue
		}

		// A connection can slip in between ctx cancellation and the
		// listener closing. Stop may already be past its wait by then,
		// so nothing new goes to a dispatcher.
		if ctx.Err() != nil {
			conn.Close()
			return
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.dispatch(ctx, conn)
		}()
	}
}

// bootstrapHandlers runs every setup routine once, unguarded, with a single
// borrowed connection and one commit at the end. A failure here aborts
// startup.
func (s *Server) bootstrapHandlers(ctx context.Context) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("server: acquiring setup connection: %w", err)
	}
	defer s.pool.Release(conn)

	cur, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("server: beginning setup transaction: %w", err)
	}

	s.logger.Debug("list of handlers",
		slog.String("handlers", strings.Join(s.registry.Names(), ", ")))

	if err := s.registry.SetupAll(ctx, cur); err != nil {
		cur.Rollback()
		return err
	}

	if err := cur.Commit(); err != nil {
		return fmt.Errorf("server: committing setup transaction: %w", err)
	}
	return nil
}

func (s *Server) emit(event metrics.MetricEvent) {
	if s.collector != nil {
		s.collector.Emit(event)
	}
}
