package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/mdufour/agid/internal/dbpool"
	"github.com/mdufour/agid/internal/fastagi"
	"github.com/mdufour/agid/internal/handler"
	"github.com/mdufour/agid/internal/metrics"
)

// Dialplan location the switch falls back to when a request cannot be
// routed.
const failExtension = "agi_fail,s,1"

// dispatch serves one switch connection end to end: decode the request,
// resolve the handler, run it inside one pooled transaction, and report the
// result over the same connection. Failures never cross the connection
// boundary un-signaled, and never take the daemon down.
func (s *Server) dispatch(ctx context.Context, netConn net.Conn) {
	defer netConn.Close()

	logger := s.logger.With(
		slog.String("request_id", uuid.NewString()),
		slog.String("remote", netConn.RemoteAddr().String()),
	)

	req, err := fastagi.ReadRequest(bufio.NewReader(netConn), bufio.NewWriter(netConn))
	if err != nil {
		logger.Error("decoding request failed", slog.Any("err", err))
		return
	}

	name := req.Script()
	logger.Debug("handling request", slog.String("handler", name))

	s.emit(metrics.MetricEvent{
		Type:      metrics.EventRequestReceived,
		Timestamp: time.Now(),
		Handler:   name,
	})

	start := time.Now()
	outcome := s.serveRequest(ctx, logger, req, name)

	s.emit(metrics.MetricEvent{
		Type:      metrics.EventRequestCompleted,
		Timestamp: time.Now(),
		Handler:   name,
		Outcome:   outcome,
		Duration:  time.Since(start),
	})
}

func (s *Server) serveRequest(ctx context.Context, logger *slog.Logger, req *fastagi.Request, name string) string {
	h, ok := s.registry.Lookup(name)
	if !ok {
		logger.Error("handler not found", slog.String("handler", name))
		s.failRequest(logger, req, fmt.Sprintf("no AGI handler %q", name))
		return metrics.OutcomeNotFound
	}

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		logger.Error("acquiring db connection failed", slog.Any("err", err))
		s.failRequest(logger, req, "database unavailable")
		return metrics.OutcomeFailed
	}
	defer s.pool.Release(conn)

	cur, err := conn.Begin(ctx)
	if err != nil {
		logger.Error("beginning transaction failed", slog.Any("err", err))
		s.failRequest(logger, req, "database unavailable")
		return metrics.OutcomeFailed
	}
	// No-op after a successful commit; discards the transaction on every
	// failure path so zero commits occur there.
	defer cur.Rollback()

	err = s.invoke(ctx, h, req, cur)

	var rejection *handler.Rejection
	switch {
	case err == nil:
		if err := cur.Commit(); err != nil {
			logger.Error("committing request transaction failed", slog.Any("err", err))
			s.failRequest(logger, req, "database commit failed")
			return metrics.OutcomeFailed
		}

		if err := req.Verbose(fmt.Sprintf("AGI handler %q successfully executed", name)); err != nil {
			logger.Warn("sending acknowledgment failed", slog.Any("err", err))
		}
		logger.Debug("request successfully handled")
		return metrics.OutcomeOK

	case errors.As(err, &rejection):
		logger.Info("request rejected by policy",
			slog.String("handler", name),
			slog.String("reason", rejection.Reason))
		s.failRequest(logger, req, rejection.Reason)
		return metrics.OutcomeRejected

	default:
		logger.Error("unexpected handler failure",
			slog.String("handler", name),
			slog.Any("err", err))
		s.failRequest(logger, req, fmt.Sprintf("AGI handler %q failed", name))
		return metrics.OutcomeFailed
	}
}

// invoke runs the handler under its shared lock, converting a panic into an
// error carrying the stack so operators get the full diagnostic context.
func (s *Server) invoke(ctx context.Context, h *handler.Handler, req *fastagi.Request, cur *dbpool.Cursor) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v\n%s", r, debug.Stack())
		}
	}()

	return h.Handle(ctx, req, cur, req.Args())
}

// failRequest relays a failure to the switch on a best-effort basis: the
// diagnostic message, the redirect to the fallback dialplan extension, then
// the terminal fail directive. If any step fails the rest is abandoned and
// the error swallowed so the connection still closes cleanly.
func (s *Server) failRequest(logger *slog.Logger, req *fastagi.Request, msg string) {
	if err := req.Verbose(msg); err != nil {
		logger.Debug("failure signaling abandoned", slog.Any("err", err))
		return
	}
	if err := req.AppExec("Goto", failExtension); err != nil {
		logger.Debug("failure signaling abandoned", slog.Any("err", err))
		return
	}
	if err := req.Fail(); err != nil {
		logger.Debug("failure signaling abandoned", slog.Any("err", err))
	}
}
