package handler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/mdufour/agid/internal/dbpool"
	"github.com/mdufour/agid/internal/fastagi"
)

// HandleFunc is the per-request routine of a handler.
type HandleFunc func(ctx context.Context, req *fastagi.Request, cur *dbpool.Cursor, args []string) error

// SetupFunc rebuilds a handler's cached state. It runs once at bootstrap and
// again on every reload signal, each time with a fresh cursor.
type SetupFunc func(ctx context.Context, cur *dbpool.Cursor) error

// ErrReloadSkipped reports that a reload could not take a handler's writer
// lock within its retry budget and was abandoned for that handler only.
var ErrReloadSkipped = errors.New("handler: reload lock not acquired")

// Writer acquisition during reload never blocks indefinitely: it try-locks
// on a bounded retry budget and gives up, leaving the previous setup state
// authoritative until the next signal. A hung reload would be an outage.
const (
	reloadLockRetries = 20
	reloadLockBackoff = 50 * time.Millisecond
)

// Handler is one named unit of request-handling logic: an optional setup
// routine producing handler-local cached state, a handle routine invoked per
// request, and the reader-writer lock that lets requests share the state
// while a reload swaps it out exclusively.
type Handler struct {
	name     string
	handleFn HandleFunc
	setupFn  SetupFunc
	mu       sync.RWMutex
}

func (h *Handler) Name() string {
	return h.name
}

// Setup runs the setup routine unguarded. Only safe during bootstrap, before
// concurrent traffic exists.
func (h *Handler) Setup(ctx context.Context, cur *dbpool.Cursor) error {
	if h.setupFn == nil {
		return nil
	}
	return h.setupFn(ctx, cur)
}

// Reload re-runs the setup routine under exclusive access. Handlers without
// a setup routine have nothing to rebuild; no lock is taken for them. When
// the writer lock cannot be acquired within the retry budget the reload of
// this handler alone is abandoned with ErrReloadSkipped.
func (h *Handler) Reload(ctx context.Context, cur *dbpool.Cursor) error {
	if h.setupFn == nil {
		return nil
	}

	if !h.tryLockWriter(ctx) {
		return ErrReloadSkipped
	}
	defer h.mu.Unlock()

	return h.setupFn(ctx, cur)
}

// Handle runs the handle routine under shared access. Readers only block
// while a reload holds the writer lock on this same handler; requests
// against other handlers are never serialized here.
func (h *Handler) Handle(ctx context.Context, req *fastagi.Request, cur *dbpool.Cursor, args []string) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.handleFn(ctx, req, cur, args)
}

func (h *Handler) tryLockWriter(ctx context.Context) bool {
	for i := 0; i < reloadLockRetries; i++ {
		if h.mu.TryLock() {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(reloadLockBackoff):
		}
	}
	return false
}
