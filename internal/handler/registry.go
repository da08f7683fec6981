package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/mdufour/agid/internal/dbpool"
)

// Registry maps handler names to handlers. It is populated during process
// bootstrap only; once the server starts serving, the map itself never
// changes and only individual entries mutate through Reload.
type Registry struct {
	handlers map[string]*Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]*Handler)}
}

// Register adds a handler under a unique name. A duplicate name is a
// bootstrap error the caller must treat as fatal; the first registration is
// never silently overwritten.
func (r *Registry) Register(name string, handleFn HandleFunc, setupFn SetupFunc) error {
	if name == "" {
		return errors.New("handler: empty handler name")
	}
	if handleFn == nil {
		return fmt.Errorf("handler: %q has no handle routine", name)
	}
	if _, exists := r.handlers[name]; exists {
		return fmt.Errorf("handler: %q already registered", name)
	}

	r.handlers[name] = &Handler{
		name:     name,
		handleFn: handleFn,
		setupFn:  setupFn,
	}
	return nil
}

// Lookup resolves a handler by the name carried in a request header.
func (r *Registry) Lookup(name string) (*Handler, bool) {
	h, ok := r.handlers[name]
	return h, ok
}

// Names lists the registered handler names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SetupAll runs every handler's setup routine, unguarded, during bootstrap.
// The first failure aborts: a handler that cannot build its initial state
// must not serve traffic.
func (r *Registry) SetupAll(ctx context.Context, cur *dbpool.Cursor) error {
	for _, name := range r.Names() {
		if err := r.handlers[name].Setup(ctx, cur); err != nil {
			return fmt.Errorf("handler: setting up %q: %w", name, err)
		}
	}
	return nil
}

// ReloadAll re-runs every handler's setup routine in one deterministic pass.
// Failures are isolated per handler: a setup error or a skipped lock is
// logged and the pass continues, so one handler can never veto the reload of
// the others.
func (r *Registry) ReloadAll(ctx context.Context, cur *dbpool.Cursor, logger *slog.Logger) {
	for _, name := range r.Names() {
		h := r.handlers[name]

		switch err := h.Reload(ctx, cur); {
		case errors.Is(err, ErrReloadSkipped):
			logger.Error("reload lock refused, handler not reloaded",
				slog.String("handler", name))
		case err != nil:
			logger.Error("handler reload failed, previous state kept",
				slog.String("handler", name),
				slog.Any("err", err))
		default:
			logger.Debug("handler reloaded", slog.String("handler", name))
		}
	}
}
