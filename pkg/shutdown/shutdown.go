// Package shutdown runs ordered cleanup hooks when the server stops.
package shutdown

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/gabrielmiguelok/formwizard/pkg/logging"
)

// Common shutdown errors.
var (
	ErrShutdownTimeout = errors.New("shutdown timed out")
	ErrAlreadyClosed   = errors.New("shutdown handler already closed")
)

// Hook priorities; lower runs earlier.
const (
	PriorityHTTP     = 100
	PrioritySessions = 200
)

// Hook is one cleanup step.
type Hook struct {
	Name     string
	Priority int
	Fn       func(ctx context.Context) error
}

// Handler manages graceful shutdown.
type Handler struct {
	timeout time.Duration
	signals []os.Signal
	logger  logging.Logger
	hooks   []Hook
	done    chan struct{}
	closed  bool
	mu      sync.Mutex
}

// NewHandler creates a handler that waits for SIGINT and SIGTERM and gives
// the hooks timeout to finish.
func NewHandler(timeout time.Duration, logger logging.Logger) *Handler {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = logging.NopLogger{}
	}
	return &Handler{
		timeout: timeout,
		signals: []os.Signal{os.Interrupt, syscall.SIGTERM},
		logger:  logger,
		done:    make(chan struct{}),
	}
}

// Register adds a hook.
func (h *Handler) Register(name string, priority int, fn func(ctx context.Context) error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hooks = append(h.hooks, Hook{Name: name, Priority: priority, Fn: fn})
}

// Wait blocks until a signal arrives or ctx ends, then shuts down.
func (h *Handler) Wait(ctx context.Context) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, h.signals...)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		h.logger.Info("shutdown signal received", logging.String("signal", sig.String()))
	case <-ctx.Done():
	case <-h.done:
		return nil
	}
	return h.Shutdown()
}

// Shutdown runs the hooks in priority order. It stops at the deadline.
func (h *Handler) Shutdown() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ErrAlreadyClosed
	}
	h.closed = true
	close(h.done)
	hooks := make([]Hook, len(h.hooks))
	copy(hooks, h.hooks)
	h.mu.Unlock()

	sort.SliceStable(hooks, func(i, j int) bool {
		return hooks[i].Priority < hooks[j].Priority
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	var errs []error
	for _, hook := range hooks {
		start := time.Now()
		err := hook.Fn(ctx)
		fields := []logging.Field{
			logging.String("hook", hook.Name),
			logging.Duration("duration", time.Since(start)),
		}
		if err != nil {
			h.logger.Error("shutdown hook failed", append(fields, logging.Err(err))...)
			errs = append(errs, err)
		} else {
			h.logger.Debug("shutdown hook done", fields...)
		}

		if ctx.Err() != nil {
			return errors.Join(append(errs, ErrShutdownTimeout)...)
		}
	}
	return errors.Join(errs...)
}

// Done is closed once shutdown starts.
func (h *Handler) Done() <-chan struct{} {
	return h.done
}
