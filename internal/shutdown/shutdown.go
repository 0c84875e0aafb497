// Package shutdown stops the serve command cleanly on SIGINT/SIGTERM.
package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/PentesterFlow/PanelProbe/internal/logger"
)

// Callback releases one resource during shutdown.
type Callback func(ctx context.Context) error

// GracefulServer is anything with an http.Server-style Shutdown.
type GracefulServer interface {
	Shutdown(ctx context.Context) error
}

type step struct {
	name string
	fn   Callback
}

// Handler runs registered cleanup steps once, newest first.
type Handler struct {
	mu    sync.Mutex
	steps []step

	stopping atomic.Bool
	done     chan struct{}
	timeout  time.Duration
	logger   *logger.Logger

	ctx    context.Context
	cancel context.CancelFunc

	sigChan chan os.Signal
	errs    []error
}

// Config holds shutdown configuration.
type Config struct {
	Timeout time.Duration
	Signals []os.Signal
	Logger  *logger.Logger
}

// DefaultConfig returns default configuration.
func DefaultConfig() Config {
	return Config{
		Timeout: 15 * time.Second,
		Signals: []os.Signal{syscall.SIGINT, syscall.SIGTERM},
	}
}

// New creates a handler listening for cfg.Signals.
func New(cfg Config) *Handler {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if len(cfg.Signals) == 0 {
		cfg.Signals = DefaultConfig().Signals
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Global()
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &Handler{
		done:    make(chan struct{}),
		timeout: cfg.Timeout,
		logger:  cfg.Logger.WithComponent("shutdown"),
		ctx:     ctx,
		cancel:  cancel,
		sigChan: make(chan os.Signal, 1),
	}
	signal.Notify(h.sigChan, cfg.Signals...)
	return h
}

// Register adds a cleanup step.
func (h *Handler) Register(name string, fn Callback) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.steps = append(h.steps, step{name: name, fn: fn})
}

// RegisterFunc adds a cleanup step that cannot fail.
func (h *Handler) RegisterFunc(name string, fn func()) {
	h.Register(name, func(ctx context.Context) error {
		fn()
		return nil
	})
}

// RegisterServer adds a server's Shutdown as a cleanup step.
func (h *Handler) RegisterServer(name string, srv GracefulServer) {
	h.Register(name, srv.Shutdown)
}

// Context is cancelled as soon as shutdown begins. In-flight probes
// derive from it so they stop promptly.
func (h *Handler) Context() context.Context {
	return h.ctx
}

// IsShuttingDown reports whether shutdown has begun.
func (h *Handler) IsShuttingDown() bool {
	return h.stopping.Load()
}

// Done is closed once every step has run.
func (h *Handler) Done() <-chan struct{} {
	return h.done
}

// Errors returns the step failures of a completed shutdown.
func (h *Handler) Errors() []error {
	<-h.done
	return h.errs
}

// Listen shuts down on the first signal and returns Done.
func (h *Handler) Listen() <-chan struct{} {
	go func() {
		select {
		case sig := <-h.sigChan:
			h.logger.Infof("Received %s, shutting down", sig)
			h.Shutdown()
		case <-h.ctx.Done():
		}
	}()
	return h.done
}

// Shutdown cancels Context and runs the steps in reverse registration
// order, each bounded by the shared timeout. Later calls are no-ops.
func (h *Handler) Shutdown() {
	if !h.stopping.CompareAndSwap(false, true) {
		return
	}
	start := time.Now()
	h.cancel()
	signal.Stop(h.sigChan)

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	h.mu.Lock()
	steps := make([]step, len(h.steps))
	copy(steps, h.steps)
	h.mu.Unlock()

	for i := len(steps) - 1; i >= 0; i-- {
		if err := run(ctx, steps[i]); err != nil {
			h.logger.WithError(err).Warnf("Shutdown step %q failed", steps[i].name)
			h.errs = append(h.errs, err)
		}
	}

	h.logger.Event(logger.InfoLevel).
		Dur("elapsed", time.Since(start)).
		Int("errors", len(h.errs)).
		Msg("Shutdown complete")
	close(h.done)
}

func run(ctx context.Context, s step) error {
	result := make(chan error, 1)
	go func() {
		result <- s.fn(ctx)
	}()

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return &TimeoutError{Step: s.name}
	}
}

// Trigger simulates a SIGTERM.
func (h *Handler) Trigger() {
	select {
	case h.sigChan <- syscall.SIGTERM:
	default:
	}
}

// TimeoutError is returned when a step outlives the shutdown timeout.
type TimeoutError struct {
	Step string
}

func (e *TimeoutError) Error() string {
	return "shutdown step timed out: " + e.Step
}
