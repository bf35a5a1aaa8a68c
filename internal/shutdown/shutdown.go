// Package shutdown turns interrupt signals into context cancellation and runs
// cleanup callbacks once a discovery session has finalized.
package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/atharvkhisti/WebReckon/internal/logger"
)

// Handler manages graceful shutdown. The first signal cancels Context so the
// running session can finalize and persist partial results; a second signal
// calls OnForce.
type Handler struct {
	mu sync.Mutex

	// Callbacks
	callbacks     []Callback
	callbackNames []string

	// State
	isShuttingDown atomic.Bool
	signals        atomic.Int32
	done           chan struct{}
	timeout        time.Duration

	// Context
	ctx    context.Context
	cancel context.CancelFunc

	// Signal handling
	sigChan chan os.Signal
	onForce func()

	log *logger.Logger
}

// Callback is a function called during shutdown.
type Callback func(ctx context.Context) error

// Config holds shutdown configuration.
type Config struct {
	Timeout time.Duration
	Signals []os.Signal
	OnForce func()
	Logger  *logger.Logger
}

// DefaultConfig returns default configuration.
func DefaultConfig() Config {
	return Config{
		Timeout: 10 * time.Second,
		Signals: []os.Signal{syscall.SIGINT, syscall.SIGTERM},
		OnForce: func() { os.Exit(130) },
	}
}

// New creates a handler whose Context derives from parent and starts
// listening for signals.
func New(parent context.Context, cfg Config) *Handler {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if len(cfg.Signals) == 0 {
		cfg.Signals = []os.Signal{syscall.SIGINT, syscall.SIGTERM}
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNop()
	}

	ctx, cancel := context.WithCancel(parent)

	h := &Handler{
		done:    make(chan struct{}),
		timeout: cfg.Timeout,
		ctx:     ctx,
		cancel:  cancel,
		sigChan: make(chan os.Signal, 2),
		onForce: cfg.OnForce,
		log:     cfg.Logger.WithComponent("shutdown"),
	}

	signal.Notify(h.sigChan, cfg.Signals...)
	go h.listen()

	return h
}

func (h *Handler) listen() {
	for {
		select {
		case sig := <-h.sigChan:
			if h.signals.Add(1) == 1 {
				h.log.WithField("signal", sig.String()).Warn("Interrupt received, finalizing session")
				h.cancel()
				continue
			}
			h.log.Warn("Second interrupt, exiting immediately")
			if h.onForce != nil {
				h.onForce()
			}
		case <-h.done:
			return
		}
	}
}

// Register registers a shutdown callback with a name. Callbacks run in
// reverse registration order.
func (h *Handler) Register(name string, callback Callback) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.callbacks = append(h.callbacks, callback)
	h.callbackNames = append(h.callbackNames, name)
}

// RegisterFunc registers a simple cleanup function.
func (h *Handler) RegisterFunc(name string, fn func()) {
	h.Register(name, func(ctx context.Context) error {
		fn()
		return nil
	})
}

// Context is cancelled by the first signal or by Shutdown.
func (h *Handler) Context() context.Context {
	return h.ctx
}

// Interrupted reports whether a signal has been received.
func (h *Handler) Interrupted() bool {
	return h.signals.Load() > 0
}

// IsShuttingDown returns whether shutdown is in progress.
func (h *Handler) IsShuttingDown() bool {
	return h.isShuttingDown.Load()
}

// Done returns a channel that is closed when shutdown completes.
func (h *Handler) Done() <-chan struct{} {
	return h.done
}

// Shutdown cancels Context, runs every callback within the timeout and stops
// signal delivery. Only the first call does any work.
func (h *Handler) Shutdown() *Result {
	if !h.isShuttingDown.CompareAndSwap(false, true) {
		<-h.done
		return &Result{}
	}

	start := time.Now()
	h.cancel()

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	h.mu.Lock()
	callbacks := make([]Callback, len(h.callbacks))
	names := make([]string, len(h.callbackNames))
	copy(callbacks, h.callbacks)
	copy(names, h.callbackNames)
	h.mu.Unlock()

	res := &Result{}
	for i := len(callbacks) - 1; i >= 0; i-- {
		if err := h.execute(ctx, names[i], callbacks[i]); err != nil {
			h.log.WithError(err).WithField("callback", names[i]).Warn("Shutdown callback failed")
			res.Errors = append(res.Errors, err)
		}
	}
	res.Elapsed = time.Since(start)

	signal.Stop(h.sigChan)
	close(h.done)
	return res
}

// execute runs a callback, giving up when ctx expires.
func (h *Handler) execute(ctx context.Context, name string, callback Callback) error {
	done := make(chan error, 1)

	go func() {
		done <- callback(ctx)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return &TimeoutError{CallbackName: name}
	}
}

// Trigger delivers a synthetic SIGINT.
func (h *Handler) Trigger() {
	select {
	case h.sigChan <- syscall.SIGINT:
	default:
		// Signal already pending
	}
}

// TimeoutError is returned when a callback times out.
type TimeoutError struct {
	CallbackName string
}

func (e *TimeoutError) Error() string {
	return "shutdown callback timed out: " + e.CallbackName
}

// Result holds the result of a shutdown operation.
type Result struct {
	Elapsed time.Duration
	Errors  []error
}

// HasErrors returns whether any errors occurred during shutdown.
func (r *Result) HasErrors() bool {
	return len(r.Errors) > 0
}
