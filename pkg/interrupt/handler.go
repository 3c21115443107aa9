// Package interrupt captures process-level interrupts and broadcasts
// them to registered cleanup callbacks.
//
// The handler is an explicitly constructed object owned by the process
// entry point, not a global. The first interrupt runs every registered
// callback (which typically cancels the outstanding request context); a
// second interrupt while cleanup is still running forces immediate
// process termination instead of waiting.
package interrupt

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
)

const forcedExitCode = 130

// Handler broadcasts interrupts to cleanup callbacks.
type Handler struct {
	mu        sync.Mutex
	callbacks []func()
	triggered bool

	signals chan os.Signal
	done    chan struct{}

	// exit is os.Exit, injectable for tests.
	exit func(code int)
}

// New creates a handler. Call Start to begin listening for signals.
func New() *Handler {
	return &Handler{
		signals: make(chan os.Signal, 2),
		done:    make(chan struct{}),
		exit:    os.Exit,
	}
}

// Register adds a cleanup callback. Callbacks run in registration order
// on the first interrupt. Registering after the broadcast runs the
// callback immediately, so late registrants are not silently skipped.
func (h *Handler) Register(fn func()) {
	h.mu.Lock()
	already := h.triggered
	if !already {
		h.callbacks = append(h.callbacks, fn)
	}
	h.mu.Unlock()

	if already {
		fn()
	}
}

// Start begins listening for SIGINT/SIGTERM. The first signal triggers
// the broadcast; the second forces termination.
func (h *Handler) Start() {
	signal.Notify(h.signals, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case <-h.signals:
		case <-h.done:
			return
		}
		go h.Trigger()

		select {
		case <-h.signals:
			h.exit(forcedExitCode)
		case <-h.done:
		}
	}()
}

// Trigger runs every registered callback exactly once. Safe to call
// multiple times and safe to call concurrently with Register.
func (h *Handler) Trigger() {
	h.mu.Lock()
	if h.triggered {
		h.mu.Unlock()
		return
	}
	h.triggered = true
	callbacks := h.callbacks
	h.callbacks = nil
	h.mu.Unlock()

	for _, fn := range callbacks {
		fn()
	}
}

// Stop detaches from signal delivery and ends the listener goroutine.
func (h *Handler) Stop() {
	signal.Stop(h.signals)
	select {
	case <-h.done:
	default:
		close(h.done)
	}
}
