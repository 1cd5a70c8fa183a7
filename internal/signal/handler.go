// Package signal stops frame loops cleanly on SIGINT or SIGTERM.
//
// The handler cancels its context with ErrInterrupted as the cause, so a
// command can tell a Ctrl-C apart from its own shutdown and still flush the
// frames it has already signed.
//
// This package imports the standard library only.
package signal

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// ErrInterrupted is the cancellation cause when a signal arrives.
var ErrInterrupted = errors.New("interrupted")

// Handler turns the first SIGINT or SIGTERM into context cancellation.
type Handler struct {
	ctx         context.Context //nolint:containedctx // the handler owns this context's lifetime
	cancel      context.CancelCauseFunc
	interrupted chan struct{}
	done        chan struct{}
	sigChan     chan os.Signal

	mu       sync.Mutex
	received os.Signal
	stopOnce sync.Once
}

// NewHandler starts listening for SIGINT and SIGTERM. Callers must Stop it:
//
//	h := signal.NewHandler(ctx)
//	defer h.Stop()
//	err := run(h.Context())
//	if h.Signal() != nil {
//		// interrupted
//	}
func NewHandler(parent context.Context) *Handler {
	ctx, cancel := context.WithCancelCause(parent)
	h := &Handler{
		ctx:         ctx,
		cancel:      cancel,
		interrupted: make(chan struct{}),
		done:        make(chan struct{}),
		sigChan:     make(chan os.Signal, 1),
	}

	signal.Notify(h.sigChan, syscall.SIGINT, syscall.SIGTERM)
	go h.listen()

	return h
}

// Context is canceled on the first signal or on Stop.
func (h *Handler) Context() context.Context {
	return h.ctx
}

// Interrupted closes when the first signal is handled.
func (h *Handler) Interrupted() <-chan struct{} {
	return h.interrupted
}

// Signal returns the signal that interrupted the handler, or nil.
func (h *Handler) Signal() os.Signal {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.received
}

// Stop stops listening and cancels the context. It is safe to call twice.
func (h *Handler) Stop() {
	h.stopOnce.Do(func() {
		signal.Stop(h.sigChan)
		close(h.done)
		h.cancel(context.Canceled)
	})
}

// handle records sig and cancels the context. Only the first call counts.
func (h *Handler) handle(sig os.Signal) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.received != nil {
		return
	}
	h.received = sig
	h.cancel(ErrInterrupted)
	close(h.interrupted)
}

func (h *Handler) listen() {
	for {
		select {
		case <-h.ctx.Done():
			if h.Signal() == nil {
				return
			}
			// Keep draining so repeated Ctrl-C does not block delivery.
			select {
			case <-h.sigChan:
			case <-h.done:
				return
			}
		case <-h.done:
			return
		case sig := <-h.sigChan:
			h.handle(sig)
		}
	}
}
