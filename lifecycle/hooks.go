// Package lifecycle collects callbacks that must run when the process is
// going away, either through an orderly shutdown or a termination signal.
package lifecycle

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
)

// Event identifies why the hooks are firing.
type Event int

const (
	// EventShutdown is fired by the application on its normal exit path.
	EventShutdown Event = iota
	// EventSignal is fired when a termination signal was received.
	EventSignal
)

func (e Event) String() string {
	switch e {
	case EventShutdown:
		return "shutdown"
	case EventSignal:
		return "signal"
	default:
		return fmt.Sprintf("event(%d)", int(e))
	}
}

// Registration identifies a registered hook.
type Registration uint64

type hook struct {
	id   Registration
	name string
	fn   func(Event)
}

// Hooks is a registry of termination callbacks. It is safe for concurrent use.
type Hooks struct {
	mu    sync.Mutex
	next  Registration
	hooks []hook

	// OnPanic, when set, receives panics raised by a hook. Remaining hooks
	// still run.
	OnPanic func(name string, recovered any)
}

// New returns an empty registry.
func New() *Hooks {
	return &Hooks{}
}

var defaultHooks = New()

// Default returns the process-wide registry.
func Default() *Hooks {
	return defaultHooks
}

// Register adds fn under name and returns a handle for Unregister.
func (h *Hooks) Register(name string, fn func(Event)) Registration {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.next++
	h.hooks = append(h.hooks, hook{id: h.next, name: name, fn: fn})
	return h.next
}

// Unregister removes the hook and reports whether it was registered.
func (h *Hooks) Unregister(id Registration) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, hk := range h.hooks {
		if hk.id == id {
			h.hooks = append(h.hooks[:i:i], h.hooks[i+1:]...)
			return true
		}
	}
	return false
}

// Len returns the number of registered hooks.
func (h *Hooks) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.hooks)
}

// Fire runs every registered hook in registration order on the calling
// goroutine. Hooks stay registered; firing twice runs them twice.
func (h *Hooks) Fire(ev Event) {
	h.mu.Lock()
	snapshot := append([]hook(nil), h.hooks...)
	onPanic := h.OnPanic
	h.mu.Unlock()

	for _, hk := range snapshot {
		h.run(hk, ev, onPanic)
	}
}

func (h *Hooks) run(hk hook, ev Event, onPanic func(string, any)) {
	defer func() {
		if r := recover(); r != nil && onPanic != nil {
			onPanic(hk.name, r)
		}
	}()
	hk.fn(ev)
}

// SignalHandler allows injectable signal handling for testing.
type SignalHandler interface {
	Notify(c chan<- os.Signal, sig ...os.Signal)
	Stop(c chan<- os.Signal)
}

// OSSignals is the SignalHandler backed by os/signal.
type OSSignals struct{}

// Notify relays sig to c.
func (OSSignals) Notify(c chan<- os.Signal, sig ...os.Signal) { signal.Notify(c, sig...) }

// Stop stops relaying to c.
func (OSSignals) Stop(c chan<- os.Signal) { signal.Stop(c) }

// WaitForSignal blocks until one of sig arrives or ctx is done. On a signal it
// fires EventSignal and returns the signal; otherwise it returns nil.
func (h *Hooks) WaitForSignal(ctx context.Context, handler SignalHandler, sig ...os.Signal) os.Signal {
	quit := make(chan os.Signal, 1)
	handler.Notify(quit, sig...)
	defer handler.Stop(quit)

	select {
	case s := <-quit:
		h.Fire(EventSignal)
		return s
	case <-ctx.Done():
		return nil
	}
}
