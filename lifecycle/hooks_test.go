package lifecycle

import (
	"context"
	"os"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSignals struct {
	mu      sync.Mutex
	ch      chan<- os.Signal
	stopped bool
	ready   chan struct{}
}

func newFakeSignals() *fakeSignals {
	return &fakeSignals{ready: make(chan struct{})}
}

func (f *fakeSignals) Notify(c chan<- os.Signal, _ ...os.Signal) {
	f.mu.Lock()
	f.ch = c
	f.mu.Unlock()
	close(f.ready)
}

func (f *fakeSignals) Stop(_ chan<- os.Signal) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
}

func (f *fakeSignals) send(s os.Signal) {
	<-f.ready
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ch <- s
}

func TestFireRunsHooksInOrder(t *testing.T) {
	h := New()
	var got []string
	h.Register("first", func(ev Event) { got = append(got, "first:"+ev.String()) })
	h.Register("second", func(ev Event) { got = append(got, "second:"+ev.String()) })

	h.Fire(EventShutdown)

	assert.Equal(t, []string{"first:shutdown", "second:shutdown"}, got)
	assert.Equal(t, 2, h.Len())
}

func TestUnregister(t *testing.T) {
	h := New()
	calls := 0
	id := h.Register("flush", func(Event) { calls++ })

	assert.True(t, h.Unregister(id))
	assert.False(t, h.Unregister(id))

	h.Fire(EventSignal)
	assert.Zero(t, calls)
	assert.Zero(t, h.Len())
}

func TestPanickingHookDoesNotStopOthers(t *testing.T) {
	h := New()
	var panicked string
	h.OnPanic = func(name string, _ any) { panicked = name }

	ran := false
	h.Register("bad", func(Event) { panic("boom") })
	h.Register("good", func(Event) { ran = true })

	require.NotPanics(t, func() { h.Fire(EventShutdown) })
	assert.True(t, ran)
	assert.Equal(t, "bad", panicked)
}

func TestHookMayUnregisterItselfWhileFiring(t *testing.T) {
	h := New()
	var id Registration
	id = h.Register("once", func(Event) { h.Unregister(id) })

	require.NotPanics(t, func() { h.Fire(EventShutdown) })
	assert.Zero(t, h.Len())
}

func TestWaitForSignalFiresHooks(t *testing.T) {
	h := New()
	fired := make(chan Event, 1)
	h.Register("flush", func(ev Event) { fired <- ev })

	signals := newFakeSignals()
	go signals.send(syscall.SIGTERM)

	got := h.WaitForSignal(context.Background(), signals, syscall.SIGTERM)
	assert.Equal(t, syscall.SIGTERM, got)

	select {
	case ev := <-fired:
		assert.Equal(t, EventSignal, ev)
	case <-time.After(time.Second):
		t.Fatal("hook did not fire")
	}
	assert.True(t, signals.stopped)
}

func TestWaitForSignalReturnsOnContextDone(t *testing.T) {
	h := New()
	calls := 0
	h.Register("flush", func(Event) { calls++ })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Nil(t, h.WaitForSignal(ctx, newFakeSignals(), os.Interrupt))
	assert.Zero(t, calls)
}

func TestEventString(t *testing.T) {
	assert.Equal(t, "signal", EventSignal.String())
	assert.Equal(t, "event(9)", Event(9).String())
}
