package types

import (
	"context"
	"sync"
	"time"
)

// Command describes one statement travelling through the query pipeline.
type Command struct {
	Query  string
	Args   []any
	Vendor string
}

// CommandInterceptor observes statements. ReaderExecuting runs synchronously on
// the calling goroutine before the statement is sent; ReaderExecuted runs after
// the driver returned. Both receive the same InterceptionContext.
//
// Implementations must not alter the statement outcome. The pipeline recovers
// panics raised by an interceptor and only logs them.
type CommandInterceptor interface {
	ReaderExecuting(ctx context.Context, cmd *Command, ic *InterceptionContext)
	ReaderExecuted(ctx context.Context, cmd *Command, ic *InterceptionContext)
}

// InterceptionContext is the per-execution state slot shared by the executing
// and executed hooks of one statement. It is never reused across executions.
type InterceptionContext struct {
	mu    sync.Mutex
	state map[any]any

	// Started is set by the pipeline right before ReaderExecuting.
	Started time.Time
	// Err is the statement error, populated before ReaderExecuted.
	Err error
}

// NewInterceptionContext returns an empty slot for a single execution.
func NewInterceptionContext() *InterceptionContext {
	return &InterceptionContext{Started: time.Now()}
}

// StateKey is a typed key into an InterceptionContext. Every call to
// NewStateKey yields a distinct key, so two interceptors using the same name
// never see each other's state.
type StateKey[T any] struct {
	name string
}

// NewStateKey creates a unique key for values of type T.
func NewStateKey[T any](name string) *StateKey[T] {
	return &StateKey[T]{name: name}
}

// String returns the key name.
func (k *StateKey[T]) String() string {
	return k.name
}

// SetState stores value under key, replacing any previous value.
func SetState[T any](ic *InterceptionContext, key *StateKey[T], value T) {
	if ic == nil || key == nil {
		return
	}
	ic.mu.Lock()
	defer ic.mu.Unlock()
	if ic.state == nil {
		ic.state = make(map[any]any)
	}
	ic.state[key] = value
}

// FindState returns the value stored under key without removing it.
func FindState[T any](ic *InterceptionContext, key *StateKey[T]) (T, bool) {
	var zero T
	if ic == nil || key == nil {
		return zero, false
	}
	ic.mu.Lock()
	defer ic.mu.Unlock()
	v, ok := ic.state[key]
	if !ok {
		return zero, false
	}
	typed, ok := v.(T)
	return typed, ok
}

// TakeState returns the value stored under key and removes it, so at most one
// consumer observes it.
func TakeState[T any](ic *InterceptionContext, key *StateKey[T]) (T, bool) {
	var zero T
	if ic == nil || key == nil {
		return zero, false
	}
	ic.mu.Lock()
	defer ic.mu.Unlock()
	v, ok := ic.state[key]
	if !ok {
		return zero, false
	}
	delete(ic.state, key)
	typed, ok := v.(T)
	return typed, ok
}
