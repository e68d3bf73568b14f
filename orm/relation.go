package orm

import (
	"context"
	"sync"
)

// Loader fetches a related value on first access.
type Loader[T any] func(ctx context.Context) (T, error)

// Reference is a to-one relation. A zero Reference has neither value nor
// loader; Get then returns the zero value.
type Reference[T any] struct {
	mu     sync.Mutex
	loaded bool
	value  T
	load   Loader[T]
}

// NewReference returns a deferred relation backed by load.
func NewReference[T any](load Loader[T]) *Reference[T] {
	return &Reference[T]{load: load}
}

// LoadedReference returns a relation that was loaded eagerly.
func LoadedReference[T any](v T) *Reference[T] {
	return &Reference[T]{loaded: true, value: v}
}

// Get returns the related value, running the loader on the first call. A
// failed load leaves the reference unloaded so the next Get retries.
func (r *Reference[T]) Get(ctx context.Context) (T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.loaded || r.load == nil {
		return r.value, nil
	}
	v, err := r.load(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	r.value, r.loaded = v, true
	return v, nil
}

// Set stores v and marks the relation loaded.
func (r *Reference[T]) Set(v T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.value, r.loaded = v, true
}

// IsLoaded reports whether Get can answer without querying.
func (r *Reference[T]) IsLoaded() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loaded || r.load == nil
}

// Collection is a to-many relation.
type Collection[T any] struct {
	ref Reference[[]T]
}

// NewCollection returns a deferred collection backed by load.
func NewCollection[T any](load Loader[[]T]) *Collection[T] {
	return &Collection[T]{ref: Reference[[]T]{load: load}}
}

// LoadedCollection returns a collection that was loaded eagerly.
func LoadedCollection[T any](items []T) *Collection[T] {
	return &Collection[T]{ref: Reference[[]T]{loaded: true, value: items}}
}

// Get returns the items, running the loader on the first call.
func (c *Collection[T]) Get(ctx context.Context) ([]T, error) {
	return c.ref.Get(ctx)
}

// Set stores items and marks the collection loaded.
func (c *Collection[T]) Set(items []T) {
	c.ref.Set(items)
}

// IsLoaded reports whether Get can answer without querying.
func (c *Collection[T]) IsLoaded() bool {
	return c.ref.IsLoaded()
}
