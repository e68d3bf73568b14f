package logger

import (
	"context"
	"sync/atomic"
)

// contextKey is the type for context keys to avoid collisions
type contextKey string

const (
	// dbCounterKey tracks database statements issued per request
	dbCounterKey contextKey = "db_operation_counter"
	// dbElapsedKey tracks total database time per request
	dbElapsedKey contextKey = "db_elapsed_nanos"
	// lazyLoadCounterKey tracks deferred loads issued per request
	lazyLoadCounterKey contextKey = "lazy_load_counter"
)

// WithDBCounter creates a new context with a database operation counter and elapsed time tracker
func WithDBCounter(ctx context.Context) context.Context {
	counter := int64(0)
	elapsed := int64(0)
	ctx = context.WithValue(ctx, dbCounterKey, &counter)
	ctx = context.WithValue(ctx, dbElapsedKey, &elapsed)
	return ctx
}

// IncrementDBCounter increments the database operation counter in the context
func IncrementDBCounter(ctx context.Context) {
	addCounter(ctx, dbCounterKey, 1)
}

// GetDBCounter returns the current database operation count from the context
func GetDBCounter(ctx context.Context) int64 {
	return loadCounter(ctx, dbCounterKey)
}

// AddDBElapsed adds elapsed nanoseconds to the database elapsed time in the context
func AddDBElapsed(ctx context.Context, nanos int64) {
	addCounter(ctx, dbElapsedKey, nanos)
}

// GetDBElapsed returns the current database elapsed time in nanoseconds from the context
func GetDBElapsed(ctx context.Context) int64 {
	return loadCounter(ctx, dbElapsedKey)
}

// WithLazyLoadCounter creates a new context that counts deferred loads.
func WithLazyLoadCounter(ctx context.Context) context.Context {
	counter := int64(0)
	return context.WithValue(ctx, lazyLoadCounterKey, &counter)
}

// IncrementLazyLoadCounter increments the deferred-load counter in the context
func IncrementLazyLoadCounter(ctx context.Context) {
	addCounter(ctx, lazyLoadCounterKey, 1)
}

// GetLazyLoadCounter returns the number of deferred loads recorded in the context
func GetLazyLoadCounter(ctx context.Context) int64 {
	return loadCounter(ctx, lazyLoadCounterKey)
}

func addCounter(ctx context.Context, key contextKey, delta int64) {
	if ctx == nil {
		return
	}
	if counter, ok := ctx.Value(key).(*int64); ok && counter != nil {
		atomic.AddInt64(counter, delta)
	}
}

func loadCounter(ctx context.Context, key contextKey) int64 {
	if ctx == nil {
		return 0
	}
	if counter, ok := ctx.Value(key).(*int64); ok && counter != nil {
		return atomic.LoadInt64(counter)
	}
	return 0
}
