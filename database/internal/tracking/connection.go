package tracking

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/gaborage/go-bricks-lazyload/config"
	"github.com/gaborage/go-bricks-lazyload/database/types"
	"github.com/gaborage/go-bricks-lazyload/logger"
)

// Connection wraps a types.Interface. Query and QueryRow run every registered
// interceptor around the statement; every operation is logged, traced and
// metered. Interceptor failures never change a statement's outcome.
type Connection struct {
	conn     types.Interface
	logger   logger.Logger
	vendor   string
	settings Settings

	mu           sync.RWMutex
	interceptors []types.CommandInterceptor
}

var _ types.Interface = (*Connection)(nil)

// NewConnection returns a tracked connection around conn using conn.DatabaseType()
// as the vendor and cfg for statement logging settings.
func NewConnection(conn types.Interface, log logger.Logger, cfg *config.DatabaseConfig, interceptors ...types.CommandInterceptor) *Connection {
	c := &Connection{
		conn:     conn,
		logger:   log,
		vendor:   conn.DatabaseType(),
		settings: NewSettings(cfg),
	}
	for _, i := range interceptors {
		c.AddInterceptor(i)
	}
	return c
}

// AddInterceptor registers i. Adding the same interceptor twice is a no-op.
func (c *Connection) AddInterceptor(i types.CommandInterceptor) {
	if i == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, existing := range c.interceptors {
		if existing == i {
			return
		}
	}
	c.interceptors = append(c.interceptors, i)
}

// RemoveInterceptor unregisters i if present.
func (c *Connection) RemoveInterceptor(i types.CommandInterceptor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for idx, existing := range c.interceptors {
		if existing == i {
			c.interceptors = append(c.interceptors[:idx:idx], c.interceptors[idx+1:]...)
			return
		}
	}
}

// Interceptors returns a copy of the registered interceptors.
func (c *Connection) Interceptors() []types.CommandInterceptor {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]types.CommandInterceptor(nil), c.interceptors...)
}

// Query executes a query through the interceptor pipeline.
func (c *Connection) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	cmd, ic, interceptors := c.beginReader(ctx, query, args)

	rows, err := c.conn.Query(ctx, query, args...)

	c.endReader(ctx, cmd, ic, interceptors, err)
	return rows, err
}

// QueryRow executes a single row query through the interceptor pipeline. The
// statement is sent by the driver before QueryRow returns, so the executed
// hooks fire immediately; scan errors are reported by the returned Row.
func (c *Connection) QueryRow(ctx context.Context, query string, args ...any) types.Row {
	cmd, ic, interceptors := c.beginReader(ctx, query, args)

	row := c.conn.QueryRow(ctx, query, args...)
	var err error
	if row != nil {
		err = row.Err()
	}

	c.endReader(ctx, cmd, ic, interceptors, err)
	return row
}

// Exec executes a statement without returning rows. Reader interceptors are
// not involved.
func (c *Connection) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	start := time.Now()
	result, err := c.conn.Exec(ctx, query, args...)

	c.track(ctx, query, args, start, extractRowsAffected(result, err), err)
	return result, err
}

// Health checks database connection health (no tracking needed)
func (c *Connection) Health(ctx context.Context) error {
	return c.conn.Health(ctx)
}

// Stats returns the wrapped connection statistics.
func (c *Connection) Stats() (map[string]any, error) {
	return c.conn.Stats()
}

// Close closes the wrapped connection.
func (c *Connection) Close() error {
	return c.conn.Close()
}

// DatabaseType returns the wrapped connection vendor.
func (c *Connection) DatabaseType() string {
	return c.vendor
}

func (c *Connection) beginReader(ctx context.Context, query string, args []any) (*types.Command, *types.InterceptionContext, []types.CommandInterceptor) {
	cmd := &types.Command{Query: query, Args: args, Vendor: c.vendor}
	ic := types.NewInterceptionContext()
	interceptors := c.Interceptors()

	for _, i := range interceptors {
		c.invoke("ReaderExecuting", i, func() { i.ReaderExecuting(ctx, cmd, ic) })
	}

	ic.Started = time.Now()
	return cmd, ic, interceptors
}

func (c *Connection) endReader(ctx context.Context, cmd *types.Command, ic *types.InterceptionContext, interceptors []types.CommandInterceptor, err error) {
	start := ic.Started
	ic.Err = err

	for _, i := range interceptors {
		c.invoke("ReaderExecuted", i, func() { i.ReaderExecuted(ctx, cmd, ic) })
	}

	c.track(ctx, cmd.Query, cmd.Args, start, 0, err)
}

// invoke runs one interceptor hook and contains any panic it raises.
func (c *Connection) invoke(hook string, i types.CommandInterceptor, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			if c.logger == nil {
				return
			}
			c.logger.Error().
				Str("hook", hook).
				Str("interceptor", fmt.Sprintf("%T", i)).
				Interface("panic", r).
				Msg("Statement interceptor failed")
		}
	}()
	fn()
}

func (c *Connection) track(ctx context.Context, query string, args []any, start time.Time, rowsAffected int64, err error) {
	tc := &Context{
		Logger:   c.logger,
		Vendor:   c.vendor,
		Settings: c.settings,
	}
	TrackDBOperation(ctx, tc, query, args, start, rowsAffected, err)
}
