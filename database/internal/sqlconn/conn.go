// Package sqlconn adapts a database/sql pool to types.Interface. Vendor
// packages only build the DSN and open the pool; everything after that is
// shared here.
package sqlconn

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/gaborage/go-bricks-lazyload/config"
	"github.com/gaborage/go-bricks-lazyload/database/types"
	"github.com/gaborage/go-bricks-lazyload/logger"
)

const (
	pingTimeout   = 10 * time.Second
	healthTimeout = 5 * time.Second
)

// Conn implements types.Interface over *sql.DB.
type Conn struct {
	db     *sql.DB
	vendor string
	logger logger.Logger
}

var _ types.Interface = (*Conn)(nil)

// New wraps an open pool.
func New(db *sql.DB, vendor string, log logger.Logger) *Conn {
	return &Conn{db: db, vendor: vendor, logger: log}
}

// ConfigurePool applies the pool settings from cfg.
func ConfigurePool(db *sql.DB, cfg *config.PoolConfig) {
	if cfg == nil {
		return
	}
	db.SetMaxOpenConns(cfg.MaxConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
}

// Ping verifies a freshly opened pool and closes it on failure.
func Ping(db *sql.DB, vendor string, log logger.Logger, ping func(context.Context, *sql.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := ping(ctx, db); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			log.Error().Err(closeErr).Str("vendor", vendor).Msg("Failed to close database connection after ping failure")
		}
		return fmt.Errorf("failed to ping %s database: %w", vendor, err)
	}
	return nil
}

// DB exposes the underlying pool.
func (c *Conn) DB() *sql.DB {
	return c.db
}

// Query executes a query that returns rows.
func (c *Conn) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return c.db.QueryContext(ctx, query, args...)
}

// QueryRow executes a query that returns at most one row.
func (c *Conn) QueryRow(ctx context.Context, query string, args ...any) types.Row {
	return types.NewRowFromSQL(c.db.QueryRowContext(ctx, query, args...))
}

// Exec executes a statement without returning rows.
func (c *Conn) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return c.db.ExecContext(ctx, query, args...)
}

// Health checks database connectivity.
func (c *Conn) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()
	return c.db.PingContext(ctx)
}

// Stats returns pool statistics.
func (c *Conn) Stats() (map[string]any, error) {
	stats := c.db.Stats()
	return map[string]any{
		"max_open_connections": stats.MaxOpenConnections,
		"open_connections":     stats.OpenConnections,
		"in_use":               stats.InUse,
		"idle":                 stats.Idle,
		"wait_count":           stats.WaitCount,
		"wait_duration":        stats.WaitDuration.String(),
		"max_idle_closed":      stats.MaxIdleClosed,
		"max_idle_time_closed": stats.MaxIdleTimeClosed,
		"max_lifetime_closed":  stats.MaxLifetimeClosed,
	}, nil
}

// Close closes the pool.
func (c *Conn) Close() error {
	c.logger.Info().Str("vendor", c.vendor).Msg("Closing database connection")
	return c.db.Close()
}

// DatabaseType returns the vendor identifier.
func (c *Conn) DatabaseType() string {
	return c.vendor
}
