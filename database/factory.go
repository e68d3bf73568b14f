package database

import (
	"database/sql"
	"errors"
	"fmt"
	"slices"

	"github.com/gaborage/go-bricks-lazyload/config"
	"github.com/gaborage/go-bricks-lazyload/database/internal/sqlconn"
	"github.com/gaborage/go-bricks-lazyload/database/internal/tracking"
	"github.com/gaborage/go-bricks-lazyload/database/oracle"
	"github.com/gaborage/go-bricks-lazyload/database/postgresql"
	"github.com/gaborage/go-bricks-lazyload/database/types"
	"github.com/gaborage/go-bricks-lazyload/logger"
)

// ErrUnsupportedVendor is returned for database types other than postgresql and oracle.
var ErrUnsupportedVendor = errors.New("unsupported database type")

type opener func(*config.DatabaseConfig, logger.Logger) (types.Interface, error)

var openers = map[string]opener{
	PostgreSQL: postgresql.NewConnection,
	Oracle:     oracle.NewConnection,
}

// Connection is a tracked connection that also owns its pool metrics.
type Connection struct {
	*tracking.Connection
	unregisterPoolMetrics func()
}

// NewConnection opens the connection described by cfg and wraps it with
// statement tracking. interceptors are attached to the tracked connection and
// run around every reader statement.
func NewConnection(cfg *config.DatabaseConfig, log logger.Logger, interceptors ...types.CommandInterceptor) (*Connection, error) {
	open, ok := openers[cfg.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %s (supported: %v)", ErrUnsupportedVendor, cfg.Type, GetSupportedDatabaseTypes())
	}

	conn, err := open(cfg, log)
	if err != nil {
		return nil, err
	}

	return Wrap(conn, log, cfg, interceptors...), nil
}

// Wrap decorates an already open connection with tracking, interceptors and
// pool metrics.
func Wrap(conn types.Interface, log logger.Logger, cfg *config.DatabaseConfig, interceptors ...types.CommandInterceptor) *Connection {
	return &Connection{
		Connection:            tracking.NewConnection(conn, log, cfg, interceptors...),
		unregisterPoolMetrics: tracking.RegisterConnectionPoolMetrics(conn, conn.DatabaseType()),
	}
}

// FromDB adapts an already open pool, such as one created by a test harness,
// to Interface. The result is untracked; pass it to Wrap.
func FromDB(db *sql.DB, vendor string, log logger.Logger) Interface {
	return sqlconn.New(db, vendor, log)
}

// Close unregisters the pool metrics and closes the underlying connection.
func (c *Connection) Close() error {
	c.unregisterPoolMetrics()
	return c.Connection.Close()
}

// ValidateDatabaseType returns nil if dbType is one of the supported database types.
func ValidateDatabaseType(dbType string) error {
	if !slices.Contains(GetSupportedDatabaseTypes(), dbType) {
		return fmt.Errorf("%w: %s (supported: %v)", ErrUnsupportedVendor, dbType, GetSupportedDatabaseTypes())
	}
	return nil
}

// GetSupportedDatabaseTypes returns a list of supported database types
func GetSupportedDatabaseTypes() []string {
	return []string{PostgreSQL, Oracle}
}
