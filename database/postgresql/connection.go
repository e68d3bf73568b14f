// Package postgresql opens PostgreSQL connections through the pgx stdlib driver.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/gaborage/go-bricks-lazyload/config"
	"github.com/gaborage/go-bricks-lazyload/database/internal/sqlconn"
	"github.com/gaborage/go-bricks-lazyload/database/types"
	"github.com/gaborage/go-bricks-lazyload/logger"
)

var (
	openPostgresDB = func(cfg *pgx.ConnConfig) *sql.DB {
		return stdlib.OpenDB(*cfg)
	}
	pingPostgresDB = func(ctx context.Context, db *sql.DB) error {
		return db.PingContext(ctx)
	}
)

// quoteDSN quotes a keyword/value DSN value following libpq rules.
func quoteDSN(value string) string {
	if value == "" {
		return "''"
	}

	plain := strings.IndexFunc(value, func(r rune) bool {
		return (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') && (r < '0' || r > '9') && r != '.' && r != '_' && r != '-'
	}) < 0
	if plain {
		return value
	}

	escaped := strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(value)
	return "'" + escaped + "'"
}

// BuildDSN returns cfg.ConnectionString if set, otherwise a keyword/value DSN.
func BuildDSN(cfg *config.DatabaseConfig) string {
	if cfg.ConnectionString != "" {
		return cfg.ConnectionString
	}

	parts := []string{
		"host=" + quoteDSN(cfg.Host),
		fmt.Sprintf("port=%d", cfg.Port),
		"user=" + quoteDSN(cfg.Username),
		"password=" + quoteDSN(cfg.Password),
		"dbname=" + quoteDSN(cfg.Database),
	}
	if cfg.SSLMode != "" {
		parts = append(parts, "sslmode="+quoteDSN(cfg.SSLMode))
	}
	return strings.Join(parts, " ")
}

// NewConnection opens and pings a PostgreSQL pool.
func NewConnection(cfg *config.DatabaseConfig, log logger.Logger) (types.Interface, error) {
	pgxConfig, err := pgx.ParseConfig(BuildDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to parse PostgreSQL config: %w", err)
	}

	db := openPostgresDB(pgxConfig)
	sqlconn.ConfigurePool(db, &cfg.Pool)

	if err := sqlconn.Ping(db, types.PostgreSQL, log, pingPostgresDB); err != nil {
		return nil, err
	}

	log.Info().
		Str("host", pgxConfig.Host).
		Int("port", int(pgxConfig.Port)).
		Str("database", pgxConfig.Database).
		Msg("Connected to PostgreSQL database")

	return sqlconn.New(db, types.PostgreSQL, log), nil
}
