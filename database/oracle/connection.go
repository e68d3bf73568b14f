// Package oracle opens Oracle connections through the pure-Go go-ora driver.
package oracle

import (
	"context"
	"database/sql"
	"fmt"

	go_ora "github.com/sijms/go-ora/v2"

	"github.com/gaborage/go-bricks-lazyload/config"
	"github.com/gaborage/go-bricks-lazyload/database/internal/sqlconn"
	"github.com/gaborage/go-bricks-lazyload/database/types"
	"github.com/gaborage/go-bricks-lazyload/logger"
)

var (
	openOracleDB = func(dsn string) (*sql.DB, error) {
		return sql.Open("oracle", dsn)
	}
	pingOracleDB = func(ctx context.Context, db *sql.DB) error {
		return db.PingContext(ctx)
	}
)

// BuildDSN returns cfg.ConnectionString if set, otherwise a go-ora URL.
// ServiceName wins over SID, which wins over Database.
func BuildDSN(cfg *config.DatabaseConfig) string {
	switch {
	case cfg.ConnectionString != "":
		return cfg.ConnectionString
	case cfg.ServiceName != "":
		return go_ora.BuildUrl(cfg.Host, cfg.Port, cfg.ServiceName, cfg.Username, cfg.Password, nil)
	case cfg.SID != "":
		return go_ora.BuildUrl(cfg.Host, cfg.Port, "", cfg.Username, cfg.Password, map[string]string{"SID": cfg.SID})
	default:
		return go_ora.BuildUrl(cfg.Host, cfg.Port, cfg.Database, cfg.Username, cfg.Password, nil)
	}
}

// NewConnection opens and pings an Oracle pool.
func NewConnection(cfg *config.DatabaseConfig, log logger.Logger) (types.Interface, error) {
	db, err := openOracleDB(BuildDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open Oracle connection: %w", err)
	}
	sqlconn.ConfigurePool(db, &cfg.Pool)

	if err := sqlconn.Ping(db, types.Oracle, log, pingOracleDB); err != nil {
		return nil, err
	}

	ev := log.Info().Str("host", cfg.Host).Int("port", cfg.Port)
	switch {
	case cfg.ServiceName != "":
		ev = ev.Str("service_name", cfg.ServiceName)
	case cfg.SID != "":
		ev = ev.Str("sid", cfg.SID)
	default:
		ev = ev.Str("database", cfg.Database)
	}
	ev.Msg("Connected to Oracle database")

	return sqlconn.New(db, types.Oracle, log), nil
}
