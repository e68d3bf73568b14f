// Package types contains the database contracts shared by the connection
// wrappers, the lazy-loading layer and the statement interceptors.
// They live apart from the database package to avoid import cycles.
//
//nolint:revive // Package name "types" is intentionally generic to avoid circular
package types

import (
	"context"
	"database/sql"
	"errors"
)

// Vendor identifies a database vendor.
type Vendor = string

const (
	PostgreSQL Vendor = "postgresql"
	Oracle     Vendor = "oracle"
)

// Row represents a single result set row with basic scanning behaviour.
type Row interface {
	Scan(dest ...any) error
	Err() error
}

type sqlRowAdapter struct {
	row *sql.Row
}

// NewRowFromSQL wraps the provided *sql.Row in a Row.
// If row is nil, NewRowFromSQL returns nil.
func NewRowFromSQL(row *sql.Row) Row {
	if row == nil {
		return nil
	}
	return &sqlRowAdapter{row: row}
}

func (r *sqlRowAdapter) Scan(dest ...any) error {
	if r == nil || r.row == nil {
		return errors.New("sqlRowAdapter: underlying sql.Row is nil")
	}
	return r.row.Scan(dest...)
}

func (r *sqlRowAdapter) Err() error {
	if r == nil || r.row == nil {
		return errors.New("sqlRowAdapter: underlying sql.Row is nil")
	}
	return r.row.Err()
}

// Interface is the connection contract the lazy-loading layer queries through.
// Vendor connections implement it; the tracked connection decorates it with
// interceptors, logging, spans and metrics.
type Interface interface {
	Query(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRow(ctx context.Context, query string, args ...any) Row
	Exec(ctx context.Context, query string, args ...any) (sql.Result, error)

	Health(ctx context.Context) error
	Stats() (map[string]any, error)
	Close() error

	DatabaseType() string
}
