// Package orm is a small lazy-loading data mapper. Related entities are held
// in Reference and Collection values that either carry an eagerly loaded value
// or a loader that queries on first access.
package orm

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Masterminds/squirrel"

	"github.com/gaborage/go-bricks-lazyload/database/types"
)

// Session issues squirrel-built statements against a connection, normally
// the tracked connection so every statement passes the interceptors.
type Session struct {
	db      types.Interface
	vendor  string
	builder squirrel.StatementBuilderType
}

// NewSession creates a session using db's vendor placeholder format.
func NewSession(db types.Interface) *Session {
	vendor := db.DatabaseType()
	return &Session{db: db, vendor: vendor, builder: statementBuilder(vendor)}
}

// Vendor returns the database vendor of the session.
func (s *Session) Vendor() string {
	return s.vendor
}

// Select starts a SELECT with vendor-quoted columns.
func (s *Session) Select(columns ...string) squirrel.SelectBuilder {
	return s.builder.Select(quoteAll(s.vendor, columns)...)
}

// Insert starts an INSERT into table with vendor-quoted columns.
func (s *Session) Insert(table string, columns ...string) squirrel.InsertBuilder {
	return s.builder.Insert(table).Columns(quoteAll(s.vendor, columns)...)
}

// Exec runs a statement that returns no rows.
func (s *Session) Exec(ctx context.Context, q squirrel.Sqlizer) (sql.Result, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build statement: %w", err)
	}
	return s.db.Exec(ctx, query, args...)
}

// All runs q and calls scan once per row.
func (s *Session) All(ctx context.Context, q squirrel.Sqlizer, scan func(*sql.Rows) error) error {
	query, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

// One runs q and scans its single row into dest. sql.ErrNoRows is returned
// unwrapped.
func (s *Session) One(ctx context.Context, q squirrel.Sqlizer, dest ...any) error {
	query, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	return s.db.QueryRow(ctx, query, args...).Scan(dest...)
}
