// Package database opens vendor connections and wraps them with statement
// tracking and interceptor hooks.
package database

import "github.com/gaborage/go-bricks-lazyload/database/types"

// Supported vendors.
const (
	PostgreSQL = types.PostgreSQL
	Oracle     = types.Oracle
)

// Interface is the connection contract shared by vendor and tracked connections.
type Interface = types.Interface

// Row is a single result row.
type Row = types.Row

// CommandInterceptor observes reader statements on a tracked connection.
type CommandInterceptor = types.CommandInterceptor
