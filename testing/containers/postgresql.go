//go:build integration

package containers

import (
	"context"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/gaborage/go-bricks-lazyload/config"
)

const (
	postgresImage    = "postgres:17-alpine"
	postgresDatabase = "invoices"
	postgresUser     = "lazyload"
	postgresPassword = "lazyload"
)

// PostgreSQL is a running PostgreSQL container.
type PostgreSQL struct {
	Host string
	Port int
}

// StartPostgreSQL starts PostgreSQL and fails t if it does not come up.
func StartPostgreSQL(ctx context.Context, t *testing.T) *PostgreSQL {
	t.Helper()
	skipWithoutDocker(ctx, t)

	c, err := postgres.Run(ctx, postgresImage,
		postgres.WithDatabase(postgresDatabase),
		postgres.WithUsername(postgresUser),
		postgres.WithPassword(postgresPassword),
		testcontainers.WithWaitStrategy(
			// The server restarts once after running init scripts.
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(defaultStartupTimeout),
		),
	)
	terminateOnCleanup(t, "PostgreSQL", c)
	if err != nil {
		t.Fatalf("Failed to start PostgreSQL container: %v", err)
	}

	host, err := c.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to resolve PostgreSQL host: %v", err)
	}
	port, err := c.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("Failed to resolve PostgreSQL port: %v", err)
	}

	t.Logf("PostgreSQL container listening on %s:%d", host, port.Int())
	return &PostgreSQL{Host: host, Port: port.Int()}
}

// DatabaseConfig returns a configuration that connects to the container.
func (p *PostgreSQL) DatabaseConfig() *config.DatabaseConfig {
	return &config.DatabaseConfig{
		Type:     "postgresql",
		Host:     p.Host,
		Port:     p.Port,
		Database: postgresDatabase,
		Username: postgresUser,
		Password: postgresPassword,
		SSLMode:  "disable",
		Pool:     config.PoolConfig{MaxConns: 5, MaxIdleConns: 2},
	}
}
