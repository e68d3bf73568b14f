//go:build integration

package containers

import (
	"context"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"github.com/testcontainers/testcontainers-go/wait"
)

// StartMongoDB starts MongoDB and returns its connection URI.
func StartMongoDB(ctx context.Context, t *testing.T) string {
	t.Helper()
	skipWithoutDocker(ctx, t)

	c, err := mongodb.Run(ctx, "mongo:8.0",
		mongodb.WithUsername("lazyload"),
		mongodb.WithPassword("lazyload"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("Waiting for connections").WithStartupTimeout(defaultStartupTimeout),
		),
	)
	terminateOnCleanup(t, "MongoDB", c)
	if err != nil {
		t.Fatalf("Failed to start MongoDB container: %v", err)
	}

	uri, err := c.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("Failed to get MongoDB connection string: %v", err)
	}
	return uri
}
