//go:build integration

// Package containers starts the throwaway PostgreSQL, RabbitMQ and MongoDB
// instances used by the integration tests. Every helper skips the test when
// no Docker daemon is reachable and terminates its container on cleanup.
package containers

import (
	"context"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
)

const defaultStartupTimeout = 90 * time.Second

// skipWithoutDocker skips t unless the testcontainers Docker provider can
// reach a daemon.
func skipWithoutDocker(ctx context.Context, t *testing.T) {
	t.Helper()

	provider, err := testcontainers.NewDockerProvider()
	if err != nil {
		t.Skip("Docker is not available - skipping integration test")
	}
	defer provider.Close()

	if _, err := provider.DaemonHost(ctx); err != nil {
		t.Skip("Docker daemon is not reachable - skipping integration test")
	}
}

func terminateOnCleanup(t *testing.T, name string, c testcontainers.Container) {
	t.Helper()
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(c); err != nil {
			t.Logf("Warning: failed to terminate %s container: %v", name, err)
		}
	})
}
