//go:build integration

package containers

import (
	"context"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/rabbitmq"
	"github.com/testcontainers/testcontainers-go/wait"
)

// StartRabbitMQ starts a broker and returns its AMQP URL.
func StartRabbitMQ(ctx context.Context, t *testing.T) string {
	t.Helper()
	skipWithoutDocker(ctx, t)

	c, err := rabbitmq.Run(ctx, "rabbitmq:3.13-management-alpine",
		rabbitmq.WithAdminUsername("guest"),
		rabbitmq.WithAdminPassword("guest"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("Server startup complete").WithStartupTimeout(defaultStartupTimeout),
		),
	)
	terminateOnCleanup(t, "RabbitMQ", c)
	if err != nil {
		t.Fatalf("Failed to start RabbitMQ container: %v", err)
	}

	url, err := c.AmqpURL(ctx)
	if err != nil {
		t.Fatalf("Failed to get RabbitMQ AMQP URL: %v", err)
	}
	return url
}
