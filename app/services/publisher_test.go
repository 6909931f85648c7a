package services

import (
	"context"
	"testing"

	"github.com/medicore/hospital-portal/app/logger"
	"github.com/stretchr/testify/assert"
)

func TestPublisher_RequestIDPropagation(t *testing.T) {
	// Full integration test would require an actual RabbitMQ connection;
	// here we verify the request ID lookup used when building headers.
	ctx := logger.ContextWithRequestID(context.Background(), "test-request-123")

	assert.Equal(t, "test-request-123", logger.RequestIDFromContext(ctx))
	assert.Equal(t, "", logger.RequestIDFromContext(context.Background()))
}
