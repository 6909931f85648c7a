package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T) (*RateLimiter, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRateLimiter(client), mr
}

func TestRateLimiter_AllowsUpToMax(t *testing.T) {
	rl, _ := newTestLimiter(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		assert.NoError(t, rl.Check(ctx, "user@example.com", 5, time.Hour))
	}
}

func TestRateLimiter_BlocksOverMax(t *testing.T) {
	rl, _ := newTestLimiter(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, rl.Check(ctx, "user@example.com", 5, time.Hour))
	}

	err := rl.Check(ctx, "user@example.com", 5, time.Hour)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit exceeded")
}

func TestRateLimiter_PerAddressIsolation(t *testing.T) {
	rl, _ := newTestLimiter(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, rl.Check(ctx, "first@example.com", 5, time.Hour))
	}

	assert.Error(t, rl.Check(ctx, "first@example.com", 5, time.Hour))
	assert.NoError(t, rl.Check(ctx, "second@example.com", 5, time.Hour))
}

func TestRateLimiter_WindowExpiry(t *testing.T) {
	rl, mr := newTestLimiter(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, rl.Check(ctx, "user@example.com", 3, time.Minute))
	}
	require.Error(t, rl.Check(ctx, "user@example.com", 3, time.Minute))

	mr.FastForward(2 * time.Minute)

	assert.NoError(t, rl.Check(ctx, "user@example.com", 3, time.Minute))
}

func TestRateLimiter_FailsOpenWithoutRedis(t *testing.T) {
	rl := NewRateLimiter(nil)

	assert.NoError(t, rl.Check(context.Background(), "user@example.com", 1, time.Hour))
	assert.NoError(t, rl.Check(context.Background(), "user@example.com", 1, time.Hour))
}

func TestRateLimiter_FailsOpenOnRedisError(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "invalid-address:6379"})
	defer client.Close()

	rl := NewRateLimiter(client)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	assert.NoError(t, rl.Check(ctx, "user@example.com", 1, time.Hour))
}
