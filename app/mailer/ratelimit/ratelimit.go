package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter caps outbound emails per recipient address
type RateLimiter struct {
	client *redis.Client
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(client *redis.Client) *RateLimiter {
	return &RateLimiter{
		client: client,
	}
}

// Check returns an error when the address has exceeded maxRequests within the
// window. Redis being down fails open: OTP delivery matters more than the cap.
func (rl *RateLimiter) Check(ctx context.Context, email string, maxRequests int, window time.Duration) error {
	if rl.client == nil {
		return nil
	}

	key := fmt.Sprintf("mailer:ratelimit:%s", email)

	count, err := rl.client.Incr(ctx, key).Result()
	if err != nil {
		return nil
	}

	if count == 1 {
		rl.client.Expire(ctx, key, window)
	}

	if count > int64(maxRequests) {
		return fmt.Errorf("rate limit exceeded: %d emails in %v", maxRequests, window)
	}

	return nil
}
