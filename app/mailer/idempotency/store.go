package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store handles idempotency checking using Redis
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStore creates a new idempotency store
func NewStore(client *redis.Client) *Store {
	return &Store{
		client: client,
		ttl:    7 * 24 * time.Hour,
	}
}

// Key generates a Redis key for a message ID
func (s *Store) Key(messageID string) string {
	return fmt.Sprintf("mailer:processed:%s", messageID)
}

// IsProcessed checks if a message has already been processed
func (s *Store) IsProcessed(ctx context.Context, messageID string) (bool, error) {
	key := s.Key(messageID)
	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check idempotency: %w", err)
	}
	return exists > 0, nil
}

// CheckAndMarkAtomic atomically checks if message is processed and marks it if not.
// Returns: (isDuplicate, error). SETNX makes the check-and-set a single step,
// so two workers cannot both claim the same message.
func (s *Store) CheckAndMarkAtomic(ctx context.Context, messageID string) (bool, error) {
	key := s.Key(messageID)

	set, err := s.client.SetNX(ctx, key, time.Now().Unix(), s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to atomically check and mark idempotency: %w", err)
	}

	// set is false when the key already existed (duplicate)
	return !set, nil
}
