package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Checker provides idempotency checking functionality
type Checker struct {
	store *Store
}

// NewChecker creates a new idempotency checker
func NewChecker(store *Store) *Checker {
	return &Checker{
		store: store,
	}
}

// GenerateMessageID generates a unique message ID from a RabbitMQ delivery.
// Publishers that set MessageId win; otherwise the body hash keeps the ID
// stable across redeliveries of the same message.
func (c *Checker) GenerateMessageID(delivery amqp.Delivery) string {
	if delivery.MessageId != "" {
		return delivery.MessageId
	}
	hash := sha256.Sum256(delivery.Body)
	return fmt.Sprintf("%s:%s", delivery.RoutingKey, hex.EncodeToString(hash[:]))
}

// CheckAndMark checks if message is processed and marks it if not
// Returns: (isDuplicate, error)
func (c *Checker) CheckAndMark(ctx context.Context, messageID string) (bool, error) {
	return c.store.CheckAndMarkAtomic(ctx, messageID)
}
