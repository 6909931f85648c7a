package retry

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// DLQHandler publishes exhausted messages to a dead letter queue
type DLQHandler struct {
	ch      *amqp.Channel
	dlqName string
}

// NewDLQHandler declares the DLQ and returns a handler for it
func NewDLQHandler(ch *amqp.Channel, dlqName string) (*DLQHandler, error) {
	_, err := ch.QueueDeclare(
		dlqName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return nil, fmt.Errorf("failed to declare DLQ: %w", err)
	}

	return &DLQHandler{
		ch:      ch,
		dlqName: dlqName,
	}, nil
}

// PublishToDLQ republishes a failed delivery to the dead letter queue with
// the failure reason recorded in the headers.
func (d *DLQHandler) PublishToDLQ(ctx context.Context, delivery amqp.Delivery, reason string) error {
	headers := make(amqp.Table)
	for k, v := range delivery.Headers {
		headers[k] = v
	}
	headers["x-failure-reason"] = reason
	headers["x-failed-at"] = fmt.Sprintf("%d", time.Now().Unix())
	headers["x-original-routing-key"] = delivery.RoutingKey

	err := d.ch.PublishWithContext(
		ctx,
		"",        // default exchange
		d.dlqName, // routing key
		false,     // mandatory
		false,     // immediate
		amqp.Publishing{
			ContentType:  delivery.ContentType,
			Body:         delivery.Body,
			Headers:      headers,
			DeliveryMode: amqp.Persistent,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish to DLQ: %w", err)
	}

	return nil
}
