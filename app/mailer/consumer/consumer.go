package consumer

import (
	"context"
	"fmt"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/medicore/hospital-portal/app/config"
	appErrors "github.com/medicore/hospital-portal/app/errors"
	"github.com/medicore/hospital-portal/app/logger"
	"github.com/medicore/hospital-portal/app/mailer/idempotency"
	"github.com/medicore/hospital-portal/app/mailer/retry"
	"github.com/medicore/hospital-portal/app/mailer/validation"
	"github.com/medicore/hospital-portal/app/metrics"
)

// Consumer consumes OTP email events from RabbitMQ
type Consumer struct {
	conn        *amqp.Connection
	ch          *amqp.Channel
	handler     *Handler
	idempotency *idempotency.Checker
	retryConfig *retry.Config
	dlqHandler  *retry.DLQHandler
	workerPool  *WorkerPool
}

// NewConsumer creates a new RabbitMQ consumer
func NewConsumer(
	conn *amqp.Connection,
	ch *amqp.Channel,
	handler *Handler,
	idempotencyChecker *idempotency.Checker,
	retryConfig *retry.Config,
	dlqHandler *retry.DLQHandler,
) *Consumer {
	poolSize := config.GetInt("WORKER_POOL_SIZE", 5)
	workerPool := NewWorkerPool(poolSize)

	return &Consumer{
		conn:        conn,
		ch:          ch,
		handler:     handler,
		idempotency: idempotencyChecker,
		retryConfig: retryConfig,
		dlqHandler:  dlqHandler,
		workerPool:  workerPool,
	}
}

// Start declares and binds the OTP queues, then consumes until ctx is done
func (c *Consumer) Start(ctx context.Context) error {
	registrationQueue := config.GetString("RABBITMQ_QUEUE_REGISTRATION", "email.registration_otp.queue")
	resetQueue := config.GetString("RABBITMQ_QUEUE_RESET", "email.password_reset_otp.queue")
	dlqRoutingKey := config.GetString("RABBITMQ_QUEUE_DLQ", "email.dlq")
	prefetchCount := config.GetInt("PREFETCH_COUNT", 10)

	err := c.ch.Qos(prefetchCount, 0, false)
	if err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	queueArgs := amqp.Table{
		"x-dead-letter-exchange":    config.PortalEventsExchange,
		"x-dead-letter-routing-key": dlqRoutingKey,
	}

	bindings := []struct {
		queue      string
		routingKey string
	}{
		{registrationQueue, "email.registration_otp"},
		{resetQueue, "email.password_reset_otp"},
	}

	for _, b := range bindings {
		_, err = c.ch.QueueDeclare(
			b.queue,
			true,  // durable
			false, // delete when unused
			false, // exclusive
			false, // no-wait
			queueArgs,
		)
		if err != nil {
			return fmt.Errorf("failed to declare queue %s: %w", b.queue, err)
		}

		err = c.ch.QueueBind(
			b.queue,
			b.routingKey,
			config.PortalEventsExchange,
			false,
			nil,
		)
		if err != nil {
			return fmt.Errorf("failed to bind queue %s: %w", b.queue, err)
		}

		msgs, err := c.ch.Consume(
			b.queue,
			"",    // consumer tag
			false, // manual ack
			false, // exclusive
			false, // no-local
			false, // no-wait
			nil,   // args
		)
		if err != nil {
			return fmt.Errorf("failed to register consumer for queue %s: %w", b.queue, err)
		}

		go c.processMessages(ctx, msgs, b.queue)
	}

	logger.Logger.Info().Msg("mailer consumer started")

	<-ctx.Done()
	logger.Logger.Info().Msg("shutting down consumer...")

	c.workerPool.Wait()

	return nil
}

// processMessages feeds deliveries from one queue into the worker pool
func (c *Consumer) processMessages(ctx context.Context, msgs <-chan amqp.Delivery, queueName string) {
	for {
		select {
		case <-ctx.Done():
			return
		case delivery, ok := <-msgs:
			if !ok {
				return
			}

			messageType := extractMessageType(delivery.Body)
			metrics.RecordMessageConsumed(queueName, messageType)

			c.workerPool.Submit(func() {
				c.handleMessage(ctx, delivery)
			})
		}
	}
}

// extractMessageType pulls the type out of the body without full unmarshaling
func extractMessageType(body []byte) string {
	bodyStr := string(body)
	if strings.Contains(bodyStr, `"type":"registration_otp"`) {
		return TypeRegistrationOTP
	}
	if strings.Contains(bodyStr, `"type":"password_reset_otp"`) {
		return TypePasswordResetOTP
	}
	return "unknown"
}

// handleMessage runs the full pipeline for one delivery: idempotency check,
// retried processing, then ack, requeue or dead-letter.
func (c *Consumer) handleMessage(ctx context.Context, delivery amqp.Delivery) {
	startTime := time.Now()

	requestID := ""
	if delivery.Headers != nil {
		if rid, ok := delivery.Headers["X-Request-ID"].(string); ok {
			requestID = rid
		}
	}

	log := logger.WithRequestID(requestID)
	msgCtx := log.WithContext(ctx)

	if err := validation.ValidateMessageBodySize(delivery.Body); err != nil {
		log.Error().Int("size", len(delivery.Body)).Msg("message body too large")
		metrics.RecordDLQMessage("unknown", "message_too_large")
		delivery.Ack(false)
		return
	}

	messageID := c.idempotency.GenerateMessageID(delivery)

	isDuplicate, err := c.idempotency.CheckAndMark(msgCtx, messageID)
	if err != nil {
		// Without the idempotency verdict we cannot safely process; requeue
		// and let the broker redeliver once Redis recovers.
		log.Error().Err(err).Msg("idempotency check failed, requeueing message")
		delivery.Nack(false, true)
		return
	}

	if isDuplicate {
		log.Info().
			Str("message_id", messageID).
			Msg("duplicate message detected, skipping")
		metrics.RecordIdempotencyHit()
		delivery.Ack(false)
		return
	}

	metrics.RecordIdempotencyMiss()

	messageType := extractMessageType(delivery.Body)

	retryAttempts := 0
	err = retry.Retry(msgCtx, c.retryConfig, func() error {
		if retryAttempts > 0 {
			metrics.RecordRetryAttempt(messageType)
		}
		retryAttempts++
		return c.handler.ProcessMessage(msgCtx, delivery.Body)
	})

	metrics.RecordMessageProcessing(messageType, time.Since(startTime))

	if err != nil {
		log.Error().Err(err).Msg("failed to process message after retries")

		errorType := "unknown"
		if appErr, ok := err.(*appErrors.AppError); ok {
			errorType = string(appErr.Code)
		}

		if retry.IsRetryable(err) {
			dlqErr := c.dlqHandler.PublishToDLQ(msgCtx, delivery, err.Error())
			if dlqErr != nil {
				log.Error().Err(dlqErr).Msg("failed to publish to DLQ, requeueing message")
				delivery.Nack(false, true)
				metrics.RecordDLQMessage(messageType, "dlq_publish_failed")
				return
			}
			metrics.RecordDLQMessage(messageType, errorType)
			delivery.Ack(false)
		} else {
			log.Error().Err(err).Msg("permanent failure, acknowledging message")
			metrics.RecordDLQMessage(messageType, "permanent_failure")
			delivery.Ack(false)
		}
		return
	}

	delivery.Ack(false)
	log.Info().Msg("message processed successfully")
}

// Close stops the worker pool and closes the broker connection
func (c *Consumer) Close() error {
	c.workerPool.Stop()
	if c.ch != nil {
		c.ch.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
