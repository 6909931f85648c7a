package services

import (
	"context"
	"encoding/json"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/medicore/hospital-portal/app/config"
	"github.com/medicore/hospital-portal/app/logger"
)

// EventPublisher defines the minimal interface AuthService needs to publish events.
type EventPublisher interface {
	PublishRegistrationOTP(ctx context.Context, email, code string) error
	PublishPasswordResetOTP(ctx context.Context, email, code string) error
}

// RabbitMQPublisher is a concrete implementation using RabbitMQ.
type RabbitMQPublisher struct {
	ch *amqp.Channel
}

func NewRabbitMQPublisher(ch *amqp.Channel) *RabbitMQPublisher {
	return &RabbitMQPublisher{ch: ch}
}

type otpEmailMessage struct {
	Type           string `json:"type"`
	Email          string `json:"email"`
	Code           string `json:"code"`
	ExpiresMinutes int    `json:"expires_minutes"`
}

func (p *RabbitMQPublisher) publishOTP(ctx context.Context, msgType, routingKey, email, code string) error {
	msg := otpEmailMessage{
		Type:           msgType,
		Email:          email,
		Code:           code,
		ExpiresMinutes: int(otpTTL.Minutes()),
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	// Carry the request ID so the mailer's log lines correlate with ours
	requestID := logger.RequestIDFromContext(ctx)

	headers := make(amqp.Table)
	if requestID != "" {
		headers["X-Request-ID"] = requestID
		headers["X-Trace-ID"] = requestID // Also set trace ID for compatibility
	}

	return p.ch.PublishWithContext(
		ctx,
		config.PortalEventsExchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			Headers:      headers,
			DeliveryMode: amqp.Persistent,
		},
	)
}

// PublishRegistrationOTP publishes a registration OTP email event to the portal.events exchange.
func (p *RabbitMQPublisher) PublishRegistrationOTP(ctx context.Context, email, code string) error {
	return p.publishOTP(ctx, "registration_otp", "email.registration_otp", email, code)
}

// PublishPasswordResetOTP publishes a password reset OTP email event to the portal.events exchange.
func (p *RabbitMQPublisher) PublishPasswordResetOTP(ctx context.Context, email, code string) error {
	return p.publishOTP(ctx, "password_reset_otp", "email.password_reset_otp", email, code)
}
