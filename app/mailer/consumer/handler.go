package consumer

import (
	"context"
	"encoding/json"
	"time"

	appErrors "github.com/medicore/hospital-portal/app/errors"
	"github.com/medicore/hospital-portal/app/logger"
	"github.com/medicore/hospital-portal/app/mailer/email"
	"github.com/medicore/hospital-portal/app/mailer/ratelimit"
	"github.com/medicore/hospital-portal/app/mailer/validation"
	"github.com/medicore/hospital-portal/app/metrics"
)

// Handler routes broker messages to the email sender
type Handler struct {
	emailSender *email.Sender
	rateLimiter *ratelimit.RateLimiter
}

// NewHandler creates a new message handler
func NewHandler(emailSender *email.Sender, rateLimiter *ratelimit.RateLimiter) *Handler {
	return &Handler{
		emailSender: emailSender,
		rateLimiter: rateLimiter,
	}
}

// handleOTPEmail validates and sends a one-time code email of either flow
func (h *Handler) handleOTPEmail(ctx context.Context, msg *OTPEmailMessage) error {
	startTime := time.Now()
	log := logger.FromContext(ctx)

	if err := validation.ValidateEmail(msg.Email); err != nil {
		log.Error().Err(err).Msg("invalid recipient address")
		return appErrors.NewInvalidInput("invalid email format: " + err.Error())
	}

	if err := validation.ValidateOTPCode(msg.Code); err != nil {
		log.Error().Err(err).Msg("invalid one-time code in message")
		return appErrors.NewInvalidInput("invalid code: " + err.Error())
	}

	maskedEmail := validation.MaskEmail(msg.Email)

	// Max 5 OTP emails per address per hour. The portal enforces its own
	// resend cooldown; this is the backstop against a misbehaving producer.
	if h.rateLimiter != nil {
		if err := h.rateLimiter.Check(ctx, msg.Email, 5, time.Hour); err != nil {
			log.Warn().Err(err).Str("email", maskedEmail).Msg("recipient rate limit exceeded")
			return appErrors.NewInvalidInput("rate limit exceeded: " + err.Error())
		}
	}

	log.Info().
		Str("email", maskedEmail).
		Str("type", msg.Type).
		Msg("processing otp email message")

	providerName := "unknown"
	if h.emailSender != nil {
		providerName = h.emailSender.ProviderName()
	}

	expiresMinutes := msg.ExpiresMinutes
	if expiresMinutes <= 0 {
		expiresMinutes = 10
	}

	var err error
	switch msg.Type {
	case TypeRegistrationOTP:
		err = h.emailSender.SendRegistrationOTP(ctx, msg.Email, msg.Code, expiresMinutes)
	case TypePasswordResetOTP:
		err = h.emailSender.SendPasswordResetOTP(ctx, msg.Email, msg.Code, expiresMinutes)
	default:
		return appErrors.NewInvalidInput("unknown message type")
	}
	duration := time.Since(startTime)

	if err != nil {
		errorType := "unknown"
		if appErr, ok := err.(*appErrors.AppError); ok {
			errorType = string(appErr.Code)
		}

		log.Error().
			Err(err).
			Str("email", maskedEmail).
			Str("type", msg.Type).
			Msg("failed to send otp email")

		metrics.RecordEmailFailed(msg.Type, providerName, errorType)
		return err
	}

	log.Info().
		Str("email", maskedEmail).
		Str("type", msg.Type).
		Msg("otp email sent successfully")

	metrics.RecordEmailSent(msg.Type, providerName, duration)
	return nil
}

// ProcessMessage parses a raw message body and routes it to the right handler
func (h *Handler) ProcessMessage(ctx context.Context, body []byte) error {
	if err := validation.ValidateMessageBodySize(body); err != nil {
		return appErrors.NewInvalidInput(err.Error())
	}

	var msg OTPEmailMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return appErrors.NewInvalidInput("malformed message body")
	}

	switch msg.Type {
	case TypeRegistrationOTP, TypePasswordResetOTP:
		if msg.Email == "" {
			return appErrors.NewInvalidInput("email is required")
		}
		if msg.Code == "" {
			return appErrors.NewInvalidInput("code is required")
		}
		return h.handleOTPEmail(ctx, &msg)
	}

	return appErrors.NewInvalidInput("unknown message type")
}
