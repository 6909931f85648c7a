package email

import (
	"context"
	"fmt"
	"time"

	"github.com/medicore/hospital-portal/app/circuitbreaker"
	"github.com/medicore/hospital-portal/app/config"
	appErrors "github.com/medicore/hospital-portal/app/errors"
)

// Sender handles email sending using the configured provider
type Sender struct {
	provider       Provider
	config         *config.EmailConfig
	circuitBreaker *circuitbreaker.CircuitBreaker
}

// NewSender creates a new email sender with the configured provider
func NewSender(cfg *config.EmailConfig) (*Sender, error) {
	var provider Provider
	var err error

	switch cfg.Provider {
	case "smtp":
		provider, err = NewSMTPProvider(cfg)
	case "log":
		provider = NewLogProvider()
	default:
		return nil, fmt.Errorf("unsupported email provider: %s", cfg.Provider)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to initialize email provider: %w", err)
	}

	// 5 failures before opening, 30s reset timeout, 2 calls in half-open
	cb := circuitbreaker.New(5, 30*time.Second, 2)

	return &Sender{
		provider:       provider,
		config:         cfg,
		circuitBreaker: cb,
	}, nil
}

// SendRegistrationOTP sends the registration verification code
func (s *Sender) SendRegistrationOTP(ctx context.Context, to, code string, expiresMinutes int) error {
	body, err := RenderRegistrationOTPTemplate(code, expiresMinutes)
	if err != nil {
		return appErrors.NewInternal("failed to render registration template")
	}
	return s.send(ctx, to, "Verify your email address", body)
}

// SendPasswordResetOTP sends the password reset code
func (s *Sender) SendPasswordResetOTP(ctx context.Context, to, code string, expiresMinutes int) error {
	body, err := RenderPasswordResetOTPTemplate(code, expiresMinutes)
	if err != nil {
		return appErrors.NewInternal("failed to render password reset template")
	}
	return s.send(ctx, to, "Reset your password", body)
}

func (s *Sender) send(ctx context.Context, to, subject, body string) error {
	msg := &Message{
		To:       to,
		Subject:  subject,
		Body:     body,
		From:     s.config.FromEmail,
		FromName: s.config.FromName,
	}

	// The breaker protects against a dead or throttling provider.
	err := s.circuitBreaker.Call(ctx, func() error {
		return s.provider.SendEmail(ctx, msg)
	})
	if err != nil {
		return appErrors.NewEmailProviderError("failed to send email", err)
	}
	return nil
}

// ProviderName returns the name of the email provider
func (s *Sender) ProviderName() string {
	if s.provider == nil {
		return "unknown"
	}
	return s.provider.Name()
}

// CheckHealth checks the health of the email provider
func (s *Sender) CheckHealth(ctx context.Context) error {
	if s.provider == nil {
		return fmt.Errorf("email provider not initialized")
	}
	return nil
}
