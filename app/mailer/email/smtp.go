package email

import (
	"context"
	"fmt"
	"net/smtp"

	"github.com/medicore/hospital-portal/app/config"
)

// SMTPProvider implements email sending via SMTP
type SMTPProvider struct {
	host     string
	port     int
	username string
	password string
	from     string
	fromName string
}

// NewSMTPProvider creates a new SMTP provider
func NewSMTPProvider(cfg *config.EmailConfig) (*SMTPProvider, error) {
	if cfg.SMTPHost == "" {
		return nil, fmt.Errorf("SMTP_HOST is required")
	}
	if cfg.SMTPUsername == "" || cfg.SMTPPassword == "" {
		return nil, fmt.Errorf("SMTP_USERNAME and SMTP_PASSWORD are required")
	}

	return &SMTPProvider{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		username: cfg.SMTPUsername,
		password: cfg.SMTPPassword,
		from:     cfg.FromEmail,
		fromName: cfg.FromName,
	}, nil
}

// SendEmail sends an email via SMTP
func (p *SMTPProvider) SendEmail(ctx context.Context, msg *Message) error {
	addr := fmt.Sprintf("%s:%d", p.host, p.port)
	auth := smtp.PlainAuth("", p.username, p.password, p.host)

	fromHeader := fmt.Sprintf("%s <%s>", p.fromName, p.from)
	to := []string{msg.To}

	raw := []byte(fmt.Sprintf("From: %s\r\n", fromHeader) +
		fmt.Sprintf("To: %s\r\n", msg.To) +
		fmt.Sprintf("Subject: %s\r\n", msg.Subject) +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: text/html; charset=UTF-8\r\n" +
		"\r\n" +
		msg.Body + "\r\n")

	if err := smtp.SendMail(addr, auth, p.from, to, raw); err != nil {
		return fmt.Errorf("failed to send email via SMTP: %w", err)
	}

	return nil
}

// Name returns the provider name
func (p *SMTPProvider) Name() string {
	return "smtp"
}
