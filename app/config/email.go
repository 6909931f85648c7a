package config

import "os"

// EmailConfig holds email provider configuration
type EmailConfig struct {
	Provider string

	// Common
	FromEmail string
	FromName  string

	// SMTP
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
}

// LoadEmailConfig loads email configuration from environment. The "log"
// provider writes emails to the log instead of sending them, for local
// development without an SMTP relay.
func LoadEmailConfig() *EmailConfig {
	provider := GetString("EMAIL_PROVIDER", "smtp")

	cfg := &EmailConfig{
		Provider:  provider,
		FromEmail: GetString("EMAIL_FROM", "noreply@medicore.example"),
		FromName:  GetString("EMAIL_FROM_NAME", "MediCore Portal"),
	}

	if provider == "smtp" {
		cfg.SMTPHost = GetString("SMTP_HOST", "localhost")
		cfg.SMTPPort = GetInt("SMTP_PORT", 587)
		cfg.SMTPUsername = os.Getenv("SMTP_USERNAME")
		cfg.SMTPPassword = os.Getenv("SMTP_PASSWORD")
	}

	return cfg
}
