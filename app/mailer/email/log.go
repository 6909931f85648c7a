package email

import (
	"context"

	"github.com/medicore/hospital-portal/app/logger"
)

// LogProvider writes emails to the log instead of sending them. Used in
// local development so the OTP codes are readable without an SMTP relay.
type LogProvider struct{}

func NewLogProvider() *LogProvider {
	return &LogProvider{}
}

func (p *LogProvider) SendEmail(ctx context.Context, msg *Message) error {
	logger.Logger.Info().
		Str("to", msg.To).
		Str("subject", msg.Subject).
		Str("body", msg.Body).
		Msg("email (log provider)")
	return nil
}

func (p *LogProvider) Name() string {
	return "log"
}
