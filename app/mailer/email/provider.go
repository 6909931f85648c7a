package email

import "context"

// Message is the rendered email handed to a provider.
type Message struct {
	To       string
	Subject  string
	Body     string
	From     string
	FromName string
}

// Provider sends a rendered email through a concrete transport.
type Provider interface {
	SendEmail(ctx context.Context, msg *Message) error
	Name() string
}
