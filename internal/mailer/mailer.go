// Package mailer renders and delivers candidate notification emails.
package mailer

import (
	"context"
	"net/mail"

	"github.com/rs/zerolog"

	"github.com/queryproctor/backend/internal/config"
)

// Message is a rendered email ready for delivery.
type Message struct {
	To          mail.Address
	Subject     string
	TextContent string
	HTMLContent string
}

// Mailer delivers messages.
type Mailer interface {
	Send(ctx context.Context, msg *Message) error
}

// New returns the mailer selected by MAIL_PROVIDER.
func New(cfg *config.Config, log zerolog.Logger) Mailer {
	from := mail.Address{Name: cfg.MailFromName, Address: cfg.MailFromAddress}
	if cfg.MailProvider == "sendgrid" && cfg.SendGridAPIKey != "" {
		return NewSendGrid(cfg.SendGridAPIKey, from, log)
	}
	if cfg.MailProvider == "sendgrid" {
		log.Warn().Msg("SENDGRID_API_KEY not set, falling back to log mailer")
	}
	return NewLog(from, log)
}
