package mailer

import (
	"context"
	"net/mail"
	"sync"

	"github.com/rs/zerolog"
)

// Log writes messages to the application log instead of delivering them.
// It is the development default.
type Log struct {
	from mail.Address
	log  zerolog.Logger

	mu   sync.Mutex
	sent []Message
}

var _ Mailer = (*Log)(nil)

// NewLog creates a Log mailer.
func NewLog(from mail.Address, log zerolog.Logger) *Log {
	return &Log{from: from, log: log.With().Str("component", "log_mailer").Logger()}
}

// Send implements Mailer.
func (m *Log) Send(_ context.Context, msg *Message) error {
	m.mu.Lock()
	m.sent = append(m.sent, *msg)
	m.mu.Unlock()

	m.log.Info().
		Str("from", m.from.String()).
		Str("to", msg.To.String()).
		Str("subject", msg.Subject).
		Msg(msg.TextContent)
	return nil
}

// Sent returns a copy of every message passed to Send.
func (m *Log) Sent() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.sent...)
}
