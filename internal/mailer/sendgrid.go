package mailer

import (
	"context"
	"fmt"
	"net/http"
	"net/mail"

	"github.com/rs/zerolog"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

var (
	host     = "https://api.sendgrid.com"
	endpoint = "/v3/mail/send"
)

// SendGrid delivers mail through the SendGrid v3 API.
type SendGrid struct {
	key  string
	from *sgmail.Email
	log  zerolog.Logger
}

var _ Mailer = (*SendGrid)(nil)

// NewSendGrid creates a SendGrid mailer.
func NewSendGrid(key string, from mail.Address, log zerolog.Logger) *SendGrid {
	return &SendGrid{
		key:  key,
		from: sgmail.NewEmail(from.Name, from.Address),
		log:  log.With().Str("component", "sendgrid_mailer").Logger(),
	}
}

func (m *SendGrid) prepare(msg *Message) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = msg.Subject
	p.AddTos(sgmail.NewEmail(msg.To.Name, msg.To.Address))

	v3 := sgmail.NewV3Mail()
	v3.SetFrom(m.from)
	v3.AddPersonalizations(p)
	v3.AddContent(
		sgmail.NewContent("text/plain", msg.TextContent),
		sgmail.NewContent("text/html", msg.HTMLContent),
	)
	return v3
}

// Send implements Mailer.
func (m *SendGrid) Send(ctx context.Context, msg *Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	req := sendgrid.GetRequest(m.key, endpoint, host)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(m.prepare(msg))

	res, err := sendgrid.API(req)
	if err != nil {
		return fmt.Errorf("sendgrid request: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sendgrid status %d: %s", res.StatusCode, res.Body)
	}
	m.log.Debug().Str("to", msg.To.Address).Int("status", res.StatusCode).Msg("Mail accepted")
	return nil
}
