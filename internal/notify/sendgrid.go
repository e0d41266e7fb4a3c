package notify

import (
	"context"
	"fmt"
	"net/http"
	"net/mail"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

const (
	sendGridHost     = "https://api.sendgrid.com"
	sendGridEndpoint = "/v3/mail/send"
)

// SendGrid delivers through the SendGrid v3 mail API.
type SendGrid struct {
	key  string
	host string
	from *sgmail.Email
}

var _ Notifier = (*SendGrid)(nil)

func NewSendGrid(key string, from mail.Address) *SendGrid {
	return &SendGrid{
		key:  key,
		host: sendGridHost,
		from: sgmail.NewEmail(from.Name, from.Address),
	}
}

func (s *SendGrid) prepare(msg Message) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = msg.Subject
	p.AddTos(sgmail.NewEmail(msg.To.Name, msg.To.Address))

	m := sgmail.NewV3Mail()
	m.SetFrom(s.from)
	m.AddPersonalizations(p)

	// SendGrid requires text/plain to come before text/html.
	if msg.Text != "" {
		m.AddContent(sgmail.NewContent("text/plain", msg.Text))
	}
	if msg.HTML != "" {
		m.AddContent(sgmail.NewContent("text/html", msg.HTML))
	}
	return m
}

// Send posts the message and returns SendGrid's X-Message-Id.
func (s *SendGrid) Send(ctx context.Context, msg Message) (string, error) {
	if err := msg.validate(); err != nil {
		return "", err
	}

	req := sendgrid.GetRequest(s.key, sendGridEndpoint, s.host)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(s.prepare(msg))

	res, err := sendgrid.MakeRequestWithContext(ctx, req)
	if err != nil {
		return "", fmt.Errorf("sendgrid: sending to %s: %w", msg.To.Address, err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return "", fmt.Errorf("sendgrid: sending to %s: status %d: %s", msg.To.Address, res.StatusCode, res.Body)
	}

	if ids := res.Headers["X-Message-Id"]; len(ids) > 0 {
		return ids[0], nil
	}
	return "", nil
}
