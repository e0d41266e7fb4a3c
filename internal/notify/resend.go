package notify

import (
	"context"
	"fmt"
	"net/mail"

	"github.com/resend/resend-go/v2"
)

// Resend delivers through the Resend email API.
type Resend struct {
	client *resend.Client
	from   string
}

var _ Notifier = (*Resend)(nil)

func NewResend(key string, from mail.Address) *Resend {
	return &Resend{
		client: resend.NewClient(key),
		from:   from.String(),
	}
}

func (r *Resend) Send(ctx context.Context, msg Message) (string, error) {
	if err := msg.validate(); err != nil {
		return "", err
	}

	sent, err := r.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    r.from,
		To:      []string{msg.To.String()},
		Subject: msg.Subject,
		Html:    msg.HTML,
		Text:    msg.Text,
	})
	if err != nil {
		return "", fmt.Errorf("resend: sending to %s: %w", msg.To.Address, err)
	}
	return sent.Id, nil
}
