// Package notify delivers rendered email messages through a provider.
//
// A Notifier is a thin transport: it takes a fully rendered Message and
// returns the provider's delivery id. It never retries; any retry policy is
// the provider's own.
package notify

import (
	"context"
	"errors"
	"net/mail"
)

// ErrNoRecipient is returned when a Message has no address to send to.
var ErrNoRecipient = errors.New("notify: message has no recipient")

// Message is one outgoing email. Text and HTML are alternative renderings of
// the same content; either may be empty but not both.
type Message struct {
	To      mail.Address
	Subject string
	Text    string
	HTML    string
}

func (m Message) validate() error {
	if m.To.Address == "" {
		return ErrNoRecipient
	}
	if m.Text == "" && m.HTML == "" {
		return errors.New("notify: message has no content")
	}
	return nil
}

// Notifier sends a message and returns the provider's delivery id.
type Notifier interface {
	Send(ctx context.Context, msg Message) (string, error)
}
