package notify

import (
	"context"
	"log/slog"
	"net/mail"
	"sync"

	"github.com/rs/xid"
)

// Console logs messages instead of sending them. It is the default notifier
// for development, and it keeps every sent message for inspection.
type Console struct {
	from   mail.Address
	logger *slog.Logger

	mu   sync.Mutex
	sent []Message
}

var _ Notifier = (*Console)(nil)

func NewConsole(from mail.Address, logger *slog.Logger) *Console {
	return &Console{from: from, logger: logger}
}

func (c *Console) Send(_ context.Context, msg Message) (string, error) {
	if err := msg.validate(); err != nil {
		return "", err
	}

	id := xid.New().String()
	c.logger.Info("email (console)",
		"id", id,
		"from", c.from.String(),
		"to", msg.To.String(),
		"subject", msg.Subject,
		"text", msg.Text,
	)

	c.mu.Lock()
	c.sent = append(c.sent, msg)
	c.mu.Unlock()

	return id, nil
}

// Sent returns a copy of the messages sent so far.
func (c *Console) Sent() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.sent))
	copy(out, c.sent)
	return out
}
