package mailer

import (
	"context"
	"sync"

	"github.com/diagnosis/streetink-bookings/pkg/idx"
	"github.com/diagnosis/streetink-bookings/pkg/logger"
)

// DevMailer logs messages instead of sending them and keeps them for
// inspection.
type DevMailer struct {
	mu     sync.Mutex
	outbox []Message
}

func NewDevMailer() *DevMailer {
	return &DevMailer{}
}

func (d *DevMailer) Send(ctx context.Context, m Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	id := "dev-" + idx.New().String()

	d.mu.Lock()
	d.outbox = append(d.outbox, m)
	d.mu.Unlock()

	logger.InfoContext(ctx, "[DEV MAIL] email captured",
		"message_id", id,
		"to", m.To,
		"subject", m.Subject,
		"html_bytes", len(m.HTML),
		"text", m.Text,
	)
	return id, nil
}

// Outbox returns a copy of every message sent so far.
func (d *DevMailer) Outbox() []Message {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Message(nil), d.outbox...)
}
