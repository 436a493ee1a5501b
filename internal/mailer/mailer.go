// Package mailer delivers rendered email through MailerSend, SMTP or, in
// development, the log.
package mailer

import (
	"context"
	"fmt"
	"strings"

	"github.com/diagnosis/streetink-bookings/pkg/config"
)

type Message struct {
	To      string
	ToName  string
	Subject string
	Text    string
	HTML    string
}

// Transport sends one message and returns the provider's message id, which
// may be empty.
type Transport interface {
	Send(ctx context.Context, m Message) (string, error)
}

// New selects the transport named by cfg.Provider.
func New(cfg config.EmailConfig) (Transport, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "dev":
		return NewDevMailer(), nil
	case "smtp":
		return NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.FromEmail, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPUseTLS), nil
	case "mailersend":
		m := NewMailerSend(cfg.MailerSendKey, cfg.FromName, cfg.FromEmail)
		if !m.Enabled {
			return nil, fmt.Errorf("mailersend requires MAILERSEND_API_KEY and EMAIL_FROM")
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unknown email provider %q", cfg.Provider)
	}
}
