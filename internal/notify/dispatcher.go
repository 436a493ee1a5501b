// Package notify renders and delivers booking confirmations. Delivery
// outcome never feeds back into booking state.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/diagnosis/streetink-bookings/internal/domain"
	"github.com/diagnosis/streetink-bookings/internal/mailer"
	"github.com/diagnosis/streetink-bookings/pkg/logger"
)

const (
	ConfirmationTemplate = "confirmation-mail"
	ConfirmationSubject  = "Booking Confirmation"
)

type DispatchStatus string

const (
	Sent            DispatchStatus = "sent"
	TransportFailed DispatchStatus = "transport_failed"
	TemplateFailed  DispatchStatus = "template_failed"
)

type DispatchResult struct {
	Status    DispatchStatus `json:"status"`
	Reason    string         `json:"reason,omitempty"`
	MessageID string         `json:"message_id,omitempty"`
}

func (r DispatchResult) OK() bool { return r.Status == Sent }

// UserMessage is the text shown to the artist after a confirmation attempt.
func (r DispatchResult) UserMessage() string {
	switch r.Status {
	case Sent:
		return "Mail sent successfully"
	case TransportFailed:
		return "Booking is saved. Unfortunately there was an error sending the email confirmation. " +
			"Please try again later. If the problem persists, check your mail account."
	default:
		return "Booking is saved. An unexpected error occurred while preparing the email confirmation. Please try again later."
	}
}

type Dispatcher struct {
	renderer  Renderer
	transport mailer.Transport
	timeout   time.Duration
}

// NewDispatcher bounds every send by timeout; zero means 10s.
func NewDispatcher(renderer Renderer, transport mailer.Transport, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{renderer: renderer, transport: transport, timeout: timeout}
}

// ConfirmationContext is the data handed to the confirmation template.
func ConfirmationContext(b domain.Booking, c domain.Client, a domain.TattooArtist) map[string]any {
	return map[string]any{
		"ClientFirstName":    c.FirstName,
		"ArtistFirstName":    a.FirstName,
		"ArtistLastName":     a.LastName,
		"ArtistPhone":        a.PhoneNumber,
		"ArtistEmail":        a.Email,
		"ArtistFacebook":     a.Facebook,
		"ArtistInstagram":    a.Instagram,
		"BookingStart":       b.Slot.Start.String(),
		"BookingEnd":         b.Slot.End.String(),
		"BookingDate":        domain.FormatDate(b.Slot.Date),
		"BookingTitle":       b.ProjectTitle,
		"BookingDescription": b.ProjectDescription,
	}
}

// DispatchConfirmation renders the confirmation for b and sends it to the
// client. It never returns an error or panics; every failure is folded into
// the result.
func (d *Dispatcher) DispatchConfirmation(ctx context.Context, b domain.Booking, c domain.Client, a domain.TattooArtist) (res DispatchResult) {
	defer func() {
		if p := recover(); p != nil {
			logger.ErrorContext(ctx, "Confirmation dispatch panicked", "booking_id", b.ID, "panic", p)
			res = DispatchResult{Status: TransportFailed, Reason: fmt.Sprintf("panic: %v", p)}
		}
	}()

	html, err := d.renderer.Render(ConfirmationTemplate, ConfirmationContext(b, c, a))
	if err != nil {
		logger.ErrorContext(ctx, "Failed to render confirmation", "booking_id", b.ID, "error", err)
		return DispatchResult{Status: TemplateFailed, Reason: err.Error()}
	}

	if strings.TrimSpace(c.Email) == "" {
		return DispatchResult{Status: TransportFailed, Reason: "client has no email address"}
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	id, err := d.transport.Send(sendCtx, mailer.Message{
		To:      c.Email,
		ToName:  c.FullName(),
		Subject: ConfirmationSubject,
		HTML:    html,
	})
	if err != nil {
		reason := err.Error()
		if errors.Is(err, context.DeadlineExceeded) {
			reason = "mail transport timed out"
		}
		logger.WarnContext(ctx, "Failed to send confirmation", "booking_id", b.ID, "error", err)
		return DispatchResult{Status: TransportFailed, Reason: reason}
	}

	logger.InfoContext(ctx, "Confirmation sent", "booking_id", b.ID, "message_id", id)
	return DispatchResult{Status: Sent, MessageID: id}
}

// SendPlain sends a plain-text message without templating.
func (d *Dispatcher) SendPlain(ctx context.Context, to, subject, content string) error {
	if !domain.IsValidEmail(strings.TrimSpace(to)) {
		return fmt.Errorf("%w: recipient %q is malformed", domain.ErrValidation, to)
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	_, err := d.transport.Send(sendCtx, mailer.Message{To: strings.TrimSpace(to), Subject: subject, Text: content})
	return err
}
