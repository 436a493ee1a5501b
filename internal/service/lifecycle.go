package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/diagnosis/streetink-bookings/internal/domain"
	"github.com/diagnosis/streetink-bookings/internal/repo"
	"github.com/diagnosis/streetink-bookings/pkg/events"
	"github.com/diagnosis/streetink-bookings/pkg/logger"
)

var eventSubjects = map[domain.BookingEvent]string{
	domain.EventConfirm:  events.BookingConfirmed,
	domain.EventCancel:   events.BookingCancelled,
	domain.EventComplete: events.BookingCompleted,
}

// Lifecycle owns every write to a booking's status and the client deletion
// policy.
type Lifecycle struct {
	store repo.Store
	bus   events.Publisher
	loc   *time.Location
	now   func() time.Time
}

// NewLifecycle evaluates slot end times in loc; nil means UTC. bus may be nil.
func NewLifecycle(store repo.Store, bus events.Publisher, loc *time.Location) *Lifecycle {
	if loc == nil {
		loc = time.UTC
	}
	return &Lifecycle{store: store, bus: bus, loc: loc, now: time.Now}
}

// Create stores b as a new requested booking through tx.
func (l *Lifecycle) Create(ctx context.Context, tx repo.Store, b domain.Booking) (domain.Booking, error) {
	b.Status = domain.BookingRequested
	id, err := tx.Bookings().Insert(ctx, b)
	if errors.Is(err, repo.ErrForeignKey) {
		return domain.Booking{}, domain.NotFound("client", b.ClientID, nil)
	}
	if err != nil {
		return domain.Booking{}, fmt.Errorf("insert booking: %w", err)
	}
	stored, err := tx.Bookings().Get(ctx, id)
	if err != nil {
		return domain.Booking{}, fmt.Errorf("reload booking %d: %w", id, err)
	}
	return stored, nil
}

func (l *Lifecycle) Confirm(ctx context.Context, id int64) (domain.Booking, error) {
	return l.Apply(ctx, id, domain.EventConfirm)
}

func (l *Lifecycle) Cancel(ctx context.Context, id int64) (domain.Booking, error) {
	return l.Apply(ctx, id, domain.EventCancel)
}

// Complete is only accepted once the booked slot has ended.
func (l *Lifecycle) Complete(ctx context.Context, id int64) (domain.Booking, error) {
	return l.Apply(ctx, id, domain.EventComplete)
}

// Apply moves booking id through ev. A rejected event, including one that
// loses a race with a concurrent transition, returns a TransitionError and
// leaves the stored status untouched.
func (l *Lifecycle) Apply(ctx context.Context, id int64, ev domain.BookingEvent) (domain.Booking, error) {
	b, err := l.store.Bookings().Get(ctx, id)
	if err != nil {
		return domain.Booking{}, lookupErr("booking", id, err)
	}

	next, err := domain.NextStatus(b.Status, ev)
	if err != nil {
		return b, err
	}
	if ev == domain.EventComplete && l.now().Before(b.Slot.EndsAt(l.loc)) {
		return b, &domain.TransitionError{From: b.Status, Event: ev}
	}

	err = l.store.Bookings().UpdateStatus(ctx, id, b.Status, next)
	switch {
	case errors.Is(err, repo.ErrStaleStatus):
		current, getErr := l.store.Bookings().Get(ctx, id)
		if getErr != nil {
			return b, lookupErr("booking", id, getErr)
		}
		return current, &domain.TransitionError{From: current.Status, Event: ev}
	case err != nil:
		return b, lookupErr("booking", id, err)
	}

	b.Status = next
	b.UpdatedAt = l.now().UTC()
	logger.InfoContext(ctx, "Booking transitioned", "booking_id", id, "event", ev, "status", next)
	l.publish(ctx, eventSubjects[ev], b)
	return b, nil
}

// deleteAttempts bounds retries of a client deletion that raced with a new
// booking for the same client.
const deleteAttempts = 3

// ReassignAndDeleteClient moves every booking of the client to the
// placeholder client and removes the client, atomically. The store refuses
// to delete a client that still has bookings, so a booking inserted
// concurrently rolls the attempt back and it is retried.
func (l *Lifecycle) ReassignAndDeleteClient(ctx context.Context, clientID int64) (int64, error) {
	if clientID == domain.PlaceholderClientID {
		return 0, domain.ErrPlaceholderClient
	}

	var (
		moved int64
		err   error
	)
	for attempt := 1; attempt <= deleteAttempts; attempt++ {
		moved, err = l.reassignAndDelete(ctx, clientID)
		if !errors.Is(err, repo.ErrForeignKey) {
			break
		}
		logger.WarnContext(ctx, "Client gained bookings during deletion, retrying", "client_id", clientID, "attempt", attempt)
	}
	if err != nil {
		return 0, err
	}

	logger.InfoContext(ctx, "Client deleted", "client_id", clientID, "reassigned_bookings", moved)
	if l.bus != nil {
		ev := events.ClientDeletedEvent{
			ClientID:           clientID,
			ReassignedTo:       domain.PlaceholderClientID,
			ReassignedBookings: moved,
			DeletedAt:          l.now().UTC(),
		}
		if err := l.bus.Publish(ctx, events.ClientDeleted, ev); err != nil {
			logger.ErrorContext(ctx, "Failed to publish client deleted event", "error", err, "client_id", clientID)
		}
	}
	return moved, nil
}

func (l *Lifecycle) reassignAndDelete(ctx context.Context, clientID int64) (int64, error) {
	var moved int64
	err := l.store.WithTx(ctx, func(tx repo.Store) error {
		if _, err := tx.Clients().Get(ctx, clientID); err != nil {
			return lookupErr("client", clientID, err)
		}
		n, err := tx.Bookings().ReassignClient(ctx, clientID, domain.PlaceholderClientID)
		if err != nil {
			return fmt.Errorf("reassign bookings: %w", err)
		}
		if err := tx.Clients().Delete(ctx, clientID); err != nil {
			return fmt.Errorf("delete client %d: %w", clientID, err)
		}
		moved = n
		return nil
	})
	return moved, err
}

// DeleteBooking removes a booking outright.
func (l *Lifecycle) DeleteBooking(ctx context.Context, id int64) error {
	b, err := l.store.Bookings().Get(ctx, id)
	if err != nil {
		return lookupErr("booking", id, err)
	}
	if err := l.store.Bookings().Delete(ctx, id); err != nil {
		return lookupErr("booking", id, err)
	}
	l.publish(ctx, events.BookingDeleted, b)
	return nil
}

func (l *Lifecycle) publish(ctx context.Context, subject string, b domain.Booking) {
	if l.bus == nil {
		return
	}
	ev := events.BookingEvent{
		BookingID:  b.ID,
		ArtistID:   b.ArtistID,
		ClientID:   b.ClientID,
		Status:     string(b.Status),
		Date:       b.Slot.Date.Format(domain.DateLayout),
		Start:      b.Slot.Start.String(),
		End:        b.Slot.End.String(),
		OccurredAt: l.now().UTC(),
	}
	if err := l.bus.Publish(ctx, subject, ev); err != nil {
		logger.ErrorContext(ctx, "Failed to publish booking event", "error", err, "subject", subject, "booking_id", b.ID)
	}
}
