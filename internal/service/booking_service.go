package service

import (
	"context"
	"errors"
	"time"

	"github.com/diagnosis/streetink-bookings/internal/domain"
	"github.com/diagnosis/streetink-bookings/internal/notify"
	"github.com/diagnosis/streetink-bookings/internal/repo"
	"github.com/diagnosis/streetink-bookings/pkg/events"
	"github.com/diagnosis/streetink-bookings/pkg/logger"
)

type BookingService interface {
	ProposeBooking(ctx context.Context, req domain.ProposeRequest) (domain.Booking, error)
	GetBooking(ctx context.Context, id int64) (domain.Booking, error)
	DaySchedule(ctx context.Context, artistID int64, date time.Time) ([]domain.Booking, error)
	// Confirm returns a dispatch result only when confirmations are sent
	// inline; otherwise delivery happens off the request path.
	Confirm(ctx context.Context, id int64) (domain.Booking, *notify.DispatchResult, error)
	Cancel(ctx context.Context, id int64) (domain.Booking, error)
	Complete(ctx context.Context, id int64) (domain.Booking, error)
	DeleteBooking(ctx context.Context, id int64) error
}

// ConfirmationNotifier is satisfied by *notify.Dispatcher.
type ConfirmationNotifier interface {
	DispatchConfirmation(ctx context.Context, b domain.Booking, c domain.Client, a domain.TattooArtist) notify.DispatchResult
}

type BookingOptions struct {
	OpTimeout    time.Duration
	AutoConfirm  bool
	NotifyInline bool
}

type bookingService struct {
	store     repo.Store
	scheduler *Scheduler
	lifecycle *Lifecycle
	notifier  ConfirmationNotifier
	opts      BookingOptions
}

func NewBookingService(
	store repo.Store,
	scheduler *Scheduler,
	lifecycle *Lifecycle,
	notifier ConfirmationNotifier,
	opts BookingOptions,
) BookingService {
	if opts.OpTimeout <= 0 {
		opts.OpTimeout = 5 * time.Second
	}
	return &bookingService{
		store:     store,
		scheduler: scheduler,
		lifecycle: lifecycle,
		notifier:  notifier,
		opts:      opts,
	}
}

// ProposeBooking runs the conflict check and the insert under the artist's
// per-day schedule lock, so of several overlapping proposals only the first
// to take the lock is stored.
func (s *bookingService) ProposeBooking(ctx context.Context, req domain.ProposeRequest) (domain.Booking, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.OpTimeout)
	defer cancel()

	if err := req.Slot.Validate(); err != nil {
		return domain.Booking{}, err
	}

	var created domain.Booking
	err := s.store.WithScheduleLock(ctx, req.ArtistID, req.Slot.Date, func(tx repo.Store) error {
		candidate, err := s.scheduler.Check(ctx, tx, req)
		if err != nil {
			return err
		}
		created, err = s.lifecycle.Create(ctx, tx, candidate)
		return err
	})
	if err != nil {
		return domain.Booking{}, scheduleErr(req.ArtistID, err)
	}

	logger.InfoContext(ctx, "Booking created",
		"booking_id", created.ID,
		"artist_id", created.ArtistID,
		"client_id", created.ClientID,
		"slot", created.Slot.String(),
	)
	s.lifecycle.publish(ctx, events.BookingCreated, created)

	if s.opts.AutoConfirm {
		confirmed, err := s.lifecycle.Confirm(ctx, created.ID)
		if err != nil {
			logger.WarnContext(ctx, "Auto-confirm failed", "booking_id", created.ID, "error", err)
			return created, nil
		}
		return confirmed, nil
	}
	return created, nil
}

// scheduleErr reports a proposal that ran out of time waiting for the
// schedule lock or inside its transaction as NotFoundError with the cause.
func scheduleErr(artistID int64, err error) error {
	var nf *domain.NotFoundError
	if errors.As(err, &nf) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return domain.NotFound("schedule of artist", artistID, err)
	}
	return err
}

func (s *bookingService) GetBooking(ctx context.Context, id int64) (domain.Booking, error) {
	b, err := s.store.Bookings().Get(ctx, id)
	if err != nil {
		return domain.Booking{}, lookupErr("booking", id, err)
	}
	return b, nil
}

func (s *bookingService) DaySchedule(ctx context.Context, artistID int64, date time.Time) ([]domain.Booking, error) {
	if _, err := s.store.Artists().Get(ctx, artistID); err != nil {
		return nil, lookupErr("artist", artistID, err)
	}
	return s.store.Bookings().FindByArtistAndDate(ctx, artistID, date)
}

func (s *bookingService) Confirm(ctx context.Context, id int64) (domain.Booking, *notify.DispatchResult, error) {
	b, err := s.lifecycle.Confirm(ctx, id)
	if err != nil {
		return b, nil, err
	}
	if !s.opts.NotifyInline || s.notifier == nil {
		return b, nil, nil
	}

	res := s.dispatch(ctx, b)
	return b, &res, nil
}

// dispatch sends the confirmation for an already confirmed booking. Its
// outcome is reported, never propagated as an error.
func (s *bookingService) dispatch(ctx context.Context, b domain.Booking) notify.DispatchResult {
	c, err := s.store.Clients().Get(ctx, b.ClientID)
	if err != nil {
		logger.ErrorContext(ctx, "Confirmation skipped, client lookup failed", "booking_id", b.ID, "error", err)
		return notify.DispatchResult{Status: notify.TemplateFailed, Reason: lookupErr("client", b.ClientID, err).Error()}
	}
	a, err := s.store.Artists().Get(ctx, b.ArtistID)
	if err != nil {
		logger.ErrorContext(ctx, "Confirmation skipped, artist lookup failed", "booking_id", b.ID, "error", err)
		return notify.DispatchResult{Status: notify.TemplateFailed, Reason: lookupErr("artist", b.ArtistID, err).Error()}
	}
	return s.notifier.DispatchConfirmation(ctx, b, c, a)
}

func (s *bookingService) Cancel(ctx context.Context, id int64) (domain.Booking, error) {
	return s.lifecycle.Cancel(ctx, id)
}

func (s *bookingService) Complete(ctx context.Context, id int64) (domain.Booking, error) {
	return s.lifecycle.Complete(ctx, id)
}

func (s *bookingService) DeleteBooking(ctx context.Context, id int64) error {
	return s.lifecycle.DeleteBooking(ctx, id)
}
