package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/diagnosis/streetink-bookings/internal/domain"
	"github.com/diagnosis/streetink-bookings/internal/repo"
	"github.com/diagnosis/streetink-bookings/pkg/events"
	"github.com/diagnosis/streetink-bookings/pkg/logger"
)

// Worker sends confirmations for booking.confirmed events. Running several
// workers in one queue group delivers each event to exactly one of them.
type Worker struct {
	store      repo.Store
	dispatcher *Dispatcher
	timeout    time.Duration

	// OnResult, when set, observes every dispatch outcome.
	OnResult func(bookingID int64, res DispatchResult)
}

func NewWorker(store repo.Store, dispatcher *Dispatcher, timeout time.Duration) *Worker {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Worker{store: store, dispatcher: dispatcher, timeout: timeout}
}

func (w *Worker) Start(bus events.Subscriber, queue string) error {
	if err := bus.QueueSubscribe(events.BookingConfirmed, queue, w.handle); err != nil {
		return fmt.Errorf("subscribe %s: %w", events.BookingConfirmed, err)
	}
	logger.Info("Notify worker subscribed", "subject", events.BookingConfirmed, "queue", queue)
	return nil
}

func (w *Worker) handle(msg *events.Message) {
	ctx, cancel := context.WithTimeout(logger.WithService(context.Background(), "notify"), w.timeout)
	defer cancel()

	var ev events.BookingEvent
	if err := msg.Decode(&ev); err != nil {
		logger.ErrorContext(ctx, "Malformed booking event", "msg_id", msg.ID, "error", err)
		return
	}

	res, err := w.Process(ctx, ev.BookingID)
	if err != nil {
		logger.ErrorContext(ctx, "Confirmation not dispatched", "booking_id", ev.BookingID, "msg_id", msg.ID, "error", err)
		return
	}
	if w.OnResult != nil {
		w.OnResult(ev.BookingID, res)
	}
}

// Process loads the booking with its client and artist and dispatches the
// confirmation. Only lookup failures are returned as errors.
func (w *Worker) Process(ctx context.Context, bookingID int64) (DispatchResult, error) {
	b, err := w.store.Bookings().Get(ctx, bookingID)
	if err != nil {
		return DispatchResult{}, domain.NotFound("booking", bookingID, err)
	}
	if b.Status != domain.BookingConfirmed {
		return DispatchResult{}, fmt.Errorf("booking %d is %s, not confirmed", bookingID, b.Status)
	}
	c, err := w.store.Clients().Get(ctx, b.ClientID)
	if err != nil {
		return DispatchResult{}, domain.NotFound("client", b.ClientID, err)
	}
	a, err := w.store.Artists().Get(ctx, b.ArtistID)
	if err != nil {
		return DispatchResult{}, domain.NotFound("artist", b.ArtistID, err)
	}
	return w.dispatcher.DispatchConfirmation(ctx, b, c, a), nil
}
