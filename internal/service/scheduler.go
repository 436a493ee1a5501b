package service

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/diagnosis/streetink-bookings/internal/domain"
	"github.com/diagnosis/streetink-bookings/internal/repo"
)

// Scheduler decides whether a proposed slot is free. It reads through the
// store it is handed and never writes.
type Scheduler struct{}

func NewScheduler() *Scheduler { return &Scheduler{} }

// Check validates req, resolves its artist and client and scans the artist's
// day for a colliding active booking. On success it returns the booking to
// create, in the requested state.
func (s *Scheduler) Check(ctx context.Context, store repo.Store, req domain.ProposeRequest) (domain.Booking, error) {
	req.Normalize()

	if err := req.Slot.Validate(); err != nil {
		return domain.Booking{}, err
	}
	if req.ProjectTitle == "" {
		return domain.Booking{}, fmt.Errorf("%w: project title is required", domain.ErrValidation)
	}
	if utf8.RuneCountInString(req.ProjectTitle) > domain.MaxProjectTitleLength {
		return domain.Booking{}, fmt.Errorf("%w: project title exceeds %d characters", domain.ErrValidation, domain.MaxProjectTitleLength)
	}

	if _, err := store.Artists().Get(ctx, req.ArtistID); err != nil {
		return domain.Booking{}, lookupErr("artist", req.ArtistID, err)
	}
	if _, err := store.Clients().Get(ctx, req.ClientID); err != nil {
		return domain.Booking{}, lookupErr("client", req.ClientID, err)
	}

	day, err := store.Bookings().FindByArtistAndDate(ctx, req.ArtistID, req.Slot.Date)
	if err != nil {
		return domain.Booking{}, fmt.Errorf("load schedule: %w", err)
	}
	if clash, ok := FirstConflict(day, req.Slot); ok {
		return domain.Booking{}, &domain.ConflictError{BookingID: clash.ID, Slot: clash.Slot}
	}

	return domain.Booking{
		ClientID:           req.ClientID,
		ArtistID:           req.ArtistID,
		Slot:               req.Slot,
		ProjectTitle:       req.ProjectTitle,
		ProjectDescription: req.ProjectDescription,
		Status:             domain.BookingRequested,
	}, nil
}

// FirstConflict returns the earliest active booking in day overlapping slot.
// day must be ordered by start time.
func FirstConflict(day []domain.Booking, slot domain.TimeSlot) (domain.Booking, bool) {
	for _, b := range day {
		if !b.Status.IsActive() {
			continue
		}
		if domain.Overlaps(b.Slot, slot) {
			return b, true
		}
	}
	return domain.Booking{}, false
}
