package memstore

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/diagnosis/streetink-bookings/internal/domain"
	"github.com/diagnosis/streetink-bookings/internal/repo"
)

type bookingRepo struct{ s *Store }

func sortBookings(out []domain.Booking) {
	slices.SortFunc(out, func(a, b domain.Booking) int {
		if c := domain.Compare(a.Slot, b.Slot); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

func (r *bookingRepo) FindByArtistAndDate(ctx context.Context, artistID int64, date time.Time) ([]domain.Booking, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	day := domain.CivilDate(date)

	r.s.d.mu.RLock()
	defer r.s.d.mu.RUnlock()

	var out []domain.Booking
	for _, b := range r.s.d.bookings {
		if b.ArtistID == artistID && b.Slot.Date.Equal(day) {
			out = append(out, b)
		}
	}
	sortBookings(out)
	return out, nil
}

func (r *bookingRepo) Get(ctx context.Context, id int64) (domain.Booking, error) {
	if err := ctx.Err(); err != nil {
		return domain.Booking{}, err
	}
	r.s.d.mu.RLock()
	defer r.s.d.mu.RUnlock()

	b, ok := r.s.d.bookings[id]
	if !ok {
		return domain.Booking{}, repo.ErrNotFound
	}
	return b, nil
}

func (r *bookingRepo) Insert(ctx context.Context, b domain.Booking) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	d := r.s.d
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.clients[b.ClientID]; !ok {
		return 0, repo.ErrForeignKey
	}
	b.ID = d.nextBookingID
	d.nextBookingID++
	b.Slot.Date = domain.CivilDate(b.Slot.Date)
	now := d.now().UTC()
	b.CreatedAt, b.UpdatedAt = now, now
	d.bookings[b.ID] = b

	id := b.ID
	r.s.journal.record(func() { delete(d.bookings, id) })
	return id, nil
}

func (r *bookingRepo) UpdateStatus(ctx context.Context, id int64, from, to domain.BookingStatus) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d := r.s.d
	d.mu.Lock()
	defer d.mu.Unlock()

	b, ok := d.bookings[id]
	if !ok {
		return repo.ErrNotFound
	}
	if b.Status != from {
		return repo.ErrStaleStatus
	}
	prev := b
	b.Status = to
	b.UpdatedAt = d.now().UTC()
	d.bookings[id] = b

	r.s.journal.record(func() { d.bookings[id] = prev })
	return nil
}

func (r *bookingRepo) ReassignClient(ctx context.Context, oldClientID, newClientID int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	d := r.s.d
	d.mu.Lock()
	defer d.mu.Unlock()

	var moved []int64
	now := d.now().UTC()
	for id, b := range d.bookings {
		if b.ClientID != oldClientID {
			continue
		}
		b.ClientID = newClientID
		b.UpdatedAt = now
		d.bookings[id] = b
		moved = append(moved, id)
	}

	r.s.journal.record(func() {
		for _, id := range moved {
			if b, ok := d.bookings[id]; ok {
				b.ClientID = oldClientID
				d.bookings[id] = b
			}
		}
	})
	return int64(len(moved)), nil
}

func (r *bookingRepo) MaxBookingDate(ctx context.Context, clientID int64) (time.Time, bool, error) {
	if err := ctx.Err(); err != nil {
		return time.Time{}, false, err
	}
	r.s.d.mu.RLock()
	defer r.s.d.mu.RUnlock()

	var (
		last  time.Time
		found bool
	)
	for _, b := range r.s.d.bookings {
		if b.ClientID != clientID {
			continue
		}
		if !found || b.Slot.Date.After(last) {
			last = b.Slot.Date
			found = true
		}
	}
	return last, found, nil
}

func (r *bookingRepo) ListByClient(ctx context.Context, clientID int64) ([]domain.Booking, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.d.mu.RLock()
	defer r.s.d.mu.RUnlock()

	var out []domain.Booking
	for _, b := range r.s.d.bookings {
		if b.ClientID == clientID {
			out = append(out, b)
		}
	}
	sortBookings(out)
	return out, nil
}

func (r *bookingRepo) Delete(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d := r.s.d
	d.mu.Lock()
	defer d.mu.Unlock()

	b, ok := d.bookings[id]
	if !ok {
		return repo.ErrNotFound
	}
	delete(d.bookings, id)
	r.s.journal.record(func() { d.bookings[id] = b })
	return nil
}
