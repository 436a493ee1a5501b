// Package memstore is an in-memory repo.Store used in dev mode and tests.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/diagnosis/streetink-bookings/internal/domain"
	"github.com/diagnosis/streetink-bookings/internal/repo"
)

type data struct {
	mu sync.RWMutex

	bookings map[int64]domain.Booking
	clients  map[int64]domain.Client
	artists  map[int64]domain.TattooArtist

	nextBookingID int64
	nextClientID  int64
	nextArtistID  int64

	now func() time.Time
}

type lockKey struct {
	artistID int64
	day      int64
}

// Store keeps every entity in maps guarded by one RWMutex. Transactions
// record undo steps and replay them in reverse when fn fails; they are
// atomic but not isolated from concurrent writers.
type Store struct {
	d     *data
	locks *sync.Map

	journal *journal
}

type journal struct{ undo []func() }

func (j *journal) record(fn func()) {
	if j != nil {
		j.undo = append(j.undo, fn)
	}
}

func (j *journal) rollback() {
	for i := len(j.undo) - 1; i >= 0; i-- {
		j.undo[i]()
	}
}

// New returns an empty store holding only the placeholder client.
func New() *Store {
	d := &data{
		bookings:      make(map[int64]domain.Booking),
		clients:       make(map[int64]domain.Client),
		artists:       make(map[int64]domain.TattooArtist),
		nextBookingID: 1,
		nextClientID:  domain.PlaceholderClientID + 1,
		nextArtistID:  1,
		now:           time.Now,
	}
	now := d.now().UTC()
	d.clients[domain.PlaceholderClientID] = domain.Client{
		ID:          domain.PlaceholderClientID,
		FirstName:   "Deleted",
		LastName:    "Client",
		Description: "Placeholder for bookings of deleted clients",
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return &Store{d: d, locks: &sync.Map{}}
}

func (s *Store) Bookings() repo.Bookings { return &bookingRepo{s: s} }
func (s *Store) Clients() repo.Clients   { return &clientRepo{s: s} }
func (s *Store) Artists() repo.Artists   { return &artistRepo{s: s} }

func (s *Store) WithTx(ctx context.Context, fn func(tx repo.Store) error) error {
	if s.journal != nil {
		return fn(s)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &Store{d: s.d, locks: s.locks, journal: &journal{}}
	if err := fn(tx); err != nil {
		s.d.mu.Lock()
		tx.journal.rollback()
		s.d.mu.Unlock()
		return err
	}
	return nil
}

func (s *Store) WithScheduleLock(ctx context.Context, artistID int64, date time.Time, fn func(tx repo.Store) error) error {
	key := lockKey{artistID: artistID, day: domain.CivilDate(date).Unix() / 86400}
	v, _ := s.locks.LoadOrStore(key, make(chan struct{}, 1))
	sem := v.(chan struct{})

	select {
	case sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-sem }()
	return s.WithTx(ctx, fn)
}

func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

func (s *Store) Close() error { return nil }

var _ repo.Store = (*Store)(nil)
