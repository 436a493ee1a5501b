package repo

import (
	"context"
	"errors"
	"time"

	"github.com/diagnosis/streetink-bookings/internal/domain"
)

var (
	ErrNotFound = errors.New("store: not found")
	// ErrStaleStatus is returned by a compare-and-set status update when the
	// booking is no longer in the expected state.
	ErrStaleStatus = errors.New("store: status changed concurrently")
	// ErrForeignKey is returned when an insert names a missing client or a
	// delete would leave bookings pointing at a removed client.
	ErrForeignKey = errors.New("store: foreign key violation")
)

// Store is the root data access interface implemented by the postgres and
// in-memory drivers. Sub-repositories obtained from a transaction-scoped
// Store run inside that transaction.
type Store interface {
	Bookings() Bookings
	Clients() Clients
	Artists() Artists

	// WithTx runs fn in a transaction. fn returning an error rolls back.
	WithTx(ctx context.Context, fn func(tx Store) error) error

	// WithScheduleLock runs fn in a transaction that is serialized against
	// every other WithScheduleLock call for the same artist and date. It is
	// the atomic unit around conflict check and insert.
	WithScheduleLock(ctx context.Context, artistID int64, date time.Time, fn func(tx Store) error) error

	Ping(ctx context.Context) error
	Close() error
}

type Bookings interface {
	// FindByArtistAndDate returns every booking of the artist on date,
	// ordered by start time.
	FindByArtistAndDate(ctx context.Context, artistID int64, date time.Time) ([]domain.Booking, error)

	Get(ctx context.Context, id int64) (domain.Booking, error)

	// Insert stores b and returns the assigned id.
	Insert(ctx context.Context, b domain.Booking) (int64, error)

	// UpdateStatus moves a booking from one status to another. It returns
	// ErrStaleStatus when the booking is not currently in from.
	UpdateStatus(ctx context.Context, id int64, from, to domain.BookingStatus) error

	// ReassignClient points every booking of oldClientID at newClientID.
	ReassignClient(ctx context.Context, oldClientID, newClientID int64) (int64, error)

	// MaxBookingDate returns the latest booking date of a client; ok is
	// false when the client has no bookings.
	MaxBookingDate(ctx context.Context, clientID int64) (date time.Time, ok bool, err error)

	ListByClient(ctx context.Context, clientID int64) ([]domain.Booking, error)

	Delete(ctx context.Context, id int64) error
}

type Clients interface {
	List(ctx context.Context) ([]domain.Client, error)

	// ListSortedByFirstName returns all clients ordered by first name.
	ListSortedByFirstName(ctx context.Context) ([]domain.Client, error)

	// SearchByFirstName matches case-insensitively on part of the name.
	SearchByFirstName(ctx context.Context, firstName string) ([]domain.Client, error)

	// SearchByPhone matches on part of the phone number.
	SearchByPhone(ctx context.Context, phone string) ([]domain.Client, error)

	Get(ctx context.Context, id int64) (domain.Client, error)
	Create(ctx context.Context, in domain.ClientInput) (domain.Client, error)
	Update(ctx context.Context, id int64, in domain.ClientInput) (domain.Client, error)
	Delete(ctx context.Context, id int64) error

	// SetActive writes the derived activity flag for the given clients.
	SetActive(ctx context.Context, ids []int64, active bool) error
}

type Artists interface {
	Get(ctx context.Context, id int64) (domain.TattooArtist, error)
	// GetByUsername matches the username case-insensitively.
	GetByUsername(ctx context.Context, username string) (domain.TattooArtist, error)
	// EmailByUsername returns the stored email of the account.
	EmailByUsername(ctx context.Context, username string) (string, error)
	Create(ctx context.Context, a domain.TattooArtist) (domain.TattooArtist, error)
}
