package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/diagnosis/streetink-bookings/internal/repo"
)

const queryTimeout = 3 * time.Second

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	pool *pgxpool.Pool
	db   querier
	tx   bool

	bookings *BookingRepo
	clients  *ClientRepo
	artists  *ArtistRepo
}

func New(pool *pgxpool.Pool) *Store {
	return newStore(pool, pool, false)
}

func newStore(pool *pgxpool.Pool, db querier, inTx bool) *Store {
	return &Store{
		pool:     pool,
		db:       db,
		tx:       inTx,
		bookings: &BookingRepo{db: db},
		clients:  &ClientRepo{db: db},
		artists:  &ArtistRepo{db: db},
	}
}

func (s *Store) Bookings() repo.Bookings { return s.bookings }
func (s *Store) Clients() repo.Clients   { return s.clients }
func (s *Store) Artists() repo.Artists   { return s.artists }

// WithTx runs fn inside a transaction. Nested calls reuse the outer one.
func (s *Store) WithTx(ctx context.Context, fn func(tx repo.Store) error) error {
	if s.tx {
		return fn(s)
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(newStore(s.pool, tx, true)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// WithScheduleLock takes a transaction-scoped advisory lock keyed on the
// artist and the civil date, so concurrent proposals for the same day are
// serialized while other days proceed in parallel.
func (s *Store) WithScheduleLock(ctx context.Context, artistID int64, date time.Time, fn func(tx repo.Store) error) error {
	return s.WithTx(ctx, func(tx repo.Store) error {
		pg := tx.(*Store)
		lockCtx, cancel := context.WithTimeout(ctx, queryTimeout)
		defer cancel()
		if _, err := pg.db.Exec(lockCtx, `SELECT pg_advisory_xact_lock($1)`, scheduleLockKey(artistID, date)); err != nil {
			return fmt.Errorf("schedule lock: %w", err)
		}
		return fn(tx)
	})
}

func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return s.pool.Ping(ctx)
}

func (s *Store) Close() error {
	if !s.tx {
		s.pool.Close()
	}
	return nil
}

// scheduleLockKey packs the artist id into the high bits and the day number
// into the low 20 bits, which covers dates until the year 4840.
func scheduleLockKey(artistID int64, date time.Time) int64 {
	days := date.UTC().Unix() / 86400
	return artistID<<20 | (days & (1<<20 - 1))
}

func mapErr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return repo.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23503" {
		return fmt.Errorf("%w: %s", repo.ErrForeignKey, pgErr.ConstraintName)
	}
	return err
}

var _ repo.Store = (*Store)(nil)
