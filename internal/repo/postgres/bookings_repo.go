package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/diagnosis/streetink-bookings/internal/domain"
	"github.com/diagnosis/streetink-bookings/internal/repo"
)

type BookingRepo struct{ db querier }

const bookingCols = `id, client_id, artist_id, date, start_minute, end_minute,
project_title, project_description, status, created_at, updated_at`

func scanBooking(row pgx.Row) (domain.Booking, error) {
	var (
		b          domain.Booking
		start, end int16
		status     string
	)
	err := row.Scan(
		&b.ID, &b.ClientID, &b.ArtistID, &b.Slot.Date, &start, &end,
		&b.ProjectTitle, &b.ProjectDescription, &status, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return domain.Booking{}, err
	}
	b.Slot.Date = domain.CivilDate(b.Slot.Date)
	b.Slot.Start = domain.TimeOfDay(start)
	b.Slot.End = domain.TimeOfDay(end)
	b.Status = domain.BookingStatus(status)
	return b, nil
}

func collectBookings(rows pgx.Rows) ([]domain.Booking, error) {
	defer rows.Close()
	var out []domain.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *BookingRepo) FindByArtistAndDate(ctx context.Context, artistID int64, date time.Time) ([]domain.Booking, error) {
	const q = `SELECT ` + bookingCols + ` FROM bookings
WHERE artist_id=$1 AND date=$2
ORDER BY start_minute, id`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := r.db.Query(ctx, q, artistID, domain.CivilDate(date))
	if err != nil {
		return nil, err
	}
	return collectBookings(rows)
}

func (r *BookingRepo) Get(ctx context.Context, id int64) (domain.Booking, error) {
	const q = `SELECT ` + bookingCols + ` FROM bookings WHERE id=$1`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	b, err := scanBooking(r.db.QueryRow(ctx, q, id))
	return b, mapErr(err)
}

func (r *BookingRepo) Insert(ctx context.Context, b domain.Booking) (int64, error) {
	const q = `INSERT INTO bookings (
    client_id, artist_id, date, start_minute, end_minute,
    project_title, project_description, status
  ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
  RETURNING id`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var id int64
	err := r.db.QueryRow(ctx, q,
		b.ClientID, b.ArtistID, domain.CivilDate(b.Slot.Date),
		int16(b.Slot.Start), int16(b.Slot.End),
		b.ProjectTitle, b.ProjectDescription, string(b.Status),
	).Scan(&id)
	return id, mapErr(err)
}

func (r *BookingRepo) UpdateStatus(ctx context.Context, id int64, from, to domain.BookingStatus) error {
	const q = `UPDATE bookings SET status=$3, updated_at=now() WHERE id=$1 AND status=$2`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tag, err := r.db.Exec(ctx, q, id, string(from), string(to))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM bookings WHERE id=$1)`, id).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return repo.ErrNotFound
		}
		return repo.ErrStaleStatus
	}
	return nil
}

func (r *BookingRepo) ReassignClient(ctx context.Context, oldClientID, newClientID int64) (int64, error) {
	const q = `UPDATE bookings SET client_id=$2, updated_at=now() WHERE client_id=$1`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tag, err := r.db.Exec(ctx, q, oldClientID, newClientID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *BookingRepo) MaxBookingDate(ctx context.Context, clientID int64) (time.Time, bool, error) {
	const q = `SELECT MAX(date) FROM bookings WHERE client_id=$1`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var last *time.Time
	if err := r.db.QueryRow(ctx, q, clientID).Scan(&last); err != nil {
		return time.Time{}, false, err
	}
	if last == nil {
		return time.Time{}, false, nil
	}
	return domain.CivilDate(*last), true, nil
}

func (r *BookingRepo) ListByClient(ctx context.Context, clientID int64) ([]domain.Booking, error) {
	const q = `SELECT ` + bookingCols + ` FROM bookings
WHERE client_id=$1
ORDER BY date, start_minute, id`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := r.db.Query(ctx, q, clientID)
	if err != nil {
		return nil, err
	}
	return collectBookings(rows)
}

func (r *BookingRepo) Delete(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tag, err := r.db.Exec(ctx, `DELETE FROM bookings WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	return nil
}

var _ repo.Bookings = (*BookingRepo)(nil)
