package postgres

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/diagnosis/streetink-bookings/internal/domain"
	"github.com/diagnosis/streetink-bookings/internal/repo"
)

type ArtistRepo struct{ db querier }

const artistCols = `id, username, password_hash, first_name, last_name, email, phone_number, facebook, instagram`

func scanArtist(row pgx.Row) (domain.TattooArtist, error) {
	var a domain.TattooArtist
	err := row.Scan(
		&a.ID, &a.Username, &a.PasswordHash, &a.FirstName, &a.LastName,
		&a.Email, &a.PhoneNumber, &a.Facebook, &a.Instagram,
	)
	return a, mapErr(err)
}

func (r *ArtistRepo) Get(ctx context.Context, id int64) (domain.TattooArtist, error) {
	const q = `SELECT ` + artistCols + ` FROM artists WHERE id=$1`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return scanArtist(r.db.QueryRow(ctx, q, id))
}

func (r *ArtistRepo) GetByUsername(ctx context.Context, username string) (domain.TattooArtist, error) {
	const q = `SELECT ` + artistCols + ` FROM artists WHERE lower(username)=$1`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return scanArtist(r.db.QueryRow(ctx, q, strings.ToLower(strings.TrimSpace(username))))
}

// Create inserts an artist account. It is used by seeding and tests; the
// HTTP surface does not expose artist registration.
func (r *ArtistRepo) Create(ctx context.Context, a domain.TattooArtist) (domain.TattooArtist, error) {
	const q = `INSERT INTO artists (username, password_hash, first_name, last_name, email, phone_number, facebook, instagram)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
RETURNING ` + artistCols
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return scanArtist(r.db.QueryRow(ctx, q,
		a.Username, a.PasswordHash, a.FirstName, a.LastName, a.Email, a.PhoneNumber, a.Facebook, a.Instagram,
	))
}

var _ repo.Artists = (*ArtistRepo)(nil)

func (r *ArtistRepo) EmailByUsername(ctx context.Context, username string) (string, error) {
	const q = `SELECT email FROM artists WHERE lower(username)=$1`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var email string
	err := r.db.QueryRow(ctx, q, strings.ToLower(strings.TrimSpace(username))).Scan(&email)
	return email, mapErr(err)
}
