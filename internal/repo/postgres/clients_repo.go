package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/diagnosis/streetink-bookings/internal/domain"
	"github.com/diagnosis/streetink-bookings/internal/repo"
)

type ClientRepo struct{ db querier }

const clientCols = `id, first_name, last_name, email, phone_number, description, active, created_at, updated_at`

func scanClient(row pgx.Row) (domain.Client, error) {
	var c domain.Client
	err := row.Scan(
		&c.ID, &c.FirstName, &c.LastName, &c.Email, &c.PhoneNumber,
		&c.Description, &c.Active, &c.CreatedAt, &c.UpdatedAt,
	)
	return c, err
}

func (r *ClientRepo) queryMany(ctx context.Context, q string, args ...any) ([]domain.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *ClientRepo) List(ctx context.Context) ([]domain.Client, error) {
	return r.queryMany(ctx, `SELECT `+clientCols+` FROM clients ORDER BY id`)
}

func (r *ClientRepo) ListSortedByFirstName(ctx context.Context) ([]domain.Client, error) {
	return r.queryMany(ctx, `SELECT `+clientCols+` FROM clients ORDER BY lower(first_name), id`)
}

func (r *ClientRepo) SearchByFirstName(ctx context.Context, firstName string) ([]domain.Client, error) {
	const q = `SELECT ` + clientCols + ` FROM clients
WHERE first_name ILIKE '%' || $1 || '%'
ORDER BY lower(first_name), id`
	return r.queryMany(ctx, q, firstName)
}

func (r *ClientRepo) SearchByPhone(ctx context.Context, phone string) ([]domain.Client, error) {
	const q = `SELECT ` + clientCols + ` FROM clients
WHERE phone_number LIKE '%' || $1 || '%'
ORDER BY id`
	return r.queryMany(ctx, q, phone)
}

func (r *ClientRepo) Get(ctx context.Context, id int64) (domain.Client, error) {
	const q = `SELECT ` + clientCols + ` FROM clients WHERE id=$1`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	c, err := scanClient(r.db.QueryRow(ctx, q, id))
	return c, mapErr(err)
}

func (r *ClientRepo) Create(ctx context.Context, in domain.ClientInput) (domain.Client, error) {
	const q = `INSERT INTO clients (first_name, last_name, email, phone_number, description)
VALUES ($1,$2,$3,$4,$5)
RETURNING ` + clientCols
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	return scanClient(r.db.QueryRow(ctx, q, in.FirstName, in.LastName, in.Email, in.PhoneNumber, in.Description))
}

func (r *ClientRepo) Update(ctx context.Context, id int64, in domain.ClientInput) (domain.Client, error) {
	const q = `UPDATE clients
SET first_name=$2, last_name=$3, email=$4, phone_number=$5, description=$6, updated_at=now()
WHERE id=$1
RETURNING ` + clientCols
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	c, err := scanClient(r.db.QueryRow(ctx, q, id, in.FirstName, in.LastName, in.Email, in.PhoneNumber, in.Description))
	return c, mapErr(err)
}

func (r *ClientRepo) Delete(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tag, err := r.db.Exec(ctx, `DELETE FROM clients WHERE id=$1`, id)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (r *ClientRepo) SetActive(ctx context.Context, ids []int64, active bool) error {
	if len(ids) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.db.Exec(ctx, `UPDATE clients SET active=$2, updated_at=now() WHERE id = ANY($1)`, ids, active)
	return err
}

var _ repo.Clients = (*ClientRepo)(nil)
