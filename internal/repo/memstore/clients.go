package memstore

import (
	"cmp"
	"context"
	"slices"
	"strings"

	"github.com/diagnosis/streetink-bookings/internal/domain"
	"github.com/diagnosis/streetink-bookings/internal/repo"
)

type clientRepo struct{ s *Store }

func (r *clientRepo) filter(ctx context.Context, keep func(domain.Client) bool, cmp func(a, b domain.Client) int) ([]domain.Client, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.d.mu.RLock()
	defer r.s.d.mu.RUnlock()

	var out []domain.Client
	for _, c := range r.s.d.clients {
		if keep(c) {
			out = append(out, c)
		}
	}
	slices.SortFunc(out, cmp)
	return out, nil
}

func all(domain.Client) bool { return true }

func byID(a, b domain.Client) int { return cmp.Compare(a.ID, b.ID) }

func byFirstName(a, b domain.Client) int {
	if c := strings.Compare(strings.ToLower(a.FirstName), strings.ToLower(b.FirstName)); c != 0 {
		return c
	}
	return byID(a, b)
}

func (r *clientRepo) List(ctx context.Context) ([]domain.Client, error) {
	return r.filter(ctx, all, byID)
}

func (r *clientRepo) ListSortedByFirstName(ctx context.Context) ([]domain.Client, error) {
	return r.filter(ctx, all, byFirstName)
}

func (r *clientRepo) SearchByFirstName(ctx context.Context, firstName string) ([]domain.Client, error) {
	needle := strings.ToLower(firstName)
	return r.filter(ctx, func(c domain.Client) bool {
		return strings.Contains(strings.ToLower(c.FirstName), needle)
	}, byFirstName)
}

func (r *clientRepo) SearchByPhone(ctx context.Context, phone string) ([]domain.Client, error) {
	return r.filter(ctx, func(c domain.Client) bool {
		return strings.Contains(c.PhoneNumber, phone)
	}, byID)
}

func (r *clientRepo) Get(ctx context.Context, id int64) (domain.Client, error) {
	if err := ctx.Err(); err != nil {
		return domain.Client{}, err
	}
	r.s.d.mu.RLock()
	defer r.s.d.mu.RUnlock()

	c, ok := r.s.d.clients[id]
	if !ok {
		return domain.Client{}, repo.ErrNotFound
	}
	return c, nil
}

func (r *clientRepo) Create(ctx context.Context, in domain.ClientInput) (domain.Client, error) {
	if err := ctx.Err(); err != nil {
		return domain.Client{}, err
	}
	d := r.s.d
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now().UTC()
	c := domain.Client{
		ID:          d.nextClientID,
		FirstName:   in.FirstName,
		LastName:    in.LastName,
		Email:       in.Email,
		PhoneNumber: in.PhoneNumber,
		Description: in.Description,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	d.nextClientID++
	d.clients[c.ID] = c

	r.s.journal.record(func() { delete(d.clients, c.ID) })
	return c, nil
}

func (r *clientRepo) Update(ctx context.Context, id int64, in domain.ClientInput) (domain.Client, error) {
	if err := ctx.Err(); err != nil {
		return domain.Client{}, err
	}
	d := r.s.d
	d.mu.Lock()
	defer d.mu.Unlock()

	c, ok := d.clients[id]
	if !ok {
		return domain.Client{}, repo.ErrNotFound
	}
	prev := c
	c.FirstName = in.FirstName
	c.LastName = in.LastName
	c.Email = in.Email
	c.PhoneNumber = in.PhoneNumber
	c.Description = in.Description
	c.UpdatedAt = d.now().UTC()
	d.clients[id] = c

	r.s.journal.record(func() { d.clients[id] = prev })
	return c, nil
}

func (r *clientRepo) Delete(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d := r.s.d
	d.mu.Lock()
	defer d.mu.Unlock()

	c, ok := d.clients[id]
	if !ok {
		return repo.ErrNotFound
	}
	for _, b := range d.bookings {
		if b.ClientID == id {
			return repo.ErrForeignKey
		}
	}
	delete(d.clients, id)
	r.s.journal.record(func() { d.clients[id] = c })
	return nil
}

func (r *clientRepo) SetActive(ctx context.Context, ids []int64, active bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d := r.s.d
	d.mu.Lock()
	defer d.mu.Unlock()

	prev := make(map[int64]domain.Client, len(ids))
	now := d.now().UTC()
	for _, id := range ids {
		c, ok := d.clients[id]
		if !ok {
			continue
		}
		prev[id] = c
		c.Active = active
		c.UpdatedAt = now
		d.clients[id] = c
	}

	r.s.journal.record(func() {
		for id, c := range prev {
			d.clients[id] = c
		}
	})
	return nil
}
