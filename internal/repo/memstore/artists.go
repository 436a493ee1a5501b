package memstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/diagnosis/streetink-bookings/internal/domain"
	"github.com/diagnosis/streetink-bookings/internal/repo"
)

type artistRepo struct{ s *Store }

func (r *artistRepo) Get(ctx context.Context, id int64) (domain.TattooArtist, error) {
	if err := ctx.Err(); err != nil {
		return domain.TattooArtist{}, err
	}
	r.s.d.mu.RLock()
	defer r.s.d.mu.RUnlock()

	a, ok := r.s.d.artists[id]
	if !ok {
		return domain.TattooArtist{}, repo.ErrNotFound
	}
	return a, nil
}

func (r *artistRepo) GetByUsername(ctx context.Context, username string) (domain.TattooArtist, error) {
	if err := ctx.Err(); err != nil {
		return domain.TattooArtist{}, err
	}
	r.s.d.mu.RLock()
	defer r.s.d.mu.RUnlock()

	for _, a := range r.s.d.artists {
		if strings.EqualFold(a.Username, strings.TrimSpace(username)) {
			return a, nil
		}
	}
	return domain.TattooArtist{}, repo.ErrNotFound
}

func (r *artistRepo) EmailByUsername(ctx context.Context, username string) (string, error) {
	a, err := r.GetByUsername(ctx, username)
	if err != nil {
		return "", err
	}
	return a.Email, nil
}

func (r *artistRepo) Create(ctx context.Context, a domain.TattooArtist) (domain.TattooArtist, error) {
	if err := ctx.Err(); err != nil {
		return domain.TattooArtist{}, err
	}
	d := r.s.d
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, existing := range d.artists {
		if strings.EqualFold(existing.Username, a.Username) {
			return domain.TattooArtist{}, fmt.Errorf("memstore: username %q already exists", a.Username)
		}
	}

	a.ID = d.nextArtistID
	d.nextArtistID++
	d.artists[a.ID] = a

	r.s.journal.record(func() { delete(d.artists, a.ID) })
	return a, nil
}
