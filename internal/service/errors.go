package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/diagnosis/streetink-bookings/internal/domain"
	"github.com/diagnosis/streetink-bookings/internal/repo"
)

// lookupErr converts a failed reference lookup. A missing row and a lookup
// cut short by its deadline both surface as NotFoundError; the latter keeps
// the cause.
func lookupErr(entity string, id int64, err error) error {
	switch {
	case errors.Is(err, repo.ErrNotFound):
		return domain.NotFound(entity, id, nil)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return domain.NotFound(entity, id, err)
	default:
		return fmt.Errorf("load %s %d: %w", entity, id, err)
	}
}
