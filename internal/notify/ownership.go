package notify

import (
	"context"
	"errors"
	"strings"

	"github.com/diagnosis/streetink-bookings/internal/domain"
	"github.com/diagnosis/streetink-bookings/internal/repo"
)

// EmailOwnership checks addresses against the stored account email.
type EmailOwnership struct {
	artists repo.Artists
}

func NewEmailOwnership(artists repo.Artists) *EmailOwnership {
	return &EmailOwnership{artists: artists}
}

// Validate reports whether email is well formed and equal to the stored email
// of the account named by username. Unknown usernames yield false.
func (o *EmailOwnership) Validate(ctx context.Context, email, username string) (bool, error) {
	if !domain.IsValidEmail(email) {
		return false, nil
	}

	stored, err := o.artists.EmailByUsername(ctx, username)
	if errors.Is(err, repo.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(stored) == email, nil
}
