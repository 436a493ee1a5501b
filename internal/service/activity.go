package service

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/diagnosis/streetink-bookings/internal/domain"
	"github.com/diagnosis/streetink-bookings/internal/repo"
	"github.com/diagnosis/streetink-bookings/pkg/events"
	"github.com/diagnosis/streetink-bookings/pkg/logger"
)

const DefaultInactiveYears = 5

type ActivityReport struct {
	Checked        int       `json:"checked"`
	Inactive       int       `json:"inactive"`
	Active         int       `json:"active"`
	InactiveIDs    []int64   `json:"inactive_ids"`
	ThresholdYears int       `json:"threshold_years"`
	RanAt          time.Time `json:"ran_at"`
}

// ActivityAnalyzer classifies clients by the date of their latest booking.
type ActivityAnalyzer struct {
	store       repo.Store
	bus         events.Publisher
	concurrency int
}

// NewActivityAnalyzer looks up at most concurrency clients at a time.
func NewActivityAnalyzer(store repo.Store, bus events.Publisher, concurrency int) *ActivityAnalyzer {
	if concurrency <= 0 {
		concurrency = 8
	}
	return &ActivityAnalyzer{store: store, bus: bus, concurrency: concurrency}
}

// IsInactive applies the threshold rule: no bookings at all, or a latest
// booking more than years before now.
func IsInactive(last time.Time, hasBookings bool, now time.Time, years int) bool {
	if !hasBookings {
		return true
	}
	return last.AddDate(years, 0, 0).Before(now)
}

// FindInactiveClients returns the inactive clients ordered by id. It only
// reads; years <= 0 means DefaultInactiveYears.
func (a *ActivityAnalyzer) FindInactiveClients(ctx context.Context, now time.Time, years int) ([]domain.Client, error) {
	inactive, _, err := a.classify(ctx, now, years)
	return inactive, err
}

func (a *ActivityAnalyzer) classify(ctx context.Context, now time.Time, years int) (inactive, active []domain.Client, err error) {
	if years <= 0 {
		years = DefaultInactiveYears
	}

	clients, err := a.store.Clients().List(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list clients: %w", err)
	}
	clients = slices.DeleteFunc(clients, func(c domain.Client) bool { return c.ID == domain.PlaceholderClientID })

	flags := make([]bool, len(clients))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for i, c := range clients {
		g.Go(func() error {
			last, ok, err := a.store.Bookings().MaxBookingDate(gctx, c.ID)
			if err != nil {
				return fmt.Errorf("last booking of client %d: %w", c.ID, err)
			}
			flags[i] = IsInactive(last, ok, now, years)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	for i, c := range clients {
		if flags[i] {
			inactive = append(inactive, c)
		} else {
			active = append(active, c)
		}
	}
	byID := func(x, y domain.Client) int { return cmp.Compare(x.ID, y.ID) }
	slices.SortFunc(inactive, byID)
	slices.SortFunc(active, byID)
	return inactive, active, nil
}

// RefreshActivityFlags writes the derived active flag of every client.
func (a *ActivityAnalyzer) RefreshActivityFlags(ctx context.Context, now time.Time, years int) (ActivityReport, error) {
	if years <= 0 {
		years = DefaultInactiveYears
	}
	inactive, active, err := a.classify(ctx, now, years)
	if err != nil {
		return ActivityReport{}, err
	}

	ids := func(cs []domain.Client) []int64 {
		out := make([]int64, 0, len(cs))
		for _, c := range cs {
			out = append(out, c.ID)
		}
		return out
	}
	inactiveIDs := ids(inactive)

	err = a.store.WithTx(ctx, func(tx repo.Store) error {
		if err := tx.Clients().SetActive(ctx, inactiveIDs, false); err != nil {
			return err
		}
		return tx.Clients().SetActive(ctx, ids(active), true)
	})
	if err != nil {
		return ActivityReport{}, fmt.Errorf("write activity flags: %w", err)
	}

	report := ActivityReport{
		Checked:        len(inactive) + len(active),
		Inactive:       len(inactive),
		Active:         len(active),
		InactiveIDs:    inactiveIDs,
		ThresholdYears: years,
		RanAt:          now.UTC(),
	}
	logger.InfoContext(ctx, "Client activity refreshed",
		"checked", report.Checked,
		"inactive", report.Inactive,
		"threshold_years", years,
	)

	if a.bus != nil {
		ev := events.ActivityRefreshedEvent{Checked: report.Checked, Inactive: report.Inactive, Active: report.Active, RefreshedAt: report.RanAt}
		if err := a.bus.Publish(ctx, events.ClientActivityRefreshed, ev); err != nil {
			logger.ErrorContext(ctx, "Failed to publish activity event", "error", err)
		}
	}
	return report, nil
}
