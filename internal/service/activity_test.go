package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diagnosis/streetink-bookings/internal/domain"
	"github.com/diagnosis/streetink-bookings/pkg/events"
)

func TestIsInactive(t *testing.T) {
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	assert.True(t, IsInactive(time.Time{}, false, now, 5))
	assert.True(t, IsInactive(time.Date(2018, 5, 1, 0, 0, 0, 0, time.UTC), true, now, 5))
	assert.False(t, IsInactive(time.Date(2019, 3, 1, 0, 0, 0, 0, time.UTC), true, now, 5), "exactly on the threshold is still active")
	assert.False(t, IsInactive(time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC), true, now, 5))
}

func TestFindInactiveClients(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	old, err := f.store.Clients().Create(ctx, domain.ClientInput{FirstName: "Old"})
	require.NoError(t, err)
	never, err := f.store.Clients().Create(ctx, domain.ClientInput{FirstName: "Never"})
	require.NoError(t, err)

	insertBooking(t, f, old.ID, time.Date(2018, 5, 1, 0, 0, 0, 0, time.UTC))
	insertBooking(t, f, f.client.ID, time.Date(2018, 5, 1, 0, 0, 0, 0, time.UTC))
	insertBooking(t, f, f.client.ID, time.Date(2023, 11, 2, 0, 0, 0, 0, time.UTC))

	a := NewActivityAnalyzer(f.store, nil, 2)
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	inactive, err := a.FindInactiveClients(ctx, now, 5)
	require.NoError(t, err)
	ids := make([]int64, 0, len(inactive))
	for _, c := range inactive {
		ids = append(ids, c.ID)
	}
	assert.Equal(t, []int64{old.ID, never.ID}, ids, "placeholder is excluded and results are ordered by id")

	again, err := a.FindInactiveClients(ctx, now, 0)
	require.NoError(t, err)
	assert.Equal(t, inactive, again)

	stored, err := f.store.Clients().Get(ctx, old.ID)
	require.NoError(t, err)
	assert.True(t, stored.Active, "finding inactive clients does not write flags")
}

func TestRefreshActivityFlags(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	var got []events.ActivityRefreshedEvent
	require.NoError(t, f.bus.Subscribe(events.ClientActivityRefreshed, func(msg *events.Message) {
		var ev events.ActivityRefreshedEvent
		if msg.Decode(&ev) == nil {
			got = append(got, ev)
		}
	}))

	old, err := f.store.Clients().Create(ctx, domain.ClientInput{FirstName: "Old"})
	require.NoError(t, err)
	insertBooking(t, f, old.ID, time.Date(2018, 5, 1, 0, 0, 0, 0, time.UTC))
	insertBooking(t, f, f.client.ID, time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC))

	a := NewActivityAnalyzer(f.store, f.bus, 4)
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	report, err := a.RefreshActivityFlags(ctx, now, 5)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Checked)
	assert.Equal(t, []int64{old.ID}, report.InactiveIDs)

	second, err := a.RefreshActivityFlags(ctx, now, 5)
	require.NoError(t, err)
	assert.Equal(t, report.InactiveIDs, second.InactiveIDs)

	stored, err := f.store.Clients().Get(ctx, old.ID)
	require.NoError(t, err)
	assert.False(t, stored.Active)
	stored, err = f.store.Clients().Get(ctx, f.client.ID)
	require.NoError(t, err)
	assert.True(t, stored.Active)

	placeholder, err := f.store.Clients().Get(ctx, domain.PlaceholderClientID)
	require.NoError(t, err)
	assert.True(t, placeholder.Active)

	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].Inactive)
}

func TestActivityJobRejectsBadSchedule(t *testing.T) {
	f := newFixture(t)
	job := NewActivityJob(NewActivityAnalyzer(f.store, nil, 1), "not a schedule", 5)
	assert.Error(t, job.Start())
}

func TestActivityJobRunOnce(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	insertBooking(t, f, f.client.ID, time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC))

	job := NewActivityJob(NewActivityAnalyzer(f.store, nil, 1), "@every 1h", 5)
	job.now = func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) }
	require.NoError(t, job.Start())
	job.RunOnce()
	job.Stop(ctx)

	c, err := f.store.Clients().Get(ctx, f.client.ID)
	require.NoError(t, err)
	assert.False(t, c.Active)
}
