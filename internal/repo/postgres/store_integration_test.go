package postgres_test

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/diagnosis/streetink-bookings/internal/domain"
	"github.com/diagnosis/streetink-bookings/internal/repo"
	"github.com/diagnosis/streetink-bookings/internal/repo/postgres"
	"github.com/diagnosis/streetink-bookings/pkg/database"
)

func startPostgres(t *testing.T) *postgres.Store {
	t.Helper()
	if os.Getenv("STREETINK_PG_IT") != "1" {
		t.Skip("set STREETINK_PG_IT=1 to run postgres integration tests")
	}

	ctx := context.Background()
	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "streetink",
			"POSTGRES_PASSWORD": "streetink",
			"POSTGRES_DB":       "streetink",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	url := fmt.Sprintf("postgres://streetink:streetink@%s:%s/streetink?sslmode=disable", host, port.Port())
	pool, err := database.Connect(ctx, url, database.Options{})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(pool))

	store := postgres.New(pool)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func seed(t *testing.T, store repo.Store) (domain.TattooArtist, domain.Client) {
	t.Helper()
	ctx := t.Context()

	artist, err := store.Artists().Create(ctx, domain.TattooArtist{
		Username: "Mikkel", PasswordHash: "x", FirstName: "Mikkel", LastName: "Lund",
		Email: "mikkel@streetink.dk",
	})
	require.NoError(t, err)

	client, err := store.Clients().Create(ctx, domain.ClientInput{FirstName: "Tara", Email: "tara@example.com"})
	require.NoError(t, err)
	return artist, client
}

func TestPostgresStore(t *testing.T) {
	store := startPostgres(t)
	artist, client := seed(t, store)
	ctx := t.Context()

	t.Run("placeholder client is seeded", func(t *testing.T) {
		c, err := store.Clients().Get(ctx, domain.PlaceholderClientID)
		require.NoError(t, err)
		assert.Equal(t, "Deleted", c.FirstName)
		assert.Greater(t, client.ID, domain.PlaceholderClientID)
	})

	t.Run("booking round trip and status compare-and-set", func(t *testing.T) {
		s, err := domain.ParseTimeSlot("2024-06-01", "09:00", "10:00")
		require.NoError(t, err)

		id, err := store.Bookings().Insert(ctx, domain.Booking{
			ClientID: client.ID, ArtistID: artist.ID, Slot: s,
			ProjectTitle: "Koi sleeve", Status: domain.BookingRequested,
		})
		require.NoError(t, err)

		got, err := store.Bookings().Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, s, got.Slot)

		require.NoError(t, store.Bookings().UpdateStatus(ctx, id, domain.BookingRequested, domain.BookingConfirmed))
		err = store.Bookings().UpdateStatus(ctx, id, domain.BookingRequested, domain.BookingCancelled)
		assert.ErrorIs(t, err, repo.ErrStaleStatus)

		day, err := store.Bookings().FindByArtistAndDate(ctx, artist.ID, s.Date)
		require.NoError(t, err)
		require.Len(t, day, 1)

		last, ok, err := store.Bookings().MaxBookingDate(ctx, client.ID)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, s.Date, last)
	})

	t.Run("email by username is case-insensitive", func(t *testing.T) {
		email, err := store.Artists().EmailByUsername(ctx, "mikkel")
		require.NoError(t, err)
		assert.Equal(t, "mikkel@streetink.dk", email)

		_, err = store.Artists().EmailByUsername(ctx, "nobody")
		assert.ErrorIs(t, err, repo.ErrNotFound)
	})

	t.Run("schedule lock serializes check and insert", func(t *testing.T) {
		s, err := domain.ParseTimeSlot("2024-07-01", "12:00", "13:00")
		require.NoError(t, err)

		var (
			wg       sync.WaitGroup
			mu       sync.Mutex
			inserted int
		)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = store.WithScheduleLock(ctx, artist.ID, s.Date, func(tx repo.Store) error {
					existing, err := tx.Bookings().FindByArtistAndDate(ctx, artist.ID, s.Date)
					if err != nil || len(existing) > 0 {
						return err
					}
					if _, err := tx.Bookings().Insert(ctx, domain.Booking{
						ClientID: client.ID, ArtistID: artist.ID, Slot: s,
						ProjectTitle: "Flash", Status: domain.BookingRequested,
					}); err != nil {
						return err
					}
					mu.Lock()
					inserted++
					mu.Unlock()
					return nil
				})
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, inserted)
	})
}
