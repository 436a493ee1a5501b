package notify

import (
	"context"
	"errors"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/diagnosis/streetink-bookings/internal/domain"
	"github.com/diagnosis/streetink-bookings/internal/mailer"
	"github.com/diagnosis/streetink-bookings/internal/repo/memstore"
)

type mockTransport struct{ mock.Mock }

func (m *mockTransport) Send(ctx context.Context, msg mailer.Message) (string, error) {
	args := m.Called(ctx, msg)
	return args.String(0), args.Error(1)
}

func fixtures(t *testing.T) (domain.Booking, domain.Client, domain.TattooArtist) {
	t.Helper()
	s, err := domain.ParseTimeSlot("2024-06-01", "09:00", "10:30")
	require.NoError(t, err)
	return domain.Booking{ID: 11, ClientID: 2, ArtistID: 1, Slot: s, ProjectTitle: "Koi sleeve", Status: domain.BookingConfirmed},
		domain.Client{ID: 2, FirstName: "Tara", LastName: "Holm", Email: "tara@example.com"},
		domain.TattooArtist{ID: 1, Username: "mikkel", FirstName: "Mikkel", LastName: "Lund", Email: "mikkel@streetink.dk", Instagram: "@mikkel.ink"}
}

func newRenderer(t *testing.T) *TemplateRenderer {
	t.Helper()
	r, err := NewTemplateRenderer()
	require.NoError(t, err)
	return r
}

func TestDispatchConfirmationSent(t *testing.T) {
	b, c, a := fixtures(t)
	tr := &mockTransport{}
	tr.On("Send", mock.Anything, mock.MatchedBy(func(m mailer.Message) bool {
		return m.To == "tara@example.com" && m.Subject == ConfirmationSubject
	})).Return("msg-1", nil).Once()

	res := NewDispatcher(newRenderer(t), tr, time.Second).DispatchConfirmation(t.Context(), b, c, a)
	require.Equal(t, Sent, res.Status)
	assert.Equal(t, "msg-1", res.MessageID)
	assert.Equal(t, "Mail sent successfully", res.UserMessage())

	html := tr.Calls[0].Arguments.Get(1).(mailer.Message).HTML
	assert.Contains(t, html, "Hi Tara")
	assert.Contains(t, html, "01-06-2024")
	assert.Contains(t, html, "09:00 - 10:30")
	assert.Contains(t, html, "Mikkel Lund")
	assert.Contains(t, html, "@mikkel.ink")
	tr.AssertExpectations(t)
}

func TestTransportFailureLeavesBookingConfirmed(t *testing.T) {
	store := memstore.New()
	ctx := t.Context()
	b, c, a := fixtures(t)

	a, err := store.Artists().Create(ctx, a)
	require.NoError(t, err)
	c, err = store.Clients().Create(ctx, domain.ClientInput{FirstName: c.FirstName, Email: c.Email})
	require.NoError(t, err)
	b.ArtistID, b.ClientID = a.ID, c.ID
	b.Status = domain.BookingRequested
	b.ID, err = store.Bookings().Insert(ctx, b)
	require.NoError(t, err)
	require.NoError(t, store.Bookings().UpdateStatus(ctx, b.ID, domain.BookingRequested, domain.BookingConfirmed))

	tr := &mockTransport{}
	tr.On("Send", mock.Anything, mock.Anything).Return("", errors.New("smtp: connection refused"))

	worker := NewWorker(store, NewDispatcher(newRenderer(t), tr, time.Second), time.Second)
	res, err := worker.Process(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, TransportFailed, res.Status)
	assert.Contains(t, res.Reason, "connection refused")
	assert.Contains(t, res.UserMessage(), "Booking is saved")

	stored, err := store.Bookings().Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingConfirmed, stored.Status)
}

func TestTemplateFailureSkipsTransport(t *testing.T) {
	b, c, a := fixtures(t)
	r, err := NewTemplateRendererFS(fstest.MapFS{
		"t/confirmation-mail.html": {Data: []byte(`{{.NoSuchKey}}`)},
	}, "t/*.html")
	require.NoError(t, err)

	tr := &mockTransport{}
	res := NewDispatcher(r, tr, time.Second).DispatchConfirmation(t.Context(), b, c, a)
	assert.Equal(t, TemplateFailed, res.Status)
	assert.NotEmpty(t, res.Reason)
	tr.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestMissingTemplateIsTemplateFailure(t *testing.T) {
	b, c, a := fixtures(t)
	r, err := NewTemplateRendererFS(fstest.MapFS{
		"t/other.html": {Data: []byte(`hi`)},
	}, "t/*.html")
	require.NoError(t, err)

	res := NewDispatcher(r, &mockTransport{}, time.Second).DispatchConfirmation(t.Context(), b, c, a)
	assert.Equal(t, TemplateFailed, res.Status)
}

func TestTransportPanicIsContained(t *testing.T) {
	b, c, a := fixtures(t)
	tr := &mockTransport{}
	tr.On("Send", mock.Anything, mock.Anything).Run(func(mock.Arguments) { panic("driver exploded") }).Return("", nil)

	var res DispatchResult
	require.NotPanics(t, func() {
		res = NewDispatcher(newRenderer(t), tr, time.Second).DispatchConfirmation(t.Context(), b, c, a)
	})
	assert.Equal(t, TransportFailed, res.Status)
	assert.Contains(t, res.Reason, "driver exploded")
}

func TestTransportTimeout(t *testing.T) {
	b, c, a := fixtures(t)
	tr := &mockTransport{}
	tr.On("Send", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		<-args.Get(0).(context.Context).Done()
	}).Return("", context.DeadlineExceeded)

	start := time.Now()
	res := NewDispatcher(newRenderer(t), tr, 20*time.Millisecond).DispatchConfirmation(t.Context(), b, c, a)
	assert.Equal(t, TransportFailed, res.Status)
	assert.Equal(t, "mail transport timed out", res.Reason)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestClientWithoutEmail(t *testing.T) {
	b, c, a := fixtures(t)
	c.Email = ""
	tr := &mockTransport{}
	res := NewDispatcher(newRenderer(t), tr, time.Second).DispatchConfirmation(t.Context(), b, c, a)
	assert.Equal(t, TransportFailed, res.Status)
	tr.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestSendPlain(t *testing.T) {
	tr := &mockTransport{}
	tr.On("Send", mock.Anything, mailer.Message{To: "tara@example.com", Subject: "Aftercare", Text: "Keep it moist."}).Return("id", nil).Once()

	d := NewDispatcher(newRenderer(t), tr, time.Second)
	require.NoError(t, d.SendPlain(t.Context(), " tara@example.com ", "Aftercare", "Keep it moist."))
	assert.ErrorIs(t, d.SendPlain(t.Context(), "not-an-email", "x", "y"), domain.ErrValidation)
	tr.AssertExpectations(t)
}

func TestEmailOwnership(t *testing.T) {
	store := memstore.New()
	_, err := store.Artists().Create(t.Context(), domain.TattooArtist{Username: "nanna", Email: "nanna@streetink.dk"})
	require.NoError(t, err)
	o := NewEmailOwnership(store.Artists())

	cases := []struct {
		email, username string
		want            bool
	}{
		{"nanna@streetink.dk", "nanna", true},
		{"nanna@streetink.dk", "NANNA", true},
		{"other@streetink.dk", "nanna", false},
		{"nanna@streetink", "nanna", false},
		{"nanna@streetink.dk", "ghost", false},
	}
	for _, c := range cases {
		got, err := o.Validate(t.Context(), c.email, c.username)
		require.NoError(t, err)
		assert.Equal(t, c.want, got, "%s/%s", c.email, c.username)
	}
}
