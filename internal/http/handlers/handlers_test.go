package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diagnosis/streetink-bookings/internal/domain"
	"github.com/diagnosis/streetink-bookings/internal/http/response"
	"github.com/diagnosis/streetink-bookings/internal/mailer"
	"github.com/diagnosis/streetink-bookings/internal/notify"
	"github.com/diagnosis/streetink-bookings/internal/repo/memstore"
	"github.com/diagnosis/streetink-bookings/internal/service"
	"github.com/diagnosis/streetink-bookings/pkg/auth"
	mw "github.com/diagnosis/streetink-bookings/pkg/middleware"
)

const secret = "handler-test-secret"

type testAPI struct {
	handler http.Handler
	token   string
	artist  domain.TattooArtist
	client  domain.Client
	outbox  *mailer.DevMailer
}

func newTestAPI(t *testing.T, notifyInline bool) *testAPI {
	t.Helper()
	ctx := t.Context()
	store := memstore.New()

	authSvc := service.NewAuthService(store.Artists(), secret, time.Hour)
	artist, err := authSvc.SeedArtist(ctx, domain.TattooArtist{Username: "mikkel", FirstName: "Mikkel", Email: "mikkel@streetink.dk"}, "s3cret-pass")
	require.NoError(t, err)
	client, err := store.Clients().Create(ctx, domain.ClientInput{FirstName: "Tara", Email: "tara@example.com"})
	require.NoError(t, err)

	renderer, err := notify.NewTemplateRenderer()
	require.NoError(t, err)
	outbox := mailer.NewDevMailer()
	dispatcher := notify.NewDispatcher(renderer, outbox, time.Second)

	lifecycle := service.NewLifecycle(store, nil, time.UTC)
	bookings := service.NewBookingService(store, service.NewScheduler(), lifecycle, dispatcher, service.BookingOptions{NotifyInline: notifyInline})
	clients := service.NewClientService(store, lifecycle, dispatcher)
	activity := service.NewActivityAnalyzer(store, nil, 2)

	h := NewRouter(RouterConfig{
		JWTSecret:    secret,
		Ping:         store.Ping,
		LoginLimiter: mw.RateLimitByIP(100, 100),
		Auth:         NewAuthHandler(authSvc),
		Bookings:     NewBookingHandler(bookings, mw.IdempotencyMiddleware(mw.NewMemoryIdempotencyStore(), time.Minute)),
		Clients:      NewClientHandler(clients, activity, 5),
		Account:      NewAccountHandler(notify.NewEmailOwnership(store.Artists())),
	})

	token, err := auth.NewAccessToken(artist.ID, artist.Username, auth.RoleArtist, secret, time.Hour)
	require.NoError(t, err)
	return &testAPI{handler: h, token: token, artist: artist, client: client, outbox: outbox}
}

func (a *testAPI) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func (a *testAPI) proposal(start, end string) map[string]any {
	return map[string]any{
		"artist_id":     a.artist.ID,
		"client_id":     a.client.ID,
		"slot":          map[string]string{"date": "2024-06-01", "start": start, "end": end},
		"project_title": "Koi sleeve",
	}
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestRequiresToken(t *testing.T) {
	api := newTestAPI(t, false)
	api.token = ""
	rec := api.do(t, http.MethodGet, "/bookings/1", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	api.token = "garbage"
	rec = api.do(t, http.MethodGet, "/clients", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogin(t *testing.T) {
	api := newTestAPI(t, false)
	api.token = ""

	rec := api.do(t, http.MethodPost, "/auth/login", domain.LoginRequest{Username: "mikkel", Password: "s3cret-pass"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decodeBody[domain.LoginResponse](t, rec)
	assert.NotEmpty(t, out.AccessToken)
	assert.NotContains(t, rec.Body.String(), "argon2id")

	rec = api.do(t, http.MethodPost, "/auth/login", domain.LoginRequest{Username: "mikkel", Password: "nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProposeAndConflict(t *testing.T) {
	api := newTestAPI(t, false)

	rec := api.do(t, http.MethodPost, "/bookings", api.proposal("09:00", "10:00"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	first := decodeBody[domain.Booking](t, rec)
	assert.Equal(t, domain.BookingRequested, first.Status)

	rec = api.do(t, http.MethodPost, "/bookings", api.proposal("09:30", "10:30"))
	require.Equal(t, http.StatusConflict, rec.Code)
	errBody := decodeBody[response.ErrorResponse](t, rec)
	assert.Equal(t, response.CodeConflict, errBody.Code)
	assert.Equal(t, first.ID, errBody.BookingID)

	rec = api.do(t, http.MethodPost, "/bookings", api.proposal("10:00", "11:00"))
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = api.do(t, http.MethodGet, "/bookings?artist_id="+itoa(api.artist.ID)+"&date=2024-06-01", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]domain.Booking](t, rec), 2)
}

func TestProposeValidation(t *testing.T) {
	api := newTestAPI(t, false)

	rec := api.do(t, http.MethodPost, "/bookings", api.proposal("11:00", "10:00"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	p := api.proposal("09:00", "10:00")
	p["client_id"] = 999
	rec = api.do(t, http.MethodPost, "/bookings", p)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	p = api.proposal("09:00", "10:00")
	p["project_title"] = ""
	rec = api.do(t, http.MethodPost, "/bookings", p)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProposeIdempotencyKeyReplays(t *testing.T) {
	api := newTestAPI(t, false)

	first := api.do(t, http.MethodPost, "/bookings", api.proposal("09:00", "10:00"), "Idempotency-Key", "abc-1")
	require.Equal(t, http.StatusCreated, first.Code)
	again := api.do(t, http.MethodPost, "/bookings", api.proposal("09:00", "10:00"), "Idempotency-Key", "abc-1")
	require.Equal(t, http.StatusCreated, again.Code)
	assert.Equal(t, "true", again.Header().Get("Idempotent-Replay"))
	assert.JSONEq(t, first.Body.String(), again.Body.String())
}

func TestConfirmTransitions(t *testing.T) {
	api := newTestAPI(t, true)

	rec := api.do(t, http.MethodPost, "/bookings", api.proposal("09:00", "10:00"))
	require.Equal(t, http.StatusCreated, rec.Code)
	b := decodeBody[domain.Booking](t, rec)
	path := "/bookings/" + itoa(b.ID)

	rec = api.do(t, http.MethodPost, path+"/confirm", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decodeBody[confirmView](t, rec)
	assert.Equal(t, domain.BookingConfirmed, out.Booking.Status)
	require.NotNil(t, out.Notification)
	assert.Equal(t, notify.Sent, out.Notification.Status)
	assert.Empty(t, out.Warning)

	rec = api.do(t, http.MethodPost, path+"/confirm", nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, response.CodeInvalidTransition, decodeBody[response.ErrorResponse](t, rec).Code)

	rec = api.do(t, http.MethodPost, path+"/cancel", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.BookingCancelled, decodeBody[domain.Booking](t, rec).Status)

	rec = api.do(t, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = api.do(t, http.MethodGet, path, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestClientLifecycle(t *testing.T) {
	api := newTestAPI(t, false)

	rec := api.do(t, http.MethodPost, "/clients", domain.ClientInput{FirstName: "Anna", PhoneNumber: "+45 11 22 33 44"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	anna := decodeBody[domain.Client](t, rec)

	rec = api.do(t, http.MethodGet, "/clients?first_name=AN", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]domain.Client](t, rec), 1)

	p := api.proposal("09:00", "10:00")
	p["client_id"] = anna.ID
	rec = api.do(t, http.MethodPost, "/bookings", p)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = api.do(t, http.MethodDelete, "/clients/"+itoa(anna.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decodeBody[map[string]int64](t, rec)["reassigned_bookings"])

	rec = api.do(t, http.MethodDelete, "/clients/1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(t, http.MethodGet, "/clients/1/bookings", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]domain.Booking](t, rec), 1)
}

func TestClientNotice(t *testing.T) {
	api := newTestAPI(t, false)

	rec := api.do(t, http.MethodPost, "/clients/"+itoa(api.client.ID)+"/notice", map[string]string{
		"subject": "Studio closed Friday",
		"content": "We need to move your session.",
	})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	out := api.outbox.Outbox()
	require.Len(t, out, 1)
	assert.Equal(t, "tara@example.com", out[0].To)
	assert.Equal(t, "Studio closed Friday", out[0].Subject)

	rec = api.do(t, http.MethodPost, "/clients/999/notice", map[string]string{"subject": "x", "content": "y"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = api.do(t, http.MethodPost, "/clients/"+itoa(api.client.ID)+"/notice", map[string]string{"subject": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Len(t, api.outbox.Outbox(), 1)
}

func TestInactiveClients(t *testing.T) {
	api := newTestAPI(t, false)

	rec := api.do(t, http.MethodGet, "/clients/inactive?years=5", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	inactive := decodeBody[[]domain.Client](t, rec)
	require.Len(t, inactive, 1, "a client without bookings is inactive")
	assert.Equal(t, api.client.ID, inactive[0].ID)

	rec = api.do(t, http.MethodGet, "/clients/inactive?years=x", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(t, http.MethodPost, "/clients/activity/refresh", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	report := decodeBody[service.ActivityReport](t, rec)
	assert.Equal(t, 1, report.Inactive)
}

func TestVerifyEmail(t *testing.T) {
	api := newTestAPI(t, false)

	rec := api.do(t, http.MethodPost, "/account/email/verify", map[string]string{"email": "mikkel@streetink.dk"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeBody[map[string]bool](t, rec)["valid"])

	rec = api.do(t, http.MethodPost, "/account/email/verify", map[string]string{"email": "someone@else.dk"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decodeBody[map[string]bool](t, rec)["valid"])
}

func TestHealthAndMetrics(t *testing.T) {
	api := newTestAPI(t, false)
	api.token = ""

	rec := api.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = api.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
}

func itoa(id int64) string { return strconv.FormatInt(id, 10) }
