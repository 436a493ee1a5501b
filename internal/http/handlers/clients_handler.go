package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/diagnosis/streetink-bookings/internal/domain"
	"github.com/diagnosis/streetink-bookings/internal/http/response"
	"github.com/diagnosis/streetink-bookings/internal/service"
)

type ClientHandler struct {
	svc      service.ClientService
	activity *service.ActivityAnalyzer
	years    int
	now      func() time.Time
}

// NewClientHandler uses years as the inactivity threshold when a request
// does not name one.
func NewClientHandler(svc service.ClientService, activity *service.ActivityAnalyzer, years int) *ClientHandler {
	return &ClientHandler{svc: svc, activity: activity, years: years, now: time.Now}
}

func (h *ClientHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.register)
	r.Get("/", h.list)
	r.Get("/inactive", h.inactive)
	r.Post("/activity/refresh", h.refresh)
	r.Get("/{id}", h.get)
	r.Patch("/{id}", h.update)
	r.Delete("/{id}", h.delete)
	r.Get("/{id}/bookings", h.bookings)
	r.Post("/{id}/notice", h.notice)
	return r
}

func (h *ClientHandler) register(w http.ResponseWriter, r *http.Request) {
	var in domain.ClientInput
	if !decode(w, r, &in) {
		return
	}
	c, err := h.svc.Register(r.Context(), in)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.JSON(w, http.StatusCreated, c)
}

func (h *ClientHandler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	out, err := h.svc.List(r.Context(), service.ClientFilter{FirstName: q.Get("first_name"), Phone: q.Get("phone")})
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	if out == nil {
		out = []domain.Client{}
	}
	response.JSON(w, http.StatusOK, out)
}

func (h *ClientHandler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	c, err := h.svc.Get(r.Context(), id)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, c)
}

func (h *ClientHandler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var in domain.ClientInput
	if !decode(w, r, &in) {
		return
	}
	c, err := h.svc.Update(r.Context(), id, in)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, c)
}

func (h *ClientHandler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	moved, err := h.svc.Delete(r.Context(), id)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]int64{
		"deleted_client_id":   id,
		"reassigned_bookings": moved,
		"reassigned_to":       domain.PlaceholderClientID,
	})
}

func (h *ClientHandler) bookings(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	out, err := h.svc.Bookings(r.Context(), id)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	if out == nil {
		out = []domain.Booking{}
	}
	response.JSON(w, http.StatusOK, out)
}

func (h *ClientHandler) thresholdYears(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("years")
	if raw == "" {
		return h.years, true
	}
	years, err := strconv.Atoi(raw)
	if err != nil {
		response.BadRequest(w, "years must be an integer")
		return 0, false
	}
	return years, true
}

func (h *ClientHandler) inactive(w http.ResponseWriter, r *http.Request) {
	years, ok := h.thresholdYears(w, r)
	if !ok {
		return
	}
	out, err := h.activity.FindInactiveClients(r.Context(), h.now(), years)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	if out == nil {
		out = []domain.Client{}
	}
	response.JSON(w, http.StatusOK, out)
}

func (h *ClientHandler) refresh(w http.ResponseWriter, r *http.Request) {
	years, ok := h.thresholdYears(w, r)
	if !ok {
		return
	}
	report, err := h.activity.RefreshActivityFlags(r.Context(), h.now(), years)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, report)
}

type noticeRequest struct {
	Subject string `json:"subject"`
	Content string `json:"content"`
}

func (h *ClientHandler) notice(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var in noticeRequest
	if !decode(w, r, &in) {
		return
	}
	if err := h.svc.SendNotice(r.Context(), id, in.Subject, in.Content); err != nil {
		if errors.Is(err, service.ErrMailUnavailable) {
			response.WriteError(w, http.StatusServiceUnavailable, err.Error(), response.CodeInternalError)
			return
		}
		response.FromError(w, r, err)
		return
	}
	response.JSON(w, http.StatusAccepted, map[string]any{"client_id": id, "sent": true})
}
