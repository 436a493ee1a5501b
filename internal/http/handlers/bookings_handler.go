package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/diagnosis/streetink-bookings/internal/domain"
	"github.com/diagnosis/streetink-bookings/internal/http/response"
	"github.com/diagnosis/streetink-bookings/internal/notify"
	"github.com/diagnosis/streetink-bookings/internal/service"
)

type BookingHandler struct {
	svc service.BookingService
	// idempotent wraps the propose route; nil leaves it unwrapped.
	idempotent func(http.Handler) http.Handler
}

func NewBookingHandler(svc service.BookingService, idempotent func(http.Handler) http.Handler) *BookingHandler {
	return &BookingHandler{svc: svc, idempotent: idempotent}
}

func (h *BookingHandler) Routes() chi.Router {
	r := chi.NewRouter()
	if h.idempotent != nil {
		r.With(h.idempotent).Post("/", h.propose)
	} else {
		r.Post("/", h.propose)
	}
	r.Get("/", h.daySchedule)
	r.Get("/{id}", h.get)
	r.Post("/{id}/confirm", h.confirm)
	r.Post("/{id}/cancel", h.transition(h.svc.Cancel))
	r.Post("/{id}/complete", h.transition(h.svc.Complete))
	r.Delete("/{id}", h.delete)
	return r
}

func (h *BookingHandler) propose(w http.ResponseWriter, r *http.Request) {
	var in domain.ProposeRequest
	if !decode(w, r, &in) {
		return
	}
	if in.ArtistID <= 0 || in.ClientID <= 0 {
		response.BadRequest(w, "artist_id and client_id are required")
		return
	}

	b, err := h.svc.ProposeBooking(r.Context(), in)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.JSON(w, http.StatusCreated, b)
}

func (h *BookingHandler) daySchedule(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	artistID, err := strconv.ParseInt(q.Get("artist_id"), 10, 64)
	if err != nil || artistID <= 0 {
		response.BadRequest(w, "artist_id is required")
		return
	}
	date, err := domain.ParseDate(q.Get("date"))
	if err != nil {
		response.BadRequest(w, "date must be YYYY-MM-DD")
		return
	}

	day, err := h.svc.DaySchedule(r.Context(), artistID, date)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	if day == nil {
		day = []domain.Booking{}
	}
	response.JSON(w, http.StatusOK, day)
}

func (h *BookingHandler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	b, err := h.svc.GetBooking(r.Context(), id)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, b)
}

type notificationView struct {
	Status    notify.DispatchStatus `json:"status"`
	Message   string                `json:"message"`
	MessageID string                `json:"message_id,omitempty"`
}

type confirmView struct {
	Booking      domain.Booking    `json:"booking"`
	Notification *notificationView `json:"notification,omitempty"`
	Warning      string            `json:"warning,omitempty"`
}

func (h *BookingHandler) confirm(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	b, res, err := h.svc.Confirm(r.Context(), id)
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	out := confirmView{Booking: b}
	if res != nil {
		out.Notification = &notificationView{Status: res.Status, Message: res.UserMessage(), MessageID: res.MessageID}
		if !res.OK() {
			out.Warning = res.UserMessage()
		}
	}
	response.JSON(w, http.StatusOK, out)
}

func (h *BookingHandler) transition(apply func(ctx context.Context, id int64) (domain.Booking, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(w, r)
		if !ok {
			return
		}
		b, err := apply(r.Context(), id)
		if err != nil {
			response.FromError(w, r, err)
			return
		}
		response.JSON(w, http.StatusOK, b)
	}
}

func (h *BookingHandler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteBooking(r.Context(), id); err != nil {
		response.FromError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
