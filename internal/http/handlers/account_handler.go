package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/diagnosis/streetink-bookings/internal/http/middleware"
	"github.com/diagnosis/streetink-bookings/internal/http/response"
)

// EmailVerifier is satisfied by *notify.EmailOwnership.
type EmailVerifier interface {
	Validate(ctx context.Context, email, username string) (bool, error)
}

type AccountHandler struct {
	emails EmailVerifier
}

func NewAccountHandler(emails EmailVerifier) *AccountHandler {
	return &AccountHandler{emails: emails}
}

func (h *AccountHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/email/verify", h.verifyEmail)
	return r
}

// verifyEmail reports whether the address belongs to the calling artist.
func (h *AccountHandler) verifyEmail(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email string `json:"email"`
	}
	if !decode(w, r, &in) {
		return
	}
	claims := middleware.Claims(r)
	if claims == nil {
		response.Unauthorized(w, "authentication required")
		return
	}

	ok, err := h.emails.Validate(r.Context(), in.Email, claims.Username)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]bool{"valid": ok})
}
