package response

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/diagnosis/streetink-bookings/internal/domain"
	"github.com/diagnosis/streetink-bookings/pkg/logger"
)

// ErrorResponse represents a structured JSON error response
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	Details   string `json:"details,omitempty"`
	BookingID int64  `json:"booking_id,omitempty"`
}

// Common error codes
const (
	CodeInvalidInput      = "INVALID_INPUT"
	CodeInvalidSlot       = "INVALID_SLOT"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeForbidden         = "FORBIDDEN"
	CodeNotFound          = "NOT_FOUND"
	CodeConflict          = "CONFLICT"
	CodeInvalidTransition = "INVALID_TRANSITION"
	CodeRateLimit         = "RATE_LIMITED"
	CodeInternalError     = "INTERNAL_ERROR"
)

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to encode response", "error", err)
	}
}

// WriteError writes a structured JSON error response
func WriteError(w http.ResponseWriter, statusCode int, message string, code string) {
	JSON(w, statusCode, ErrorResponse{Error: message, Code: code})
}

func BadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, message, CodeInvalidInput)
}

func Unauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, message, CodeUnauthorized)
}

func NotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, message, CodeNotFound)
}

func InternalError(w http.ResponseWriter) {
	WriteError(w, http.StatusInternalServerError, "Something went wrong. Please try again later.", CodeInternalError)
}

// FromError maps a service error to its HTTP status. Unclassified errors are
// logged and answered with a generic body.
func FromError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		conflict   *domain.ConflictError
		notFound   *domain.NotFoundError
		transition *domain.TransitionError
	)
	switch {
	case errors.As(err, &conflict):
		JSON(w, http.StatusConflict, ErrorResponse{Error: err.Error(), Code: CodeConflict, BookingID: conflict.BookingID})
	case errors.As(err, &transition):
		WriteError(w, http.StatusConflict, err.Error(), CodeInvalidTransition)
	case errors.As(err, &notFound):
		NotFound(w, notFound.Entity+" "+notFound.ID+" not found")
	case errors.Is(err, domain.ErrInvalidSlot):
		WriteError(w, http.StatusBadRequest, err.Error(), CodeInvalidSlot)
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrPlaceholderClient):
		BadRequest(w, err.Error())
	case errors.Is(err, domain.ErrInvalidCredentials):
		Unauthorized(w, "invalid username or password")
	default:
		logger.ErrorContext(r.Context(), "Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		InternalError(w)
	}
}
