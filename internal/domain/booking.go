package domain

import (
	"strings"
	"time"
)

type BookingStatus string

const (
	BookingRequested BookingStatus = "requested"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
	BookingCompleted BookingStatus = "completed"
)

func ParseBookingStatus(s string) (BookingStatus, bool) {
	switch BookingStatus(strings.ToLower(strings.TrimSpace(s))) {
	case BookingRequested, BookingConfirmed, BookingCancelled, BookingCompleted:
		return BookingStatus(strings.ToLower(strings.TrimSpace(s))), true
	default:
		return "", false
	}
}

// IsActive reports whether a booking still holds its slot.
func (s BookingStatus) IsActive() bool {
	return s == BookingRequested || s == BookingConfirmed
}

// IsTerminal reports whether no further transition is possible.
func (s BookingStatus) IsTerminal() bool {
	return s == BookingCancelled || s == BookingCompleted
}

type BookingEvent string

const (
	EventConfirm  BookingEvent = "confirm"
	EventCancel   BookingEvent = "cancel"
	EventComplete BookingEvent = "complete"
)

var transitions = map[BookingStatus]map[BookingEvent]BookingStatus{
	BookingRequested: {
		EventConfirm: BookingConfirmed,
		EventCancel:  BookingCancelled,
	},
	BookingConfirmed: {
		EventCancel:   BookingCancelled,
		EventComplete: BookingCompleted,
	},
}

// NextStatus returns the state reached by applying ev to from.
func NextStatus(from BookingStatus, ev BookingEvent) (BookingStatus, error) {
	to, ok := transitions[from][ev]
	if !ok {
		return from, &TransitionError{From: from, Event: ev}
	}
	return to, nil
}

type Booking struct {
	ID                 int64         `json:"id"`
	ClientID           int64         `json:"client_id"`
	ArtistID           int64         `json:"artist_id"`
	Slot               TimeSlot      `json:"slot"`
	ProjectTitle       string        `json:"project_title"`
	ProjectDescription string        `json:"project_description"`
	Status             BookingStatus `json:"status"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

// ProposeRequest is the input to scheduling a new appointment.
type ProposeRequest struct {
	ArtistID           int64    `json:"artist_id"`
	ClientID           int64    `json:"client_id"`
	Slot               TimeSlot `json:"slot"`
	ProjectTitle       string   `json:"project_title"`
	ProjectDescription string   `json:"project_description"`
}

// Normalize trims free-text fields.
func (r *ProposeRequest) Normalize() {
	r.ProjectTitle = strings.TrimSpace(r.ProjectTitle)
	r.ProjectDescription = strings.TrimSpace(r.ProjectDescription)
}

// Business rules
const (
	MaxProjectTitleLength = 120
)
